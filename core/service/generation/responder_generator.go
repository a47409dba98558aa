// Package generation produces candidate replies with a language generation
// provider, optionally enriched with mined historical style patterns.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"responder_server/core/domain"
	"responder_server/core/port/out"
	"responder_server/core/service/common"
	"responder_server/pkg/logger"
)

const (
	maxBodyChars        = 2000
	maxSimilarExamples  = 3
	similarBodyPreview  = 300
	maxPatternPhrases   = 3
	maxContextKeyTopics = 5
)

// Generator builds reply prompts and parses the structured provider output.
// Like the classifier it is total: any failure degrades to the canonical
// generic acknowledgment at confidence zero.
type Generator struct {
	llm         out.TextCompleter
	profile     domain.BusinessProfile
	temperature float64
	maxTokens   int
	log         *logger.Logger
}

func NewGenerator(llm out.TextCompleter, profile domain.BusinessProfile, temperature float64, maxTokens int) *Generator {
	return &Generator{
		llm:         llm,
		profile:     profile,
		temperature: temperature,
		maxTokens:   maxTokens,
		log:         logger.WithField("component", "generator"),
	}
}

// generationReply is the provider's JSON contract.
type generationReply struct {
	Subject       string  `json:"subject"`
	BodyText      string  `json:"body_text"`
	BodyHTML      string  `json:"body_html"`
	Confidence    float64 `json:"confidence"`
	TemplateUsed  string  `json:"template_used"`
	CallToAction  string  `json:"call_to_action"`
	LearningNotes string  `json:"learning_notes"`
}

// LearningContext carries the optional pattern-miner output for the
// enriched generation path. Any field may be nil/empty.
type LearningContext struct {
	Patterns     *domain.ResponsePattern
	Conversation *domain.ConversationContext
	Similar      []domain.SimilarMessage
}

func (lc *LearningContext) empty() bool {
	return lc == nil || (lc.Patterns == nil && lc.Conversation == nil && len(lc.Similar) == 0)
}

// Generate produces a reply from the message and its classification alone.
// Returns the response and the provider call count.
func (g *Generator) Generate(ctx context.Context, msg *domain.IncomingMessage, c domain.Classification, template *domain.Template) (domain.GeneratedResponse, int) {
	prompt := g.buildPrompt(msg, c, template, nil)
	resp, apiCalls := g.complete(ctx, msg, prompt, template)
	return resp, apiCalls
}

// GenerateWithLearning attempts the history-enriched prompt first and falls
// back to the plain path when no learning context is available or the
// enriched call fails outright.
func (g *Generator) GenerateWithLearning(ctx context.Context, msg *domain.IncomingMessage, c domain.Classification, lc *LearningContext, template *domain.Template) (domain.GeneratedResponse, int) {
	if lc.empty() {
		return g.Generate(ctx, msg, c, template)
	}

	prompt := g.buildPrompt(msg, c, template, lc)
	raw, err := g.llm.Complete(ctx, prompt, g.temperature, g.maxTokens)
	if err != nil {
		g.log.Warn("enriched generation failed for message %s, falling back: %v", msg.ID, err)
		resp, calls := g.Generate(ctx, msg, c, template)
		return resp, calls + 1
	}

	reply, err := parseReply(raw)
	if err != nil {
		g.log.Warn("unparseable enriched reply for message %s, falling back: %v", msg.ID, err)
		resp, calls := g.Generate(ctx, msg, c, template)
		return resp, calls + 1
	}

	return g.toResponse(msg, reply, template), 1
}

// complete runs one plain provider round-trip, degrading to the default
// acknowledgment on failure.
func (g *Generator) complete(ctx context.Context, msg *domain.IncomingMessage, prompt string, template *domain.Template) (domain.GeneratedResponse, int) {
	raw, err := g.llm.Complete(ctx, prompt, g.temperature, g.maxTokens)
	if err != nil {
		g.log.Error("provider call failed for message %s: %v", msg.ID, err)
		return domain.DefaultResponse(msg.ID, msg.Subject, g.profile.OwnerName), 1
	}

	reply, err := parseReply(raw)
	if err != nil {
		g.log.Warn("unparseable generation reply for message %s: %v", msg.ID, err)
		return domain.DefaultResponse(msg.ID, msg.Subject, g.profile.OwnerName), 1
	}

	return g.toResponse(msg, reply, template), 1
}

func (g *Generator) toResponse(msg *domain.IncomingMessage, reply *generationReply, template *domain.Template) domain.GeneratedResponse {
	subject := reply.Subject
	if subject == "" {
		subject = "Re: " + msg.Subject
	}

	var templateID *string
	if template != nil {
		id := template.ID
		templateID = &id
	}

	return domain.GeneratedResponse{
		MessageID:     msg.ID,
		Subject:       subject,
		BodyText:      reply.BodyText,
		BodyHTML:      reply.BodyHTML,
		Model:         g.llm.Model(),
		TemplateID:    templateID,
		Confidence:    common.Clamp01(reply.Confidence),
		CallToAction:  reply.CallToAction != "",
		LearningNotes: reply.LearningNotes,
		Status:        domain.ResponseDraft,
		CreatedAt:     time.Now(),
	}
}

func parseReply(raw string) (*generationReply, error) {
	block, err := common.ExtractJSONBlock(raw)
	if err != nil {
		return nil, err
	}
	var reply generationReply
	if err := json.Unmarshal([]byte(block), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse generation response: %w", err)
	}
	if strings.TrimSpace(reply.BodyText) == "" {
		return nil, fmt.Errorf("generation reply has empty body")
	}
	return &reply, nil
}

func (g *Generator) buildPrompt(msg *domain.IncomingMessage, c domain.Classification, template *domain.Template, lc *LearningContext) string {
	firstName := msg.SenderFirstName()
	if firstName == "" {
		firstName = "Amigo(a)"
	}
	senderName := msg.SenderName
	if senderName == "" {
		senderName = "Amigo(a)"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Você é %s, especialista em %s.\n\n", g.profile.OwnerName, g.profile.Field)
	if lc != nil {
		b.WriteString("IMPORTANTE: Use seu HISTÓRICO DE RESPOSTAS para manter CONSISTÊNCIA no seu estilo e abordagem.\n\n")
	}

	fmt.Fprintf(&b, `SEU PERFIL:
- Criador da %s
- Tom: profissional, empático, motivador, direto
- Foco: transformação de vida através da aprovação

PRODUTOS:
`, g.profile.Methodology)
	for _, p := range g.profile.Products {
		fmt.Fprintf(&b, "- %s (%s): %s\n", p.Name, p.Price, p.Description)
	}

	b.WriteString("\nCASES DE SUCESSO:\n")
	for _, sc := range g.profile.SuccessCases {
		fmt.Fprintf(&b, "- %s: %s\n", sc.Name, sc.Achievement)
	}

	fmt.Fprintf(&b, `
EMAIL RECEBIDO:
De: %s <%s>
Assunto: %s
Conteúdo: %s

CLASSIFICAÇÃO: tipo=%s, prioridade=%s, produto=%s, sentimento=%s, confiança=%.2f
`, senderName, msg.Sender, msg.Subject, common.TruncateBody(msg.BodyText, maxBodyChars),
		c.Type, c.Priority, c.Product, c.Sentiment, c.Confidence)

	if lc != nil {
		writeLearningSections(&b, lc)
	}

	if template != nil {
		fmt.Fprintf(&b, "\nTEMPLATE BASE:\nAssunto: %s\nCorpo: %s\n", template.Subject, template.BodyText)
	}

	fmt.Fprintf(&b, `
INSTRUÇÕES PARA RESPOSTA:
1. Use o nome "%s" para personalizar
2. Responda de forma direta e prática
3. Inclua elementos motivacionais baseados em resultados
4. Se for interesse comercial, inclua call-to-action claro
5. Mantenha tom profissional mas acessível
6. Mencione cases de sucesso quando relevante
`, firstName)

	if lc != nil {
		b.WriteString(`7. MANTENHA CONSISTÊNCIA com suas respostas anteriores similares
8. Use padrões de saudação e despedida que você já utiliza
9. Mantenha o comprimento de resposta similar ao seu padrão
10. Adapte o tom baseado no estágio da conversa
`)
	}

	b.WriteString(`
Gere uma resposta completa em formato JSON:
{
    "subject": "assunto da resposta",
    "body_text": "corpo da resposta em texto",
    "body_html": "corpo da resposta em HTML (opcional)",
    "confidence": 0.85,
    "template_used": "nome do template se aplicável",
    "call_to_action": "principal CTA da resposta"`)
	if lc != nil {
		b.WriteString(`,
    "learning_notes": "como o histórico influenciou esta resposta"`)
	}
	b.WriteString("\n}\n")

	return b.String()
}

func writeLearningSections(b *strings.Builder, lc *LearningContext) {
	if len(lc.Similar) > 0 {
		b.WriteString("\nRESPOSTAS SIMILARES DO SEU HISTÓRICO:\n")
		for i, sim := range lc.Similar {
			if i >= maxSimilarExamples {
				break
			}
			fmt.Fprintf(b, "%d. Assunto: %s\n   Resposta: %s...\n   Similaridade: %.2f\n",
				i+1, sim.Message.Subject,
				common.TruncateBody(sim.Message.BodyText, similarBodyPreview), sim.Score)
		}
	}

	if cc := lc.Conversation; cc != nil {
		lastSentiment := 0.0
		if len(cc.Sentiments) > 0 {
			lastSentiment = cc.Sentiments[len(cc.Sentiments)-1]
		}
		topics := cc.KeyTopics
		if len(topics) > maxContextKeyTopics {
			topics = topics[:maxContextKeyTopics]
		}
		fmt.Fprintf(b, `
CONTEXTO DA CONVERSA:
- Estágio: %s
- Total de mensagens: %d
- Último sentimento: %.2f
- Tópicos principais: %s
`, cc.Stage, cc.MessageCount, lastSentiment, strings.Join(topics, ", "))
	}

	if p := lc.Patterns; p != nil {
		greetings := p.Greetings
		if len(greetings) > maxPatternPhrases {
			greetings = greetings[:maxPatternPhrases]
		}
		closings := p.Closings
		if len(closings) > maxPatternPhrases {
			closings = closings[:maxPatternPhrases]
		}
		fmt.Fprintf(b, `
SEUS PADRÕES DE RESPOSTA APRENDIDOS:
- Saudações comuns: %s
- Despedidas comuns: %s
- Comprimento médio das respostas: %.0f caracteres
- Total de respostas analisadas: %d
`, strings.Join(greetings, ", "), strings.Join(closings, ", "), p.Length.Mean, p.SampleCount)
	}
}
