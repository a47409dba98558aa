// Package classification turns raw messages into structured classifications
// using a language generation provider with a strict output contract.
package classification

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

const maxBodyChars = 2000

// Classifier builds a domain-specific prompt, calls the provider and parses
// the constrained reply. It never returns an error to callers: any provider
// or parse failure degrades to the zero-confidence default classification.
type Classifier struct {
	llm         out.TextCompleter
	profile     domain.BusinessProfile
	temperature float64
	maxTokens   int
	log         *logger.Logger
}

func NewClassifier(llm out.TextCompleter, profile domain.BusinessProfile, temperature float64, maxTokens int) *Classifier {
	return &Classifier{
		llm:         llm,
		profile:     profile,
		temperature: temperature,
		maxTokens:   maxTokens,
		log:         logger.WithField("component", "classifier"),
	}
}

// classificationReply is the provider's JSON contract.
type classificationReply struct {
	Type       string  `json:"type"`
	Priority   string  `json:"priority"`
	Product    string  `json:"product"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classify returns exactly one Classification for the message. APICalls in
// the second return value counts provider round-trips for audit logging.
func (c *Classifier) Classify(ctx context.Context, msg *domain.IncomingMessage) (domain.Classification, int) {
	prompt := c.buildPrompt(msg)

	resp, err := c.llm.Complete(ctx, prompt, c.temperature, c.maxTokens)
	if err != nil {
		c.log.Error("provider call failed for message %s: %v", msg.ID, err)
		return domain.DefaultClassification(msg.ID), 1
	}

	reply, err := parseReply(resp)
	if err != nil {
		c.log.Warn("unparseable classification for message %s: %v", msg.ID, err)
		return domain.DefaultClassification(msg.ID), 1
	}

	return domain.Classification{
		MessageID:    msg.ID,
		Type:         domain.ParseMessageType(reply.Type),
		Priority:     domain.ParsePriority(reply.Priority),
		Product:      domain.ParseProduct(reply.Product),
		Sentiment:    domain.ParseSentiment(reply.Sentiment),
		Confidence:   common.Clamp01(reply.Confidence),
		Reasoning:    reply.Reasoning,
		ClassifiedAt: time.Now(),
	}, 1
}

func (c *Classifier) buildPrompt(msg *domain.IncomingMessage) string {
	sender := msg.SenderName
	if sender == "" {
		sender = msg.Sender
	}

	var products strings.Builder
	for _, p := range c.profile.Products {
		fmt.Fprintf(&products, "- %s (%s): %s\n", p.Name, p.Price, p.Description)
	}
	var cases strings.Builder
	for _, sc := range c.profile.SuccessCases {
		fmt.Fprintf(&cases, "- %s: %s\n", sc.Name, sc.Achievement)
	}

	return fmt.Sprintf(`Você é um especialista em classificação de emails para o negócio de %s, especialista em %s.

CONTEXTO DO NEGÓCIO:
- %s
- Metodologia: %s
PRODUTOS:
%sCASES DE SUCESSO:
%s
EMAIL PARA CLASSIFICAR:
Remetente: %s
Assunto: %s
Conteúdo: %s

CLASSIFIQUE o email nas seguintes categorias:

1. TIPO (escolha 1):
   - sales: interesse em produtos, orçamentos, informações comerciais
   - support: dúvidas técnicas, problemas, reclamações
   - information: pedidos de informação geral, metodologia, dúvidas sobre concursos
   - spam: emails irrelevantes, promocionais não relacionados
   - scheduling: pedidos para marcar reuniões, calls, consultorias

2. PRIORIDADE (escolha 1):
   - high: interesse direto em compra, problemas urgentes, leads quentes
   - medium: dúvidas gerais, interesse moderado
   - low: informações básicas, curiosidade inicial

3. PRODUTO DE INTERESSE (escolha 1 ou none):
   - coaching: interesse em mentoria individual
   - acelerador: interesse no curso com a metodologia
   - none: não demonstra interesse específico

4. SENTIMENTO (escolha 1):
   - positive: entusiasmado, motivado, interessado
   - neutral: neutro, informativo
   - negative: frustrado, reclamação, descontente

5. CONFIANÇA (0.0 a 1.0): sua confiança na classificação

Responda APENAS em formato JSON:
{
    "type": "sales|support|information|spam|scheduling",
    "priority": "high|medium|low",
    "product": "coaching|acelerador|none",
    "sentiment": "positive|neutral|negative",
    "confidence": 0.85,
    "reasoning": "breve explicação da classificação"
}`,
		c.profile.OwnerName, c.profile.Field,
		c.profile.BusinessName, c.profile.Methodology,
		products.String(), cases.String(),
		sender, msg.Subject, common.TruncateBody(msg.BodyText, maxBodyChars))
}

// parseReply extracts the first well-formed JSON object from the provider
// output. Ambiguity is a parse failure, never a best-effort guess.
func parseReply(resp string) (*classificationReply, error) {
	block, err := common.ExtractJSONBlock(resp)
	if err != nil {
		return nil, err
	}
	var reply classificationReply
	if err := json.Unmarshal([]byte(block), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}
	return &reply, nil
}
