package learning

import (
	"strings"
	"testing"

	"responder_server/core/domain"
)

func sentMessage(body string) domain.RawMessage {
	return domain.RawMessage{BodyText: body}
}

func TestMinePatternsLengthArithmetic(t *testing.T) {
	sent := []domain.RawMessage{
		sentMessage(strings.Repeat("a", 100)),
		sentMessage(strings.Repeat("b", 200)),
		sentMessage(strings.Repeat("c", 300)),
	}

	pattern := MinePatternsFrom("diogo@profdiogomoreira.com.br", sent)

	if pattern.Length.Mean != 200 {
		t.Errorf("Mean = %v, want 200", pattern.Length.Mean)
	}
	if pattern.Length.Median != 200 {
		t.Errorf("Median = %v, want 200", pattern.Length.Median)
	}
	if pattern.Length.Min != 100 {
		t.Errorf("Min = %v, want 100", pattern.Length.Min)
	}
	if pattern.Length.Max != 300 {
		t.Errorf("Max = %v, want 300", pattern.Length.Max)
	}
	if pattern.SampleCount != 3 {
		t.Errorf("SampleCount = %v, want 3", pattern.SampleCount)
	}
}

func TestMinePatternsExtractsGreetingsAndClosings(t *testing.T) {
	sent := []domain.RawMessage{
		sentMessage("Olá Maria, tudo bem?\n\nSegue a resposta sobre a metodologia.\n\nAbraços,\nDiogo"),
		sentMessage("Bom dia João!\n\nO coaching funciona assim.\n\nAtenciosamente,\nDiogo"),
		sentMessage("Segue o material em anexo.\n\nQualquer coisa me avise."),
	}

	pattern := MinePatternsFrom("diogo@profdiogomoreira.com.br", sent)

	wantGreeting := func(s string) {
		for _, g := range pattern.Greetings {
			if g == s {
				return
			}
		}
		t.Errorf("greeting %q not mined, got %v", s, pattern.Greetings)
	}
	wantGreeting("Olá Maria, tudo bem?")
	wantGreeting("Bom dia João!")

	foundClosing := false
	for _, c := range pattern.Closings {
		if strings.Contains(strings.ToLower(c), "abraços") || strings.Contains(strings.ToLower(c), "atenciosamente") {
			foundClosing = true
		}
	}
	if !foundClosing {
		t.Errorf("no closing mined, got %v", pattern.Closings)
	}
}

func TestMinePatternsCountsBusinessKeywords(t *testing.T) {
	sent := []domain.RawMessage{
		sentMessage("A metodologia do curso prepara você para o concurso."),
		sentMessage("O concurso exige preparação com a metodologia certa."),
	}

	pattern := MinePatternsFrom("diogo@profdiogomoreira.com.br", sent)

	if pattern.Keywords["metodologia"] != 2 {
		t.Errorf("Keywords[metodologia] = %d, want 2", pattern.Keywords["metodologia"])
	}
	if pattern.Keywords["concurso"] != 2 {
		t.Errorf("Keywords[concurso] = %d, want 2", pattern.Keywords["concurso"])
	}
	if _, ok := pattern.Keywords["sefaz"]; ok {
		t.Error("Keywords should omit zero-count entries")
	}
}

func TestStageForCount(t *testing.T) {
	tests := []struct {
		count int
		want  domain.ConversationStage
	}{
		{1, domain.StageInitialContact},
		{2, domain.StageEarlyEngagement},
		{3, domain.StageEarlyEngagement},
		{4, domain.StageActiveDiscussion},
		{6, domain.StageActiveDiscussion},
		{7, domain.StageExtendedConversation},
		{20, domain.StageExtendedConversation},
	}
	for _, tt := range tests {
		if got := domain.StageForCount(tt.count); got != tt.want {
			t.Errorf("StageForCount(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestBuildConversationContextFindsLastOwnerStyle(t *testing.T) {
	account := "diogo@profdiogomoreira.com.br"
	thread := []domain.RawMessage{
		{From: "maria@example.com", BodyText: "Como funciona o curso?"},
		{From: account, BodyText: "Olá Maria! Funciona assim... Ficou claro?"},
		{From: "maria@example.com", BodyText: "Perfeito, obrigada!"},
	}

	cc := BuildConversationContext(account, "thread-1", thread)

	if cc.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", cc.MessageCount)
	}
	if cc.Stage != domain.StageEarlyEngagement {
		t.Errorf("Stage = %v, want early_engagement", cc.Stage)
	}
	if len(cc.Sentiments) != 3 {
		t.Errorf("len(Sentiments) = %d, want 3", len(cc.Sentiments))
	}
	if cc.LastOwnerStyle == nil {
		t.Fatal("LastOwnerStyle is nil, want owner's second message analyzed")
	}
	if cc.LastOwnerStyle.QuestionCount != 1 {
		t.Errorf("LastOwnerStyle.QuestionCount = %d, want 1", cc.LastOwnerStyle.QuestionCount)
	}
}

func TestSentimentPolarity(t *testing.T) {
	tests := []struct {
		name string
		text string
		sign int
	}{
		{"positive", "Excelente! Parabéns pela aprovação, muito feliz!", 1},
		{"negative", "Estou insatisfeito, quero cancelar, muito problema.", -1},
		{"neutral", "Segue o material em anexo para a aula.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SentimentPolarity(tt.text)
			switch {
			case tt.sign > 0 && got <= 0:
				t.Errorf("polarity = %v, want > 0", got)
			case tt.sign < 0 && got >= 0:
				t.Errorf("polarity = %v, want < 0", got)
			case tt.sign == 0 && got != 0:
				t.Errorf("polarity = %v, want 0", got)
			}
		})
	}
}

func TestAnalyzeStyle(t *testing.T) {
	style := AnalyzeStyle("Prezado João, tudo bem? Excelente notícia! Atenciosamente, Diogo")

	if style.QuestionCount != 1 {
		t.Errorf("QuestionCount = %d, want 1", style.QuestionCount)
	}
	if style.ExclamationCount != 1 {
		t.Errorf("ExclamationCount = %d, want 1", style.ExclamationCount)
	}
	if style.Formality <= 0.5 {
		t.Errorf("Formality = %v, want > 0.5 for formal markers", style.Formality)
	}
	if style.Enthusiasm <= 0 {
		t.Errorf("Enthusiasm = %v, want > 0", style.Enthusiasm)
	}
}

func TestScoreEffectiveness(t *testing.T) {
	body := strings.Repeat("resposta detalhada ", 20) // ~380 chars, in the good range

	tests := []struct {
		name      string
		resp      domain.GeneratedResponse
		followUp  bool
		latency   float64
		wantScore float64
	}{
		{
			name:      "good length, CTA, fast reply, follow-up",
			resp:      domain.GeneratedResponse{BodyText: body, CallToAction: true},
			followUp:  true,
			latency:   1.0,
			wantScore: 1.0, // 0.5 + 0.1 + 0.2 + 0.2 + 0.3 clamped
		},
		{
			name:      "short body, no CTA, slow, no follow-up",
			resp:      domain.GeneratedResponse{BodyText: "Ok."},
			followUp:  false,
			latency:   48.0,
			wantScore: 0.4, // 0.5 - 0.1
		},
		{
			name:      "same-day reply with CTA",
			resp:      domain.GeneratedResponse{BodyText: body, CallToAction: true},
			followUp:  false,
			latency:   10.0,
			wantScore: 0.9, // 0.5 + 0.1 + 0.2 + 0.1
		},
		{
			name:      "unknown latency",
			resp:      domain.GeneratedResponse{BodyText: body, CallToAction: true},
			followUp:  false,
			latency:   0,
			wantScore: 0.8, // 0.5 + 0.1 + 0.2
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ScoreEffectiveness(&tt.resp, tt.followUp, tt.latency)
			if diff := report.Score - tt.wantScore; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score = %v, want %v", report.Score, tt.wantScore)
			}
			if report.Score < 0 || report.Score > 1 {
				t.Errorf("Score = %v, out of [0,1]", report.Score)
			}
		})
	}
}

func TestScoreEffectivenessSuggestions(t *testing.T) {
	resp := domain.GeneratedResponse{BodyText: "Ok."}
	report := ScoreEffectiveness(&resp, false, 30.0)

	if len(report.Suggestions) != 3 {
		t.Fatalf("len(Suggestions) = %d, want 3 (short body, no CTA, slow), got %v", len(report.Suggestions), report.Suggestions)
	}
}
