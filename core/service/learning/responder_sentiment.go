// Package learning mines an account's historical sent messages for
// stylistic patterns, similarity signals and conversation context, and
// scores the effectiveness of already-sent replies.
package learning

import (
	"strings"
	"unicode"

	"responder_server/core/domain"
)

// Lexicons for Portuguese-language scoring. Small closed sets by design;
// the goal is a coarse, deterministic signal, not NLP-grade analysis.
var (
	positiveWords = []string{
		"obrigado", "obrigada", "excelente", "otimo", "ótimo", "parabens",
		"parabéns", "sucesso", "aprovado", "aprovada", "feliz", "motivado",
		"interessado", "interessada", "perfeito", "adorei", "gostei",
		"fantástico", "incrível", "maravilhoso",
	}
	negativeWords = []string{
		"problema", "reclamação", "reclamacao", "erro", "ruim", "péssimo",
		"pessimo", "insatisfeito", "insatisfeita", "frustrado", "frustrada",
		"cancelar", "cancelamento", "demora", "decepcionado", "decepcionada",
		"difícil", "dificil", "reembolso",
	}
	formalMarkers      = []string{"prezado", "prezada", "atenciosamente", "cordialmente", "senhor", "senhora"}
	informalMarkers    = []string{"oi", "olá", "ola", "abraços", "abracos", "valeu", "beleza"}
	enthusiasmMarkers  = []string{"excelente", "ótimo", "otimo", "fantástico", "fantastico", "incrível", "incrivel", "perfeito"}
	greetingMarkers    = []string{"olá", "ola", "oi", "bom dia", "boa tarde", "prezado"}
	closingMarkers     = []string{"atenciosamente", "abraços", "abracos", "cordialmente", "obrigado"}
)

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SentimentPolarity returns a coarse polarity in [-1, 1] from lexicon hits.
func SentimentPolarity(text string) float64 {
	tokens := tokenize(text)
	pos, neg := lexiconHits(tokens)
	if pos+neg == 0 {
		return 0.0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// SentimentSubjectivity returns the fraction of tokens carrying opinion,
// bounded to [0, 1].
func SentimentSubjectivity(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0.0
	}
	pos, neg := lexiconHits(tokens)
	subjectivity := float64(pos+neg) / float64(len(tokens))
	if subjectivity > 1 {
		subjectivity = 1
	}
	return subjectivity
}

func lexiconHits(tokens []string) (pos, neg int) {
	for _, tok := range tokens {
		if containsWord(positiveWords, tok) {
			pos++
		}
		if containsWord(negativeWords, tok) {
			neg++
		}
	}
	return pos, neg
}

func containsWord(words []string, w string) bool {
	for _, candidate := range words {
		if candidate == w {
			return true
		}
	}
	return false
}

// FormalityScore starts neutral at 0.5 and moves by 0.05 per formality
// marker hit, clamped to [0, 1].
func FormalityScore(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.5
	for _, marker := range formalMarkers {
		if strings.Contains(lower, marker) {
			score += 0.05
		}
	}
	for _, marker := range informalMarkers {
		if strings.Contains(lower, marker) {
			score -= 0.05
		}
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// EnthusiasmScore combines enthusiasm vocabulary and exclamation density
// into a [0, 1] score. Three marker-equivalents saturate the scale.
func EnthusiasmScore(text string) float64 {
	lower := strings.ToLower(text)
	total := 0.0
	for _, marker := range enthusiasmMarkers {
		if strings.Contains(lower, marker) {
			total++
		}
	}
	total += 0.5 * float64(strings.Count(text, "!"))
	score := total / 3.0
	if score > 1 {
		return 1
	}
	return score
}

// AnalyzeStyle computes the stylistic fingerprint of one reply body.
func AnalyzeStyle(text string) domain.ResponseStyle {
	return domain.ResponseStyle{
		Length:           len(text),
		Formality:        FormalityScore(text),
		Enthusiasm:       EnthusiasmScore(text),
		QuestionCount:    strings.Count(text, "?"),
		ExclamationCount: strings.Count(text, "!"),
	}
}
