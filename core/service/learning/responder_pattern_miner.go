package learning

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"responder_server/core/domain"
	"responder_server/core/port/out"
	"responder_server/pkg/logger"
)

const (
	maxGreetingPatterns = 10
	maxClosingPatterns  = 10
	maxCommonPhrases    = 20
	maxGreetingLineLen  = 100
)

// businessKeywords are the domain terms counted in the keyword frequency map.
var businessKeywords = []string{
	"coaching", "concurso", "aprovação", "estudo", "metodologia",
	"sefaz", "receita", "fiscal", "preparação", "curso",
	"acelerador", "mentoria", "resultado", "sucesso",
}

// MinerConfig bounds the historical scan.
type MinerConfig struct {
	LookbackDays int
	MaxMessages  int
	CacheTTL     time.Duration
}

// Miner derives reusable stylistic signals from an account's sent history.
// Output is ephemeral: cached at most, recomputed on expiry, never a source
// of truth.
type Miner struct {
	mail  out.MailProvider
	cache out.PatternCache
	cfg   MinerConfig
	log   *logger.Logger
}

func NewMiner(mail out.MailProvider, cache out.PatternCache, cfg MinerConfig) *Miner {
	return &Miner{
		mail:  mail,
		cache: cache,
		cfg:   cfg,
		log:   logger.WithField("component", "pattern_miner"),
	}
}

// MinePatterns aggregates greeting/closing phrasing, length statistics,
// tone and keyword frequency over the account's sent corpus.
func (m *Miner) MinePatterns(ctx context.Context, account string) (*domain.ResponsePattern, error) {
	if m.cache != nil {
		if cached, err := m.cache.Get(ctx, account); err == nil && cached != nil {
			return cached, nil
		}
	}

	sent, err := m.mail.GetSentHistory(ctx, account, m.cfg.MaxMessages, m.cfg.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("fetch sent history for %s: %w", account, err)
	}
	if len(sent) == 0 {
		m.log.Warn("no sent messages found for %s", account)
		return &domain.ResponsePattern{Account: account, MinedAt: time.Now()}, nil
	}

	pattern := MinePatternsFrom(account, sent)

	if m.cache != nil {
		if err := m.cache.Set(ctx, account, pattern, m.cfg.CacheTTL); err != nil {
			m.log.Warn("pattern cache write failed for %s: %v", account, err)
		}
	}
	return pattern, nil
}

// MinePatternsFrom is the pure aggregation over an already-fetched corpus.
func MinePatternsFrom(account string, sent []domain.RawMessage) *domain.ResponsePattern {
	lengths := make([]int, 0, len(sent))
	polarities := make([]float64, 0, len(sent))
	subjectivities := make([]float64, 0, len(sent))

	for _, msg := range sent {
		if msg.BodyText == "" {
			continue
		}
		lengths = append(lengths, len(msg.BodyText))
		polarities = append(polarities, SentimentPolarity(msg.BodyText))
		subjectivities = append(subjectivities, SentimentSubjectivity(msg.BodyText))
	}

	return &domain.ResponsePattern{
		Account:         account,
		SampleCount:     len(sent),
		Greetings:       extractGreetings(sent),
		Closings:        extractClosings(sent),
		Length:          lengthStats(lengths),
		AvgPolarity:     mean(polarities),
		AvgSubjectivity: mean(subjectivities),
		ToneConsistency: stdDev(polarities),
		Keywords:        keywordFrequency(sent),
		CommonPhrases:   extractCommonPhrases(sent),
		MinedAt:         time.Now(),
	}
}

// extractGreetings scans the first lines of each body for greeting markers.
func extractGreetings(sent []domain.RawMessage) []string {
	seen := make(map[string]struct{})
	var greetings []string

	for _, msg := range sent {
		lines := strings.Split(msg.BodyText, "\n")
		limit := len(lines)
		if limit > 3 {
			limit = 3
		}
		for _, line := range lines[:limit] {
			line = strings.TrimSpace(line)
			if line == "" || len(line) >= maxGreetingLineLen {
				continue
			}
			if hasAnyMarker(line, greetingMarkers) {
				if _, dup := seen[line]; !dup {
					seen[line] = struct{}{}
					greetings = append(greetings, line)
				}
				break
			}
		}
	}

	if len(greetings) > maxGreetingPatterns {
		greetings = greetings[:maxGreetingPatterns]
	}
	return greetings
}

// extractClosings scans the last non-empty lines for closing markers.
func extractClosings(sent []domain.RawMessage) []string {
	seen := make(map[string]struct{})
	var closings []string

	for _, msg := range sent {
		var lines []string
		for _, line := range strings.Split(msg.BodyText, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		start := len(lines) - 3
		if start < 0 {
			start = 0
		}
		for _, line := range lines[start:] {
			if len(line) >= maxGreetingLineLen {
				continue
			}
			if hasAnyMarker(line, closingMarkers) {
				if _, dup := seen[line]; !dup {
					seen[line] = struct{}{}
					closings = append(closings, line)
				}
				break
			}
		}
	}

	if len(closings) > maxClosingPatterns {
		closings = closings[:maxClosingPatterns]
	}
	return closings
}

func hasAnyMarker(line string, markers []string) bool {
	lower := strings.ToLower(line)
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// extractCommonPhrases collects 3-8 word windows appearing at least twice.
func extractCommonPhrases(sent []domain.RawMessage) []string {
	counts := make(map[string]int)
	for _, msg := range sent {
		tokens := tokenize(msg.BodyText)
		for size := 3; size <= 8; size++ {
			for i := 0; i+size <= len(tokens); i++ {
				phrase := strings.Join(tokens[i:i+size], " ")
				counts[phrase]++
			}
		}
	}

	var phrases []string
	for phrase, count := range counts {
		if count >= 2 {
			phrases = append(phrases, phrase)
		}
	}
	sort.Slice(phrases, func(i, j int) bool {
		if counts[phrases[i]] != counts[phrases[j]] {
			return counts[phrases[i]] > counts[phrases[j]]
		}
		return phrases[i] < phrases[j]
	})

	if len(phrases) > maxCommonPhrases {
		phrases = phrases[:maxCommonPhrases]
	}
	return phrases
}

func keywordFrequency(sent []domain.RawMessage) map[string]int {
	var all strings.Builder
	for _, msg := range sent {
		all.WriteString(strings.ToLower(msg.BodyText))
		all.WriteByte(' ')
	}
	text := all.String()

	counts := make(map[string]int)
	for _, keyword := range businessKeywords {
		if n := strings.Count(text, keyword); n > 0 {
			counts[keyword] = n
		}
	}
	return counts
}

func lengthStats(lengths []int) domain.LengthStats {
	if len(lengths) == 0 {
		return domain.LengthStats{}
	}

	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	floats := make([]float64, len(lengths))
	for i, l := range lengths {
		floats[i] = float64(l)
	}

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = float64(sorted[mid-1]+sorted[mid]) / 2.0
	} else {
		median = float64(sorted[mid])
	}

	return domain.LengthStats{
		Mean:   mean(floats),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		StdDev: stdDev(floats),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}
