package learning

import (
	"time"

	"responder_server/core/domain"
)

const (
	effectivenessBase = 0.5
	shortBodyLimit    = 100
	longBodyLimit     = 1000
	fastReplyHours    = 2.0
	sameDayHours      = 24.0
)

// ScoreEffectiveness rates an already-sent reply on length, call-to-action,
// latency and whether the correspondent followed up. Pure function; the
// score is a feedback signal for tuning, never a reason to revert a send.
// A latencyHours of zero or less means the latency is unknown.
func ScoreEffectiveness(resp *domain.GeneratedResponse, followUpReceived bool, latencyHours float64) domain.EffectivenessReport {
	score := effectivenessBase
	var suggestions []string

	length := len(resp.BodyText)
	switch {
	case length < shortBodyLimit:
		score -= 0.1
		suggestions = append(suggestions, "Resposta muito curta - considere mais detalhes")
	case length > longBodyLimit:
		score -= 0.1
		suggestions = append(suggestions, "Resposta muito longa - considere ser mais conciso")
	default:
		score += 0.1
	}

	if resp.CallToAction {
		score += 0.2
	} else {
		suggestions = append(suggestions, "Adicionar call-to-action claro")
	}

	if latencyHours > 0 {
		switch {
		case latencyHours <= fastReplyHours:
			score += 0.2
		case latencyHours <= sameDayHours:
			score += 0.1
		default:
			suggestions = append(suggestions, "Responder mais rapidamente")
		}
	}

	if followUpReceived {
		score += 0.3
	}

	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	return domain.EffectivenessReport{
		ResponseID:       resp.ID,
		Score:            score,
		Suggestions:      suggestions,
		FollowUpReceived: followUpReceived,
		LatencyHours:     latencyHours,
		ScoredAt:         time.Now(),
	}
}
