// Package pipeline sequences the per-message state machine: dedupe, persist,
// classify, decide, generate, gate, and record every step.
package pipeline

import (
	"responder_server/core/domain"
)

// Thresholds are the business tuning constants gating the pipeline.
// Carried over as configuration; flagged for calibration, not derived.
type Thresholds struct {
	Confidence   float64 // below this, the message is flagged for human review
	AutoResponse float64 // medium-priority sales eligibility gate
	AutoSend     float64 // both confidences must strictly exceed this to auto-send
}

// ResponsePolicy is the single canonical rule set for response eligibility
// and the automation gate.
type ResponsePolicy struct {
	thresholds Thresholds
}

func NewResponsePolicy(t Thresholds) *ResponsePolicy {
	return &ResponsePolicy{thresholds: t}
}

// ShouldRespond decides whether a classified message warrants a generated
// response. Spam never qualifies; everything not explicitly allowed defaults
// to no response, leaving the override to explicit human action.
func (p *ResponsePolicy) ShouldRespond(c domain.Classification) bool {
	switch c.Type {
	case domain.TypeSpam:
		return false
	case domain.TypeSales:
		if c.Priority == domain.PriorityHighLevel {
			return true
		}
		return c.Priority == domain.PriorityMedium && c.Confidence > p.thresholds.AutoResponse
	case domain.TypeSupport:
		return true
	case domain.TypeInformation:
		return c.Product.Recognized()
	default:
		return false
	}
}

// ShouldAutoSend decides whether a generated response is dispatched without
// human approval: both confidences strictly above the threshold and the
// classification type in the low-risk subset.
func (p *ResponsePolicy) ShouldAutoSend(c domain.Classification, r domain.GeneratedResponse) bool {
	if c.Confidence <= p.thresholds.AutoSend || r.Confidence <= p.thresholds.AutoSend {
		return false
	}
	return c.Type == domain.TypeInformation || c.Type == domain.TypeSupport
}

// NeedsHumanReview flags low-confidence classifications for manual triage.
func (p *ResponsePolicy) NeedsHumanReview(c domain.Classification) bool {
	return c.Confidence < p.thresholds.Confidence
}
