package domain

import "time"

// ResponseStatus is the lifecycle of a generated reply.
type ResponseStatus string

const (
	ResponseDraft    ResponseStatus = "draft"
	ResponseApproved ResponseStatus = "approved"
	ResponseSent     ResponseStatus = "sent"
	ResponseRejected ResponseStatus = "rejected"
)

// GeneratedResponse is a candidate (or dispatched) reply to one message.
// Immutable once status reaches sent.
type GeneratedResponse struct {
	ID            string
	MessageID     string
	Subject       string
	BodyText      string
	BodyHTML      string
	Model         string
	TemplateID    *string
	Confidence    float64
	CallToAction  bool
	LearningNotes string
	Status        ResponseStatus
	ApprovedBy    string
	ApprovedAt    *time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
}

// DefaultResponse is the canonical generic acknowledgment returned when the
// provider fails outright. Confidence zero means it can never auto-send.
func DefaultResponse(messageID, subject, ownerName string) GeneratedResponse {
	subj := "Re: Sua mensagem"
	if subject != "" {
		subj = "Re: " + subject
	}
	return GeneratedResponse{
		MessageID:  messageID,
		Subject:    subj,
		BodyText:   "Olá,\n\nObrigado pelo seu contato!\n\nRecebi sua mensagem e em breve retornarei com uma resposta personalizada.\n\nAbraço,\n" + ownerName,
		Model:      "fallback",
		Confidence: 0.0,
		Status:     ResponseDraft,
		CreatedAt:  time.Now(),
	}
}
