package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"responder_server/adapter/out/persistence"
	"responder_server/core/domain"
	"responder_server/pkg/apperr"
	"responder_server/pkg/response"
)

// ResponderService is the slice of the pipeline the HTTP layer drives.
type ResponderService interface {
	ApproveResponse(ctx context.Context, responseID, approver string) error
	RejectResponse(ctx context.Context, responseID, approver string) error
	SendApprovedResponse(ctx context.Context, responseID string) error
	Regenerate(ctx context.Context, messageID string) (*domain.GeneratedResponse, error)
	RecordFeedback(ctx context.Context, responseID string, followUpReceived bool) (*domain.EffectivenessReport, error)
}

// ResponseHandler exposes the review workflow for generated drafts.
type ResponseHandler struct {
	service ResponderService
}

func NewResponseHandler(service ResponderService) *ResponseHandler {
	return &ResponseHandler{service: service}
}

func (h *ResponseHandler) Register(router fiber.Router) {
	responses := router.Group("/responses")
	responses.Post("/:id/approve", h.Approve)
	responses.Post("/:id/reject", h.Reject)
	responses.Post("/:id/send", h.Send)
	responses.Post("/:id/feedback", h.Feedback)

	messages := router.Group("/messages")
	messages.Post("/:id/regenerate", h.Regenerate)
}

// ReviewRequest carries the reviewer identity for approve and reject.
type ReviewRequest struct {
	ReviewedBy string `json:"reviewed_by"`
}

// FeedbackRequest reports whether the recipient replied after a send.
type FeedbackRequest struct {
	FollowUpReceived bool `json:"follow_up_received"`
}

// GeneratedResponseDTO is the wire form of a generated draft.
type GeneratedResponseDTO struct {
	ID           string  `json:"id"`
	MessageID    string  `json:"message_id"`
	Subject      string  `json:"subject"`
	BodyText     string  `json:"body_text"`
	BodyHTML     string  `json:"body_html,omitempty"`
	Model        string  `json:"model"`
	TemplateID   *string `json:"template_id,omitempty"`
	Confidence   float64 `json:"confidence"`
	CallToAction bool    `json:"call_to_action"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
}

func toResponseDTO(r *domain.GeneratedResponse) GeneratedResponseDTO {
	return GeneratedResponseDTO{
		ID:           r.ID,
		MessageID:    r.MessageID,
		Subject:      r.Subject,
		BodyText:     r.BodyText,
		BodyHTML:     r.BodyHTML,
		Model:        r.Model,
		TemplateID:   r.TemplateID,
		Confidence:   r.Confidence,
		CallToAction: r.CallToAction,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}

func (h *ResponseHandler) Approve(c *fiber.Ctx) error {
	id := c.Params("id")
	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.ReviewedBy == "" {
		return apperr.MissingField("reviewed_by")
	}

	if err := h.service.ApproveResponse(c.Context(), id, req.ReviewedBy); err != nil {
		return mapReviewError(err)
	}
	return response.OK(c, fiber.Map{"id": id, "status": string(domain.ResponseApproved)})
}

func (h *ResponseHandler) Reject(c *fiber.Ctx) error {
	id := c.Params("id")
	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.ReviewedBy == "" {
		return apperr.MissingField("reviewed_by")
	}

	if err := h.service.RejectResponse(c.Context(), id, req.ReviewedBy); err != nil {
		return mapReviewError(err)
	}
	return response.OK(c, fiber.Map{"id": id, "status": string(domain.ResponseRejected)})
}

func (h *ResponseHandler) Send(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.SendApprovedResponse(c.Context(), id); err != nil {
		return mapReviewError(err)
	}
	return response.OK(c, fiber.Map{"id": id, "status": string(domain.ResponseSent)})
}

func (h *ResponseHandler) Feedback(c *fiber.Ctx) error {
	id := c.Params("id")
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	report, err := h.service.RecordFeedback(c.Context(), id, req.FollowUpReceived)
	if err != nil {
		return mapReviewError(err)
	}
	return response.OK(c, report)
}

func (h *ResponseHandler) Regenerate(c *fiber.Ctx) error {
	id := c.Params("id")
	resp, err := h.service.Regenerate(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return apperr.NotFound("message")
		}
		return apperr.ExternalError("generator", err)
	}
	return response.Created(c, toResponseDTO(resp))
}

// mapReviewError translates pipeline errors into API errors. Missing rows
// become 404, state violations become 409.
func mapReviewError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return apperr.NotFound("response")
	}
	return apperr.Conflict(err.Error())
}
