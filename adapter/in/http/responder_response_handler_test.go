package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"responder_server/adapter/out/persistence"
	"responder_server/core/domain"
	"responder_server/infra/middleware"
)

type fakeService struct {
	approved   map[string]string
	rejected   map[string]string
	sent       map[string]bool
	sendErr    error
	regenerate *domain.GeneratedResponse
	report     *domain.EffectivenessReport
}

func newFakeService() *fakeService {
	return &fakeService{
		approved: make(map[string]string),
		rejected: make(map[string]string),
		sent:     make(map[string]bool),
	}
}

func (s *fakeService) ApproveResponse(_ context.Context, responseID, approver string) error {
	if responseID == "missing" {
		return persistence.ErrNotFound
	}
	s.approved[responseID] = approver
	return nil
}

func (s *fakeService) RejectResponse(_ context.Context, responseID, approver string) error {
	s.rejected[responseID] = approver
	return nil
}

func (s *fakeService) SendApprovedResponse(_ context.Context, responseID string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent[responseID] = true
	return nil
}

func (s *fakeService) Regenerate(_ context.Context, messageID string) (*domain.GeneratedResponse, error) {
	if s.regenerate == nil {
		return nil, persistence.ErrNotFound
	}
	return s.regenerate, nil
}

func (s *fakeService) RecordFeedback(_ context.Context, responseID string, followUpReceived bool) (*domain.EffectivenessReport, error) {
	if s.report == nil {
		return nil, persistence.ErrNotFound
	}
	return s.report, nil
}

func newTestApp(svc *fakeService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	NewResponseHandler(svc).Register(app.Group("/api/v1"))
	return app
}

func TestApproveRequiresReviewer(t *testing.T) {
	app := newTestApp(newFakeService())

	req := httptest.NewRequest("POST", "/api/v1/responses/r1/approve", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestApproveRecordsReviewer(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	req := httptest.NewRequest("POST", "/api/v1/responses/r1/approve", strings.NewReader(`{"reviewed_by":"diogo"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if svc.approved["r1"] != "diogo" {
		t.Errorf("approver = %q, want diogo", svc.approved["r1"])
	}
}

func TestApproveMissingResponseIs404(t *testing.T) {
	app := newTestApp(newFakeService())

	req := httptest.NewRequest("POST", "/api/v1/responses/missing/approve", strings.NewReader(`{"reviewed_by":"diogo"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSendConflictIs409(t *testing.T) {
	svc := newFakeService()
	svc.sendErr = errors.New("response r1 is draft, not approved")
	app := newTestApp(svc)

	req := httptest.NewRequest("POST", "/api/v1/responses/r1/send", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestRegenerateReturnsDraft(t *testing.T) {
	svc := newFakeService()
	svc.regenerate = &domain.GeneratedResponse{
		ID:        "r2",
		MessageID: "m1",
		Subject:   "Re: Dúvida sobre o curso",
		BodyText:  "Olá! Segue a resposta.",
		Model:     "gpt-4o-mini",
		Status:    domain.ResponseDraft,
		CreatedAt: time.Now(),
	}
	app := newTestApp(svc)

	req := httptest.NewRequest("POST", "/api/v1/messages/m1/regenerate", nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Success bool                 `json:"success"`
		Data    GeneratedResponseDTO `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Success {
		t.Error("success = false, want true")
	}
	if envelope.Data.ID != "r2" || envelope.Data.Status != "draft" {
		t.Errorf("unexpected draft payload: %+v", envelope.Data)
	}
}
