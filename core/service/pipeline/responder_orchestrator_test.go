package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"responder_server/core/domain"
	"responder_server/core/port/out"
	"responder_server/core/service/generation"
)

// ---- fakes ----

type fakeMessageRepo struct {
	byExternal      map[string]*domain.IncomingMessage
	byID            map[string]*domain.IncomingMessage
	classifications map[string]*domain.Classification
	saveCalls       int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		byExternal:      make(map[string]*domain.IncomingMessage),
		byID:            make(map[string]*domain.IncomingMessage),
		classifications: make(map[string]*domain.Classification),
	}
}

func (r *fakeMessageRepo) key(account, externalID string) string { return account + "/" + externalID }

func (r *fakeMessageRepo) ExistsByExternalID(_ context.Context, account, externalID string) (bool, error) {
	_, ok := r.byExternal[r.key(account, externalID)]
	return ok, nil
}

func (r *fakeMessageRepo) Save(_ context.Context, msg *domain.IncomingMessage) (*domain.IncomingMessage, error) {
	r.saveCalls++
	k := r.key(msg.Account, msg.ExternalID)
	if existing, ok := r.byExternal[k]; ok {
		return existing, nil
	}
	clone := *msg
	r.byExternal[k] = &clone
	r.byID[msg.ID] = &clone
	return &clone, nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id string) (*domain.IncomingMessage, error) {
	msg, ok := r.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (r *fakeMessageRepo) GetByExternalID(_ context.Context, account, externalID string) (*domain.IncomingMessage, error) {
	msg, ok := r.byExternal[r.key(account, externalID)]
	if !ok {
		return nil, errors.New("not found")
	}
	return msg, nil
}

func (r *fakeMessageRepo) UpdateStatus(_ context.Context, id string, status domain.MessageStatus) error {
	if msg, ok := r.byID[id]; ok {
		msg.Status = status
	}
	return nil
}

func (r *fakeMessageRepo) MarkProcessed(_ context.Context, id string, needsReview bool) error {
	if msg, ok := r.byID[id]; ok {
		now := time.Now()
		msg.ProcessedAt = &now
		msg.NeedsHumanReview = needsReview
	}
	return nil
}

func (r *fakeMessageRepo) SaveClassification(_ context.Context, c *domain.Classification) error {
	r.classifications[c.MessageID] = c
	return nil
}

func (r *fakeMessageRepo) GetClassification(_ context.Context, messageID string) (*domain.Classification, error) {
	c, ok := r.classifications[messageID]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

type fakeResponseRepo struct {
	byID      map[string]*domain.GeneratedResponse
	saveCalls int
	saveErr   error
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{byID: make(map[string]*domain.GeneratedResponse)}
}

func (r *fakeResponseRepo) Save(_ context.Context, resp *domain.GeneratedResponse) (*domain.GeneratedResponse, error) {
	r.saveCalls++
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	clone := *resp
	r.byID[resp.ID] = &clone
	return &clone, nil
}

func (r *fakeResponseRepo) GetByID(_ context.Context, id string) (*domain.GeneratedResponse, error) {
	resp, ok := r.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return resp, nil
}

func (r *fakeResponseRepo) GetByMessageID(_ context.Context, messageID string) (*domain.GeneratedResponse, error) {
	for _, resp := range r.byID {
		if resp.MessageID == messageID {
			return resp, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *fakeResponseRepo) UpdateStatus(_ context.Context, id string, status domain.ResponseStatus, approvedBy string) error {
	if resp, ok := r.byID[id]; ok {
		resp.Status = status
		resp.ApprovedBy = approvedBy
	}
	return nil
}

func (r *fakeResponseRepo) MarkSent(_ context.Context, id string) error {
	if resp, ok := r.byID[id]; ok {
		resp.Status = domain.ResponseSent
		now := time.Now()
		resp.SentAt = &now
	}
	return nil
}

type fakeTemplateRepo struct{ template *domain.Template }

func (r *fakeTemplateRepo) FindActive(_ context.Context, _ domain.MessageType, _ domain.ProductInterest) (*domain.Template, error) {
	if r.template == nil {
		return nil, errors.New("not found")
	}
	return r.template, nil
}

type fakeLogRepo struct{ entries []*domain.ProcessingLogEntry }

func (r *fakeLogRepo) Append(_ context.Context, entry *domain.ProcessingLogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLogRepo) CountByAction(_ context.Context, _ string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, e := range r.entries {
		counts[e.Action]++
	}
	return counts, nil
}

func (r *fakeLogRepo) actions() []string {
	var actions []string
	for _, e := range r.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

type fakeMailProvider struct {
	unread        []domain.RawMessage
	fetchErr      error
	sendErr       error
	draftErr      error
	labelErr      error
	sends         []out.SendRequest
	drafts        []out.SendRequest
	labels        []string
	markReadCalls int
}

func (m *fakeMailProvider) FetchUnread(_ context.Context, _ string, _ int) ([]domain.RawMessage, error) {
	return m.unread, m.fetchErr
}

func (m *fakeMailProvider) Send(_ context.Context, _ string, req out.SendRequest) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sends = append(m.sends, req)
	return nil
}

func (m *fakeMailProvider) CreateDraft(_ context.Context, _ string, req out.SendRequest) error {
	if m.draftErr != nil {
		return m.draftErr
	}
	m.drafts = append(m.drafts, req)
	return nil
}

func (m *fakeMailProvider) MarkAsRead(_ context.Context, _, _ string) error {
	m.markReadCalls++
	return nil
}

func (m *fakeMailProvider) AddLabel(_ context.Context, _, _, labelName string) error {
	if m.labelErr != nil {
		return m.labelErr
	}
	m.labels = append(m.labels, labelName)
	return nil
}

func (m *fakeMailProvider) GetSentHistory(_ context.Context, _ string, _, _ int) ([]domain.RawMessage, error) {
	return nil, nil
}

func (m *fakeMailProvider) GetThread(_ context.Context, _, _ string) ([]domain.RawMessage, error) {
	return nil, nil
}

func (m *fakeMailProvider) SearchByKeywords(_ context.Context, _ string, _ []string, _ int) ([]domain.RawMessage, error) {
	return nil, nil
}

type fakeClassifier struct {
	result domain.Classification
	calls  int
}

func (c *fakeClassifier) Classify(_ context.Context, msg *domain.IncomingMessage) (domain.Classification, int) {
	c.calls++
	result := c.result
	result.MessageID = msg.ID
	return result, 1
}

type fakeGenerator struct {
	confidence float64
	calls      int
}

func (g *fakeGenerator) Generate(_ context.Context, msg *domain.IncomingMessage, _ domain.Classification, _ *domain.Template) (domain.GeneratedResponse, int) {
	g.calls++
	return domain.GeneratedResponse{
		MessageID:  msg.ID,
		Subject:    "Re: " + msg.Subject,
		BodyText:   "Olá! Segue a resposta.",
		Confidence: g.confidence,
		Status:     domain.ResponseDraft,
	}, 1
}

func (g *fakeGenerator) GenerateWithLearning(ctx context.Context, msg *domain.IncomingMessage, c domain.Classification, _ *generation.LearningContext, template *domain.Template) (domain.GeneratedResponse, int) {
	return g.Generate(ctx, msg, c, template)
}

type fakeLearning struct{}

func (fakeLearning) MinePatterns(_ context.Context, _ string) (*domain.ResponsePattern, error) {
	return nil, errors.New("no history")
}

func (fakeLearning) FindSimilar(_ context.Context, _, _ string, _ float64) ([]domain.SimilarMessage, error) {
	return nil, nil
}

func (fakeLearning) ConversationContext(_ context.Context, _, _ string) (*domain.ConversationContext, error) {
	return nil, nil
}

// ---- harness ----

type harness struct {
	orch      *Orchestrator
	messages  *fakeMessageRepo
	responses *fakeResponseRepo
	logs      *fakeLogRepo
	mail      *fakeMailProvider
	generator *fakeGenerator
}

func newHarness(classifier *fakeClassifier, generator *fakeGenerator, mail *fakeMailProvider) *harness {
	messages := newFakeMessageRepo()
	responses := newFakeResponseRepo()
	logs := &fakeLogRepo{}
	orch := NewOrchestrator(
		mail, messages, responses, &fakeTemplateRepo{}, logs,
		classifier, generator, fakeLearning{}, fakeLearning{}, fakeLearning{},
		Config{
			Thresholds:          testThresholds(),
			MaxBatchSize:        50,
			SimilarityThreshold: 0.3,
			ProcessedLabel:      "AI-Processed",
		},
	)
	return &harness{orch: orch, messages: messages, responses: responses, logs: logs, mail: mail, generator: generator}
}

func rawMessage(id string) domain.RawMessage {
	return domain.RawMessage{
		ExternalID: id,
		ThreadID:   "thread-" + id,
		From:       "maria@example.com",
		FromName:   "Maria Silva",
		Subject:    "Dúvida sobre o curso",
		BodyText:   "Gostaria de saber sobre a metodologia para o concurso.",
		ReceivedAt: time.Now(),
	}
}

const account = "contato@profdiogomoreira.com.br"

// ---- tests ----

func TestProcessMessageIsIdempotent(t *testing.T) {
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.8,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.8}, &fakeMailProvider{})

	first, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("ext-1"))
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("ext-1"))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if second.Outcome != OutcomeAlreadyProcessed {
		t.Errorf("second Outcome = %q, want already_processed", second.Outcome)
	}
	if first.Outcome == OutcomeAlreadyProcessed {
		t.Errorf("first Outcome = %q, want real processing", first.Outcome)
	}
	if len(h.messages.byExternal) != 1 {
		t.Errorf("stored messages = %d, want 1", len(h.messages.byExternal))
	}
	if len(h.messages.classifications) != 1 {
		t.Errorf("stored classifications = %d, want 1", len(h.messages.classifications))
	}
	if h.responses.saveCalls != 1 {
		t.Errorf("response saves = %d, want 1", h.responses.saveCalls)
	}
	if classifier.calls != 1 {
		t.Errorf("classifier calls = %d, want 1", classifier.calls)
	}
}

func TestSpamNeverGeneratesResponse(t *testing.T) {
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSpam, Priority: domain.PriorityHighLevel, Confidence: 0.99,
	}}
	generator := &fakeGenerator{confidence: 0.99}
	h := newHarness(classifier, generator, &fakeMailProvider{})

	result, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("spam-1"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if result.Outcome != OutcomeNoResponse {
		t.Errorf("Outcome = %q, want no_response_needed", result.Outcome)
	}
	if generator.calls != 0 {
		t.Errorf("generator calls = %d, want 0", generator.calls)
	}
	msg, _ := h.messages.GetByExternalID(context.Background(), account, "spam-1")
	if msg.Status != domain.StatusNoResponseNeeded {
		t.Errorf("message status = %v, want no_response_needed", msg.Status)
	}
	if msg.ProcessedAt == nil {
		t.Error("spam message must still be marked processed")
	}
}

func TestAutomationGate(t *testing.T) {
	tests := []struct {
		name           string
		classification domain.Classification
		generationConf float64
		wantOutcome    string
		wantSent       int
		wantDrafts     int
	}{
		{
			name:           "confident support auto-sends",
			classification: domain.Classification{Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.95},
			generationConf: 0.95,
			wantOutcome:    OutcomeAutoSent,
			wantSent:       1,
			wantDrafts:     0,
		},
		{
			name:           "confident sales stays a draft",
			classification: domain.Classification{Type: domain.TypeSales, Priority: domain.PriorityHighLevel, Confidence: 0.95},
			generationConf: 0.95,
			wantOutcome:    OutcomeDraftCreated,
			wantSent:       0,
			wantDrafts:     1,
		},
		{
			name:           "information with product but weak generation stays a draft",
			classification: domain.Classification{Type: domain.TypeInformation, Product: domain.ProductAcelerador, Priority: domain.PriorityMedium, Confidence: 0.8},
			generationConf: 0.6,
			wantOutcome:    OutcomeDraftCreated,
			wantSent:       0,
			wantDrafts:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail := &fakeMailProvider{}
			h := newHarness(&fakeClassifier{result: tt.classification}, &fakeGenerator{confidence: tt.generationConf}, mail)

			result, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("gate-1"))
			if err != nil {
				t.Fatalf("ProcessMessage: %v", err)
			}

			if result.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", result.Outcome, tt.wantOutcome)
			}
			if len(mail.sends) != tt.wantSent {
				t.Errorf("sends = %d, want %d", len(mail.sends), tt.wantSent)
			}
			if len(mail.drafts) != tt.wantDrafts {
				t.Errorf("drafts = %d, want %d", len(mail.drafts), tt.wantDrafts)
			}
			if tt.wantSent > 0 {
				if result.Response.Status != domain.ResponseSent {
					t.Errorf("response status = %v, want sent", result.Response.Status)
				}
			} else {
				msg, _ := h.messages.GetByExternalID(context.Background(), account, "gate-1")
				if msg.Status != domain.StatusResponseGenerated {
					t.Errorf("message status = %v, want response_generated", msg.Status)
				}
			}
		})
	}
}

func TestProcessingNeverMarksRead(t *testing.T) {
	mail := &fakeMailProvider{}
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.95,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.95}, mail)

	if _, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("read-1")); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if mail.markReadCalls != 0 {
		t.Errorf("MarkAsRead called %d times, want 0", mail.markReadCalls)
	}
	if len(mail.labels) != 1 || mail.labels[0] != "AI-Processed" {
		t.Errorf("labels = %v, want [AI-Processed]", mail.labels)
	}
}

func TestAutoSendTransportFailureLeavesDraft(t *testing.T) {
	mail := &fakeMailProvider{sendErr: errors.New("transport down")}
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.95,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.95}, mail)

	result, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("fail-1"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if result.Outcome != OutcomeDraftCreated {
		t.Errorf("Outcome = %q, want draft_created on transport failure", result.Outcome)
	}
	if result.Response.Status != domain.ResponseDraft {
		t.Errorf("response status = %v, want draft", result.Response.Status)
	}
	msg, _ := h.messages.GetByExternalID(context.Background(), account, "fail-1")
	if msg.ProcessedAt == nil {
		t.Error("message should still be marked processed; batch must continue")
	}

	var sawError bool
	for _, e := range h.logs.entries {
		if e.Action == domain.ActionAutoSend && e.Status == domain.LogError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error log entry for the failed auto-send")
	}
}

func TestEveryStepEmitsLogEntry(t *testing.T) {
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.95,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.95}, &fakeMailProvider{})

	if _, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("log-1")); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	want := []string{domain.ActionClassify, domain.ActionGenerateResponse, domain.ActionAutoSend}
	got := h.logs.actions()
	if len(got) != len(want) {
		t.Fatalf("log actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("log action[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestZeroConfidenceClassificationStillAdvances(t *testing.T) {
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeInformation, Priority: domain.PriorityMedium, Product: domain.ProductNone, Confidence: 0.0,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.5}, &fakeMailProvider{})

	result, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("degraded-1"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if result.Outcome != OutcomeNoResponse {
		t.Errorf("Outcome = %q, want no_response_needed for default classification", result.Outcome)
	}
	msg, _ := h.messages.GetByExternalID(context.Background(), account, "degraded-1")
	if !msg.NeedsHumanReview {
		t.Error("zero-confidence classification must flag human review")
	}
	if msg.ProcessedAt == nil {
		t.Error("pipeline must not stall on classification failure")
	}
}

func TestProcessBatchCountsOutcomes(t *testing.T) {
	mail := &fakeMailProvider{unread: []domain.RawMessage{
		rawMessage("b-1"), rawMessage("b-2"), rawMessage("b-1"),
	}}
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.95,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.95}, mail)

	stats, err := h.orch.ProcessBatch(context.Background(), account)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	if stats.Fetched != 3 {
		t.Errorf("Fetched = %d, want 3", stats.Fetched)
	}
	if stats.AutoSent != 2 {
		t.Errorf("AutoSent = %d, want 2", stats.AutoSent)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (duplicate in same batch)", stats.Skipped)
	}
}

func TestProcessBatchFetchFailureIsAccountFatal(t *testing.T) {
	mail := &fakeMailProvider{fetchErr: errors.New("auth expired")}
	h := newHarness(&fakeClassifier{}, &fakeGenerator{}, mail)

	if _, err := h.orch.ProcessBatch(context.Background(), account); err == nil {
		t.Error("want error when the account's mailbox cannot be fetched")
	}
}

func TestApproveAndSendApprovedResponse(t *testing.T) {
	mail := &fakeMailProvider{}
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSales, Priority: domain.PriorityHighLevel, Confidence: 0.95,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.95}, mail)

	result, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("appr-1"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.Outcome != OutcomeDraftCreated {
		t.Fatalf("Outcome = %q, want draft for sales", result.Outcome)
	}

	if err := h.orch.SendApprovedResponse(context.Background(), result.Response.ID); err == nil {
		t.Error("sending an unapproved draft must fail")
	}

	if err := h.orch.ApproveResponse(context.Background(), result.Response.ID, "diogo"); err != nil {
		t.Fatalf("ApproveResponse: %v", err)
	}
	if err := h.orch.SendApprovedResponse(context.Background(), result.Response.ID); err != nil {
		t.Fatalf("SendApprovedResponse: %v", err)
	}

	if len(mail.sends) != 1 {
		t.Errorf("sends = %d, want 1", len(mail.sends))
	}
	sent, _ := h.responses.GetByID(context.Background(), result.Response.ID)
	if sent.Status != domain.ResponseSent {
		t.Errorf("response status = %v, want sent", sent.Status)
	}
}

func TestRecordFeedbackScoresSentResponse(t *testing.T) {
	mail := &fakeMailProvider{}
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.95,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.95}, mail)

	result, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("fb-1"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.Outcome != OutcomeAutoSent {
		t.Fatalf("Outcome = %q, want auto_sent", result.Outcome)
	}

	report, err := h.orch.RecordFeedback(context.Background(), result.Response.ID, true)
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if report.Score <= 0 || report.Score > 1 {
		t.Errorf("Score = %v, want in (0, 1]", report.Score)
	}

	counts, _ := h.logs.CountByAction(context.Background(), account)
	if counts[domain.ActionLearningFeedback] != 1 {
		t.Errorf("learning_feedback entries = %d, want 1", counts[domain.ActionLearningFeedback])
	}
}

func TestFailedMessageAppendsProcessErrorEntry(t *testing.T) {
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.8,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.8}, &fakeMailProvider{
		unread: []domain.RawMessage{rawMessage("ext-err")},
	})
	h.responses.saveErr = errors.New("db down")

	stats, err := h.orch.ProcessBatch(context.Background(), account)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if stats.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", stats.Errors)
	}

	var entry *domain.ProcessingLogEntry
	for _, e := range h.logs.entries {
		if e.Action == domain.ActionProcessError {
			entry = e
		}
	}
	if entry == nil {
		t.Fatalf("no process_error log entry; actions recorded: %v", h.logs.actions())
	}
	if entry.Status != domain.LogError {
		t.Errorf("status = %v, want error", entry.Status)
	}
	if entry.Account != account {
		t.Errorf("account = %q, want %q", entry.Account, account)
	}
	if entry.Details["external_id"] != "ext-err" {
		t.Errorf("external_id detail = %v, want ext-err", entry.Details["external_id"])
	}
}

func TestDraftTransportFailureIsRecorded(t *testing.T) {
	mail := &fakeMailProvider{draftErr: errors.New("transport down")}
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSales, Priority: domain.PriorityHighLevel, Confidence: 0.95,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.95}, mail)

	result, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("draft-err"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.Outcome != OutcomeDraftCreated {
		t.Errorf("Outcome = %q, want draft_created", result.Outcome)
	}

	var sawError bool
	for _, e := range h.logs.entries {
		if e.Action == domain.ActionCreateDraft {
			if e.Status == domain.LogError {
				sawError = true
			} else {
				t.Errorf("create_draft entry has status %v, want error on transport failure", e.Status)
			}
		}
	}
	if !sawError {
		t.Error("expected an error log entry for the failed draft creation")
	}
}

func TestLabelFailureAppendsWarningEntry(t *testing.T) {
	mail := &fakeMailProvider{labelErr: errors.New("labels api down")}
	classifier := &fakeClassifier{result: domain.Classification{
		Type: domain.TypeSupport, Priority: domain.PriorityMedium, Confidence: 0.95,
	}}
	h := newHarness(classifier, &fakeGenerator{confidence: 0.95}, mail)

	result, err := h.orch.ProcessMessage(context.Background(), account, rawMessage("label-err"))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.Outcome != OutcomeAutoSent {
		t.Fatalf("Outcome = %q, want auto_sent; labeling is best-effort", result.Outcome)
	}

	var sawWarning bool
	for _, e := range h.logs.entries {
		if e.Action == domain.ActionAddLabel && e.Status == domain.LogWarning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Error("expected a warning log entry for the failed label add")
	}
}
