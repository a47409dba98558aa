package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"responder_server/core/domain"
	"responder_server/core/port/out"
	"responder_server/core/service/generation"
	"responder_server/core/service/learning"
	"responder_server/pkg/logger"
)

// Narrow views of the service layer so tests can substitute fakes.
type (
	// Classifier turns a message into exactly one Classification.
	Classifier interface {
		Classify(ctx context.Context, msg *domain.IncomingMessage) (domain.Classification, int)
	}

	// Generator produces a candidate reply, optionally history-enriched.
	Generator interface {
		Generate(ctx context.Context, msg *domain.IncomingMessage, c domain.Classification, template *domain.Template) (domain.GeneratedResponse, int)
		GenerateWithLearning(ctx context.Context, msg *domain.IncomingMessage, c domain.Classification, lc *generation.LearningContext, template *domain.Template) (domain.GeneratedResponse, int)
	}

	// PatternMiner derives stylistic patterns from sent history.
	PatternMiner interface {
		MinePatterns(ctx context.Context, account string) (*domain.ResponsePattern, error)
	}

	// SimilaritySearcher ranks historical messages against a query.
	SimilaritySearcher interface {
		FindSimilar(ctx context.Context, queryText, account string, threshold float64) ([]domain.SimilarMessage, error)
	}

	// ThreadAnalyzer computes conversation context for a thread.
	ThreadAnalyzer interface {
		ConversationContext(ctx context.Context, account, threadID string) (*domain.ConversationContext, error)
	}
)

// Outcomes of one message pass.
const (
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeNoResponse       = "no_response_needed"
	OutcomeDraftCreated     = "draft_created"
	OutcomeAutoSent         = "auto_sent"
)

// ProcessResult reports what happened to one message.
type ProcessResult struct {
	MessageID string
	Outcome   string
	Response  *domain.GeneratedResponse
}

// BatchStats aggregates one account pass.
type BatchStats struct {
	Account  string
	Fetched  int
	Skipped  int
	NoReply  int
	Drafted  int
	AutoSent int
	Errors   int
}

// Config carries the orchestrator's pipeline knobs.
type Config struct {
	Thresholds          Thresholds
	MaxBatchSize        int
	SimilarityThreshold float64
	ProcessedLabel      string
}

// Orchestrator is the per-message state machine. Side effects are strictly
// ordered: persist, classify, maybe generate, maybe auto-send, mark
// processed. It never marks a message as read; read state belongs to
// deliberate human action.
type Orchestrator struct {
	mail       out.MailProvider
	messages   out.MessageRepository
	responses  out.ResponseRepository
	templates  out.TemplateRepository
	logs       out.LogRepository
	classifier Classifier
	generator  Generator
	miner      PatternMiner
	searcher   SimilaritySearcher
	threads    ThreadAnalyzer
	policy     *ResponsePolicy
	cfg        Config
	log        *logger.Logger
}

func NewOrchestrator(
	mail out.MailProvider,
	messages out.MessageRepository,
	responses out.ResponseRepository,
	templates out.TemplateRepository,
	logs out.LogRepository,
	classifier Classifier,
	generator Generator,
	miner PatternMiner,
	searcher SimilaritySearcher,
	threads ThreadAnalyzer,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		mail:       mail,
		messages:   messages,
		responses:  responses,
		templates:  templates,
		logs:       logs,
		classifier: classifier,
		generator:  generator,
		miner:      miner,
		searcher:   searcher,
		threads:    threads,
		policy:     NewResponsePolicy(cfg.Thresholds),
		cfg:        cfg,
		log:        logger.WithField("component", "orchestrator"),
	}
}

// ProcessBatch runs one pass over an account's unread messages, strictly in
// the order the transport returned them. A fetch failure is account-fatal
// for this cycle; a per-message failure only skips that message.
func (o *Orchestrator) ProcessBatch(ctx context.Context, account string) (BatchStats, error) {
	stats := BatchStats{Account: account}

	unread, err := o.mail.FetchUnread(ctx, account, o.cfg.MaxBatchSize)
	if err != nil {
		return stats, fmt.Errorf("fetch unread for %s: %w", account, err)
	}
	stats.Fetched = len(unread)

	for _, raw := range unread {
		started := time.Now()
		result, err := o.ProcessMessage(ctx, account, raw)
		if err != nil {
			stats.Errors++
			o.log.Error("processing failed for %s message %s: %v", account, raw.ExternalID, err)
			o.appendLog(ctx, &domain.ProcessingLogEntry{
				Account:        account,
				Action:         domain.ActionProcessError,
				Status:         domain.LogError,
				Message:        err.Error(),
				Details:        map[string]any{"external_id": raw.ExternalID},
				ElapsedSeconds: time.Since(started).Seconds(),
			})
			continue
		}
		switch result.Outcome {
		case OutcomeAlreadyProcessed:
			stats.Skipped++
		case OutcomeNoResponse:
			stats.NoReply++
		case OutcomeDraftCreated:
			stats.Drafted++
		case OutcomeAutoSent:
			stats.AutoSent++
		}
	}
	return stats, nil
}

// ProcessMessage advances one message through the full state machine.
func (o *Orchestrator) ProcessMessage(ctx context.Context, account string, raw domain.RawMessage) (*ProcessResult, error) {
	exists, err := o.messages.ExistsByExternalID(ctx, account, raw.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("existence check: %w", err)
	}
	if exists {
		o.appendLog(ctx, &domain.ProcessingLogEntry{
			Account: account,
			Action:  domain.ActionAlreadyProcessed,
			Status:  domain.LogSuccess,
			Message: fmt.Sprintf("message %s seen before, skipping", raw.ExternalID),
		})
		return &ProcessResult{Outcome: OutcomeAlreadyProcessed}, nil
	}

	msg, err := o.persistMessage(ctx, account, raw)
	if err != nil {
		return nil, err
	}
	if msg.ProcessedAt != nil {
		// Concurrent insert raced us; the other writer finished the work.
		return &ProcessResult{MessageID: msg.ID, Outcome: OutcomeAlreadyProcessed}, nil
	}

	c, needsReview := o.classify(ctx, msg)

	if !o.policy.ShouldRespond(c) {
		return o.finishWithoutResponse(ctx, msg, c, needsReview)
	}

	resp, err := o.generateResponse(ctx, msg, c)
	if err != nil {
		return nil, err
	}

	outcome := o.dispatch(ctx, msg, c, resp)

	o.labelProcessed(ctx, msg)
	if err := o.messages.MarkProcessed(ctx, msg.ID, needsReview); err != nil {
		o.log.Error("mark processed failed for %s: %v", msg.ID, err)
	}

	return &ProcessResult{MessageID: msg.ID, Outcome: outcome, Response: resp}, nil
}

func (o *Orchestrator) persistMessage(ctx context.Context, account string, raw domain.RawMessage) (*domain.IncomingMessage, error) {
	msg := &domain.IncomingMessage{
		ID:         uuid.New().String(),
		ExternalID: raw.ExternalID,
		ThreadID:   raw.ThreadID,
		Account:    account,
		Sender:     raw.From,
		SenderName: raw.FromName,
		Subject:    raw.Subject,
		BodyText:   raw.BodyText,
		BodyHTML:   raw.BodyHTML,
		Status:     domain.StatusPending,
		ReceivedAt: raw.ReceivedAt,
	}

	saved, err := o.messages.Save(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	return saved, nil
}

// classify always advances the state, even when the provider failed and the
// zero-confidence default came back.
func (o *Orchestrator) classify(ctx context.Context, msg *domain.IncomingMessage) (domain.Classification, bool) {
	started := time.Now()
	c, apiCalls := o.classifier.Classify(ctx, msg)

	if err := o.messages.SaveClassification(ctx, &c); err != nil {
		o.log.Error("save classification failed for %s: %v", msg.ID, err)
	}
	if err := o.messages.UpdateStatus(ctx, msg.ID, domain.StatusClassified); err != nil {
		o.log.Error("status update failed for %s: %v", msg.ID, err)
	}

	status := domain.LogSuccess
	note := fmt.Sprintf("classified as %s/%s (confidence %.2f)", c.Type, c.Priority, c.Confidence)
	if c.Confidence == 0 {
		status = domain.LogError
		note = "classification degraded to zero-confidence default"
	}
	o.appendLog(ctx, &domain.ProcessingLogEntry{
		MessageID: msg.ID,
		Account:   msg.Account,
		Action:    domain.ActionClassify,
		Status:    status,
		Message:   note,
		Details: map[string]any{
			"type":      string(c.Type),
			"priority":  string(c.Priority),
			"product":   string(c.Product),
			"sentiment": string(c.Sentiment),
		},
		ElapsedSeconds: time.Since(started).Seconds(),
		APICalls:       apiCalls,
	})

	return c, o.policy.NeedsHumanReview(c)
}

func (o *Orchestrator) finishWithoutResponse(ctx context.Context, msg *domain.IncomingMessage, c domain.Classification, needsReview bool) (*ProcessResult, error) {
	if err := o.messages.UpdateStatus(ctx, msg.ID, domain.StatusNoResponseNeeded); err != nil {
		o.log.Error("status update failed for %s: %v", msg.ID, err)
	}
	o.labelProcessed(ctx, msg)
	if err := o.messages.MarkProcessed(ctx, msg.ID, needsReview); err != nil {
		o.log.Error("mark processed failed for %s: %v", msg.ID, err)
	}

	o.appendLog(ctx, &domain.ProcessingLogEntry{
		MessageID: msg.ID,
		Account:   msg.Account,
		Action:    domain.ActionNoResponse,
		Status:    domain.LogSuccess,
		Message:   fmt.Sprintf("no response needed for %s/%s", c.Type, c.Priority),
	})
	return &ProcessResult{MessageID: msg.ID, Outcome: OutcomeNoResponse}, nil
}

func (o *Orchestrator) generateResponse(ctx context.Context, msg *domain.IncomingMessage, c domain.Classification) (*domain.GeneratedResponse, error) {
	started := time.Now()

	template := o.lookupTemplate(ctx, c)
	lc := o.gatherLearningContext(ctx, msg)

	resp, apiCalls := o.generator.GenerateWithLearning(ctx, msg, c, lc, template)
	resp.ID = uuid.New().String()

	saved, err := o.responses.Save(ctx, &resp)
	if err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}
	if err := o.messages.UpdateStatus(ctx, msg.ID, domain.StatusResponseGenerated); err != nil {
		o.log.Error("status update failed for %s: %v", msg.ID, err)
	}

	o.appendLog(ctx, &domain.ProcessingLogEntry{
		MessageID: msg.ID,
		Account:   msg.Account,
		Action:    domain.ActionGenerateResponse,
		Status:    domain.LogSuccess,
		Message:   fmt.Sprintf("response generated (confidence %.2f)", saved.Confidence),
		Details: map[string]any{
			"model":          saved.Model,
			"learning_notes": saved.LearningNotes,
		},
		ElapsedSeconds: time.Since(started).Seconds(),
		APICalls:       apiCalls,
	})
	return saved, nil
}

func (o *Orchestrator) lookupTemplate(ctx context.Context, c domain.Classification) *domain.Template {
	template, err := o.templates.FindActive(ctx, c.Type, c.Product)
	if err != nil {
		return nil
	}
	return template
}

// gatherLearningContext collects miner output on a best-effort basis; every
// piece is optional and a failure only means a plainer prompt.
func (o *Orchestrator) gatherLearningContext(ctx context.Context, msg *domain.IncomingMessage) *generation.LearningContext {
	lc := &generation.LearningContext{}

	if patterns, err := o.miner.MinePatterns(ctx, msg.Account); err != nil {
		o.log.Warn("pattern mining unavailable for %s: %v", msg.Account, err)
	} else {
		lc.Patterns = patterns
	}

	if similar, err := o.searcher.FindSimilar(ctx, msg.BodyText, msg.Account, o.cfg.SimilarityThreshold); err != nil {
		o.log.Warn("similarity search unavailable for %s: %v", msg.Account, err)
	} else {
		lc.Similar = similar
	}

	if msg.ThreadID != "" {
		if conv, err := o.threads.ConversationContext(ctx, msg.Account, msg.ThreadID); err != nil {
			o.log.Warn("conversation context unavailable for thread %s: %v", msg.ThreadID, err)
		} else {
			lc.Conversation = conv
		}
	}
	return lc
}

// dispatch applies the automation gate: auto-send for low-risk, confident
// responses; a draft awaiting approval for everything else.
func (o *Orchestrator) dispatch(ctx context.Context, msg *domain.IncomingMessage, c domain.Classification, resp *domain.GeneratedResponse) string {
	req := out.SendRequest{
		To:        msg.Sender,
		Subject:   resp.Subject,
		BodyText:  resp.BodyText,
		BodyHTML:  resp.BodyHTML,
		InReplyTo: msg.ExternalID,
	}

	if o.policy.ShouldAutoSend(c, *resp) {
		started := time.Now()
		if err := o.mail.Send(ctx, msg.Account, req); err != nil {
			// Transport failure leaves the response a draft; the batch moves on.
			o.appendLog(ctx, &domain.ProcessingLogEntry{
				MessageID:      msg.ID,
				Account:        msg.Account,
				Action:         domain.ActionAutoSend,
				Status:         domain.LogError,
				Message:        fmt.Sprintf("auto-send failed: %v", err),
				ElapsedSeconds: time.Since(started).Seconds(),
				APICalls:       1,
			})
			return OutcomeDraftCreated
		}

		if err := o.responses.MarkSent(ctx, resp.ID); err != nil {
			o.log.Error("mark sent failed for response %s: %v", resp.ID, err)
		}
		now := time.Now()
		resp.Status = domain.ResponseSent
		resp.SentAt = &now

		o.appendLog(ctx, &domain.ProcessingLogEntry{
			MessageID:      msg.ID,
			Account:        msg.Account,
			Action:         domain.ActionAutoSend,
			Status:         domain.LogSuccess,
			Message:        fmt.Sprintf("auto-sent to %s", msg.Sender),
			ElapsedSeconds: time.Since(started).Seconds(),
			APICalls:       1,
		})
		return OutcomeAutoSent
	}

	if err := o.mail.CreateDraft(ctx, msg.Account, req); err != nil {
		// The response row survives; only the mailbox draft is missing.
		o.log.Warn("draft creation failed for %s: %v", msg.ID, err)
		o.appendLog(ctx, &domain.ProcessingLogEntry{
			MessageID: msg.ID,
			Account:   msg.Account,
			Action:    domain.ActionCreateDraft,
			Status:    domain.LogError,
			Message:   fmt.Sprintf("draft creation failed: %v", err),
			APICalls:  1,
		})
		return OutcomeDraftCreated
	}
	o.appendLog(ctx, &domain.ProcessingLogEntry{
		MessageID: msg.ID,
		Account:   msg.Account,
		Action:    domain.ActionCreateDraft,
		Status:    domain.LogSuccess,
		Message:   "response awaiting approval",
		APICalls:  1,
	})
	return OutcomeDraftCreated
}

// labelProcessed tags the mailbox message so operators can see pipeline
// coverage. Best-effort; the message is never marked read here.
func (o *Orchestrator) labelProcessed(ctx context.Context, msg *domain.IncomingMessage) {
	if o.cfg.ProcessedLabel == "" {
		return
	}
	if err := o.mail.AddLabel(ctx, msg.Account, msg.ExternalID, o.cfg.ProcessedLabel); err != nil {
		o.log.Warn("label add failed for %s: %v", msg.ExternalID, err)
		o.appendLog(ctx, &domain.ProcessingLogEntry{
			MessageID: msg.ID,
			Account:   msg.Account,
			Action:    domain.ActionAddLabel,
			Status:    domain.LogWarning,
			Message:   fmt.Sprintf("label %q add failed: %v", o.cfg.ProcessedLabel, err),
			APICalls:  1,
		})
	}
}

// ApproveResponse moves a draft to approved, recording the approver.
func (o *Orchestrator) ApproveResponse(ctx context.Context, responseID, approver string) error {
	resp, err := o.responses.GetByID(ctx, responseID)
	if err != nil {
		return err
	}
	if resp.Status == domain.ResponseSent {
		return errors.New("response already sent")
	}
	return o.responses.UpdateStatus(ctx, responseID, domain.ResponseApproved, approver)
}

// RejectResponse marks a draft rejected. A rejected response may later be
// replaced via Regenerate, never resurrected.
func (o *Orchestrator) RejectResponse(ctx context.Context, responseID, approver string) error {
	resp, err := o.responses.GetByID(ctx, responseID)
	if err != nil {
		return err
	}
	if resp.Status == domain.ResponseSent {
		return errors.New("response already sent")
	}
	return o.responses.UpdateStatus(ctx, responseID, domain.ResponseRejected, approver)
}

// SendApprovedResponse dispatches a manually approved response.
func (o *Orchestrator) SendApprovedResponse(ctx context.Context, responseID string) error {
	resp, err := o.responses.GetByID(ctx, responseID)
	if err != nil {
		return err
	}
	if resp.Status != domain.ResponseApproved {
		return fmt.Errorf("response %s is %s, not approved", responseID, resp.Status)
	}

	msg, err := o.messages.GetByID(ctx, resp.MessageID)
	if err != nil {
		return err
	}

	if err := o.mail.Send(ctx, msg.Account, out.SendRequest{
		To:        msg.Sender,
		Subject:   resp.Subject,
		BodyText:  resp.BodyText,
		BodyHTML:  resp.BodyHTML,
		InReplyTo: msg.ExternalID,
	}); err != nil {
		return fmt.Errorf("send approved response: %w", err)
	}

	if err := o.responses.MarkSent(ctx, responseID); err != nil {
		o.log.Error("mark sent failed for response %s: %v", responseID, err)
	}
	o.appendLog(ctx, &domain.ProcessingLogEntry{
		MessageID: msg.ID,
		Account:   msg.Account,
		Action:    domain.ActionSendResponse,
		Status:    domain.LogSuccess,
		Message:   fmt.Sprintf("approved response sent to %s", msg.Sender),
		APICalls:  1,
	})
	return nil
}

// Regenerate produces a fresh draft for a message whose previous response
// was rejected.
func (o *Orchestrator) Regenerate(ctx context.Context, messageID string) (*domain.GeneratedResponse, error) {
	msg, err := o.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	c, err := o.messages.GetClassification(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return o.generateResponse(ctx, msg, *c)
}

// RecordFeedback scores a sent response and appends a learning-feedback log
// entry for later tuning.
func (o *Orchestrator) RecordFeedback(ctx context.Context, responseID string, followUpReceived bool) (*domain.EffectivenessReport, error) {
	resp, err := o.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if resp.SentAt == nil {
		return nil, fmt.Errorf("response %s was never sent", responseID)
	}

	msg, err := o.messages.GetByID(ctx, resp.MessageID)
	if err != nil {
		return nil, err
	}

	latencyHours := resp.SentAt.Sub(msg.ReceivedAt).Hours()
	report := learning.ScoreEffectiveness(resp, followUpReceived, latencyHours)

	o.appendLog(ctx, &domain.ProcessingLogEntry{
		MessageID: msg.ID,
		Account:   msg.Account,
		Action:    domain.ActionLearningFeedback,
		Status:    domain.LogSuccess,
		Message:   fmt.Sprintf("effectiveness %.2f", report.Score),
		Details: map[string]any{
			"score":              report.Score,
			"suggestions":        report.Suggestions,
			"follow_up_received": report.FollowUpReceived,
			"latency_hours":      report.LatencyHours,
		},
	})
	return &report, nil
}

func (o *Orchestrator) appendLog(ctx context.Context, entry *domain.ProcessingLogEntry) {
	entry.CreatedAt = time.Now()
	if err := o.logs.Append(ctx, entry); err != nil {
		o.log.Error("log append failed for action %s: %v", entry.Action, err)
	}
}
