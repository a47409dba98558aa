package domain

import "time"

// LogStatus is the outcome of one pipeline action.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogError   LogStatus = "error"
	LogWarning LogStatus = "warning"
)

// Pipeline actions recorded in the processing log.
const (
	ActionClassify         = "classify"
	ActionGenerateResponse = "generate_response"
	ActionAutoSend         = "auto_send"
	ActionSendResponse     = "send_response"
	ActionCreateDraft      = "create_draft"
	ActionNoResponse       = "no_response_needed"
	ActionAlreadyProcessed = "already_processed"
	ActionAddLabel         = "add_label"
	ActionProcessError     = "process_error"
	ActionLearningFeedback = "learning_feedback"
)

// ProcessingLogEntry is one append-only audit record per pipeline action.
type ProcessingLogEntry struct {
	ID             string
	MessageID      string
	Account        string
	Action         string
	Status         LogStatus
	Message        string
	Details        map[string]any
	ElapsedSeconds float64
	APICalls       int
	CreatedAt      time.Time
}
