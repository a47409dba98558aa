package domain

import "time"

// LengthStats summarizes body lengths over a sent-message sample.
type LengthStats struct {
	Mean   float64
	Median float64
	Min    int
	Max    int
	StdDev float64
}

// ResponsePattern aggregates stylistic signals mined from an account's
// historical sent messages. Ephemeral: recomputed on demand, cached at most,
// never a source of truth.
type ResponsePattern struct {
	Account         string
	SampleCount     int
	Greetings       []string
	Closings        []string
	Length          LengthStats
	AvgPolarity     float64
	AvgSubjectivity float64
	ToneConsistency float64
	Keywords        map[string]int
	CommonPhrases   []string
	MinedAt         time.Time
}

// SimilarMessage pairs a historical message with its similarity score
// against the query. Score is zero on the degraded unranked path.
type SimilarMessage struct {
	Message RawMessage
	Score   float64
}

// ConversationStage is a coarse label derived purely from message count.
type ConversationStage string

const (
	StageInitialContact       ConversationStage = "initial_contact"
	StageEarlyEngagement      ConversationStage = "early_engagement"
	StageActiveDiscussion     ConversationStage = "active_discussion"
	StageExtendedConversation ConversationStage = "extended_conversation"
)

// StageForCount maps a thread's message count to its stage.
func StageForCount(n int) ConversationStage {
	switch {
	case n <= 1:
		return StageInitialContact
	case n <= 3:
		return StageEarlyEngagement
	case n <= 6:
		return StageActiveDiscussion
	default:
		return StageExtendedConversation
	}
}

// ResponseStyle is the stylistic fingerprint of a single reply.
type ResponseStyle struct {
	Length           int
	Formality        float64
	Enthusiasm       float64
	QuestionCount    int
	ExclamationCount int
}

// ConversationContext captures the state of a thread before replying.
type ConversationContext struct {
	ThreadID       string
	Account        string
	MessageCount   int
	Stage          ConversationStage
	Sentiments     []float64
	KeyTopics      []string
	LastOwnerStyle *ResponseStyle
}

// EffectivenessReport scores an already-sent reply. Feedback signal only;
// never used to revert a send.
type EffectivenessReport struct {
	ResponseID       string
	Score            float64
	Suggestions      []string
	FollowUpReceived bool
	LatencyHours     float64
	ScoredAt         time.Time
}
