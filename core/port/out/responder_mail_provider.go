package out

import (
	"context"

	"responder_server/core/domain"
)

// SendRequest carries one outbound reply.
type SendRequest struct {
	To        string
	Subject   string
	BodyText  string
	BodyHTML  string
	InReplyTo string
}

// MailProvider is the outbound port to the mailbox transport.
// All calls are blocking and network-bound; callers own retry policy.
type MailProvider interface {
	FetchUnread(ctx context.Context, account string, maxCount int) ([]domain.RawMessage, error)
	Send(ctx context.Context, account string, req SendRequest) error

	// CreateDraft prepares an unsent reply. It must never itself send.
	CreateDraft(ctx context.Context, account string, req SendRequest) error

	MarkAsRead(ctx context.Context, account, messageID string) error
	AddLabel(ctx context.Context, account, messageID, labelName string) error

	GetSentHistory(ctx context.Context, account string, maxCount, lookbackDays int) ([]domain.RawMessage, error)

	// GetThread returns the full thread ordered by received time ascending.
	GetThread(ctx context.Context, account, threadID string) ([]domain.RawMessage, error)

	SearchByKeywords(ctx context.Context, account string, keywords []string, lookbackDays int) ([]domain.RawMessage, error)
}
