package out

import (
	"context"

	"responder_server/core/domain"
)

// MessageRepository persists incoming messages.
type MessageRepository interface {
	// ExistsByExternalID is the idempotency check run before any work.
	ExistsByExternalID(ctx context.Context, account, externalID string) (bool, error)

	// Save inserts a new message. On a duplicate external identifier it
	// resolves to the existing record instead of returning an error.
	Save(ctx context.Context, msg *domain.IncomingMessage) (*domain.IncomingMessage, error)

	GetByID(ctx context.Context, id string) (*domain.IncomingMessage, error)
	GetByExternalID(ctx context.Context, account, externalID string) (*domain.IncomingMessage, error)
	UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error
	MarkProcessed(ctx context.Context, id string, needsHumanReview bool) error

	// SaveClassification overwrites the message's classification.
	SaveClassification(ctx context.Context, c *domain.Classification) error
	GetClassification(ctx context.Context, messageID string) (*domain.Classification, error)
}

// ResponseRepository persists generated replies.
type ResponseRepository interface {
	Save(ctx context.Context, resp *domain.GeneratedResponse) (*domain.GeneratedResponse, error)
	GetByID(ctx context.Context, id string) (*domain.GeneratedResponse, error)
	GetByMessageID(ctx context.Context, messageID string) (*domain.GeneratedResponse, error)
	UpdateStatus(ctx context.Context, id string, status domain.ResponseStatus, approvedBy string) error
	MarkSent(ctx context.Context, id string) error
}

// TemplateRepository resolves reply templates.
type TemplateRepository interface {
	// FindActive returns the best active template for a category, preferring
	// a product-specific match. Returns ErrNotFound semantics via (nil, err).
	FindActive(ctx context.Context, category domain.MessageType, product domain.ProductInterest) (*domain.Template, error)
}

// LogRepository appends pipeline audit records. Append-only, concurrent-safe.
type LogRepository interface {
	Append(ctx context.Context, entry *domain.ProcessingLogEntry) error
	CountByAction(ctx context.Context, account string) (map[string]int64, error)
}
