package out

import (
	"context"
	"time"

	"responder_server/core/domain"
)

// PatternCache holds mined response patterns between batch passes.
// Strictly an optimization; a miss or error just triggers a recompute.
type PatternCache interface {
	Get(ctx context.Context, account string) (*domain.ResponsePattern, error)
	Set(ctx context.Context, account string, pattern *domain.ResponsePattern, ttl time.Duration) error
}
