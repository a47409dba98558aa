package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"responder_server/core/domain"
	"responder_server/core/port/out"
)

// ResponseAdapter implements out.ResponseRepository using PostgreSQL.
type ResponseAdapter struct {
	db *sqlx.DB
}

func NewResponseAdapter(db *sqlx.DB) *ResponseAdapter {
	return &ResponseAdapter{db: db}
}

type responseRow struct {
	ID            string          `db:"id"`
	MessageID     string          `db:"message_id"`
	Subject       sql.NullString  `db:"subject"`
	BodyText      string          `db:"body_text"`
	BodyHTML      sql.NullString  `db:"body_html"`
	Model         sql.NullString  `db:"model"`
	TemplateID    sql.NullString  `db:"template_id"`
	Confidence    float64         `db:"confidence"`
	CallToAction  bool            `db:"call_to_action"`
	LearningNotes sql.NullString  `db:"learning_notes"`
	Status        string          `db:"status"`
	ApprovedBy    sql.NullString  `db:"approved_by"`
	ApprovedAt    sql.NullTime    `db:"approved_at"`
	SentAt        sql.NullTime    `db:"sent_at"`
	CreatedAt     sql.NullTime    `db:"created_at"`
}

func (r *responseRow) toEntity() *domain.GeneratedResponse {
	resp := &domain.GeneratedResponse{
		ID:            r.ID,
		MessageID:     r.MessageID,
		Subject:       r.Subject.String,
		BodyText:      r.BodyText,
		BodyHTML:      r.BodyHTML.String,
		Model:         r.Model.String,
		Confidence:    r.Confidence,
		CallToAction:  r.CallToAction,
		LearningNotes: r.LearningNotes.String,
		Status:        domain.ResponseStatus(r.Status),
		ApprovedBy:    r.ApprovedBy.String,
	}
	if r.TemplateID.Valid {
		resp.TemplateID = &r.TemplateID.String
	}
	if r.ApprovedAt.Valid {
		resp.ApprovedAt = &r.ApprovedAt.Time
	}
	if r.SentAt.Valid {
		resp.SentAt = &r.SentAt.Time
	}
	if r.CreatedAt.Valid {
		resp.CreatedAt = r.CreatedAt.Time
	}
	return resp
}

func (a *ResponseAdapter) Save(ctx context.Context, resp *domain.GeneratedResponse) (*domain.GeneratedResponse, error) {
	query := `
		INSERT INTO generated_responses (
			id, message_id, subject, body_text, body_html, model,
			template_id, confidence, call_to_action, learning_notes, status
		) VALUES (
			$1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''),
			$7, $8, $9, NULLIF($10, ''), $11
		)
		RETURNING created_at
	`

	err := a.db.QueryRowxContext(ctx, query,
		resp.ID,
		resp.MessageID,
		resp.Subject,
		resp.BodyText,
		resp.BodyHTML,
		resp.Model,
		resp.TemplateID,
		resp.Confidence,
		resp.CallToAction,
		resp.LearningNotes,
		string(resp.Status),
	).Scan(&resp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *ResponseAdapter) GetByID(ctx context.Context, id string) (*domain.GeneratedResponse, error) {
	query := `SELECT * FROM generated_responses WHERE id = $1`

	var row responseRow
	if err := a.db.QueryRowxContext(ctx, query, id).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// GetByMessageID returns the most recent response for a message. A message
// may accumulate several after rejections.
func (a *ResponseAdapter) GetByMessageID(ctx context.Context, messageID string) (*domain.GeneratedResponse, error) {
	query := `
		SELECT * FROM generated_responses
		WHERE message_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var row responseRow
	if err := a.db.QueryRowxContext(ctx, query, messageID).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *ResponseAdapter) UpdateStatus(ctx context.Context, id string, status domain.ResponseStatus, approvedBy string) error {
	query := `
		UPDATE generated_responses
		SET status = $1,
		    approved_by = NULLIF($2, ''),
		    approved_at = CASE WHEN $1 = 'approved' THEN NOW() ELSE approved_at END
		WHERE id = $3
	`

	result, err := a.db.ExecContext(ctx, query, string(status), approvedBy, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (a *ResponseAdapter) MarkSent(ctx context.Context, id string) error {
	query := `UPDATE generated_responses SET status = 'sent', sent_at = NOW() WHERE id = $1`

	result, err := a.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

var _ out.ResponseRepository = (*ResponseAdapter)(nil)
