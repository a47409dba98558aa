// Package persistence implements the repository ports on PostgreSQL.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"responder_server/core/domain"
	"responder_server/core/port/out"
)

// MessageAdapter implements out.MessageRepository using PostgreSQL.
type MessageAdapter struct {
	db *sqlx.DB
}

func NewMessageAdapter(db *sqlx.DB) *MessageAdapter {
	return &MessageAdapter{db: db}
}

type messageRow struct {
	ID               string         `db:"id"`
	ExternalID       string         `db:"external_id"`
	ThreadID         sql.NullString `db:"thread_id"`
	Account          string         `db:"account"`
	Sender           string         `db:"sender"`
	SenderName       sql.NullString `db:"sender_name"`
	Subject          sql.NullString `db:"subject"`
	BodyText         sql.NullString `db:"body_text"`
	BodyHTML         sql.NullString `db:"body_html"`
	Status           string         `db:"status"`
	NeedsHumanReview bool           `db:"needs_human_review"`
	IsRead           bool           `db:"is_read"`
	ReceivedAt       sql.NullTime   `db:"received_at"`
	ProcessedAt      sql.NullTime   `db:"processed_at"`
	CreatedAt        sql.NullTime   `db:"created_at"`
	UpdatedAt        sql.NullTime   `db:"updated_at"`
}

func (r *messageRow) toEntity() *domain.IncomingMessage {
	msg := &domain.IncomingMessage{
		ID:               r.ID,
		ExternalID:       r.ExternalID,
		ThreadID:         r.ThreadID.String,
		Account:          r.Account,
		Sender:           r.Sender,
		SenderName:       r.SenderName.String,
		Subject:          r.Subject.String,
		BodyText:         r.BodyText.String,
		BodyHTML:         r.BodyHTML.String,
		Status:           domain.MessageStatus(r.Status),
		NeedsHumanReview: r.NeedsHumanReview,
		IsRead:           r.IsRead,
	}
	if r.ReceivedAt.Valid {
		msg.ReceivedAt = r.ReceivedAt.Time
	}
	if r.ProcessedAt.Valid {
		msg.ProcessedAt = &r.ProcessedAt.Time
	}
	if r.CreatedAt.Valid {
		msg.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		msg.UpdatedAt = r.UpdatedAt.Time
	}
	return msg
}

// ExistsByExternalID checks whether the account already saw this message.
func (a *MessageAdapter) ExistsByExternalID(ctx context.Context, account, externalID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM incoming_messages WHERE account = $1 AND external_id = $2)`

	var exists bool
	if err := a.db.QueryRowxContext(ctx, query, account, externalID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Save inserts the message. A concurrent insert of the same external
// identifier resolves to the winner's row instead of failing.
func (a *MessageAdapter) Save(ctx context.Context, msg *domain.IncomingMessage) (*domain.IncomingMessage, error) {
	query := `
		INSERT INTO incoming_messages (
			id, external_id, thread_id, account, sender, sender_name,
			subject, body_text, body_html, status, needs_human_review,
			is_read, received_at
		) VALUES (
			$1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''),
			NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11,
			$12, $13
		)
		RETURNING created_at, updated_at
	`

	err := a.db.QueryRowxContext(ctx, query,
		msg.ID,
		msg.ExternalID,
		msg.ThreadID,
		msg.Account,
		msg.Sender,
		msg.SenderName,
		msg.Subject,
		msg.BodyText,
		msg.BodyHTML,
		string(msg.Status),
		msg.NeedsHumanReview,
		msg.IsRead,
		msg.ReceivedAt,
	).Scan(&msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return a.GetByExternalID(ctx, msg.Account, msg.ExternalID)
		}
		return nil, err
	}
	return msg, nil
}

func (a *MessageAdapter) GetByID(ctx context.Context, id string) (*domain.IncomingMessage, error) {
	query := `SELECT * FROM incoming_messages WHERE id = $1`

	var row messageRow
	if err := a.db.QueryRowxContext(ctx, query, id).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *MessageAdapter) GetByExternalID(ctx context.Context, account, externalID string) (*domain.IncomingMessage, error) {
	query := `SELECT * FROM incoming_messages WHERE account = $1 AND external_id = $2`

	var row messageRow
	if err := a.db.QueryRowxContext(ctx, query, account, externalID).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *MessageAdapter) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	query := `UPDATE incoming_messages SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := a.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (a *MessageAdapter) MarkProcessed(ctx context.Context, id string, needsHumanReview bool) error {
	query := `
		UPDATE incoming_messages
		SET processed_at = NOW(), needs_human_review = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := a.db.ExecContext(ctx, query, needsHumanReview, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveClassification upserts; one classification per message, last write
// wins.
func (a *MessageAdapter) SaveClassification(ctx context.Context, c *domain.Classification) error {
	query := `
		INSERT INTO message_classifications (
			message_id, type, priority, product, sentiment,
			confidence, reasoning, classified_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (message_id) DO UPDATE SET
			type = EXCLUDED.type,
			priority = EXCLUDED.priority,
			product = EXCLUDED.product,
			sentiment = EXCLUDED.sentiment,
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			classified_at = EXCLUDED.classified_at
	`

	_, err := a.db.ExecContext(ctx, query,
		c.MessageID,
		string(c.Type),
		string(c.Priority),
		string(c.Product),
		string(c.Sentiment),
		c.Confidence,
		c.Reasoning,
		c.ClassifiedAt,
	)
	return err
}

func (a *MessageAdapter) GetClassification(ctx context.Context, messageID string) (*domain.Classification, error) {
	query := `SELECT * FROM message_classifications WHERE message_id = $1`

	var row classificationRow
	if err := a.db.QueryRowxContext(ctx, query, messageID).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("classification for message %s: %w", messageID, ErrNotFound)
		}
		return nil, err
	}
	return row.toEntity(), nil
}

type classificationRow struct {
	MessageID    string         `db:"message_id"`
	Type         string         `db:"type"`
	Priority     string         `db:"priority"`
	Product      string         `db:"product"`
	Sentiment    string         `db:"sentiment"`
	Confidence   float64        `db:"confidence"`
	Reasoning    sql.NullString `db:"reasoning"`
	ClassifiedAt sql.NullTime   `db:"classified_at"`
}

func (r *classificationRow) toEntity() *domain.Classification {
	c := &domain.Classification{
		MessageID:  r.MessageID,
		Type:       domain.MessageType(r.Type),
		Priority:   domain.MessagePriority(r.Priority),
		Product:    domain.ProductInterest(r.Product),
		Sentiment:  domain.Sentiment(r.Sentiment),
		Confidence: r.Confidence,
		Reasoning:  r.Reasoning.String,
	}
	if r.ClassifiedAt.Valid {
		c.ClassifiedAt = r.ClassifiedAt.Time
	}
	return c
}

var _ out.MessageRepository = (*MessageAdapter)(nil)
