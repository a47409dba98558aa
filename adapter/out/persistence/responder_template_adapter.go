package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"responder_server/core/domain"
	"responder_server/core/port/out"
)

// TemplateAdapter implements out.TemplateRepository using PostgreSQL.
type TemplateAdapter struct {
	db *sqlx.DB
}

func NewTemplateAdapter(db *sqlx.DB) *TemplateAdapter {
	return &TemplateAdapter{db: db}
}

type templateRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Category  string         `db:"category"`
	Product   sql.NullString `db:"product"`
	Subject   sql.NullString `db:"subject"`
	BodyText  string         `db:"body_text"`
	BodyHTML  sql.NullString `db:"body_html"`
	Active    bool           `db:"active"`
	CreatedAt sql.NullTime   `db:"created_at"`
	UpdatedAt sql.NullTime   `db:"updated_at"`
}

func (r *templateRow) toEntity() *domain.Template {
	t := &domain.Template{
		ID:       r.ID,
		Name:     r.Name,
		Category: domain.MessageType(r.Category),
		Product:  domain.ProductInterest(r.Product.String),
		Subject:  r.Subject.String,
		BodyText: r.BodyText,
		BodyHTML: r.BodyHTML.String,
		Active:   r.Active,
	}
	if !r.Product.Valid {
		t.Product = domain.ProductNone
	}
	if r.CreatedAt.Valid {
		t.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		t.UpdatedAt = r.UpdatedAt.Time
	}
	return t
}

// FindActive returns the best active template for a category, preferring a
// product-specific match over a category-wide one.
func (a *TemplateAdapter) FindActive(ctx context.Context, category domain.MessageType, product domain.ProductInterest) (*domain.Template, error) {
	query := `
		SELECT * FROM response_templates
		WHERE category = $1
		  AND active = true
		  AND (product = $2 OR product IS NULL OR product = 'none')
		ORDER BY (product = $2) DESC, updated_at DESC
		LIMIT 1
	`

	var row templateRow
	if err := a.db.QueryRowxContext(ctx, query, string(category), string(product)).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toEntity(), nil
}

var _ out.TemplateRepository = (*TemplateAdapter)(nil)
