package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new article.
func (r *PostgresRepository) Create(ctx context.Context, article Article) (Article, error) {
	const query = `
		INSERT INTO articles (id, title, summary, body, category, tags, author, read_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		article.ID,
		article.Title,
		article.Summary,
		article.Body,
		article.Category,
		pq.Array(article.Tags),
		article.Author,
		article.ReadMinute,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		return Article{}, err
	}

	return article, nil
}

// Get returns an article by ID.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Article, error) {
	const query = `
		SELECT id, title, summary, body, category, tags, author, read_minutes, created_at, updated_at
		FROM articles
		WHERE id = $1
	`

	var row articleRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Article{}, ErrNotFound
		}
		return Article{}, err
	}

	return row.toArticle(), nil
}

// List returns articles matching the options.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Article, error) {
	query := `
		SELECT id, title, summary, body, category, tags, author, read_minutes, created_at, updated_at
		FROM articles
	`

	var conditions []string
	var args []any

	if opts.Category != nil {
		args = append(args, *opts.Category)
		conditions = append(conditions, fmt.Sprintf("category = lower($%d)", len(args)))
	}
	if opts.Query != nil {
		args = append(args, *opts.Query)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE '%%' || $%d || '%%' OR summary ILIKE '%%' || $%d || '%%')", n, n))
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit != nil {
		args = append(args, *opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []articleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	list := make([]Article, 0, len(rows))
	for i := range rows {
		list = append(list, rows[i].toArticle())
	}
	return list, nil
}

// articleRow is a database row representation of Article.
type articleRow struct {
	ID         uuid.UUID      `db:"id"`
	Title      string         `db:"title"`
	Summary    string         `db:"summary"`
	Body       string         `db:"body"`
	Category   string         `db:"category"`
	Tags       pq.StringArray `db:"tags"`
	Author     string         `db:"author"`
	ReadMinute int            `db:"read_minutes"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r *articleRow) toArticle() Article {
	return Article{
		ID:         r.ID,
		Title:      r.Title,
		Summary:    r.Summary,
		Body:       r.Body,
		Category:   r.Category,
		Tags:       []string(r.Tags),
		Author:     r.Author,
		ReadMinute: r.ReadMinute,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
