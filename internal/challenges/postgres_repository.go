package challenges

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

// Create inserts a new challenge.
func (r *PostgresRepository) Create(ctx context.Context, challenge Challenge) (Challenge, error) {
	const query = `
		INSERT INTO challenges (id, title, description, category, difficulty, points, tags, flag_hash, solved_by, time_limit, download_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		challenge.ID,
		challenge.Title,
		challenge.Description,
		challenge.Category,
		challenge.Difficulty,
		challenge.Points,
		pq.Array(challenge.Tags),
		challenge.FlagHash,
		challenge.SolvedBy,
		challenge.TimeLimit,
		challenge.DownloadURL,
		challenge.CreatedAt,
		challenge.UpdatedAt,
	)
	if err != nil {
		return Challenge{}, err
	}

	return challenge, nil
}

// Get returns a challenge by ID.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Challenge, error) {
	const query = `
		SELECT id, title, description, category, difficulty, points, tags, flag_hash, solved_by, time_limit, download_url, created_at, updated_at
		FROM challenges
		WHERE id = $1
	`

	var row challengeRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Challenge{}, ErrNotFound
		}
		return Challenge{}, err
	}

	return row.toChallenge(), nil
}

// List returns challenges matching the options.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Challenge, error) {
	query := `
		SELECT id, title, description, category, difficulty, points, tags, flag_hash, solved_by, time_limit, download_url, created_at, updated_at
		FROM challenges
	`

	var conditions []string
	var args []any

	if opts.Category != nil {
		args = append(args, *opts.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if opts.Difficulty != nil {
		args = append(args, *opts.Difficulty)
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", len(args)))
	}
	if opts.Query != nil {
		args = append(args, *opts.Query)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')", n, n))
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

	var rows []challengeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	list := make([]Challenge, 0, len(rows))
	for i := range rows {
		list = append(list, rows[i].toChallenge())
	}
	return list, nil
}

// RecordSolve stores a solve and bumps the counter; a repeat solve is a no-op.
func (r *PostgresRepository) RecordSolve(ctx context.Context, solve Solve) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertQuery = `
		INSERT INTO challenge_solves (challenge_id, user_id, solved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (challenge_id, user_id) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, insertQuery, solve.ChallengeID, solve.UserID, solve.SolvedAt)
	if err != nil {
		return false, err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		return false, nil
	}

	const bumpQuery = `UPDATE challenges SET solved_by = solved_by + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bumpQuery, solve.ChallengeID, time.Now().UTC()); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// HasSolved reports whether the user has a recorded solve.
func (r *PostgresRepository) HasSolved(ctx context.Context, challengeID, userID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM challenge_solves WHERE challenge_id = $1 AND user_id = $2)`

	var solved bool
	if err := r.db.GetContext(ctx, &solved, query, challengeID, userID); err != nil {
		return false, err
	}
	return solved, nil
}

// challengeRow is a database row representation of Challenge.
type challengeRow struct {
	ID          uuid.UUID      `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Category    Category       `db:"category"`
	Difficulty  Difficulty     `db:"difficulty"`
	Points      int            `db:"points"`
	Tags        pq.StringArray `db:"tags"`
	FlagHash    string         `db:"flag_hash"`
	SolvedBy    int            `db:"solved_by"`
	TimeLimit   *int           `db:"time_limit"`
	DownloadURL string         `db:"download_url"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *challengeRow) toChallenge() Challenge {
	return Challenge{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Difficulty:  r.Difficulty,
		Points:      r.Points,
		Tags:        []string(r.Tags),
		FlagHash:    r.FlagHash,
		SolvedBy:    r.SolvedBy,
		TimeLimit:   r.TimeLimit,
		DownloadURL: r.DownloadURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
