package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/sentinel"
)

// PostgresStore persists attempts in the badge_attempts table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed attempt journal.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectAttempt = `
	SELECT id, user_id, fingerprint, cluster, state, reason, tx_hash,
	       token_id, token_uri, block_number, badge_image_url, badge_minted_at,
	       created_at, updated_at
	FROM badge_attempts
`

func (s *PostgresStore) Create(ctx context.Context, a *models.Attempt) error {
	query := `
		INSERT INTO badge_attempts (
			id, user_id, fingerprint, cluster, state, reason, tx_hash,
			token_id, token_uri, block_number, badge_image_url, badge_minted_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	args := append([]any{uuid.UUID(a.ID), a.UserID.String(), a.Fingerprint}, mutableColumns(a)...)
	args = append(args, a.CreatedAt, a.UpdatedAt)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create attempt rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, a *models.Attempt) error {
	query := `
		UPDATE badge_attempts
		SET cluster = $2, state = $3, reason = $4, tx_hash = $5,
		    token_id = $6, token_uri = $7, block_number = $8,
		    badge_image_url = $9, badge_minted_at = $10, updated_at = $11
		WHERE id = $1
	`
	args := append([]any{uuid.UUID(a.ID)}, mutableColumns(a)...)
	args = append(args, a.UpdatedAt)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save attempt rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, attemptID id.AttemptID) (*models.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, selectAttempt+` WHERE id = $1`, uuid.UUID(attemptID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find attempt: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) LatestByFingerprint(ctx context.Context, userID id.UserID, fingerprint string) (*models.Attempt, error) {
	query := selectAttempt + `
		WHERE user_id = $1 AND fingerprint = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	a, err := scanAttempt(s.db.QueryRowContext(ctx, query, userID.String(), fingerprint))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find attempt by fingerprint: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListByState(ctx context.Context, state models.State, updatedBefore time.Time, limit int) ([]*models.Attempt, error) {
	query := selectAttempt + `
		WHERE state = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query, string(state), updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*models.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

// mutableColumns returns cluster through badge_minted_at in column order.
func mutableColumns(a *models.Attempt) []any {
	var tokenID, tokenURI, imageURL sql.NullString
	var block sql.NullInt64
	var mintedAt sql.NullTime
	if a.Receipt != nil {
		tokenID = sql.NullString{String: a.Receipt.TokenID, Valid: true}
		tokenURI = sql.NullString{String: a.Receipt.TokenURI, Valid: true}
		block = sql.NullInt64{Int64: int64(a.Receipt.BlockNumber), Valid: true}
	}
	if a.Badge != nil {
		imageURL = sql.NullString{String: a.Badge.ImageURL, Valid: true}
		mintedAt = sql.NullTime{Time: a.Badge.MintedAt, Valid: true}
	}
	return []any{
		a.Cluster, string(a.State), string(a.Reason), a.TxHash,
		tokenID, tokenURI, block, imageURL, mintedAt,
	}
}

type attemptRow interface {
	Scan(dest ...any) error
}

func scanAttempt(row attemptRow) (*models.Attempt, error) {
	var a models.Attempt
	var attemptID uuid.UUID
	var userID, state, reason string
	var tokenID, tokenURI, imageURL sql.NullString
	var block sql.NullInt64
	var mintedAt sql.NullTime
	if err := row.Scan(
		&attemptID, &userID, &a.Fingerprint, &a.Cluster, &state, &reason, &a.TxHash,
		&tokenID, &tokenURI, &block, &imageURL, &mintedAt,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.ID = id.AttemptID(attemptID)
	a.UserID = id.UserID(userID)
	a.State = models.State(state)
	a.Reason = models.Reason(reason)
	if tokenID.Valid {
		a.Receipt = &models.MintReceipt{
			TokenID:     tokenID.String,
			TokenURI:    tokenURI.String,
			TxHash:      a.TxHash,
			BlockNumber: uint64(block.Int64),
		}
	}
	if mintedAt.Valid && a.Receipt != nil {
		a.Badge = &models.BadgeRecord{
			Cluster:  a.Cluster,
			ImageURL: imageURL.String,
			TokenID:  a.Receipt.TokenID,
			MintedAt: mintedAt.Time,
		}
	}
	return &a, nil
}
