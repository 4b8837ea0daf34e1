package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/sentinel"
)

const foreignKeyViolation = "23503"

// PostgresStore persists badges in the user_badges table. Profiles are owned
// elsewhere; this store only reads the profiles table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AppendBadge(ctx context.Context, userID id.UserID, badge models.BadgeRecord) error {
	query := `
		INSERT INTO user_badges (user_id, token_id, cluster, image_url, minted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, token_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		userID.String(),
		badge.TokenID,
		badge.Cluster,
		badge.ImageURL,
		badge.MintedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("append badge: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append badge rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) ListBadges(ctx context.Context, userID id.UserID) ([]models.BadgeRecord, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1)`, userID.String(),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster, image_url, token_id, minted_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY minted_at, token_id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	badges := []models.BadgeRecord{}
	for rows.Next() {
		var b models.BadgeRecord
		if err := rows.Scan(&b.Cluster, &b.ImageURL, &b.TokenID, &b.MintedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badges: %w", err)
	}
	return badges, nil
}

func (s *PostgresStore) WalletAddress(ctx context.Context, userID id.UserID) (string, error) {
	var wallet sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT wallet_address FROM profiles WHERE user_id = $1`, userID.String(),
	).Scan(&wallet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("find wallet: %w", err)
	}
	if !wallet.Valid || wallet.String == "" {
		return "", sentinel.ErrNotFound
	}
	return wallet.String, nil
}

// SetWallet creates the profile if needed and links wallet to it.
func (s *PostgresStore) SetWallet(ctx context.Context, userID id.UserID, wallet string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, wallet_address)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
	`, userID.String(), wallet)
	if err != nil {
		return fmt.Errorf("set wallet: %w", err)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == foreignKeyViolation
	}
	return false
}
