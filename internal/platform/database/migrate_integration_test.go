//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/platform/config"
	"skillbadge/internal/platform/database"
	"skillbadge/migrations"
	"skillbadge/pkg/testutil/containers"
)

func TestMigrateIsRepeatable(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	pool, err := database.New(ctx, config.DatabaseConfig{URL: pg.DSN, MaxOpenConns: 2, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, pool.Health(ctx))

	applied, err := database.Migrate(ctx, pool.DB(), migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_create_profiles",
		"000002_create_user_badges",
		"000003_create_badge_attempts",
	}, applied)

	var tables int
	require.NoError(t, pool.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('profiles', 'user_badges', 'badge_attempts')`,
	).Scan(&tables))
	assert.Equal(t, 3, tables)
}
