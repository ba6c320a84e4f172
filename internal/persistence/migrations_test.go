package persistence

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guest-requests/internal/config"
	"github.com/spec-kit/guest-requests/migrations"
)

func TestRunMigrations_SkipsWithoutPool(t *testing.T) {
	fsys := fstest.MapFS{"001_init.sql": {Data: []byte("SELECT 1")}}
	assert.NoError(t, RunMigrations(context.Background(), nil, fsys, zap.NewNop()))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := fs.Glob(migrations.Files, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_tickets.sql", "002_reasons.sql", "003_seed.sql"}, names)
}

func TestNewPostgres_WithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, pg.Enabled())
	assert.Nil(t, pg.PoolHandle())
	assert.ErrorIs(t, pg.Ping(context.Background()), ErrNotConfigured)
	pg.Close()
}

func TestNewRedis_Disabled(t *testing.T) {
	r := NewRedis(config.RedisConfig{}, zap.NewNop())
	assert.False(t, r.Enabled())
	assert.ErrorIs(t, r.Ping(context.Background()), ErrNotConfigured)
	r.Close()
}

