package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renda-edge/internal/common/errors"
	"renda-edge/internal/config"
	"renda-edge/internal/storage"
)

func TestConfigFrom(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		c, err := storage.ConfigFrom(&config.Config{DatabaseType: "sqlite", DatabasePath: "./renda.db"})
		require.NoError(t, err)
		assert.Equal(t, storage.Config{Type: "sqlite", DSN: "./renda.db"}, c)
	})

	t.Run("postgres", func(t *testing.T) {
		c, err := storage.ConfigFrom(&config.Config{
			DatabaseType:     "postgres",
			PostgresHost:     "db",
			PostgresPort:     "5432",
			PostgresDB:       "renda",
			PostgresUser:     "renda",
			PostgresPassword: "p@ss word",
			PostgresSSLMode:  "disable",
		})
		require.NoError(t, err)
		assert.Equal(t, "postgres", c.Type)
		assert.Equal(t, "postgres://renda:p%40ss%20word@db:5432/renda?sslmode=disable", c.DSN)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := storage.ConfigFrom(&config.Config{DatabaseType: "mysql"})
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})
}

func TestRegistry(t *testing.T) {
	r := storage.NewRegistry()
	assert.Empty(t, r.Types())

	opened := 0
	r.Register("memory", func(_ context.Context, c storage.Config) (storage.Storage, error) {
		opened++
		assert.Equal(t, "mem://", c.DSN)
		return nil, nil
	})
	assert.Equal(t, []string{"memory"}, r.Types())

	_, err := r.Open(context.Background(), storage.Config{Type: "memory", DSN: "mem://"})
	assert.NoError(t, err)
	assert.Equal(t, 1, opened)

	_, err = r.Open(context.Background(), storage.Config{Type: "nope"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	assert.Contains(t, err.Error(), "available: memory")

	assert.Panics(t, func() {
		r.Register("memory", func(context.Context, storage.Config) (storage.Storage, error) { return nil, nil })
	})
}
