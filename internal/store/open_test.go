package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/entityregistry/internal/config"
	"github.com/JonMunkholm/entityregistry/internal/core"
	"github.com/JonMunkholm/entityregistry/internal/store/sqlite"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.DatabaseConfig{URL: ":memory:", AutoMigrate: true})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.SeedDictionaries(ctx, core.DefaultDictionaries()))

	id, err := s.CreateFolder(ctx, "wallets", "EVM")
	require.NoError(t, err)
	ok, err := s.ContainerExists(ctx, core.KindAffiliations, id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_WithoutMigrations(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.DatabaseConfig{URL: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Codes(ctx, core.DictNetworks)
	assert.Error(t, err, "tables do not exist until Migrate runs")
}

func TestOpen_BadPostgresURL(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{URL: "postgres://%zz", MaxConns: 1})
	assert.Error(t, err)
}
