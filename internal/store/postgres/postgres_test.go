package postgres

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

const evmAddr = "0x52908400098527886E0F7030069857D2E4169EE7"

// newTestStore creates a throwaway database on the server named by
// TEST_DATABASE_URL, migrates and seeds it, and drops it on cleanup.
func newTestStore(tb testing.TB) *Store {
	tb.Helper()
	ctx := context.Background()

	isCI := strings.TrimSpace(os.Getenv("CI")) != "" || strings.EqualFold(strings.TrimSpace(os.Getenv("GITHUB_ACTIONS")), "true")
	adminURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if adminURL == "" {
		tb.Skip("TEST_DATABASE_URL is not set; skipping postgres integration test")
	}

	adminConn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		if isCI {
			require.NoError(tb, err)
		}
		tb.Skip("postgres is not reachable; skipping integration test")
	}
	tb.Cleanup(func() { _ = adminConn.Close(ctx) })

	dbName := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, "registry_"+strings.ToLower(tb.Name()))

	_, _ = adminConn.Exec(ctx, "DROP DATABASE IF EXISTS "+dbName)
	if _, err := adminConn.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		if isCI {
			require.NoError(tb, err)
		}
		tb.Skip("failed to create test database; skipping integration test")
	}

	poolConfig, err := pgxpool.ParseConfig(adminURL)
	require.NoError(tb, err)
	poolConfig.ConnConfig.Database = dbName
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(tb, err)

	tb.Cleanup(func() {
		pool.Close()
		_, _ = adminConn.Exec(ctx, "DROP DATABASE IF EXISTS "+dbName)
	})

	s := New(pool)
	require.NoError(tb, s.Migrate(ctx))
	require.NoError(tb, s.SeedDictionaries(ctx, core.DefaultDictionaries()))
	return s
}

func count(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func lines(ls ...string) []byte {
	return []byte(strings.Join(ls, "\n") + "\n")
}

func runImport(t *testing.T, s *Store, req core.ImportRequest) *core.ImportResult {
	t.Helper()
	res, err := core.NewImporter(s).Import(context.Background(), req)
	require.NoError(t, err)
	return res
}

// ----------------------------------------------------------------------------
// Integration
// ----------------------------------------------------------------------------

func TestPostgres_MigrateAndSeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.SeedDictionaries(ctx, core.DefaultDictionaries()))

	networks, err := s.ListDictionary(ctx, core.DictNetworks)
	require.NoError(t, err)
	assert.Len(t, networks, 4)

	ok, err := s.ContainerExists(ctx, core.KindAffiliations, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_ImportEntitiesIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fileID, err := s.CreateEntityFile(ctx, "entities.csv", "")
	require.NoError(t, err)

	req := core.ImportRequest{
		Kind:   core.KindEntities,
		FileID: fileID,
		Data: lines(
			"entity_uid,entity_name,entity_type,parent_entity,flags,categories",
			"binance,Binance,exchange,,risky|sanctioned,cefi_exchange",
			"binance-us,Binance US,exchange,binance,,",
		),
	}
	assert.Equal(t, 2, runImport(t, s, req).OK)
	assert.Equal(t, 2, runImport(t, s, req).OK)

	assert.Equal(t, 2, count(t, s, "entities"))
	assert.Equal(t, 2, count(t, s, "entity_flags"))
	assert.Equal(t, 2, count(t, s, "import_runs"))

	recs, err := s.ListEntities(ctx, fileID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"risky", "sanctioned"}, recs[0].Flags)
	assert.Equal(t, []string{"cefi_exchange"}, recs[0].Categories)
	assert.Nil(t, recs[1].Flags)
	assert.Equal(t, "binance", recs[1].ParentUID)
}

func TestPostgres_IncidentPolicies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	incID, err := s.CreateIncidentFile(ctx, "incidents", "2024-01")
	require.NoError(t, err)

	res := runImport(t, s, core.ImportRequest{
		Kind:   core.KindIncidents,
		FileID: incID,
		Data: lines(
			"network,address,entity_uid,incident_type,incident_date",
			"EVM,"+evmAddr+",lazarus,theft,2024-01-15",
			"EVM,"+evmAddr+",anon,scam,2024-01-16",
		),
		Policies: map[string]core.Policy{
			"lazarus": core.CreatePolicy{EntityType: "hacker_group"},
			"anon":    core.MarkUnknownPolicy{},
		},
	})
	assert.Equal(t, 2, res.OK)
	assert.Empty(t, res.Errors)

	recs, err := s.ListIncidents(ctx, incID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "lazarus", recs[0].EntityUID)
	assert.Equal(t, core.SentinelUID, recs[1].EntityUID)
	assert.True(t, recs[0].IncidentDate.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
}

func TestPostgres_ExportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	src, err := s.CreateFolder(ctx, "source", "EVM")
	require.NoError(t, err)

	runImport(t, s, core.ImportRequest{
		Kind:     core.KindAffiliations,
		FolderID: src,
		Data: lines(
			"network,address,comment,is_hidden",
			"EVM,"+evmAddr+",\"hot, main\",TRUE",
		),
	})

	var buf bytes.Buffer
	require.NoError(t, core.Export(ctx, s, core.KindAffiliations, src, &buf))

	dst, err := s.CreateFolder(ctx, "copy", "")
	require.NoError(t, err)
	res := runImport(t, s, core.ImportRequest{Kind: core.KindAffiliations, FolderID: dst, Data: buf.Bytes()})
	assert.Equal(t, 1, res.OK)

	copied, err := s.ListAffiliations(ctx, dst)
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.Equal(t, "hot, main", copied[0].Comment)
	assert.True(t, copied[0].IsHidden)
}
