package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestUpsertEntity_RollsBackOnLinkFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entities")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entity_flags")).
		WithArgs("acme", "sanctioned").
		WillReturnError(errors.New("FOREIGN KEY constraint failed"))
	mock.ExpectRollback()

	err := s.UpsertEntity(context.Background(), core.EntityRecord{
		UID: "acme", Name: "Acme", TypeCode: "exchange", Flags: []string{"sanctioned"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add flag sanctioned")
	assert.Equal(t, "DB003", core.MapError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEntity_Commits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entities")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entity_file_map")).
		WithArgs(int64(3), "acme").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entity_category_map")).
		WithArgs("acme", "defi").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.UpsertEntity(context.Background(), core.EntityRecord{
		UID: "acme", Name: "Acme", TypeCode: "exchange", FileID: 3, Categories: []string{"defi"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodes_QueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code FROM networks")).
		WillReturnError(errors.New("database is locked"))

	_, err := s.Codes(context.Background(), core.DictNetworks)
	require.Error(t, err)
	assert.Equal(t, "DB008", core.MapError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodes_RejectsUnknownDictionary(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.Codes(context.Background(), core.Dictionary("entities"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query runs for an unknown dictionary")
}

func TestContainerExists_Error(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM affiliation_folders WHERE id = ?)")).
		WithArgs(int64(9)).
		WillReturnError(errors.New("connection reset"))

	_, err := s.ContainerExists(context.Background(), core.KindAffiliations, 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check affiliation_folders")

	_, err = s.ContainerExists(context.Background(), "wallets", 1)
	assert.ErrorIs(t, err, core.ErrUnknownKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImporter_SnapshotFailureSurfaces(t *testing.T) {
	s, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	for range core.Dictionaries {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT code FROM")).
			WillReturnError(errors.New("connection refused"))
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT entity_uid FROM entities")).
		WillReturnRows(sqlmock.NewRows([]string{"entity_uid"}))

	_, err := core.NewImporter(s).Import(context.Background(), core.ImportRequest{
		Kind:     core.KindAffiliations,
		FolderID: 1,
		Data:     []byte("network,address\nEVM,0x0\n"),
	})
	require.Error(t, err)
	assert.False(t, core.IsRequestError(err))
	assert.Equal(t, "DB004", core.MapError(err).Code)
}
