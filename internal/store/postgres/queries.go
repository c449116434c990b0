package postgres

import (
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

var _ core.Store = (*Store)(nil)

// dictTable returns the table holding dict. Table names come from this
// closed set only, never from input.
func dictTable(dict core.Dictionary) (string, error) {
	if !slices.Contains(core.Dictionaries, dict) {
		return "", errors.Newf("unknown dictionary %q", dict)
	}
	return string(dict), nil
}

func containerTable(kind core.RecordKind) (string, error) {
	switch kind {
	case core.KindEntities:
		return "entity_files", nil
	case core.KindAffiliations:
		return "affiliation_folders", nil
	case core.KindIncidents:
		return "incident_files", nil
	}
	return "", core.ErrUnknownKind
}

// ----------------------------------------------------------------------------
// Snapshot reads
// ----------------------------------------------------------------------------

func (s *Store) Codes(ctx context.Context, dict core.Dictionary) ([]string, error) {
	table, err := dictTable(dict)
	if err != nil {
		return nil, err
	}
	return queryColumn[string](ctx, s, "SELECT code FROM "+table+" ORDER BY code")
}

func (s *Store) EntityUIDs(ctx context.Context) ([]string, error) {
	return queryColumn[string](ctx, s, "SELECT entity_uid FROM entities")
}

func (s *Store) EntityFileIDs(ctx context.Context) ([]int64, error) {
	return queryColumn[int64](ctx, s, "SELECT id FROM entity_files")
}

func queryColumn[T any](ctx context.Context, s *Store, query string, args ...any) ([]T, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[T])
	return out, errors.Wrap(err, "collect")
}

func (s *Store) ContainerExists(ctx context.Context, kind core.RecordKind, id int64) (bool, error) {
	table, err := containerTable(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "check %s", table)
	}
	return exists, nil
}

// ----------------------------------------------------------------------------
// Writes
// ----------------------------------------------------------------------------

const upsertEntitySQL = `
INSERT INTO entities (entity_uid, entity_name, entity_type_code, parent_entity_uid,
                      entity_description, entity_country, comment, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (entity_uid) DO UPDATE SET
    entity_name        = excluded.entity_name,
    entity_type_code   = excluded.entity_type_code,
    parent_entity_uid  = excluded.parent_entity_uid,
    entity_description = excluded.entity_description,
    entity_country     = excluded.entity_country,
    comment            = excluded.comment,
    updated_at         = excluded.updated_at`

// UpsertEntity writes the entity row and adds its file link, flags and
// categories in one transaction. Links are only ever added.
func (s *Store) UpsertEntity(ctx context.Context, rec core.EntityRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx) // No-op if already committed

	_, err = tx.Exec(ctx, upsertEntitySQL,
		rec.UID, rec.Name, rec.TypeCode, pgText(rec.ParentUID),
		pgText(rec.Description), pgText(rec.Country), pgText(rec.Comment), timestamptz(s.now(), s.now))
	if err != nil {
		return errors.Wrap(err, "upsert entity")
	}

	if rec.FileID != 0 {
		_, err = tx.Exec(ctx,
			"INSERT INTO entity_file_map (file_id, entity_uid) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			rec.FileID, rec.UID)
		if err != nil {
			return errors.Wrap(err, "link entity file")
		}
	}
	for _, f := range rec.Flags {
		_, err = tx.Exec(ctx,
			"INSERT INTO entity_flags (entity_uid, flag_code, source) VALUES ($1, $2, 'manual') ON CONFLICT DO NOTHING",
			rec.UID, f)
		if err != nil {
			return errors.Wrapf(err, "add flag %s", f)
		}
	}
	for _, c := range rec.Categories {
		_, err = tx.Exec(ctx,
			"INSERT INTO entity_category_map (entity_uid, category_code) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			rec.UID, c)
		if err != nil {
			return errors.Wrapf(err, "add category %s", c)
		}
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (s *Store) EnsureEntity(ctx context.Context, uid, name, typeCode string) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO entities (entity_uid, entity_name, entity_type_code) VALUES ($1, $2, $3) ON CONFLICT (entity_uid) DO NOTHING",
		uid, name, typeCode)
	return errors.Wrap(err, "ensure entity")
}

func (s *Store) InsertAffiliation(ctx context.Context, rec core.AffiliationRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO affiliations (folder_id, network_code, address, entity_uid, address_role_code, source,
                          analyst, comment, ext_name, ext_category, ext_wallet_name, ext_label,
                          is_hidden, added_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.FolderID, rec.Network, rec.Address, pgText(rec.EntityUID), pgText(rec.Role), rec.Source,
		pgText(rec.Analyst), pgText(rec.Comment), pgText(rec.ExtName), pgText(rec.ExtCategory),
		pgText(rec.ExtWalletName), pgText(rec.ExtLabel), rec.IsHidden, timestamptz(rec.AddedAt, s.now))
	return errors.Wrap(err, "insert affiliation")
}

func (s *Store) InsertIncident(ctx context.Context, rec core.IncidentRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO incidents (file_id, network_code, address, entity_uid, incident_type_code, incident_date,
                       source, wallet_role, analyst, tx_hashes, added_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.FileID, rec.Network, rec.Address, pgText(rec.EntityUID), rec.IncidentType,
		pgDate(rec.IncidentDate), rec.Source, pgText(rec.WalletRole), pgText(rec.Analyst),
		pgText(rec.TxHashes), timestamptz(rec.AddedAt, s.now))
	return errors.Wrap(err, "insert incident")
}

func (s *Store) RecordRun(ctx context.Context, run core.ImportRun) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO import_runs (id, kind, container_id, ok_count, error_count, skipped, unknown_uids,
                         outcome, client_ip, user_agent, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pgUUID(run.ID), string(run.Kind), pgInt8(run.ContainerID), run.OK, run.Errors, run.Skipped,
		run.Unknown, run.Outcome, pgText(run.ClientIP), pgText(run.UserAgent),
		timestamptz(run.StartedAt, s.now), timestamptz(run.FinishedAt, s.now))
	return errors.Wrap(err, "record import run")
}

// ----------------------------------------------------------------------------
// Exports
// ----------------------------------------------------------------------------

func (s *Store) ListEntities(ctx context.Context, fileID int64) ([]core.EntityRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT e.entity_uid, e.entity_name, e.entity_type_code, e.parent_entity_uid, e.entity_description,
       e.entity_country, e.comment,
       ARRAY(SELECT DISTINCT f.flag_code FROM entity_flags f
             WHERE f.entity_uid = e.entity_uid ORDER BY f.flag_code) AS flags,
       ARRAY(SELECT c.category_code FROM entity_category_map c
             WHERE c.entity_uid = e.entity_uid ORDER BY c.category_code) AS categories
FROM entities e
WHERE $1::bigint = 0
   OR e.entity_uid IN (SELECT entity_uid FROM entity_file_map WHERE file_id = $1)
ORDER BY e.entity_uid`, fileID)
	if err != nil {
		return nil, errors.Wrap(err, "list entities")
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.EntityRecord, error) {
		var (
			rec                                   core.EntityRecord
			parent, description, country, comment pgtype.Text
		)
		err := row.Scan(&rec.UID, &rec.Name, &rec.TypeCode, &parent, &description, &country, &comment,
			&rec.Flags, &rec.Categories)
		rec.ParentUID, rec.Description, rec.Country, rec.Comment = parent.String, description.String, country.String, comment.String
		rec.FileID = fileID
		if len(rec.Flags) == 0 {
			rec.Flags = nil
		}
		if len(rec.Categories) == 0 {
			rec.Categories = nil
		}
		return rec, err
	})
	return recs, errors.Wrap(err, "scan entities")
}

func (s *Store) ListAffiliations(ctx context.Context, folderID int64) ([]core.AffiliationRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, folder_id, network_code, address, entity_uid, address_role_code, source, analyst, comment,
       ext_name, ext_category, ext_wallet_name, ext_label, is_hidden, added_at
FROM affiliations
WHERE $1::bigint = 0 OR folder_id = $1
ORDER BY id`, folderID)
	if err != nil {
		return nil, errors.Wrap(err, "list affiliations")
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.AffiliationRecord, error) {
		var (
			rec                                  core.AffiliationRecord
			uid, role, analyst, comment          pgtype.Text
			extName, extCat, extWallet, extLabel pgtype.Text
			added                                pgtype.Timestamptz
		)
		err := row.Scan(&rec.ID, &rec.FolderID, &rec.Network, &rec.Address, &uid, &role, &rec.Source,
			&analyst, &comment, &extName, &extCat, &extWallet, &extLabel, &rec.IsHidden, &added)
		rec.EntityUID, rec.Role, rec.Analyst, rec.Comment = uid.String, role.String, analyst.String, comment.String
		rec.ExtName, rec.ExtCategory, rec.ExtWalletName, rec.ExtLabel = extName.String, extCat.String, extWallet.String, extLabel.String
		rec.AddedAt = added.Time.UTC()
		return rec, err
	})
	return recs, errors.Wrap(err, "scan affiliations")
}

func (s *Store) ListIncidents(ctx context.Context, fileID int64) ([]core.IncidentRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, file_id, network_code, address, entity_uid, incident_type_code, incident_date, source,
       wallet_role, analyst, tx_hashes, added_at
FROM incidents
WHERE $1::bigint = 0 OR file_id = $1
ORDER BY id`, fileID)
	if err != nil {
		return nil, errors.Wrap(err, "list incidents")
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.IncidentRecord, error) {
		var (
			rec                              core.IncidentRecord
			uid, walletRole, analyst, hashes pgtype.Text
			date                             pgtype.Date
			added                            pgtype.Timestamptz
		)
		err := row.Scan(&rec.ID, &rec.FileID, &rec.Network, &rec.Address, &uid, &rec.IncidentType, &date,
			&rec.Source, &walletRole, &analyst, &hashes, &added)
		rec.EntityUID, rec.WalletRole, rec.Analyst, rec.TxHashes = uid.String, walletRole.String, analyst.String, hashes.String
		rec.IncidentDate = date.Time
		rec.AddedAt = added.Time.UTC()
		return rec, err
	})
	return recs, errors.Wrap(err, "scan incidents")
}

// ----------------------------------------------------------------------------
// Management
// ----------------------------------------------------------------------------

func (s *Store) ListDictionary(ctx context.Context, dict core.Dictionary) ([]core.DictionaryEntry, error) {
	table, err := dictTable(dict)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, "SELECT code, title FROM "+table+" ORDER BY code")
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", table)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[core.DictionaryEntry])
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", table)
	}
	if entries == nil {
		entries = []core.DictionaryEntry{}
	}
	return entries, nil
}

// SeedDictionaries inserts missing codes in one batch. Existing titles are
// left alone.
func (s *Store) SeedDictionaries(ctx context.Context, entries map[core.Dictionary][]core.DictionaryEntry) error {
	batch := &pgx.Batch{}
	for _, dict := range core.Dictionaries {
		list, ok := entries[dict]
		if !ok {
			continue
		}
		table, err := dictTable(dict)
		if err != nil {
			return err
		}
		for _, e := range list {
			code := strings.TrimSpace(e.Code)
			if code == "" {
				continue
			}
			title := e.Title
			if title == "" {
				title = code
			}
			batch.Queue("INSERT INTO "+table+" (code, title) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING", code, title)
		}
	}
	if batch.Len() == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "seed dictionaries")
	}
	return errors.Wrap(tx.Commit(ctx), "commit")
}

func (s *Store) CreateEntityFile(ctx context.Context, name, description string) (int64, error) {
	return s.insertID(ctx, "create entity file",
		"INSERT INTO entity_files (file_name, description) VALUES ($1, $2) RETURNING id", name, pgText(description))
}

func (s *Store) CreateFolder(ctx context.Context, name, network string) (int64, error) {
	return s.insertID(ctx, "create folder",
		"INSERT INTO affiliation_folders (folder_name, network_code) VALUES ($1, $2) RETURNING id", name, pgText(network))
}

func (s *Store) CreateIncidentFile(ctx context.Context, name, month string) (int64, error) {
	return s.insertID(ctx, "create incident file",
		"INSERT INTO incident_files (file_name, month) VALUES ($1, $2) RETURNING id", name, pgText(month))
}

func (s *Store) insertID(ctx context.Context, op, query string, args ...any) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, op)
	}
	return id, nil
}
