package sqlite

import (
	"context"
	"database/sql"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

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
	return queryColumn[string](ctx, s.db, "SELECT code FROM "+table+" ORDER BY code")
}

func (s *Store) EntityUIDs(ctx context.Context) ([]string, error) {
	return queryColumn[string](ctx, s.db, "SELECT entity_uid FROM entities")
}

func (s *Store) EntityFileIDs(ctx context.Context) ([]int64, error) {
	return queryColumn[int64](ctx, s.db, "SELECT id FROM entity_files")
}

func queryColumn[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var v T
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		out = append(out, v)
	}
	return out, errors.Wrap(rows.Err(), "rows")
}

func (s *Store) ContainerExists(ctx context.Context, kind core.RecordKind, id int64) (bool, error) {
	table, err := containerTable(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = ?)", id).Scan(&exists)
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
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback() // no-op after commit

	_, err = tx.ExecContext(ctx, upsertEntitySQL,
		rec.UID, rec.Name, rec.TypeCode, nullable(rec.ParentUID),
		nullable(rec.Description), nullable(rec.Country), nullable(rec.Comment), formatTime(s.now()))
	if err != nil {
		return errors.Wrap(err, "upsert entity")
	}

	if rec.FileID != 0 {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO entity_file_map (file_id, entity_uid) VALUES (?, ?) ON CONFLICT DO NOTHING",
			rec.FileID, rec.UID)
		if err != nil {
			return errors.Wrap(err, "link entity file")
		}
	}
	for _, f := range rec.Flags {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO entity_flags (entity_uid, flag_code, source) VALUES (?, ?, 'manual') ON CONFLICT DO NOTHING",
			rec.UID, f)
		if err != nil {
			return errors.Wrapf(err, "add flag %s", f)
		}
	}
	for _, c := range rec.Categories {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO entity_category_map (entity_uid, category_code) VALUES (?, ?) ON CONFLICT DO NOTHING",
			rec.UID, c)
		if err != nil {
			return errors.Wrapf(err, "add category %s", c)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (s *Store) EnsureEntity(ctx context.Context, uid, name, typeCode string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO entities (entity_uid, entity_name, entity_type_code) VALUES (?, ?, ?) ON CONFLICT (entity_uid) DO NOTHING",
		uid, name, typeCode)
	return errors.Wrap(err, "ensure entity")
}

func (s *Store) InsertAffiliation(ctx context.Context, rec core.AffiliationRecord) error {
	added := rec.AddedAt
	if added.IsZero() {
		added = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO affiliations (folder_id, network_code, address, entity_uid, address_role_code, source,
                          analyst, comment, ext_name, ext_category, ext_wallet_name, ext_label,
                          is_hidden, added_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FolderID, rec.Network, rec.Address, nullable(rec.EntityUID), nullable(rec.Role), rec.Source,
		nullable(rec.Analyst), nullable(rec.Comment), nullable(rec.ExtName), nullable(rec.ExtCategory),
		nullable(rec.ExtWalletName), nullable(rec.ExtLabel), rec.IsHidden, formatTime(added))
	return errors.Wrap(err, "insert affiliation")
}

func (s *Store) InsertIncident(ctx context.Context, rec core.IncidentRecord) error {
	added := rec.AddedAt
	if added.IsZero() {
		added = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO incidents (file_id, network_code, address, entity_uid, incident_type_code, incident_date,
                       source, wallet_role, analyst, tx_hashes, added_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FileID, rec.Network, rec.Address, nullable(rec.EntityUID), rec.IncidentType,
		core.FormatDate(rec.IncidentDate), rec.Source, nullable(rec.WalletRole), nullable(rec.Analyst),
		nullable(rec.TxHashes), formatTime(added))
	return errors.Wrap(err, "insert incident")
}

func (s *Store) RecordRun(ctx context.Context, run core.ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO import_runs (id, kind, container_id, ok_count, error_count, skipped, unknown_uids,
                         outcome, client_ip, user_agent, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), string(run.Kind), nullableID(run.ContainerID), run.OK, run.Errors, run.Skipped,
		run.Unknown, run.Outcome, nullable(run.ClientIP), nullable(run.UserAgent),
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	return errors.Wrap(err, "record import run")
}

// ----------------------------------------------------------------------------
// Exports
// ----------------------------------------------------------------------------

// ListEntities returns entities with their flags and categories. Link rows
// are loaded in bulk and merged, since the connection may not be shared
// while a result set is open.
func (s *Store) ListEntities(ctx context.Context, fileID int64) ([]core.EntityRecord, error) {
	const inFile = "(? = 0 OR entity_uid IN (SELECT entity_uid FROM entity_file_map WHERE file_id = ?))"

	rows, err := s.db.QueryContext(ctx, `
SELECT entity_uid, entity_name, entity_type_code, parent_entity_uid, entity_description,
       entity_country, comment
FROM entities
WHERE `+inFile+`
ORDER BY entity_uid`, fileID, fileID)
	if err != nil {
		return nil, errors.Wrap(err, "list entities")
	}

	var recs []core.EntityRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			rec                                   core.EntityRecord
			parent, description, country, comment sql.NullString
		)
		if err := rows.Scan(&rec.UID, &rec.Name, &rec.TypeCode, &parent, &description, &country, &comment); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan entity")
		}
		rec.ParentUID, rec.Description, rec.Country, rec.Comment = parent.String, description.String, country.String, comment.String
		rec.FileID = fileID
		index[rec.UID] = len(recs)
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list entities")
	}

	flags, err := s.links(ctx, "SELECT entity_uid, flag_code FROM entity_flags WHERE "+inFile+" ORDER BY entity_uid, flag_code", fileID)
	if err != nil {
		return nil, errors.Wrap(err, "list entity flags")
	}
	for _, l := range flags {
		if i, ok := index[l[0]]; ok && !slices.Contains(recs[i].Flags, l[1]) {
			recs[i].Flags = append(recs[i].Flags, l[1])
		}
	}

	cats, err := s.links(ctx, "SELECT entity_uid, category_code FROM entity_category_map WHERE "+inFile+" ORDER BY entity_uid, category_code", fileID)
	if err != nil {
		return nil, errors.Wrap(err, "list entity categories")
	}
	for _, l := range cats {
		if i, ok := index[l[0]]; ok {
			recs[i].Categories = append(recs[i].Categories, l[1])
		}
	}
	return recs, nil
}

func (s *Store) links(ctx context.Context, query string, fileID int64) ([][2]string, error) {
	rows, err := s.db.QueryContext(ctx, query, fileID, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var l [2]string
		if err := rows.Scan(&l[0], &l[1]); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListAffiliations(ctx context.Context, folderID int64) ([]core.AffiliationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, folder_id, network_code, address, entity_uid, address_role_code, source, analyst, comment,
       ext_name, ext_category, ext_wallet_name, ext_label, is_hidden, added_at
FROM affiliations
WHERE (? = 0 OR folder_id = ?)
ORDER BY id`, folderID, folderID)
	if err != nil {
		return nil, errors.Wrap(err, "list affiliations")
	}
	defer rows.Close()

	var recs []core.AffiliationRecord
	for rows.Next() {
		var (
			rec                                  core.AffiliationRecord
			uid, role, analyst, comment          sql.NullString
			extName, extCat, extWallet, extLabel sql.NullString
			added                                string
		)
		err := rows.Scan(&rec.ID, &rec.FolderID, &rec.Network, &rec.Address, &uid, &role, &rec.Source,
			&analyst, &comment, &extName, &extCat, &extWallet, &extLabel, &rec.IsHidden, &added)
		if err != nil {
			return nil, errors.Wrap(err, "scan affiliation")
		}
		rec.EntityUID, rec.Role, rec.Analyst, rec.Comment = uid.String, role.String, analyst.String, comment.String
		rec.ExtName, rec.ExtCategory, rec.ExtWalletName, rec.ExtLabel = extName.String, extCat.String, extWallet.String, extLabel.String
		if rec.AddedAt, err = parseTime(added); err != nil {
			return nil, errors.Wrapf(err, "affiliation %d", rec.ID)
		}
		recs = append(recs, rec)
	}
	return recs, errors.Wrap(rows.Err(), "list affiliations")
}

func (s *Store) ListIncidents(ctx context.Context, fileID int64) ([]core.IncidentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, file_id, network_code, address, entity_uid, incident_type_code, incident_date, source,
       wallet_role, analyst, tx_hashes, added_at
FROM incidents
WHERE (? = 0 OR file_id = ?)
ORDER BY id`, fileID, fileID)
	if err != nil {
		return nil, errors.Wrap(err, "list incidents")
	}
	defer rows.Close()

	var recs []core.IncidentRecord
	for rows.Next() {
		var (
			rec                              core.IncidentRecord
			uid, walletRole, analyst, hashes sql.NullString
			date, added                      string
		)
		err := rows.Scan(&rec.ID, &rec.FileID, &rec.Network, &rec.Address, &uid, &rec.IncidentType, &date,
			&rec.Source, &walletRole, &analyst, &hashes, &added)
		if err != nil {
			return nil, errors.Wrap(err, "scan incident")
		}
		rec.EntityUID, rec.WalletRole, rec.Analyst, rec.TxHashes = uid.String, walletRole.String, analyst.String, hashes.String
		var ok bool
		if rec.IncidentDate, ok = core.ParseDate(date); !ok {
			return nil, errors.Newf("incident %d: invalid stored incident_date %q", rec.ID, date)
		}
		if rec.AddedAt, err = parseTime(added); err != nil {
			return nil, errors.Wrapf(err, "incident %d", rec.ID)
		}
		recs = append(recs, rec)
	}
	return recs, errors.Wrap(rows.Err(), "list incidents")
}

// ----------------------------------------------------------------------------
// Management
// ----------------------------------------------------------------------------

func (s *Store) ListDictionary(ctx context.Context, dict core.Dictionary) ([]core.DictionaryEntry, error) {
	table, err := dictTable(dict)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT code, title FROM "+table+" ORDER BY code")
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", table)
	}
	defer rows.Close()

	entries := []core.DictionaryEntry{}
	for rows.Next() {
		var e core.DictionaryEntry
		if err := rows.Scan(&e.Code, &e.Title); err != nil {
			return nil, errors.Wrapf(err, "scan %s", table)
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrapf(rows.Err(), "list %s", table)
}

// SeedDictionaries inserts missing codes. Existing titles are left alone.
func (s *Store) SeedDictionaries(ctx context.Context, entries map[core.Dictionary][]core.DictionaryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback() // no-op after commit

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
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO "+table+" (code, title) VALUES (?, ?) ON CONFLICT (code) DO NOTHING", code, title); err != nil {
				return errors.Wrapf(err, "seed %s", table)
			}
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (s *Store) CreateEntityFile(ctx context.Context, name, description string) (int64, error) {
	return s.insertID(ctx, "create entity file",
		"INSERT INTO entity_files (file_name, description) VALUES (?, ?)", name, nullable(description))
}

func (s *Store) CreateFolder(ctx context.Context, name, network string) (int64, error) {
	return s.insertID(ctx, "create folder",
		"INSERT INTO affiliation_folders (folder_name, network_code) VALUES (?, ?)", name, nullable(network))
}

func (s *Store) CreateIncidentFile(ctx context.Context, name, month string) (int64, error) {
	return s.insertID(ctx, "create incident file",
		"INSERT INTO incident_files (file_name, month) VALUES (?, ?)", name, nullable(month))
}

func (s *Store) insertID(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return id, nil
}
