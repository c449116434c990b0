package core

import (
	"context"
)

func init() {
	Register(KindDefinition{
		Kind:  KindEntities,
		Label: "Entities",
		Columns: []string{
			"entity_uid", "entity_name", "entity_type", "parent_entity", "entity_description",
			"entity_country", "flags", "categories", "comment",
		},
		ContainerParam: "file_id",
		process:        processEntity,
	})
	Register(KindDefinition{
		Kind:  KindAffiliations,
		Label: "Affiliations",
		Columns: []string{
			"network", "address", "entity_uid", "address_role", "source", "analyst", "added_at",
			"comment", "ext_name", "ext_category", "ext_wallet_name", "ext_label", "is_hidden",
		},
		ContainerParam:    "folder_id",
		ContainerRequired: true,
		process:           processAffiliation,
	})
	Register(KindDefinition{
		Kind:  KindIncidents,
		Label: "Incidents",
		Columns: []string{
			"network", "address", "entity_uid", "incident_type", "incident_date", "source",
			"wallet_role", "added_at", "analyst", "tx_hashes",
		},
		ContainerParam:    "file_id",
		ContainerRequired: true,
		process:           processIncident,
	})
}

// Entity rows are upserts. A validated identifier joins the known set in
// both modes so later rows may name it as their parent.
func processEntity(ctx context.Context, run *importRun, row Row) {
	rec, err := validateEntity(row, run.snap, run.known, run.req.FileID)
	if err != nil {
		run.out.fail(row.Number, err)
		return
	}
	if err := run.sink.UpsertEntity(ctx, rec); err != nil {
		run.out.fail(row.Number, writeFailure(err))
		return
	}
	run.known.add(rec.UID)
	run.out.ok()
}

// Affiliation rows are appended.
func processAffiliation(ctx context.Context, run *importRun, row Row) {
	rec, err := validateAffiliation(row, run.snap)
	if err != nil {
		run.out.fail(row.Number, err)
		return
	}
	res, err := run.resolver.resolve(ctx, rec.EntityUID)
	if err != nil {
		run.out.fail(row.Number, err)
		return
	}
	if res.skip {
		run.out.skip()
		return
	}
	rec.EntityUID = res.uid
	rec.FolderID = run.req.FolderID
	if err := run.sink.InsertAffiliation(ctx, rec); err != nil {
		run.out.fail(row.Number, writeFailure(err))
		return
	}
	run.out.ok()
}

// Incident rows are appended.
func processIncident(ctx context.Context, run *importRun, row Row) {
	rec, err := validateIncident(row, run.snap)
	if err != nil {
		run.out.fail(row.Number, err)
		return
	}
	res, err := run.resolver.resolve(ctx, rec.EntityUID)
	if err != nil {
		run.out.fail(row.Number, err)
		return
	}
	if res.skip {
		run.out.skip()
		return
	}
	rec.EntityUID = res.uid
	rec.FileID = run.req.FileID
	if err := run.sink.InsertIncident(ctx, rec); err != nil {
		run.out.fail(row.Number, writeFailure(err))
		return
	}
	run.out.ok()
}
