package core

import "context"

// discardSink accepts every write and persists nothing. Dry runs go through
// the same pipeline as commits with this sink plugged in.
type discardSink struct{}

func (discardSink) UpsertEntity(context.Context, EntityRecord) error           { return nil }
func (discardSink) EnsureEntity(context.Context, string, string, string) error { return nil }
func (discardSink) InsertAffiliation(context.Context, AffiliationRecord) error { return nil }
func (discardSink) InsertIncident(context.Context, IncidentRecord) error       { return nil }

func sinkFor(req ImportRequest, store CommitSink) CommitSink {
	if req.DryRun {
		return discardSink{}
	}
	return store
}
