package core

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/entityregistry/internal/logging"
)

// SentinelUID is the entity that stands in for references the caller chose
// not to resolve.
const SentinelUID = "UNKNOWN"

const fallbackEntityType = "organization"

// resolution is the outcome for one reference: the identifier to persist,
// or skip when the row must not be written.
type resolution struct {
	uid  string
	skip bool
}

// resolver handles references to entity identifiers missing from the known
// set. It lives for one import call.
type resolver struct {
	kind     RecordKind
	dryRun   bool
	policies map[string]Policy
	snap     *Snapshot
	known    *knownSet
	sink     CommitSink
	report   func(uid string)
}

// resolve returns how a row referencing uid proceeds. An empty uid and a
// known uid pass through unchanged. In a dry run an unknown uid is only
// reported.
func (r *resolver) resolve(ctx context.Context, uid string) (resolution, error) {
	if uid == "" || r.known.has(uid) {
		return resolution{uid: uid}, nil
	}
	r.report(uid)
	if r.dryRun {
		return resolution{uid: uid}, nil
	}

	p, ok := r.policies[uid]
	if !ok {
		return resolution{}, errors.Newf("unknown entity_uid: %s", uid)
	}
	return p.resolve(ctx, r, uid)
}

func (r *resolver) ensurePlaceholder(ctx context.Context, uid, typeCode string) error {
	if typeCode == "" || !r.snap.Has(DictEntityTypes, typeCode) {
		typeCode = fallbackEntityType
	}
	if !r.snap.Has(DictEntityTypes, typeCode) {
		return errors.Newf("unknown entity_type: %s", typeCode)
	}
	if err := r.sink.EnsureEntity(ctx, uid, uid, typeCode); err != nil {
		return errors.Newf("placeholder %s: %s", uid, FormatUserError(err))
	}
	r.known.add(uid)
	recordPlaceholder("create")
	logging.FromContext(ctx).Debug("placeholder entity ensured", "entity_uid", uid, "entity_type", typeCode, "kind", r.kind)
	return nil
}

// ensureSentinel creates UNKNOWN at most once per call.
func (r *resolver) ensureSentinel(ctx context.Context) error {
	if r.known.has(SentinelUID) {
		return nil
	}
	typeCode, ok := r.snap.defaultEntityType()
	if !ok {
		return errors.New("no entity_type available")
	}
	if err := r.sink.EnsureEntity(ctx, SentinelUID, SentinelUID, typeCode); err != nil {
		return errors.Newf("placeholder %s: %s", SentinelUID, FormatUserError(err))
	}
	r.known.add(SentinelUID)
	recordPlaceholder("unknown")
	logging.FromContext(ctx).Debug("sentinel entity ensured", "entity_type", typeCode, "kind", r.kind)
	return nil
}
