package core

// importer.go runs one import call from request to result.
//
// A call moves through Initialized, Parsing, RowProcessing and then either
// Reported (dry run) or Committed. Request-level failures stop the call
// before any row is touched. Row-level failures are recorded and the next
// row continues. Rows are processed strictly in file order because a row
// may reference an entity created by an earlier row of the same file.

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/JonMunkholm/entityregistry/internal/logging"
)

// DefaultCheckEvery is how many rows run between context checks.
const DefaultCheckEvery = 200

const auditTimeout = 5 * time.Second

// Importer executes import requests against a store.
type Importer struct {
	store      ImportStore
	limiter    *ImportLimiter
	checkEvery int
	now        func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithLimiter bounds concurrent imports.
func WithLimiter(l *ImportLimiter) Option {
	return func(im *Importer) { im.limiter = l }
}

// WithCheckEvery sets how often the executor checks for cancellation.
func WithCheckEvery(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.checkEvery = n
		}
	}
}

// NewImporter creates an Importer backed by store.
func NewImporter(store ImportStore, opts ...Option) *Importer {
	im := &Importer{
		store:      store,
		checkEvery: DefaultCheckEvery,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Limiter returns the concurrency limiter, or nil when imports are unbounded.
func (im *Importer) Limiter() *ImportLimiter {
	return im.limiter
}

// importRun is the state owned by one call. Nothing in it outlives Import.
type importRun struct {
	req      ImportRequest
	snap     *Snapshot
	known    *knownSet
	resolver *resolver
	sink     CommitSink
	out      *resultBuilder
}

// Import validates every row of req and, unless req.DryRun is set, writes
// the valid ones. A returned error is request-level (see IsRequestError)
// or a store failure while loading the snapshot; row problems are reported
// in the result. When ctx ends mid-file, Import returns the counts of the
// rows processed so far together with the context error, and a commit is
// still audited since those rows are written.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	started := im.now()
	mode := req.mode()

	if im.limiter != nil {
		if err := im.limiter.Acquire(ctx); err != nil {
			recordRun(req.Kind, mode, "busy", started)
			return nil, err
		}
		defer im.limiter.Release()
	}

	def, err := im.precheck(ctx, req)
	if err != nil {
		recordRun(req.Kind, mode, "rejected", started)
		return nil, err
	}

	records, err := parseRequest(req)
	if err != nil {
		recordRun(req.Kind, mode, "rejected", started)
		return nil, err
	}

	snap, err := LoadSnapshot(ctx, im.store, req.Kind)
	if err != nil {
		recordRun(req.Kind, mode, "failed", started)
		return nil, errors.Wrap(err, "load dictionaries")
	}

	out := newResultBuilder()
	known := newKnownSet(snap)
	sink := sinkFor(req, im.store)
	run := &importRun{
		req:   req,
		snap:  snap,
		known: known,
		sink:  sink,
		out:   out,
		resolver: &resolver{
			kind:     req.Kind,
			dryRun:   req.DryRun,
			policies: req.Policies,
			snap:     snap,
			known:    known,
			sink:     sink,
			report:   out.unknown,
		},
	}

	var stopped error
	n := 0
	for row := range records.All() {
		if n%im.checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				stopped = errors.Wrapf(err, "import stopped before row %d", row.Number)
				break
			}
		}
		n++
		def.process(ctx, run, row)
	}

	res := out.result()
	outcome := "completed"
	if stopped != nil {
		outcome = "cancelled"
	}
	recordRun(req.Kind, mode, outcome, started)
	recordRows(req.Kind, mode, res)

	logging.WithFields(ctx, "kind", req.Kind, "mode", mode).Info("import finished",
		"outcome", outcome,
		"rows", records.Len(),
		"processed", n,
		"ok", res.OK,
		"errors", len(res.Errors),
		"skipped", res.Skipped,
		"unknown_uids", len(res.UnknownUIDs),
		"duration_ms", im.now().Sub(started).Milliseconds(),
	)

	if !req.DryRun {
		im.audit(ctx, req, res, outcome, started)
	}
	return res, stopped
}

// precheck runs the request-level checks that need no file contents.
func (im *Importer) precheck(ctx context.Context, req ImportRequest) (KindDefinition, error) {
	def, ok := Lookup(req.Kind)
	if !ok {
		return KindDefinition{}, ErrUnknownKind
	}

	id := req.ContainerID()
	if id == 0 {
		if !def.ContainerRequired {
			return def, nil
		}
		if req.Kind == KindAffiliations {
			return def, ErrFolderRequired
		}
		return def, ErrFileRequired
	}

	exists, err := im.store.ContainerExists(ctx, req.Kind, id)
	if err != nil {
		return def, errors.Wrap(err, "check container")
	}
	if !exists {
		return def, requestError(errors.WithHint(
			errors.Newf("%s %d not found", def.ContainerParam, id),
			"Create the container first or pick an existing one"))
	}
	return def, nil
}

func parseRequest(req ImportRequest) (*Records, error) {
	if req.Format == FormatXLSX {
		return ParseXLSX(req.Data)
	}
	return ParseCSV(req.Data)
}

// audit records a committed call. A failure here is logged and does not
// change the result, since the rows are already written. The write outlives
// cancellation of ctx so a stopped commit is still recorded.
func (im *Importer) audit(ctx context.Context, req ImportRequest, res *ImportResult, outcome string, started time.Time) {
	client := ClientFromContext(ctx)
	run := ImportRun{
		ID:          uuid.New(),
		Kind:        req.Kind,
		ContainerID: req.ContainerID(),
		OK:          res.OK,
		Errors:      len(res.Errors),
		Skipped:     res.Skipped,
		Unknown:     len(res.UnknownUIDs),
		Outcome:     outcome,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
		StartedAt:   started.UTC(),
		FinishedAt:  im.now().UTC(),
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := im.store.RecordRun(auditCtx, run); err != nil {
		logging.WithFields(ctx, "kind", req.Kind, "run_id", run.ID).Warn("failed to record import run", "error", err)
	}
}

// writeFailure turns a store error into a row message.
func writeFailure(err error) error {
	return errors.Newf("write failed: %s", FormatUserError(err))
}
