package core

// RowError is a row-scoped failure. Row is the reported row number.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult is the outcome of one import call. Errors are in file
// order and UnknownUIDs in order of first appearance.
type ImportResult struct {
	OK          int        `json:"ok"`
	Errors      []RowError `json:"errors"`
	UnknownUIDs []string   `json:"unknownUids"`
	Skipped     int        `json:"skipped"`
}

// resultBuilder accumulates row outcomes for one call.
type resultBuilder struct {
	res  ImportResult
	seen map[string]struct{}
}

func newResultBuilder() *resultBuilder {
	return &resultBuilder{
		res: ImportResult{
			Errors:      []RowError{},
			UnknownUIDs: []string{},
		},
		seen: make(map[string]struct{}),
	}
}

func (b *resultBuilder) ok() { b.res.OK++ }

func (b *resultBuilder) skip() { b.res.Skipped++ }

func (b *resultBuilder) fail(row int, err error) {
	b.res.Errors = append(b.res.Errors, RowError{Row: row, Error: err.Error()})
}

func (b *resultBuilder) unknown(uid string) {
	if _, ok := b.seen[uid]; ok {
		return
	}
	b.seen[uid] = struct{}{}
	b.res.UnknownUIDs = append(b.res.UnknownUIDs, uid)
}

func (b *resultBuilder) result() *ImportResult {
	res := b.res
	return &res
}
