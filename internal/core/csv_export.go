package core

// csv_export.go writes CSV produced from import results and stored records.
//
// Fields are comma-joined and quoted only when they contain a comma, a
// double quote or a newline; quotes inside a quoted field are doubled.
// Lines end with "\n".

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// WriteCSV writes header and rows.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	writeLine := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(csvField(f))
		}
	}

	writeLine(header)
	for _, row := range rows {
		bw.WriteByte('\n')
		writeLine(row)
	}
	return bw.Flush()
}

// WriteErrorsCSV writes the per-row errors of res as a row,error report.
func WriteErrorsCSV(w io.Writer, res *ImportResult) error {
	rows := make([][]string, len(res.Errors))
	for i, e := range res.Errors {
		rows[i] = []string{strconv.Itoa(e.Row), e.Error}
	}
	return WriteCSV(w, []string{"row", "error"}, rows)
}

// WriteTemplateCSV writes the header line of kind.
func WriteTemplateCSV(w io.Writer, kind RecordKind) error {
	def, ok := Lookup(kind)
	if !ok {
		return ErrUnknownKind
	}
	return WriteCSV(w, def.Columns, nil)
}

// Export writes the stored records of kind in the import layout, so the
// output can be imported again. containerID narrows the export to one file
// or folder; zero exports everything.
func Export(ctx context.Context, reader RecordReader, kind RecordKind, containerID int64, w io.Writer) error {
	def, ok := Lookup(kind)
	if !ok {
		return ErrUnknownKind
	}

	var rows [][]string
	switch kind {
	case KindEntities:
		recs, err := reader.ListEntities(ctx, containerID)
		if err != nil {
			return errors.Wrap(err, "list entities")
		}
		rows = EntityRows(recs)
	case KindAffiliations:
		recs, err := reader.ListAffiliations(ctx, containerID)
		if err != nil {
			return errors.Wrap(err, "list affiliations")
		}
		rows = AffiliationRows(recs)
	case KindIncidents:
		recs, err := reader.ListIncidents(ctx, containerID)
		if err != nil {
			return errors.Wrap(err, "list incidents")
		}
		rows = IncidentRows(recs)
	}
	return WriteCSV(w, def.Columns, rows)
}

// EntityRows lays entities out in the entities column order.
func EntityRows(recs []EntityRecord) [][]string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			r.UID, r.Name, r.TypeCode, r.ParentUID, r.Description,
			r.Country, strings.Join(r.Flags, "|"), strings.Join(r.Categories, "|"), r.Comment,
		}
	}
	return rows
}

// AffiliationRows lays affiliations out in the affiliations column order.
func AffiliationRows(recs []AffiliationRecord) [][]string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			r.Network, r.Address, r.EntityUID, r.Role, r.Source, r.Analyst, FormatDate(r.AddedAt),
			r.Comment, r.ExtName, r.ExtCategory, r.ExtWalletName, r.ExtLabel, strconv.FormatBool(r.IsHidden),
		}
	}
	return rows
}

// IncidentRows lays incidents out in the incidents column order.
func IncidentRows(recs []IncidentRecord) [][]string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			r.Network, r.Address, r.EntityUID, r.IncidentType, FormatDate(r.IncidentDate), r.Source,
			r.WalletRole, FormatDate(r.AddedAt), r.Analyst, r.TxHashes,
		}
	}
	return rows
}
