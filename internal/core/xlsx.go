package core

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first worksheet of an Excel workbook. Cells are taken
// as displayed, so dates formatted in the sheet arrive as their text.
func ParseXLSX(data []byte) (*Records, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, requestError(errors.WithHint(
			errors.Wrap(err, "invalid xlsx"),
			"Save the workbook as .xlsx or export it as CSV"))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, requestError(errors.Wrap(err, "invalid xlsx"))
	}
	return buildRecords(raw, true)
}

// WriteTemplateXLSX writes a workbook whose first row is the header of kind.
func WriteTemplateXLSX(w io.Writer, kind RecordKind) error {
	def, ok := Lookup(kind)
	if !ok {
		return ErrUnknownKind
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := def.Label
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "name sheet")
	}
	header := make([]any, len(def.Columns))
	for i, c := range def.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}
