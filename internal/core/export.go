package core

// export.go writes records back into the column layout the importer reads.
//
// The projection is shared by both formats; only the encoding differs.
// CSV output starts with a UTF-8 BOM so Excel shows umlauts correctly.
// XLSX output uses native numeric cells for homes, contract status and price.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ErrUnsupportedExportFormat is returned for formats other than csv and xlsx.
var ErrUnsupportedExportFormat = errors.New("unsupported export format")

// DefaultExportSheet is the worksheet name used for XLSX exports.
const DefaultExportSheet = "Adressen"

// ExportError reports a failure to encode or write an export.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s failed: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// ExportOptions configures an export. Zero values select defaults.
type ExportOptions struct {
	ChunkSize int
	Yielder   Yielder
	SheetName string
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Yielder == nil {
		o.Yielder = GoschedYielder
	}
	if o.SheetName == "" {
		o.SheetName = DefaultExportSheet
	}
	return o
}

// ExportColumns returns the export header: the primary alias of every field.
func ExportColumns() []string {
	a := DefaultAliases
	return []string{
		primary(a.Address),
		primary(a.AddressCode),
		primary(a.Region),
		primary(a.ANO),
		primary(a.Status),
		primary(a.Homes),
		primary(a.ContractStatus),
		primary(a.Price),
		primary(a.ProvisionCategory),
		primary(a.BuildingCompany),
		primary(a.KGNumber),
		primary(a.CompletionPlanned),
		primary(a.CompletionDone),
		primary(a.D2DStart),
		primary(a.D2DEnd),
		primary(a.OutdoorFee),
		primary(a.Notes),
	}
}

// ProjectRecord returns the cells of one export row, in ExportColumns order.
// Numeric columns are native values; everything else is a string.
func ProjectRecord(r Record) []any {
	return []any{
		r.Address,
		r.AddressCode,
		r.Region,
		r.ANO,
		r.Status,
		r.Homes,
		r.ContractStatus,
		r.Price,
		r.ProvisionCategory,
		r.BuildingCompany,
		r.KGNumber,
		r.CompletionPlanned,
		completionText(r.CompletionDone),
		r.D2DStart,
		r.D2DEnd,
		r.OutdoorFee,
		r.Notes,
	}
}

// ProjectRecordText is ProjectRecord rendered as CSV text.
func ProjectRecordText(r Record) []string {
	cells := ProjectRecord(r)
	out := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case string:
			out[i] = protectText(v)
		case int:
			out[i] = strconv.Itoa(v)
		case float64:
			out[i] = decimalText(v)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}

// decimalText formats v without exponent. A fraction of exactly three
// digits gets a trailing zero, otherwise the importer would read the dot
// as a thousands separator.
func decimalText(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 == 3 {
		s += "0"
	}
	return s
}

// protectText wraps text that CleanCell would alter in Excel's text formula,
// which CleanCell unwraps exactly once on import.
func protectText(s string) string {
	if CleanCell(s) == s {
		return s
	}
	return `="` + s + `"`
}

func completionText(done bool) string {
	if done {
		return "Yes"
	}
	return ""
}

// Export writes records in the given format.
func Export(ctx context.Context, w io.Writer, format string, records []Record, opts ExportOptions) error {
	switch format {
	case FormatCSV, "":
		return ExportCSV(ctx, w, records, opts)
	case FormatXLSX:
		return ExportXLSX(ctx, w, records, opts)
	default:
		return &ExportError{Format: format, Err: fmt.Errorf("%w %q", ErrUnsupportedExportFormat, format)}
	}
}

// ExportCSV writes a BOM-prefixed, comma-separated export.
func ExportCSV(ctx context.Context, w io.Writer, records []Record, opts ExportOptions) error {
	opts = opts.withDefaults()
	fail := func(err error) error { return &ExportError{Format: FormatCSV, Err: err} }

	if _, err := w.Write(utf8BOM); err != nil {
		return fail(err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns()); err != nil {
		return fail(err)
	}

	for start := 0; start < len(records); start += opts.ChunkSize {
		end := min(start+opts.ChunkSize, len(records))
		for _, r := range records[start:end] {
			if err := cw.Write(ProjectRecordText(r)); err != nil {
				return fail(err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fail(err)
		}
		if err := opts.Yielder.Yield(ctx); err != nil {
			return fail(err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fail(err)
	}
	return nil
}

// ExportXLSX writes a single-sheet workbook through the excelize stream writer.
func ExportXLSX(ctx context.Context, w io.Writer, records []Record, opts ExportOptions) error {
	opts = opts.withDefaults()
	fail := func(err error) error { return &ExportError{Format: FormatXLSX, Err: err} }

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", opts.SheetName); err != nil {
		return fail(err)
	}
	sw, err := f.NewStreamWriter(opts.SheetName)
	if err != nil {
		return fail(err)
	}

	columns := ExportColumns()
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fail(err)
	}

	for start := 0; start < len(records); start += opts.ChunkSize {
		end := min(start+opts.ChunkSize, len(records))
		for i := start; i < end; i++ {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return fail(err)
			}
			if err := sw.SetRow(cell, ProjectRecord(records[i])); err != nil {
				return fail(err)
			}
		}
		if err := opts.Yielder.Yield(ctx); err != nil {
			return fail(err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fail(err)
	}
	if err := f.Write(w); err != nil {
		return fail(err)
	}
	return nil
}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}
