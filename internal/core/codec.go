package core

// codec.go turns uploaded file bytes into rows keyed by header text.
//
// Two codecs are provided:
//   - CSVCodec: comma, semicolon or tab separated text, sniffed from the header
//   - XLSXCodec: Office Open XML workbooks via excelize, first worksheet only
//
// Codecs only decode. Mapping columns to record fields is the importer's job.

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedFormat is returned when no codec accepts a file.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// zipMagic starts every XLSX/XLSM workbook.
var zipMagic = []byte("PK\x03\x04")

// oleMagic starts legacy binary .xls workbooks.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Codec decodes one spreadsheet format.
type Codec interface {
	// Name identifies the codec in logs and errors.
	Name() string
	// Match reports whether the codec can decode the file.
	Match(name string, data []byte) bool
	// Decode returns the first worksheet. A file without a readable sheet
	// yields an empty Sheet, not an error.
	Decode(ctx context.Context, name string, data []byte) (*Sheet, error)
}

// DefaultCodecs returns the XLSX codec followed by the CSV codec.
func DefaultCodecs() []Codec {
	return []Codec{XLSXCodec{}, CSVCodec{Legacy: charmap.Windows1252}}
}

// DetectCodec returns the first codec matching the file.
func DetectCodec(codecs []Codec, name string, data []byte) (Codec, error) {
	if bytes.HasPrefix(data, oleMagic) {
		return nil, fmt.Errorf("%w: legacy binary .xls, save as .xlsx or .csv", ErrUnsupportedFormat)
	}
	for _, c := range codecs {
		if c.Match(name, data) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
}

// ============================================================================
// CSV
// ============================================================================

// CSVCodec decodes delimited text files.
type CSVCodec struct {
	// Legacy is the charset assumed for input that is not valid UTF-8.
	// Nil replaces invalid bytes instead.
	Legacy encoding.Encoding
}

// Name implements Codec.
func (CSVCodec) Name() string { return "csv" }

// Match implements Codec. Anything that is not a ZIP container with a
// spreadsheet extension is treated as text.
func (CSVCodec) Match(name string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return false
	}
	return !bytes.HasPrefix(data, zipMagic)
}

// Decode implements Codec.
func (c CSVCodec) Decode(ctx context.Context, name string, data []byte) (*Sheet, error) {
	sheet := &Sheet{Name: strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))}

	r := csv.NewReader(WrapForDecoding(data, c.Legacy))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return sheet, nil
	}

	sheet.Header = cleanHeader(records[0])
	for i, rec := range records[1:] {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isEmptyRow(rec) {
			continue
		}
		row := make(Row, len(sheet.Header))
		for col, raw := range rec {
			if col >= len(sheet.Header) || sheet.Header[col] == "" {
				continue
			}
			if _, dup := row[sheet.Header[col]]; dup {
				continue
			}
			if v := CleanCell(raw); v != "" {
				row[sheet.Header[col]] = StringCell(v)
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// sniffDelimiter picks the separator occurring most often in the header line.
// German Excel writes semicolons; everything else writes commas.
func sniffDelimiter(data []byte) rune {
	line := bytes.TrimPrefix(data, utf8BOM)
	if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	best, bestCount := ',', 0
	inQuotes := false
	counts := map[rune]int{}
	for _, b := range line {
		switch {
		case b == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case b == ',' || b == ';' || b == '\t':
			counts[rune(b)]++
		}
	}
	for _, d := range []rune{',', ';', '\t'} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// cleanHeader trims header cells. Later duplicates of a header name are
// blanked so the first column wins.
func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = CleanCell(h)
		if seen[h] {
			continue
		}
		seen[h] = true
		out[i] = h
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ============================================================================
// XLSX
// ============================================================================

// XLSXCodec decodes Office Open XML workbooks.
type XLSXCodec struct{}

// Name implements Codec.
func (XLSXCodec) Name() string { return "xlsx" }

// Match implements Codec.
func (XLSXCodec) Match(name string, data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// Decode implements Codec. Numeric cells become native numbers unless they
// carry a date format, in which case the displayed text is kept.
func (XLSXCodec) Decode(ctx context.Context, name string, data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Sheet{}, nil
	}
	sheetName := sheets[0]
	sheet := &Sheet{Name: sheetName}

	shown, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	raw, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	if len(shown) == 0 {
		return sheet, nil
	}

	sheet.Header = cleanHeader(shown[0])
	dates := dateStyleCache{file: f, known: map[int]bool{}}

	for r := 1; r < len(shown); r++ {
		if r%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isEmptyRow(shown[r]) {
			continue
		}
		row := make(Row, len(sheet.Header))
		for col, text := range shown[r] {
			if col >= len(sheet.Header) || sheet.Header[col] == "" {
				continue
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			var rawText string
			if r < len(raw) && col < len(raw[r]) {
				rawText = raw[r][col]
			}
			cellName, err := excelize.CoordinatesToCellName(col+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			row[sheet.Header[col]] = typedCell(f, sheetName, cellName, text, rawText, &dates)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// typedCell decides the CellValue for one workbook cell.
func typedCell(f *excelize.File, sheet, cell, shown, raw string, dates *dateStyleCache) CellValue {
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return StringCell(shown)
	}
	switch typ {
	case excelize.CellTypeBool:
		return BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return StringCell(shown)
		}
		if dates.isDate(sheet, cell) {
			return StringCell(shown)
		}
		return NumberCell(n)
	default:
		return StringCell(shown)
	}
}

// dateStyleCache memoizes whether a style id formats numbers as dates.
type dateStyleCache struct {
	file  *excelize.File
	known map[int]bool
}

func (c *dateStyleCache) isDate(sheet, cell string) bool {
	styleID, err := c.file.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return false
	}
	if v, ok := c.known[styleID]; ok {
		return v
	}
	isDate := false
	if style, err := c.file.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	}
	c.known[styleID] = isDate
	return isDate
}

// isDateNumFmt reports whether a number format renders dates or times.
// Built-in ids follow ECMA-376 18.8.30; custom formats are checked for
// day or year tokens outside quoted literals.
func isDateNumFmt(id int, custom *string) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	if custom == nil {
		return false
	}
	inQuotes := false
	for _, ch := range strings.ToLower(*custom) {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case ch == 'd', ch == 'y':
			return true
		}
	}
	return false
}
