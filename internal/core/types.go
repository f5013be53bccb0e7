// Package core provides the business logic for address spreadsheet imports.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"regexp"
	"strconv"
	"strings"
)

// CellKind identifies which member of a CellValue is set.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellBool
)

// CellValue is a single decoded spreadsheet cell.
// Codecs produce strings for text cells and native numbers/booleans where
// the source format carries them (XLSX).
type CellValue struct {
	Kind CellKind
	Str  string
	Num  float64
	Bool bool
}

// EmptyCell returns a cell with no value.
func EmptyCell() CellValue { return CellValue{} }

// StringCell wraps a text value.
func StringCell(s string) CellValue { return CellValue{Kind: CellString, Str: s} }

// NumberCell wraps a native numeric value.
func NumberCell(f float64) CellValue { return CellValue{Kind: CellNumber, Num: f} }

// BoolCell wraps a native boolean value.
func BoolCell(b bool) CellValue { return CellValue{Kind: CellBool, Bool: b} }

// Text renders the cell as text. Numbers use the shortest representation
// that round-trips, booleans render as "true"/"false".
func (v CellValue) Text() string {
	switch v.Kind {
	case CellString:
		return v.Str
	case CellNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case CellBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// IsBlank reports whether the cell is empty or whitespace-only text.
func (v CellValue) IsBlank() bool {
	switch v.Kind {
	case CellEmpty:
		return true
	case CellString:
		return strings.TrimSpace(v.Str) == ""
	default:
		return false
	}
}

// Row maps header text to the cell in that column.
type Row map[string]CellValue

// Sheet is the decoded content of the first worksheet of a file.
type Sheet struct {
	Name   string
	Header []string
	Rows   []Row
}

// SourceFile is one uploaded spreadsheet.
type SourceFile struct {
	Name string
	Data []byte
}

// Record is one normalized address entity.
type Record struct {
	ID                int64   `json:"id"`
	Address           string  `json:"address"`
	AddressCode       string  `json:"addressCode"`
	Region            string  `json:"region"`
	ANO               string  `json:"ano"`
	Status            string  `json:"status"`
	Homes             int     `json:"homes"`
	ContractStatus    int     `json:"contractStatus"`
	Price             float64 `json:"price"`
	ProvisionCategory string  `json:"provisionCategory"`
	BuildingCompany   string  `json:"buildingCompany"`
	KGNumber          string  `json:"kgNumber"`
	CompletionPlanned string  `json:"completionPlanned"`
	CompletionDone    bool    `json:"completionDone"`
	D2DStart          string  `json:"d2dStart"`
	D2DEnd            string  `json:"d2dEnd"`
	OutdoorFee        string  `json:"outdoorFee"`
	Notes             string  `json:"notes"`
	Imported          bool    `json:"imported"`
}

// UnknownGroup is the grouping key for records with neither a region nor a
// postal code in their address.
const UnknownGroup = "Unbekannt"

var postalCodeRegex = regexp.MustCompile(`\b\d{4,5}\b`)

// HasContract reports whether a contract or offer exists for the address.
func (r Record) HasContract() bool {
	return r.ContractStatus > 0
}

// GroupKey returns the display bucket: the region, else the first postal
// code found in the address text.
func (r Record) GroupKey() string {
	if region := strings.TrimSpace(r.Region); region != "" {
		return region
	}
	if plz := postalCodeRegex.FindString(r.Address); plz != "" {
		return plz
	}
	return UnknownGroup
}

// RecordPatch holds the user-editable fields. Nil fields are left unchanged.
type RecordPatch struct {
	Notes          *string `json:"notes,omitempty"`
	CompletionDone *bool   `json:"completionDone,omitempty"`
}

// FieldType represents the value type of a record field for filtering.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldBool
)

// FilterOperator represents a comparison operator for column filters.
type FilterOperator string

const (
	OpContains   FilterOperator = "contains"
	OpEquals     FilterOperator = "eq"
	OpStartsWith FilterOperator = "starts"
	OpEndsWith   FilterOperator = "ends"
	OpGreaterEq  FilterOperator = "gte"
	OpLessEq     FilterOperator = "lte"
	OpGreater    FilterOperator = "gt"
	OpLess       FilterOperator = "lt"
	OpIn         FilterOperator = "in"
)

// ColumnFilter represents a single filter condition on a record field.
type ColumnFilter struct {
	Column   string         // Record field name (JSON name, e.g. "homes")
	Operator FilterOperator // Comparison operator
	Value    string         // Filter value (comma-separated for OpIn)
}

// FilterSet represents all active filters (combined with AND logic).
type FilterSet struct {
	Filters []ColumnFilter
}

// SortSpec represents a single sort column and direction.
type SortSpec struct {
	Column string `json:"column"` // Record field name
	Dir    string `json:"dir"`    // "asc" or "desc"
}
