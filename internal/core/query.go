package core

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FieldSpec describes a record field that can be searched, filtered or sorted.
type FieldSpec struct {
	Name       string // JSON name, e.g. "homes"
	Type       FieldType
	Searchable bool
	text       func(Record) string
	number     func(Record) float64
}

// Text returns the field as text.
func (f FieldSpec) Text(r Record) string {
	if f.text != nil {
		return f.text(r)
	}
	return strconv.FormatFloat(f.number(r), 'f', -1, 64)
}

// Number returns the field as a number. Text fields return 0.
func (f FieldSpec) Number(r Record) float64 {
	if f.number != nil {
		return f.number(r)
	}
	return 0
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RecordFields lists the queryable fields in display order.
var RecordFields = []FieldSpec{
	{Name: "id", Type: FieldNumeric, number: func(r Record) float64 { return float64(r.ID) }},
	{Name: "address", Type: FieldText, Searchable: true, text: func(r Record) string { return r.Address }},
	{Name: "addressCode", Type: FieldText, Searchable: true, text: func(r Record) string { return r.AddressCode }},
	{Name: "region", Type: FieldText, Searchable: true, text: func(r Record) string { return r.Region }},
	{Name: "ano", Type: FieldText, Searchable: true, text: func(r Record) string { return r.ANO }},
	{Name: "status", Type: FieldText, Searchable: true, text: func(r Record) string { return r.Status }},
	{Name: "homes", Type: FieldNumeric, number: func(r Record) float64 { return float64(r.Homes) }},
	{Name: "contractStatus", Type: FieldNumeric, number: func(r Record) float64 { return float64(r.ContractStatus) }},
	{Name: "price", Type: FieldNumeric, number: func(r Record) float64 { return r.Price }},
	{Name: "provisionCategory", Type: FieldText, text: func(r Record) string { return r.ProvisionCategory }},
	{Name: "buildingCompany", Type: FieldText, Searchable: true, text: func(r Record) string { return r.BuildingCompany }},
	{Name: "kgNumber", Type: FieldText, text: func(r Record) string { return r.KGNumber }},
	{Name: "completionPlanned", Type: FieldText, text: func(r Record) string { return r.CompletionPlanned }},
	{Name: "completionDone", Type: FieldBool, number: func(r Record) float64 { return boolNumber(r.CompletionDone) }},
	{Name: "d2dStart", Type: FieldText, text: func(r Record) string { return r.D2DStart }},
	{Name: "d2dEnd", Type: FieldText, text: func(r Record) string { return r.D2DEnd }},
	{Name: "outdoorFee", Type: FieldText, text: func(r Record) string { return r.OutdoorFee }},
	{Name: "notes", Type: FieldText, Searchable: true, text: func(r Record) string { return r.Notes }},
	{Name: "imported", Type: FieldBool, number: func(r Record) float64 { return boolNumber(r.Imported) }},
}

// LookupField finds a field by JSON name, case-insensitively.
func LookupField(name string) (FieldSpec, bool) {
	for _, f := range RecordFields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// IsValidOperator checks if an operator is valid for a given field type.
func IsValidOperator(op FilterOperator, ft FieldType) bool {
	switch ft {
	case FieldText:
		switch op {
		case OpContains, OpEquals, OpStartsWith, OpEndsWith, OpIn:
			return true
		}
	case FieldNumeric:
		switch op {
		case OpEquals, OpGreaterEq, OpLessEq, OpGreater, OpLess, OpIn:
			return true
		}
	case FieldBool:
		return op == OpEquals
	}
	return false
}

// MaxSorts is the number of sort columns honored by a query.
const MaxSorts = 2

// QueryOptions selects and orders a page of records.
type QueryOptions struct {
	Search  string
	Filters FilterSet
	Sorts   []SortSpec
	Offset  int
	Limit   int // 0 returns everything after Offset
}

// QueryResult is one page of matching records.
type QueryResult struct {
	Records []Record   `json:"records"`
	Total   int        `json:"total"`
	Offset  int        `json:"offset"`
	Limit   int        `json:"limit"`
	Sorts   []SortSpec `json:"sorts,omitempty"`
}

// matchesSearch reports whether any searchable field contains the term.
func matchesSearch(r Record, term string) bool {
	if term == "" {
		return true
	}
	for _, f := range RecordFields {
		if f.Searchable && strings.Contains(strings.ToLower(f.Text(r)), term) {
			return true
		}
	}
	return false
}

// matchesFilter evaluates one column filter. Unknown columns and operators
// that do not apply to the field type match everything.
func matchesFilter(r Record, cf ColumnFilter) bool {
	field, ok := LookupField(cf.Column)
	if !ok || !IsValidOperator(cf.Operator, field.Type) {
		return true
	}

	if field.Type == FieldBool {
		want := IsTruthy(cf.Value)
		return (field.Number(r) != 0) == want
	}

	if field.Type == FieldNumeric {
		have := field.Number(r)
		if cf.Operator == OpIn {
			for _, v := range strings.Split(cf.Value, ",") {
				if n, err := parseFilterNumber(v); err == nil && n == have {
					return true
				}
			}
			return false
		}
		want, err := parseFilterNumber(cf.Value)
		if err != nil {
			return false
		}
		switch cf.Operator {
		case OpEquals:
			return have == want
		case OpGreaterEq:
			return have >= want
		case OpLessEq:
			return have <= want
		case OpGreater:
			return have > want
		case OpLess:
			return have < want
		}
		return true
	}

	have := strings.ToLower(field.Text(r))
	want := strings.ToLower(strings.TrimSpace(cf.Value))
	switch cf.Operator {
	case OpContains:
		return strings.Contains(have, want)
	case OpEquals:
		return have == want
	case OpStartsWith:
		return strings.HasPrefix(have, want)
	case OpEndsWith:
		return strings.HasSuffix(have, want)
	case OpIn:
		for _, v := range strings.Split(want, ",") {
			if have == strings.TrimSpace(v) {
				return true
			}
		}
		return false
	}
	return true
}

func parseFilterNumber(s string) (float64, error) {
	return strconv.ParseFloat(NormalizeNumber(s), 64)
}

// validSorts drops unknown columns and normalizes directions.
func validSorts(sorts []SortSpec) []SortSpec {
	var out []SortSpec
	for _, s := range sorts {
		field, ok := LookupField(s.Column)
		if !ok {
			continue
		}
		dir := "asc"
		if strings.EqualFold(s.Dir, "desc") {
			dir = "desc"
		}
		out = append(out, SortSpec{Column: field.Name, Dir: dir})
		if len(out) >= MaxSorts {
			break
		}
	}
	return out
}

// sortRecords orders records stably. Text columns use German collation so
// umlauts sort next to their base letters.
func sortRecords(records []Record, sorts []SortSpec) {
	if len(sorts) == 0 {
		return
	}
	col := collate.New(language.German, collate.IgnoreCase)

	fields := make([]FieldSpec, len(sorts))
	for i, s := range sorts {
		fields[i], _ = LookupField(s.Column)
	}

	slices.SortStableFunc(records, func(a, b Record) int {
		for i, f := range fields {
			var c int
			if f.Type == FieldText {
				c = col.CompareString(f.Text(a), f.Text(b))
			} else {
				c = cmp.Compare(f.Number(a), f.Number(b))
			}
			if sorts[i].Dir == "desc" {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// query filters, sorts and pages a snapshot of records.
func query(records []Record, opts QueryOptions) QueryResult {
	term := strings.ToLower(strings.TrimSpace(opts.Search))

	matched := make([]Record, 0, len(records))
	for _, r := range records {
		if !matchesSearch(r, term) {
			continue
		}
		ok := true
		for _, f := range opts.Filters.Filters {
			if !matchesFilter(r, f) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, r)
		}
	}

	sorts := validSorts(opts.Sorts)
	sortRecords(matched, sorts)

	result := QueryResult{Total: len(matched), Offset: max(opts.Offset, 0), Limit: max(opts.Limit, 0), Sorts: sorts}
	start := min(result.Offset, len(matched))
	end := len(matched)
	if result.Limit > 0 {
		end = min(start+result.Limit, len(matched))
	}
	result.Records = matched[start:end]
	return result
}
