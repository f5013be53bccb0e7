package web

// Shared request parsing for the record handlers.

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/AddressImport/internal/core"
)

// DefaultPageSize is used when a list request has no limit.
const DefaultPageSize = 100

// MaxPageSize caps the limit of a list request.
const MaxPageSize = 1000

// parseIntParam parses a non-negative integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseRecordID reads the {id} path parameter.
func parseRecordID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidRecordID
	}
	return id, nil
}

// parseSorts parses comma-separated sort and dir parameters, e.g.
// sort=region,homes&dir=asc,desc.
func parseSorts(r *http.Request) []core.SortSpec {
	sortStr := r.URL.Query().Get("sort")
	if sortStr == "" {
		return nil
	}
	dirs := strings.Split(r.URL.Query().Get("dir"), ",")

	var sorts []core.SortSpec
	for i, col := range strings.Split(sortStr, ",") {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		dir := "asc"
		if i < len(dirs) && strings.TrimSpace(dirs[i]) == "desc" {
			dir = "desc"
		}
		sorts = append(sorts, core.SortSpec{Column: col, Dir: dir})
		if len(sorts) >= core.MaxSorts {
			break
		}
	}
	return sorts
}

// parseFilters extracts filter[column]=op:value parameters. Unknown columns,
// operators that do not fit the column type and empty values are dropped.
func parseFilters(r *http.Request) core.FilterSet {
	var filters []core.ColumnFilter

	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		field, ok := core.LookupField(key[7 : len(key)-1])
		if !ok {
			continue
		}

		for _, val := range values {
			op, value, found := strings.Cut(val, ":")
			if !found || value == "" {
				continue
			}
			if !core.IsValidOperator(core.FilterOperator(op), field.Type) {
				continue
			}
			filters = append(filters, core.ColumnFilter{
				Column:   field.Name,
				Operator: core.FilterOperator(op),
				Value:    value,
			})
		}
	}

	return core.FilterSet{Filters: filters}
}

// parseQuery builds the collection query for a list request.
func parseQuery(r *http.Request) core.QueryOptions {
	return core.QueryOptions{
		Search:  r.URL.Query().Get("q"),
		Filters: parseFilters(r),
		Sorts:   parseSorts(r),
		Offset:  parseIntParam(r, "offset", 0),
		Limit:   min(parseIntParam(r, "limit", DefaultPageSize), MaxPageSize),
	}
}
