package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/AddressImport/internal/core"
)

var errActivityNotFound = errors.New("activity entry not found")

// handleListActivity returns activity entries, newest first.
// Query: action, batch, record, since, until (RFC 3339), offset, limit.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ActivityFilter{
		Action:  core.ActivityAction(q.Get("action")),
		BatchID: q.Get("batch"),
		Offset:  parseIntParam(r, "offset", 0),
		Limit:   min(parseIntParam(r, "limit", core.DefaultActivityLimit), MaxPageSize),
	}
	if id, err := strconv.ParseInt(q.Get("record"), 10, 64); err == nil {
		filter.RecordID = id
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		filter.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		filter.EndTime = t
	}

	writeJSON(w, http.StatusOK, s.activity.List(filter))
}

// handleGetActivity returns a single activity entry.
func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.activity.Get(chi.URLParam(r, "activityID"))
	if !ok {
		respondError(w, r, errActivityNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
