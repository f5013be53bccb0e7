package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/AddressImport/internal/core"
	"github.com/JonMunkholm/AddressImport/internal/logging"
)

// handleListRecords returns one page of records.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.records.Query(parseQuery(r)))
}

// handleGetRecord returns a single record.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseRecordID(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	rec, err := s.records.Get(id)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handlePatchRecord updates notes and completion of one record.
func (s *Server) handlePatchRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseRecordID(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var patch core.RecordPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidPatch, err), http.StatusBadRequest)
		return
	}
	if patch.Notes == nil && patch.CompletionDone == nil {
		respondError(w, r, fmt.Errorf("%w: no editable field set", errInvalidPatch), http.StatusBadRequest)
		return
	}

	before, err := s.records.Get(id)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	rec, err := s.records.Patch(id, patch)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	s.logEdits(r, before, rec, patch)

	logging.FromContext(r.Context()).Info("record updated", "id", id)
	writeJSON(w, http.StatusOK, rec)
}

// logEdits records one activity entry per changed field.
func (s *Server) logEdits(r *http.Request, before, after core.Record, patch core.RecordPatch) {
	edit := func(field, oldValue, newValue string) {
		if oldValue == newValue {
			return
		}
		s.activity.Log(core.ActivityParams{
			Action:       core.ActionRecordEdit,
			RecordID:     after.ID,
			Field:        field,
			OldValue:     oldValue,
			NewValue:     newValue,
			RowsAffected: 1,
			IPAddress:    clientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
	if patch.Notes != nil {
		edit("notes", before.Notes, after.Notes)
	}
	if patch.CompletionDone != nil {
		edit("completionDone", strconv.FormatBool(before.CompletionDone), strconv.FormatBool(after.CompletionDone))
	}
}

// handleGroups returns the records bucketed by postal code.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.records.Groups())
}

// handleKPIs returns collection counters.
func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.records.KPIs())
}

// handleReset removes every record.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	removed := s.records.Len()
	s.records.Clear()
	s.activity.Log(core.ActivityParams{
		Action:       core.ActionReset,
		RowsAffected: removed,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})

	logging.FromContext(r.Context()).Info("collection reset", "removed", removed)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleHealth reports liveness and the import queue.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": s.records.Len(),
		"imports": s.limiter.Status(),
	})
}

// isClientGone reports whether err is the request context being cancelled.
func isClientGone(r *http.Request, err error) bool {
	return r.Context().Err() != nil && errors.Is(err, r.Context().Err())
}
