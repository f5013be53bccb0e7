package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/AddressImport/internal/core"
	"github.com/JonMunkholm/AddressImport/internal/logging"
)

// handleExport downloads the records matching the list query (without
// paging) as CSV or XLSX.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = strings.ToLower(s.cfg.Export.DefaultFormat)
	}
	if format != core.FormatCSV && format != core.FormatXLSX {
		err := fmt.Errorf("%w %q", core.ErrUnsupportedExportFormat, format)
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	q := parseQuery(r)
	q.Offset, q.Limit = 0, 0
	records := s.records.Query(q).Records

	filename := fmt.Sprintf("adressen-%s.%s", time.Now().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", core.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	opts := core.ExportOptions{ChunkSize: s.cfg.Export.ChunkSize, SheetName: s.cfg.Export.SheetName}
	logger := logging.WithFields(r.Context(), "format", format, "records", len(records))

	// Headers are sent once the body starts, so failures below can only be logged.
	if err := core.Export(r.Context(), w, format, records, opts); err != nil {
		if isClientGone(r, err) {
			logger.Info("export aborted by client")
			return
		}
		logger.Error("export failed", "error", err)
		return
	}
	s.activity.Log(core.ActivityParams{
		Action:       core.ActionExport,
		NewValue:     format,
		RowsAffected: len(records),
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	logger.Info("export completed")
}
