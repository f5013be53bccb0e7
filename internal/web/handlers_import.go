package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/AddressImport/internal/core"
	"github.com/JonMunkholm/AddressImport/internal/logging"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// is spooled to temporary files by net/http.
const multipartMemory = 32 << 20

// ImportResponse is the JSON body of a successful import.
type ImportResponse struct {
	*core.ImportResult
	Accepted   int   `json:"accepted"`
	Added      int   `json:"added"`
	Total      int   `json:"total"`
	DurationMS int64 `json:"durationMs"`
}

// handleImport reads the uploaded files, imports them against the current
// collection and merges the new records.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	result, files, ok := s.runImport(w, r)
	if !ok {
		return
	}

	added, err := s.records.Merge(result.Records)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	s.activity.Log(core.ActivityParams{
		Action:       core.ActionImport,
		BatchID:      result.BatchID,
		Files:        names,
		RowsAffected: added,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})

	logging.WithFields(r.Context(), "batch_id", result.BatchID).Info("import merged",
		"files", len(files),
		"accepted", result.Accepted(),
		"added", added,
		"total", s.records.Len(),
	)

	writeJSON(w, http.StatusOK, ImportResponse{
		ImportResult: result,
		Accepted:     result.Accepted(),
		Added:        added,
		Total:        s.records.Len(),
		DurationMS:   result.Duration.Milliseconds(),
	})
}

// handleImportPreview runs an import without merging and reports what it
// would add. Query: samples (default core.DefaultPreviewSamples).
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	result, _, ok := s.runImport(w, r)
	if !ok {
		return
	}
	samples := min(parseIntParam(r, "samples", core.DefaultPreviewSamples), MaxPageSize)
	writeJSON(w, http.StatusOK, core.Preview(result, samples))
}

// runImport holds an import slot while it reads the upload and imports it
// against a snapshot of the collection. On failure the error response has
// been written and ok is false.
func (s *Server) runImport(w http.ResponseWriter, r *http.Request) (result *core.ImportResult, files []core.SourceFile, ok bool) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return nil, nil, false
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	files, status, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, status)
		return nil, nil, false
	}

	result, err = s.importer.Import(ctx, files, s.records.Records())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return nil, nil, false
	}
	return result, files, true
}

// readUpload parses the multipart body. Files are taken from the "files"
// and "file" fields.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]core.SourceFile, int, error) {
	maxBody := s.cfg.Import.MaxFileSize*int64(s.cfg.Import.MaxFiles) + multipartMemory
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("%w: %v", core.ErrNoFiles, err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		return nil, http.StatusBadRequest, core.ErrNoFiles
	}
	if len(headers) > s.cfg.Import.MaxFiles {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: %d files, at most %d", errTooManyFiles, len(headers), s.cfg.Import.MaxFiles)
	}

	files := make([]core.SourceFile, 0, len(headers))
	for _, h := range headers {
		f, err := readPart(h, s.cfg.Import.MaxFileSize)
		if err != nil {
			return nil, statusFor(err), err
		}
		files = append(files, f)
	}
	return files, http.StatusOK, nil
}

// readPart loads one uploaded file. Files over maxSize are rejected without
// reading them completely.
func readPart(h *multipart.FileHeader, maxSize int64) (core.SourceFile, error) {
	if h.Size > maxSize {
		return core.SourceFile{}, &core.DecodeError{
			File: h.Filename,
			Err:  fmt.Errorf("%w: %d bytes exceeds %d", core.ErrFileTooLarge, h.Size, maxSize),
		}
	}
	f, err := h.Open()
	if err != nil {
		return core.SourceFile{}, fmt.Errorf("open %s: %w", h.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return core.SourceFile{}, fmt.Errorf("read %s: %w", h.Filename, err)
	}
	return core.SourceFile{Name: h.Filename, Data: data}, nil
}

// isBodyTooLarge reports whether err comes from http.MaxBytesReader. The
// multipart reader does not always wrap it, so the message is checked too.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// handleImportStatus returns the state of the import limiter.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}
