package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/AddressImport/internal/config"
	"github.com/JonMunkholm/AddressImport/internal/core"
)

const sampleCSV = "Adresse;Region;Anzahl der Homes;Preis Standardprodukt (€)\n" +
	"Hauptplatz 1, 4020 Linz;Linz;3;12,50\n" +
	"Bahnhofstraße 7, 4600 Wels;;1;9\n" +
	"hauptplatz 1,4020 linz;Linz;5;1\n"

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	cfg := testConfig(t, env)
	importer, err := core.NewImporter(core.ImporterOptions{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Yielder: core.NoopYielder,
	})
	require.NoError(t, err)
	records, err := core.NewCollection(nil)
	require.NoError(t, err)

	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	s := NewServer(cfg, importer, records, limiter, core.NewActivityLog(cfg.Data.ActivityCapacity))
	t.Cleanup(func() { s.Shutdown(t.Context()) })
	return s
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func importRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestImportThenBrowse(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, importRequest(t, map[string]string{"linz.csv": sampleCSV}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[map[string]any](t, rec)
	assert.Equal(t, float64(2), resp["accepted"])
	assert.Equal(t, float64(2), resp["added"])
	assert.Equal(t, float64(1), resp["duplicates"])
	assert.Equal(t, float64(3), resp["totalRows"])
	assert.NotEmpty(t, resp["batchId"])

	// Importing the same file again adds nothing.
	rec = do(t, s, importRequest(t, map[string]string{"linz.csv": sampleCSV}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, rec)["added"])

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/records?sort=homes&dir=desc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[core.QueryResult](t, rec)
	require.Equal(t, 2, page.Total)
	assert.Equal(t, "Hauptplatz 1, 4020 Linz", page.Records[0].Address)
	assert.Equal(t, 3, page.Records[0].Homes)
	assert.Equal(t, 12.5, page.Records[0].Price)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/records?filter[homes]=lt:2", nil))
	page = decode[core.QueryResult](t, rec)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Bahnhofstraße 7, 4600 Wels", page.Records[0].Address)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/groups", nil))
	groups := decode[[]core.Group](t, rec)
	require.Len(t, groups, 2)
	assert.Equal(t, "4600", groups[0].Key)
	assert.Equal(t, "Linz", groups[1].Key)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/kpis", nil))
	kpis := decode[core.KPIs](t, rec)
	assert.Equal(t, 2, kpis.Records)
	assert.Equal(t, 4, kpis.Homes)
	assert.Equal(t, 2, kpis.Imported)
}

func TestPatchAndGetRecord(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, s, importRequest(t, map[string]string{"a.csv": sampleCSV})).Code)

	id := s.records.Records()[0].ID
	path := "/api/records/" + jsonNumber(id)

	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"notes":"call back","completionDone":true}`))
	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[core.Record](t, rec)
	assert.Equal(t, "call back", patched.Notes)
	assert.True(t, patched.CompletionDone)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "call back", decode[core.Record](t, rec).Notes)
}

func TestRecordErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"not found", httptest.NewRequest(http.MethodGet, "/api/records/42", nil), http.StatusNotFound, "REC001"},
		{"invalid id", httptest.NewRequest(http.MethodGet, "/api/records/abc", nil), http.StatusBadRequest, "REC002"},
		{"unknown patch field", httptest.NewRequest(http.MethodPatch, "/api/records/1", strings.NewReader(`{"address":"x"}`)), http.StatusBadRequest, "REC003"},
		{"empty patch", httptest.NewRequest(http.MethodPatch, "/api/records/1", strings.NewReader(`{}`)), http.StatusBadRequest, "REC003"},
		{"export format", httptest.NewRequest(http.MethodGet, "/api/export?format=pdf", nil), http.StatusBadRequest, "EXP001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestImportPreview(t *testing.T) {
	s := newTestServer(t, nil)
	req := importRequest(t, map[string]string{"linz.csv": sampleCSV})
	req.URL.Path = "/api/import/preview"

	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[core.ImportPreview](t, rec)
	assert.Equal(t, core.PreviewSummary{TotalRows: 3, NewRows: 2, DuplicateRows: 1}, p.Summary)
	assert.Len(t, p.NewRowSamples, 2)
	require.Len(t, p.SkippedSamples, 1)
	assert.Equal(t, 3, p.SkippedSamples[0].Row)

	// Nothing was merged.
	assert.Equal(t, 0, s.records.Len())
}

func TestImportErrors(t *testing.T) {
	s := newTestServer(t, map[string]string{"IMPORT_MAX_FILES": "1"})

	t.Run("no files", func(t *testing.T) {
		rec := do(t, s, importRequest(t, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "FILE004", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("too many files", func(t *testing.T) {
		rec := do(t, s, importRequest(t, map[string]string{"a.csv": sampleCSV, "b.csv": sampleCSV}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "FILE007", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("legacy xls", func(t *testing.T) {
		ole := string([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0, 0})
		rec := do(t, s, importRequest(t, map[string]string{"old.xls": ole}))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, "FILE005", decode[ErrorResponse](t, rec).Code)
	})

	assert.Equal(t, 0, s.records.Len())
	assert.Equal(t, 0, s.limiter.ActiveCount())
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, s, importRequest(t, map[string]string{"a.csv": sampleCSV})).Code)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=csv&q=wels", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "\xEF\xBB\xBF"))
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Bahnhofstraße 7")
}

func TestExportXLSXRoundTrip(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, s, importRequest(t, map[string]string{"a.csv": sampleCSV})).Code)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/export?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.ContentType(core.FormatXLSX), rec.Header().Get("Content-Type"))

	// Reset, then import the export: every record comes back.
	require.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodPost, "/api/reset", nil)).Code)
	require.Equal(t, 0, s.records.Len())

	rec = do(t, s, importRequest(t, map[string]string{"export.xlsx": rec.Body.String()}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, s.records.Len())
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "secret"})

	assert.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, httptest.NewRequest(http.MethodGet, "/api/kpis", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/kpis", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, do(t, s, req).Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, map[string]string{"RATE_LIMIT_REQUESTS_PER_MINUTE": "2"})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := &rateLimiter{visitors: map[string]*visitor{}, rate: 1, window: time.Minute, now: func() time.Time { return now }}

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("a"))
}

func TestImportStatus(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/import/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[core.ImportLimiterStatus](t, rec)
	assert.Equal(t, 3, status.MaxConcurrent)
	assert.Equal(t, 3, status.Available)
}

func TestActivityLog(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, s, importRequest(t, map[string]string{"a.csv": sampleCSV})).Code)

	id := s.records.Records()[0].ID
	req := httptest.NewRequest(http.MethodPatch, "/api/records/"+jsonNumber(id), strings.NewReader(`{"notes":"n1"}`))
	require.Equal(t, http.StatusOK, do(t, s, req).Code)
	require.Equal(t, http.StatusOK, do(t, s, httptest.NewRequest(http.MethodPost, "/api/reset", nil)).Code)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/activity", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[core.ActivityPage](t, rec)
	require.Equal(t, 3, page.Total)
	assert.Equal(t, core.ActionReset, page.Entries[0].Action)
	assert.Equal(t, 2, page.Entries[0].RowsAffected)
	assert.Equal(t, core.ActionRecordEdit, page.Entries[1].Action)
	assert.Equal(t, "n1", page.Entries[1].NewValue)
	assert.Equal(t, core.ActionImport, page.Entries[2].Action)
	assert.Equal(t, []string{"a.csv"}, page.Entries[2].Files)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/activity?action=record_edit", nil))
	assert.Equal(t, 1, decode[core.ActivityPage](t, rec).Total)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/activity/"+page.Entries[2].ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, page.Entries[2].BatchID, decode[core.ActivityEntry](t, rec).BatchID)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/activity/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REC004", decode[ErrorResponse](t, rec).Code)
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
