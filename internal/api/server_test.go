package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/guidex/internal/config"
	"github.com/dgallion1/guidex/internal/pipeline"
	"github.com/dgallion1/guidex/internal/report"
	"github.com/dgallion1/guidex/internal/store"
	"github.com/dgallion1/guidex/internal/template"
)

const apiKey = "test-key"

func frag(text string, x0, x1, y0 float64) map[string]any {
	return map[string]any{"x0": x0, "x1": x1, "y0": y0, "y1": y0 + 8, "text": text + "\n"}
}

// reportJSON is a layout dump of a four page report with one summary cell and
// one narrative section.
func reportJSON(t *testing.T) []byte {
	t.Helper()
	pages := [][]map[string]any{
		{
			frag("Guidance Summary", 36, 300, 700),
			frag("Prepared for clients", 36, 300, 680),
			frag("Acme Widgets Inc - ACME\nFiscal Year 2024", 36, 300, 660),
			frag("Report Generated: 03/04/2024 09:15 AM", 36, 300, 640),
		},
		{
			frag("ACME Guidance Summary", 100, 300, 700),
			frag("Fiscal Year 2024", 100, 300, 690),
			frag("Q1 2024", 460, 500, 650),
			frag("Earnings", 36, 120, 600),
			frag("Revenue", 36, 120, 588.54),
			frag("Net Sales", 46, 140, 570),
			frag("$1.2B - $1.4B", 450, 500, 572.16),
		},
		{
			frag("Guidance Report", 420, 560, 738),
			frag("Q1 2024 Guidance Details", 420, 560, 735),
			frag("ACME Period Report", 420, 560, 730),
			frag("Earnings Per Share", 46, 140, 680),
			frag("Press Release", 330, 396, 650),
			frag("Acme", 414, 560, 650),
			frag("Text.", 414, 560, 630),
		},
		{frag("Disclaimer", 36, 300, 400)},
	}
	doc := map[string]any{"pages": []any{}}
	var ps []any
	for _, p := range pages {
		ps = append(ps, map[string]any{"fragments": p})
	}
	doc["pages"] = ps
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

type harness struct {
	srv   *Server
	orch  *pipeline.Orchestrator
	store *store.Store
}

func newHarness(t *testing.T, start bool) *harness {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:         apiKey,
		WorkerCount:    1,
		MaxQueueSize:   4,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
		KeyLineItems:   config.DefaultKeyLineItems,
	}
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ex := &pipeline.Extractor{Reader: report.NewReader(template.Default(), false)}
	orch := pipeline.NewOrchestrator(cfg, ex, st, log)
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	return &harness{srv: NewServer(orch, st, template.Default(), log, cfg), orch: orch, store: st}
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+apiKey)
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t, false)
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t, false)

	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractFlow(t *testing.T) {
	h := newHarness(t, true)

	rec := h.do(t, upload(t, "file", "Guidance Summary ACME.json", reportJSON(t)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode(t, rec)
	assert.Equal(t, "ACME.json", accepted["report_name"])
	jobID := accepted["job_id"].(string)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/extract/"+jobID+"/status", nil)
		req.Header.Set("Authorization", "Bearer "+apiKey)
		rec := httptest.NewRecorder()
		h.srv.ServeHTTP(rec, req)
		var status map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status["status"] == string(pipeline.StatusCompleted)
	}, 5*time.Second, 5*time.Millisecond)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/extract/"+jobID+"/records?key_items=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var records recordsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Equal(t, "ACME.json", records.ReportName)
	require.Len(t, records.Guidance, 1)
	assert.Equal(t, "$1.2B - $1.4B", records.Guidance[0].Amount)
	require.Len(t, records.SourceDetails, 1)
	assert.Equal(t, "Earnings Per Share", records.SourceDetails[0].LineItem)
	assert.Empty(t, records.Diagnostics)
	require.Len(t, records.KeyItems, 1)
	assert.Equal(t, "Acme Widgets Inc - ACME", records.KeyItems[0].CompanyName)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"report_name":"ACME.json"`)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/ACME.json/records", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stored recordsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, records.Guidance, stored.Guidance)
	assert.Equal(t, records.SourceDetails, stored.SourceDetails)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.EqualValues(t, 1, stats["processing"].(map[string]any)["count"])
}

func TestExtractRejectsUnsupportedType(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, upload(t, "file", "notes.txt", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "unsupported file type")
}

func TestExtractRejectsOversizeFile(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, upload(t, "file", "big.pdf", make([]byte, 1<<20+1)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExtractMissingFile(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, upload(t, "other", "a.pdf", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordsBeforeCompletion(t *testing.T) {
	h := newHarness(t, false)
	rec := h.do(t, upload(t, "file", "ACME.json", reportJSON(t)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode(t, rec)["job_id"].(string)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/extract/"+jobID+"/records", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/api/extract/"+jobID+"/status", nil))
	assert.Equal(t, string(pipeline.StatusQueued), decode(t, rec)["status"])
}

func TestUnknownJob(t *testing.T) {
	h := newHarness(t, false)

	for _, path := range []string{"/api/extract/nope/status", "/api/extract/nope/records"} {
		rec := h.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestUnknownStoredReport(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/missing.pdf/records", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplates(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/templates", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Templates []struct {
			Variant string `json:"variant"`
		} `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Templates, 3)
	assert.Equal(t, "v1", out.Templates[0].Variant)
	assert.Equal(t, "v3", out.Templates[2].Variant)
}

func TestBatchExtract(t *testing.T) {
	h := newHarness(t, false)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range []string{"a.json", "b.txt"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, _ = fw.Write(reportJSON(t))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/extract/batch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := h.do(t, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var out struct {
		Jobs []map[string]any `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Jobs, 2)
	assert.NotEmpty(t, out.Jobs[0]["job_id"])
	assert.Contains(t, out.Jobs[1]["error"], "unsupported file type")
	assert.Equal(t, 1, h.orch.QueueDepth())
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", sanitizeFilename("../../etc/report.pdf"))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
	assert.Equal(t, "a_b.pdf", sanitizeFilename("a..b.pdf"))
}

func TestRequestLogCarriesJobAndRoute(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := config.Config{APIKey: apiKey, WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	ex := &pipeline.Extractor{Reader: report.NewReader(template.Default(), false)}
	srv := NewServer(pipeline.NewOrchestrator(cfg, ex, nil, log), nil, template.Default(), log, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/extract/abc123/status", nil)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		if m["msg"] == "request" {
			entry = m
		}
	}
	require.NotNil(t, entry, "no request log line")
	assert.Equal(t, "abc123", entry["job_id"])
	assert.Equal(t, "/api/extract/{jobID}/status", entry["route"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
	assert.NotEmpty(t, entry["request_id"])
	assert.NotContains(t, entry, "report")
}
