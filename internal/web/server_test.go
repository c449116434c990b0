package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/entityregistry/internal/config"
	"github.com/JonMunkholm/entityregistry/internal/core"
	"github.com/JonMunkholm/entityregistry/internal/store/sqlite"
)

const evmAddr = "0x52908400098527886E0F7030069857D2E4169EE7"

type testEnv struct {
	srv     *Server
	store   *sqlite.Store
	limiter *core.ImportLimiter
	folder  int64
}

func newTestEnv(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SeedDictionaries(ctx, core.DefaultDictionaries()))
	require.NoError(t, st.EnsureEntity(ctx, "acme", "Acme", "exchange"))
	folder, err := st.CreateFolder(ctx, "wallets", "EVM")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Import.MaxFileSize = 1 << 20
	cfg.Import.Timeout = time.Minute
	cfg.Server.RequestTimeout = time.Minute
	cfg.Security.EnableCSP = true
	for _, f := range tweak {
		f(cfg)
	}

	limiter := core.NewImportLimiter(1, 20*time.Millisecond)
	im := core.NewImporter(st, core.WithLimiter(limiter))
	return &testEnv{srv: NewServer(cfg, st, im), store: st, limiter: limiter, folder: folder}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func affiliationCSV(rows ...string) string {
	return strings.Join(append([]string{"network,address,entity_uid,address_role"}, rows...), "\n")
}

// ----------------------------------------------------------------------------
// POST /api/import
// ----------------------------------------------------------------------------

func TestImport_JSON(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postJSON(t, "/api/import", map[string]any{
		"type":      "affiliations",
		"folder_id": e.folder,
		"csv": affiliationCSV(
			"EVM,"+evmAddr+",acme,deposit",
			"EVM,0xdead,acme,",
			"EVM,"+evmAddr+",ghost,",
		),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[core.ImportResult](t, rec)
	assert.Equal(t, 1, res.OK)
	assert.Equal(t, []core.RowError{
		{Row: 3, Error: "EVM address must start with 0x and be 42 chars."},
		{Row: 4, Error: "unknown entity_uid: ghost"},
	}, res.Errors)
	assert.Equal(t, []string{"ghost"}, res.UnknownUIDs)

	recs, err := e.store.ListAffiliations(context.Background(), e.folder)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestImport_ResponseShapeWithNoErrors(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postJSON(t, "/api/import", map[string]any{
		"type": "affiliations", "folder_id": e.folder, "dry_run": true,
		"csv": affiliationCSV("EVM," + evmAddr + ",acme,"),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":1,"errors":[],"unknownUids":[],"skipped":0}`, rec.Body.String())
}

func TestImport_RequestErrors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{"missing folder", map[string]any{"type": "affiliations", "csv": "network,address"},
			http.StatusBadRequest, "IMP001", "folder_id required"},
		{"unknown type", map[string]any{"type": "wallets", "csv": "a"},
			http.StatusBadRequest, "IMP004", "Unknown import type"},
		{"missing type", map[string]any{"csv": "a"},
			http.StatusBadRequest, "VAL003", ""},
		{"unknown field", map[string]any{"type": "entities", "bogus": 1},
			http.StatusBadRequest, "VAL003", ""},
		{"empty csv", map[string]any{"type": "affiliations", "folder_id": e.folder, "csv": ""},
			http.StatusBadRequest, "FILE005", ""},
		{"missing container", map[string]any{"type": "affiliations", "folder_id": 999, "csv": "network,address"},
			http.StatusBadRequest, "IMP003", "folder_id 999 not found"},
		{"bad policy", map[string]any{
			"type": "affiliations", "folder_id": e.folder, "csv": "network,address",
			"unknown_actions": map[string]any{"x": map[string]string{"action": "delete"}},
		}, http.StatusBadRequest, "IMP005", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.postJSON(t, "/api/import", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
			if tt.wantError != "" {
				assert.Contains(t, resp.Error, tt.wantError)
			}
		})
	}
}

func TestImport_DryRunIgnoresPolicies(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postJSON(t, "/api/import", map[string]any{
		"type": "affiliations", "folder_id": e.folder, "dry_run": true,
		"csv":             affiliationCSV("EVM," + evmAddr + ",ghost,"),
		"unknown_actions": map[string]any{"ghost": map[string]string{"action": "delete"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"ghost"}, decode[core.ImportResult](t, rec).UnknownUIDs)
}

func TestImport_CommitWithPolicies(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postJSON(t, "/api/import", map[string]any{
		"type": "affiliations", "folder_id": e.folder,
		"csv": affiliationCSV(
			"EVM,"+evmAddr+",ghost,",
			"EVM,"+evmAddr+",noise,",
		),
		"unknown_actions": map[string]any{
			"ghost": map[string]string{"action": "create", "entity_type_code": "individual"},
			"noise": map[string]string{"action": "skip"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[core.ImportResult](t, rec)
	assert.Equal(t, 1, res.OK)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Errors)
}

func TestImport_ErrorReportCSV(t *testing.T) {
	e := newTestEnv(t)

	body, _ := json.Marshal(map[string]any{
		"type": "affiliations", "folder_id": e.folder, "dry_run": true,
		"csv": affiliationCSV("EVM,0xdead,,", "DOGE,D123,,"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/import?format=csv", bytes.NewReader(body))
	rec := e.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, "row,error\n2,EVM address must start with 0x and be 42 chars.\n3,unknown network: DOGE", rec.Body.String())
}

func TestImport_HTMXSummary(t *testing.T) {
	e := newTestEnv(t)

	body, _ := json.Marshal(map[string]any{
		"type": "affiliations", "folder_id": e.folder, "dry_run": true,
		"csv": affiliationCSV("EVM," + evmAddr + ",<b>x</b>,"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(body))
	req.Header.Set("HX-Request", "true")
	rec := e.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Dry run: affiliations")
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;x&lt;/b&gt;")
	assert.NotContains(t, rec.Body.String(), "<b>x</b>")
}

func TestImport_HTMXError(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(`{"type":"affiliations","csv":"a"}`))
	req.Header.Set("HX-Request", "true")
	rec := e.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="alert alert-error"`)
	assert.Contains(t, rec.Body.String(), "IMP001")
}

func TestImport_Busy(t *testing.T) {
	e := newTestEnv(t)
	require.True(t, e.limiter.TryAcquire())
	defer e.limiter.Release()

	rec := e.postJSON(t, "/api/import", map[string]any{
		"type": "affiliations", "folder_id": e.folder, "csv": affiliationCSV(),
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "IMP002", decode[ErrorResponse](t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestImport_BodyTooLarge(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.Import.MaxFileSize = 64 })

	rec := e.postJSON(t, "/api/import", map[string]any{
		"type": "affiliations", "folder_id": e.folder, "csv": strings.Repeat("x", 200),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decode[ErrorResponse](t, rec).Code)
}

// ----------------------------------------------------------------------------
// POST /api/import/upload
// ----------------------------------------------------------------------------

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		fw.Write(data)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/import/upload", body)
	req.Header.Set("Content-Type", contentType)
	return e.do(t, req)
}

func TestUpload_CSV(t *testing.T) {
	e := newTestEnv(t)

	rec := e.upload(t, "wallets.csv", []byte(affiliationCSV("EVM,"+evmAddr+",acme,deposit")), map[string]string{
		"type":      "affiliations",
		"folder_id": "1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[core.ImportResult](t, rec).OK)
}

func TestUpload_XLSX(t *testing.T) {
	e := newTestEnv(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"network", "address", "entity_uid"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"EVM", evmAddr, "ghost"}))
	var data bytes.Buffer
	require.NoError(t, f.Write(&data))

	rec := e.upload(t, "wallets.xlsx", data.Bytes(), map[string]string{
		"type":            "affiliations",
		"folder_id":       "1",
		"unknown_actions": `{"ghost":{"action":"unknown"}}`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[core.ImportResult](t, rec)
	assert.Equal(t, 1, res.OK)

	recs, err := e.store.ListAffiliations(context.Background(), e.folder)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.SentinelUID, recs[0].EntityUID)
}

func TestUpload_Errors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name     string
		filename string
		fields   map[string]string
		wantCode string
	}{
		{"no file", "", map[string]string{"type": "affiliations", "folder_id": "1"}, "FILE004"},
		{"bad folder id", "a.csv", map[string]string{"type": "affiliations", "folder_id": "abc"}, "VAL003"},
		{"bad dry_run", "a.csv", map[string]string{"type": "affiliations", "folder_id": "1", "dry_run": "maybe"}, "VAL003"},
		{"bad policy json", "a.csv", map[string]string{"type": "affiliations", "folder_id": "1", "unknown_actions": "{"}, "VAL003"},
		{"unknown type", "a.csv", map[string]string{"type": "wallets"}, "IMP004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.upload(t, tt.filename, []byte("network,address\n"), tt.fields)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestUploadFormat(t *testing.T) {
	assert.Equal(t, core.FormatXLSX, uploadFormat("a.XLSX", ""))
	assert.Equal(t, core.FormatCSV, uploadFormat("a.txt", ""))
	assert.Equal(t, core.FormatXLSX, uploadFormat("a.csv", "xlsx"))
}

// ----------------------------------------------------------------------------
// Downloads, dictionaries, containers
// ----------------------------------------------------------------------------

func TestTemplate(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/template/incidents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "network,address,entity_uid,incident_type,incident_date,source,wallet_role,added_at,analyst,tx_hashes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "incidents_template.csv")

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/api/template/entities?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	records, err := core.ParseXLSX(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 0, records.Len())

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/api/template/entities?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/api/template/wallets", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport(t *testing.T) {
	e := newTestEnv(t)
	e.postJSON(t, "/api/import", map[string]any{
		"type": "affiliations", "folder_id": e.folder,
		"csv": affiliationCSV("EVM," + evmAddr + ",acme,deposit"),
	})

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/export/affiliations?container_id=1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "affiliations_1.csv")
	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "EVM,"+evmAddr+",acme,deposit,manual,"))

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/api/export/affiliations?container_id=42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/api/export/entities", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\nacme,Acme,exchange,")
}

func TestDictionaries(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/dictionaries", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	dicts := decode[map[string][]core.DictionaryEntry](t, rec)
	assert.Len(t, dicts, len(core.Dictionaries))
	assert.Equal(t, core.DictionaryEntry{Code: "BTC", Title: "BTC"}, dicts["networks"][0])
}

func TestCreateContainers(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postJSON(t, "/api/entity-files", map[string]string{"file_name": "batch 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Positive(t, decode[createdResponse](t, rec).ID)

	rec = e.postJSON(t, "/api/incident-files", map[string]string{"file_name": "jan", "month": "2024-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.postJSON(t, "/api/incident-files", map[string]string{"file_name": "jan", "month": "January"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.postJSON(t, "/api/folders", map[string]string{"folder_name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL003", decode[ErrorResponse](t, rec).Code)

	rec = e.postJSON(t, "/api/folders", map[string]string{"folder_name": "x", "network_code": "DOGE"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "DB003", resp.Code)
	assert.NotContains(t, resp.Error, "constraint", "store text is not echoed")
}

// ----------------------------------------------------------------------------
// Health, metrics, middleware wiring
// ----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "imports")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	e.store.Close()
	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, httptest.NewRequest(http.MethodGet, "/api/dictionaries", nil))

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registry_http_requests_total")
}

func TestAPIKeyRequired(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/dictionaries", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/dictionaries", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, e.do(t, req).Code)

	rec = e.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestImportRateLimit(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 100
		c.Rate.ImportLimit = 1
	})
	body := map[string]any{"type": "affiliations", "folder_id": e.folder, "dry_run": true, "csv": affiliationCSV()}

	assert.Equal(t, http.StatusOK, e.postJSON(t, "/api/import", body).Code)
	rec := e.postJSON(t, "/api/import", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, http.StatusOK, e.do(t, httptest.NewRequest(http.MethodGet, "/api/dictionaries", nil)).Code,
		"other routes use the general budget")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(core.ErrImportBusy))
	assert.Equal(t, http.StatusBadRequest, statusFor(core.ErrFolderRequired))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
