package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/epmforge/internal/state"
	"github.com/leapstack-labs/epmforge/internal/suggest"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

func setupServer(t *testing.T) (*Server, *state.SQLiteStore) {
	t.Helper()
	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	s := NewServer(Config{Store: store, Port: 0, Environment: "test"})
	return s, store
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleConfig() core.GenerationConfig {
	seed := int64(42)
	return core.GenerationConfig{
		ModelType: "Financial",
		Dimensions: []core.Dimension{
			{Name: "Region", Members: []string{"North", "South"}},
			{Name: "Product", Members: []string{"Widget", "Gadget"}},
		},
		Settings: core.Settings{NumRecords: 4, RandomSeed: &seed},
	}
}

func TestHandleInfo(t *testing.T) {
	s, _ := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "epmforge", info["service"])
}

func TestHandleGenerate(t *testing.T) {
	s, store := setupServer(t)
	rec := postJSON(t, s.Routes(), "/api/generate", sampleConfig())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.RecordCount)
	assert.Len(t, resp.Preview, 4)
	assert.Equal(t, []string{"Region", "Product", "Value"}, resp.Columns)
	require.NotEmpty(t, resp.RunID)

	run, err := store.GetRun(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, run.Status)
	assert.Equal(t, 4, run.Records)
}

func TestHandleGeneratePreviewCap(t *testing.T) {
	s, _ := setupServer(t)
	cfg := sampleConfig()
	cfg.Dimensions = []core.Dimension{
		{Name: "Account", Members: membersList("A", 30)},
		{Name: "Entity", Members: membersList("E", 30)},
	}
	cfg.Settings.NumRecords = 400

	rec := postJSON(t, s.Routes(), "/api/generate", cfg)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 400, resp.RecordCount)
	assert.Len(t, resp.Preview, previewLimit)
}

func membersList(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('A'+i%26)) + string(rune('0'+i/26))
	}
	return out
}

func TestHandleGenerateBadRequest(t *testing.T) {
	s, _ := setupServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerateInvalidConfigRecordsFailedRun(t *testing.T) {
	s, store := setupServer(t)
	rec := postJSON(t, s.Routes(), "/api/generate", core.GenerationConfig{ModelType: "Empty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.RunStatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestHandleGenerateOversizedSpaceIsInternalError(t *testing.T) {
	s, _ := setupServer(t)
	cfg := core.GenerationConfig{ModelType: "Huge"}
	for i := 0; i < 20; i++ {
		cfg.Dimensions = append(cfg.Dimensions, core.Dimension{
			Name:    fmt.Sprintf("Dim%02d", i),
			Members: membersList("M", 1000),
		})
	}
	rec := postJSON(t, s.Routes(), "/api/generate", cfg)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGenerateStream(t *testing.T) {
	s, _ := setupServer(t)
	cfg := sampleConfig()
	cfg.Settings.NumRecords = 4

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/generate/stream?chunk_size=2", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var total int
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rows))
		total += len(rows)
	}
	assert.Equal(t, 4, total)
}

func TestHandleSuggest(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"response": "```json\n{\"dimensions\": [{\"name\": \"Account\", \"members\": [\"Revenue\"]}], \"dependencies\": []}\n```"}
		json.NewEncoder(w).Encode(resp)
	}))
	defer ollama.Close()

	s, _ := setupServer(t)
	s.suggester = suggest.NewClient(suggest.Options{BaseURL: ollama.URL})

	rec := postJSON(t, s.Routes(), "/api/suggest", map[string]string{"model_type": "Financial"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var suggestion suggest.Suggestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suggestion))
	require.Len(t, suggestion.Dimensions, 1)
	assert.Equal(t, "Account", suggestion.Dimensions[0].Name)
}

func TestHandleSuggestRequiresModelType(t *testing.T) {
	s, _ := setupServer(t)
	s.suggester = suggest.NewClient(suggest.Options{})
	rec := postJSON(t, s.Routes(), "/api/suggest", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSuggestUnconfigured(t *testing.T) {
	s, _ := setupServer(t)
	rec := postJSON(t, s.Routes(), "/api/suggest", map[string]string{"model_type": "Financial"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleUpload(t *testing.T) {
	s, _ := setupServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Region,Revenue\nNorth,100\nSouth,200\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var analysis map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, "sales.csv", analysis["filename"])
}

func TestHandleListRuns(t *testing.T) {
	s, store := setupServer(t)
	_, err := store.CreateRun("Sales", "test")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=10", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var runs []core.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "Sales", runs[0].ModelType)
}

func TestHandleStatusEvents(t *testing.T) {
	s, _ := setupServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/status", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	// The handler subscribes before writing the connected event, so
	// once it arrives the broadcast below cannot be missed.
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)
	_, _ = reader.ReadString('\n') // data: ok
	_, _ = reader.ReadString('\n') // blank

	s.Notifier().Broadcast("Generating data values...")

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: status\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: Generating data values...\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "\n", line)

	// A message spanning lines must not break the event frame.
	s.Notifier().Broadcast("first line\nsecond line")

	for _, want := range []string{
		"event: status\n",
		"data: first line\n",
		"data: second line\n",
		"\n",
	} {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}
