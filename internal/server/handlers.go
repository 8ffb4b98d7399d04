package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/leapstack-labs/epmforge/internal/generate"
	"github.com/leapstack-labs/epmforge/internal/upload"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// maxUploadBytes bounds accepted multipart uploads.
const maxUploadBytes = 32 << 20

type generateResponse struct {
	Message     string           `json:"message"`
	RunID       string           `json:"run_id,omitempty"`
	RecordCount int              `json:"record_count"`
	Columns     []string         `json:"columns"`
	Preview     []map[string]any `json:"preview"`
	Issues      []string         `json:"issues"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"service":     "epmforge",
		"environment": s.environment,
		"endpoints": []string{
			"POST /api/generate",
			"POST /api/generate/stream",
			"POST /api/suggest",
			"POST /api/upload",
			"GET /api/runs",
			"GET /events/status",
		},
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var cfg core.GenerationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var runID string
	if s.store != nil {
		run, err := s.store.CreateRun(cfg.ModelType, s.environment)
		if err != nil {
			s.logger.Error("failed to record run", "error", err)
		} else {
			runID = run.ID
		}
	}

	if err := cfg.Validate(); err != nil {
		s.finishRun(runID, core.RunStatusFailed, 0, err.Error(), nil)
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	gen := generate.New(generate.Config{
		Logger: s.logger,
		Status: s.notifier.Broadcast,
	})
	res, err := gen.Generate(r.Context(), &cfg)
	if err != nil {
		s.finishRun(runID, core.RunStatusFailed, 0, err.Error(), nil)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.finishRun(runID, core.RunStatusCompleted, len(res.Rows), "", res.Issues)

	preview := res.Rows
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	if preview == nil {
		preview = []map[string]any{}
	}
	if res.Issues == nil {
		res.Issues = []string{}
	}
	s.writeJSON(w, http.StatusOK, generateResponse{
		Message:     fmt.Sprintf("Generated %d records.", len(res.Rows)),
		RunID:       runID,
		RecordCount: len(res.Rows),
		Columns:     res.Columns,
		Preview:     preview,
		Issues:      res.Issues,
	})
}

func (s *Server) finishRun(runID string, status core.RunStatus, records int, errMsg string, issues []string) {
	if s.store == nil || runID == "" {
		return
	}
	if err := s.store.CompleteRun(runID, status, records, errMsg); err != nil {
		s.logger.Error("failed to complete run", "run_id", runID, "error", err)
	}
	if len(issues) > 0 {
		if err := s.store.AddIssues(runID, issues); err != nil {
			s.logger.Error("failed to record issues", "run_id", runID, "error", err)
		}
	}
}

// handleGenerateStream writes newline-delimited JSON, one array of
// rows per chunk, flushing after each chunk.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var cfg core.GenerationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	chunkSize, _ := strconv.Atoi(r.URL.Query().Get("chunk_size"))

	gen := generate.New(generate.Config{
		Logger: s.logger,
		Status: s.notifier.Broadcast,
	})
	batches, err := gen.Stream(r.Context(), &cfg, chunkSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for batch := range batches {
		if err := enc.Encode(batch.Rows); err != nil {
			s.logger.Warn("stream client gone", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

type suggestRequest struct {
	ModelType string `json:"model_type"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("suggestion service not configured"))
		return
	}
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.ModelType == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("model_type is required"))
		return
	}

	suggestion, err := s.suggester.Suggest(r.Context(), req.ModelType)
	if err != nil {
		// Suggestions are advisory; the caller can proceed without one.
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, suggestion)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	analysis, err := upload.AnalyzeCSV(file, header.Filename, s.logger)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("run history not configured"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*core.Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// handleStatusEvents streams generation status messages as
// server-sent events until the client disconnects.
func (s *Server) handleStatusEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			fmt.Fprint(w, "event: status\n")
			// A message spanning lines becomes repeated data fields,
			// keeping the event frame intact.
			for _, line := range strings.Split(msg, "\n") {
				fmt.Fprintf(w, "data: %s\n", line)
			}
			fmt.Fprint(w, "\n")
			flusher.Flush()
		}
	}
}
