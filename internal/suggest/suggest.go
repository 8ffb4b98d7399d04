// Package suggest asks an Ollama-compatible text-generation service to
// propose an initial model structure for a model-type label. Its output
// is advisory: callers seed a configuration from it but generation
// never depends on it.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leapstack-labs/epmforge/pkg/core"
)

// Defaults for a locally running Ollama server.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "gemma3:4b"
)

// Suggestion is a proposed starting structure for a model type.
type Suggestion struct {
	Dimensions []core.Dimension `json:"dimensions"`
	Rules      []core.Rule      `json:"dependencies"`
}

// Client talks to one Ollama-compatible server.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL string
	Model   string
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewClient creates a suggestion client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		http:    &http.Client{Timeout: opts.Timeout},
		logger:  opts.Logger,
	}
}

// Ping reports whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Suggest asks the model for dimensions and rules fitting modelType.
func (c *Client) Suggest(ctx context.Context, modelType string) (*Suggestion, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: buildPrompt(modelType),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting suggestion: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}

	s, err := parseSuggestion(gr.Response)
	if err != nil {
		return nil, err
	}
	c.logger.Info("model structure suggested",
		"model_type", modelType, "dimensions", len(s.Dimensions), "rules", len(s.Rules))
	return s, nil
}

// buildPrompt asks for a strict JSON structure so the response can be
// parsed without free-text heuristics.
func buildPrompt(modelType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest a comprehensive structure for a %s model in EPM/CPM systems.\n\n", modelType)
	b.WriteString(`Instructions:
1. Suggest 3-5 typical dimensions commonly found in this type of model.
2. For each dimension, provide its "name" and a small list "members" of 3-5 example members.
3. Suggest 1-3 common dependency rules (calculations, allocations, or validations) relevant to this model type.
4. For each rule, provide its "type", the "formula" (if applicable, keep it simple like "X = Y * Z"), the "involved_dimensions" (list of relevant dimension names), and the "target" (if applicable).
5. Format your entire response STRICTLY as a single JSON object enclosed in triple backticks (` + "```json ... ```" + `). The object must have exactly two keys: "dimensions" and "dependencies".
6. Do not include any explanations or text outside the JSON block.

Example JSON output format:
` + "```json" + `
{
  "dimensions": [
    { "name": "Time", "members": ["Jan", "Feb", "Mar", "Apr"] },
    { "name": "Account", "members": ["Revenue", "COGS", "Margin"] }
  ],
  "dependencies": [
    { "type": "calculation", "formula": "Margin = Revenue - COGS", "involved_dimensions": ["Account"], "target": "Margin" }
  ]
}
` + "```" + `

`)
	fmt.Fprintf(&b, "Now, provide the JSON structure for the %q model type:\n", modelType)
	return b.String()
}

// parseSuggestion extracts the JSON object from a model response,
// preferring a fenced json block and falling back to the outermost
// brace pair when the model ignored the fencing instruction.
func parseSuggestion(text string) (*Suggestion, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in model response")
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, fmt.Errorf("parsing suggestion JSON: %w", err)
	}

	// Keep only entries with the fields generation actually needs.
	dims := s.Dimensions[:0]
	for _, d := range s.Dimensions {
		if d.Name != "" {
			dims = append(dims, d)
		}
	}
	s.Dimensions = dims

	rules := s.Rules[:0]
	for _, r := range s.Rules {
		if r.Type != "" && len(r.InvolvedDimensions) > 0 {
			rules = append(rules, r)
		}
	}
	s.Rules = rules
	return &s, nil
}

func extractJSON(text string) string {
	if start := strings.Index(text, "```json"); start != -1 {
		rest := text[start+len("```json"):]
		if end := strings.LastIndex(rest, "```"); end != -1 {
			if block := strings.TrimSpace(rest[:end]); strings.HasPrefix(block, "{") && strings.HasSuffix(block, "}") {
				return block
			}
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
