package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// predictSchema is the contract for the oracle's /predict response.
const predictSchema = `{
  "type": "object",
  "required": ["entities"],
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["label", "text", "score"],
        "properties": {
          "label": {"type": "string"},
          "text":  {"type": "string"},
          "score": {"type": "number"}
        }
      }
    }
  }
}`

var responseSchema = mustCompileSchema(predictSchema)

func mustCompileSchema(src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("predict.json", strings.NewReader(src)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("predict.json")
}

// HTTPOracle calls a GLiNER-style inference server over JSON.
type HTTPOracle struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	stats      *LatencyStats
}

func NewHTTPOracle(baseURL, model, apiKey string, timeout time.Duration, stats *LatencyStats) *HTTPOracle {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if stats == nil {
		stats = NewLatencyStats(time.Hour)
	}
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		stats: stats,
	}
}

type predictRequest struct {
	Text      string   `json:"text"`
	Labels    []string `json:"labels"`
	Threshold float64  `json:"threshold"`
	Model     string   `json:"model,omitempty"`
}

type predictResponse struct {
	Entities []Entity `json:"entities"`
}

// Predict posts text and labels to {baseURL}/predict.
func (c *HTTPOracle) Predict(ctx context.Context, text string, labels []string, threshold float64) (entities []Entity, err error) {
	start := time.Now()
	defer func() {
		ms := time.Since(start).Milliseconds()
		if err != nil {
			c.stats.RecordError(ms)
		} else {
			c.stats.Record(ms)
		}
	}()

	body, err := json.Marshal(predictRequest{Text: text, Labels: labels, Threshold: threshold, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var raw any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w (raw: %s)", err, truncate(string(respBody), 200))
	}
	if err := responseSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("response does not match schema: %w", err)
	}

	var out predictResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Entities, nil
}

// Stats returns the oracle's latency tracker.
func (c *HTTPOracle) Stats() *LatencyStats { return c.stats }

// Close releases resources.
func (c *HTTPOracle) Close() {
	c.httpClient.CloseIdleConnections()
}
