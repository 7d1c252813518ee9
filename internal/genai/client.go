// Package genai is the client for the external text-generation collaborator
// (Gemini). It exposes a blocking Generate and a token-streaming variant, with
// per-call timeouts and bounded retries. Callers that can degrade gracefully
// (classification, narrative) treat failures as "no signal" rather than
// propagating them.
package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/talentfold/pulse/internal/config"
	"github.com/talentfold/pulse/internal/model"
)

// Request is one generation call.
type Request struct {
	System  string // fixed system instruction
	Prompt  string // user prompt
	Context string // optional extra context appended to the prompt
	Model   string // optional model override
	JSON    bool   // request an application/json response
}

// Response is the collaborator's answer.
type Response struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finishReason"`
}

// Client talks to the Gemini API. When no API key is configured it returns
// deterministic mock output so the rest of the system stays exercisable.
type Client struct {
	cfg        *config.AIConfig
	httpClient *http.Client
	log        *slog.Logger

	// baseURL overrides cfg endpoints in tests.
	baseURL string
}

// NewClient creates a text-generation client.
func NewClient(cfg *config.AIConfig, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
		log: log,
	}
}

// Generate performs one blocking generation call with retries.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	modelName := c.modelFor(req)
	if !c.cfg.IsEnabled() {
		return c.mockResponse(req, modelName), nil
	}

	body, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	url := c.endpoint(modelName, false)
	raw, err := c.doWithRetry(ctx, url, body)
	if err != nil {
		return nil, err
	}

	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text").String()
	if text == "" {
		return nil, &model.ExternalError{Op: "generate", Err: errors.New("empty response"), Retryable: false}
	}
	return &Response{
		Text:         text,
		Model:        modelName,
		FinishReason: gjson.GetBytes(raw, "candidates.0.finishReason").String(),
	}, nil
}

// GenerateStream performs a streaming generation call, invoking onToken for
// each text chunk as it arrives. The full response is returned at the end.
// Streaming calls are not retried; a broken stream surfaces as an error with
// whatever text was already delivered.
func (c *Client) GenerateStream(ctx context.Context, req Request, onToken func(token string)) (*Response, error) {
	modelName := c.modelFor(req)
	if !c.cfg.IsEnabled() {
		resp := c.mockResponse(req, modelName)
		for _, word := range strings.Fields(resp.Text) {
			onToken(word + " ")
		}
		return resp, nil
	}

	body, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(modelName, true), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &model.ExternalError{Op: "generate_stream", Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, &model.ExternalError{
			Op:        "generate_stream",
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(payload), 200)),
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	var full strings.Builder
	finish := ""
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if chunk == "" || chunk == "[DONE]" {
			continue
		}
		token := gjson.Get(chunk, "candidates.0.content.parts.0.text").String()
		if token != "" {
			full.WriteString(token)
			onToken(token)
		}
		if fr := gjson.Get(chunk, "candidates.0.finishReason").String(); fr != "" {
			finish = fr
		}
	}
	if err := scanner.Err(); err != nil {
		return &Response{Text: full.String(), Model: modelName, FinishReason: finish},
			&model.ExternalError{Op: "generate_stream", Err: err, Retryable: false}
	}

	return &Response{Text: full.String(), Model: modelName, FinishReason: finish}, nil
}

// doWithRetry posts body to url with exponential backoff plus jitter. Only
// connection failures, timeouts, 429 and 5xx are retried; an explicit context
// cancellation stops immediately.
func (c *Client) doWithRetry(ctx context.Context, url string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			wait := backoffWait(attempt)
			c.log.Debug("retrying generation call", "attempt", attempt, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200))
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, &model.ExternalError{
				Op:        "generate",
				Err:       fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200)),
				Retryable: false,
			}
		}
		return raw, nil
	}

	return nil, &model.ExternalError{
		Op:        "generate",
		Err:       fmt.Errorf("max retries exceeded: %w", lastErr),
		Retryable: true,
	}
}

func backoffWait(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(rand.Int63n(int64(base) / 5)) // up to 20%
	return base + jitter
}

func (c *Client) buildPayload(req Request) ([]byte, error) {
	prompt := req.Prompt
	if req.Context != "" {
		prompt = prompt + "\n\nContext:\n" + req.Context
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
	}
	if req.System != "" {
		payload["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": req.System}},
		}
	}
	if req.JSON {
		payload["generationConfig"] = map[string]interface{}{
			"responseMimeType": "application/json",
		}
	}
	return json.Marshal(payload)
}

func (c *Client) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.cfg.Models.Classify
}

func (c *Client) endpoint(modelName string, stream bool) string {
	if c.baseURL != "" {
		if stream {
			return c.baseURL + "/" + modelName + ":streamGenerateContent?alt=sse"
		}
		return c.baseURL + "/" + modelName + ":generateContent"
	}
	if stream {
		return c.cfg.StreamEndpoint(modelName)
	}
	return c.cfg.ModelEndpoint(modelName)
}

func (c *Client) mockResponse(req Request, modelName string) *Response {
	text := "Mock generation is enabled because no API key is configured."
	if req.JSON {
		text = "{}"
	}
	return &Response{Text: text, Model: "mock:" + modelName, FinishReason: "STOP"}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
