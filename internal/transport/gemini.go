// File: internal/transport/gemini.go
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jlindermeir/ami0/internal/config"
	"github.com/jlindermeir/ami0/internal/schema"
)

// GeminiClient implements Client against the Google Gemini generateContent
// API, enforcing the composed reply schema through constrained decoding.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	cfg        config.LLMConfig

	// Retry policy knobs, overridable in tests.
	retryMaxElapsed  time.Duration
	retryMaxInterval time.Duration
}

var _ Client = (*GeminiClient)(nil)

// -- Gemini API request/response structures (internal to this file) --

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature        float32      `json:"temperature"`
	MaxOutputTokens    int          `json:"maxOutputTokens,omitempty"`
	ResponseMimeType   string       `json:"response_mime_type,omitempty"`
	ResponseJSONSchema *schema.Node `json:"response_json_schema,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes the client from configuration.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	return &GeminiClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger:           logger.Named("transport.gemini"),
		limiter:          rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		retryMaxElapsed:  2 * time.Minute,
		retryMaxInterval: 30 * time.Second,
	}, nil
}

// Complete sends the conversation to the Gemini API with the reply schema
// attached and decodes the structured result. Network and provider failures
// are retried with exponential backoff and surfaced as *Error; undecodable
// payloads are surfaced as schema violations without retrying.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*Reply, error) {
	payload := c.buildRequestPayload(req)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Op: "marshal request", Err: err}
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retryMaxElapsed
	b.MaxInterval = c.retryMaxInterval

	var content string

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload geminiResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(responsePayload.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := responsePayload.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (reason: %s)", candidate.FinishReason)
		}

		content = candidate.Content.Parts[0].Text
		c.logger.Debug("LLM generation complete",
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", responsePayload.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", responsePayload.UsageMetadata.CandidatesTokenCount),
		)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, &Error{Op: "generate", Err: err}
	}

	// Schema violations are not a transport concern to retry: the agent
	// loop handles them with a corrective message on the next turn.
	reply, err := DecodeReply(req.Schema, content)
	if err != nil {
		c.logger.Warn("Model reply failed schema validation",
			zap.String("raw_response", content),
			zap.Error(err))
		return nil, err
	}
	return reply, nil
}

// buildRequestPayload maps the neutral request onto the Gemini wire format.
// Gemini has no system role inside contents, so system messages injected by
// the loop become annotated user turns.
func (c *GeminiClient) buildRequestPayload(req Request) geminiRequestPayload {
	contents := make([]geminiContent, 0, len(req.History))
	for _, msg := range req.History {
		role := "user"
		parts := make([]geminiPart, 0, len(msg.Parts))
		switch msg.Role {
		case RoleAssistant:
			role = "model"
		case RoleSystem:
			parts = append(parts, geminiPart{Text: "[system] "})
		}
		for _, p := range msg.Parts {
			if len(p.Data) > 0 {
				parts = append(parts, geminiPart{InlineData: &geminiInlineData{MIMEType: p.MIME, Data: p.Data}})
			} else {
				parts = append(parts, geminiPart{Text: p.Text})
			}
		}
		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}

	payload := geminiRequestPayload{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:        c.cfg.Temperature,
			MaxOutputTokens:    c.cfg.MaxTokens,
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: req.Schema,
		},
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiSystemInstruction{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}
	return payload
}

// handleAPIError classifies an HTTP error status: quota and server errors
// are retried, everything else is permanent.
func (c *GeminiClient) handleAPIError(status int, body []byte) error {
	err := fmt.Errorf("gemini API error (status %d): %s", status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		c.logger.Warn("Rate limited by Gemini API, backing off...", zap.Int("status", status))
		return err
	case status >= 500:
		c.logger.Warn("Gemini API server error, retrying...", zap.Int("status", status))
		return err
	default:
		return backoff.Permanent(err)
	}
}
