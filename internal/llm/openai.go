package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ivivacare/smartclinic/internal/httpkit"
)

// OpenAIClient talks to any endpoint speaking the OpenAI chat
// completions wire format (LM Studio, llama.cpp server, vLLM).
// It performs exactly one outbound call per Chat invocation with a
// bounded generation length and a fixed sampling temperature.
type OpenAIClient struct {
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// endpoint is the full chat completions URL
// (e.g. http://localhost:1234/v1/chat/completions).
func NewOpenAIClient(endpoint, model string, temperature float64, maxTokens int, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = "local-model"
	}
	if maxTokens <= 0 {
		maxTokens = 800
	}

	// Local models can take a while before sending headers on long
	// prompts. Use a custom transport with a generous response header
	// timeout rather than the shared default.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &OpenAIClient{
		endpoint:    endpoint,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger.With("provider", "openai-compatible"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(3*time.Minute),
			httpkit.WithTransport(t),
		),
	}
}

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Chat sends a chat completion request. Failures are surfaced as
// *GatewayError; the response is never silently empty on error.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &GatewayError{Op: "chat", Err: err}
	}

	c.logger.Log(ctx, LevelTrace, "llm request", "payload", string(payload))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &GatewayError{Op: "chat", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{Op: "chat", Err: err}
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return nil, &GatewayError{Op: "chat", Status: resp.StatusCode, Body: body}
	}

	var chatResp Response
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &GatewayError{Op: "chat", Err: err}
	}

	c.logger.Debug("llm response",
		"model", chatResp.Model,
		"choices", len(chatResp.Choices),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
		"duration", time.Since(start).Truncate(time.Millisecond),
	)

	return &chatResp, nil
}
