package llm

import (
	"fmt"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Response is the chat completion response in OpenAI wire format.
type Response struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

// Choice is a single completion candidate.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Text returns the first choice's message content, or "" when the
// response carries no choices. Models sometimes return empty choice
// lists on content-filter trips; callers treat "" as a parse failure.
func (r *Response) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// GatewayError is returned for any failure talking to the model
// endpoint: transport errors, non-2xx statuses, undecodable bodies.
// The gateway never swallows a failure into an empty response.
type GatewayError struct {
	Op     string // "chat"
	Status int    // HTTP status, 0 for transport errors
	Body   string // truncated response body, if any
	Err    error  // underlying error, if any
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm %s: status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ExtractJSONObject returns the first balanced JSON object substring in
// s. Models routinely wrap their JSON in prose or markdown fences; this
// scans for the first '{' and walks to its matching '}', honoring string
// literals and escape sequences so braces inside strings don't count.
// Returns ok=false when no balanced object exists.
func ExtractJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if start == -1 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
