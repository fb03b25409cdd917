package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ivivacare/smartclinic/internal/llm"
)

// DecisionKind identifies the variant of a reasoning decision.
type DecisionKind int

const (
	// DecisionUseTool selects a named tool with parameters.
	DecisionUseTool DecisionKind = iota

	// DecisionDirectAnswer answers without touching any tool.
	DecisionDirectAnswer

	// DecisionOutOfScope declines the request as outside the
	// specialties and appointments domain.
	DecisionOutOfScope
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionUseTool:
		return "use_tool"
	case DecisionDirectAnswer:
		return "answer_directly"
	case DecisionOutOfScope:
		return "out_of_scope"
	default:
		return "unknown"
	}
}

// Decision is the closed result union of the reasoning stage. Action
// and Params are meaningful for DecisionUseTool, Answer for
// DecisionDirectAnswer. Reasoning is always populated.
type Decision struct {
	Kind      DecisionKind
	Action    string
	Params    map[string]string
	Answer    string
	Reasoning string
}

const defaultReasoning = "no reasoning provided"

// modelDecision is the JSON shape the model is instructed to emit.
// Parameter values arrive untyped; the model sends numbers for IDs.
type modelDecision struct {
	Decision   string         `json:"decision"`
	ActionType string         `json:"action_type"`
	Parameters map[string]any `json:"parameters"`
	Answer     string         `json:"answer"`
	Reasoning  string         `json:"reasoning"`
}

// parseDecision ingests the model's free-form reasoning output. It
// locates the first balanced JSON object in the text and maps it onto
// the decision union. Anything unparseable becomes OutOfScope with an
// explanatory reasoning string; this function never fails.
func parseDecision(text string) Decision {
	raw, ok := llm.ExtractJSONObject(text)
	if !ok {
		return Decision{
			Kind:      DecisionOutOfScope,
			Reasoning: "model output contained no JSON decision object",
		}
	}

	var md modelDecision
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return Decision{
			Kind:      DecisionOutOfScope,
			Reasoning: fmt.Sprintf("model decision JSON did not parse: %v", err),
		}
	}

	reasoning := strings.TrimSpace(md.Reasoning)
	if reasoning == "" {
		reasoning = defaultReasoning
	}

	switch strings.ToLower(strings.TrimSpace(md.Decision)) {
	case "use_tool":
		if strings.TrimSpace(md.ActionType) == "" {
			return Decision{
				Kind:      DecisionOutOfScope,
				Reasoning: "model chose use_tool without naming an action_type",
			}
		}
		return Decision{
			Kind:      DecisionUseTool,
			Action:    strings.TrimSpace(md.ActionType),
			Params:    stringifyParams(md.Parameters),
			Reasoning: reasoning,
		}
	case "answer_directly":
		return Decision{
			Kind:      DecisionDirectAnswer,
			Answer:    md.Answer,
			Reasoning: reasoning,
		}
	case "out_of_scope":
		return Decision{Kind: DecisionOutOfScope, Reasoning: reasoning}
	default:
		return Decision{
			Kind:      DecisionOutOfScope,
			Reasoning: fmt.Sprintf("model decision field %q is not a known variant", md.Decision),
		}
	}
}

// stringifyParams flattens untyped JSON parameter values to strings.
// Numbers lose any ".0" suffix so numeric IDs survive round-tripping.
func stringifyParams(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case nil:
			// absent
		case string:
			out[k] = t
		case bool:
			out[k] = fmt.Sprintf("%t", t)
		case float64:
			if t == float64(int64(t)) {
				out[k] = fmt.Sprintf("%d", int64(t))
			} else {
				out[k] = fmt.Sprintf("%g", t)
			}
		default:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	return out
}
