package agent

import (
	"strings"
	"testing"
)

func TestParseDecisionUseTool(t *testing.T) {
	text := `Let me think about this.
{"decision": "use_tool", "action_type": "get_session_slots", "parameters": {"resource_id": 77, "session_id": "5"}, "reasoning": "user wants open slots"}
Hope that helps.`

	d := parseDecision(text)
	if d.Kind != DecisionUseTool {
		t.Fatalf("Kind = %v, want %v", d.Kind, DecisionUseTool)
	}
	if d.Action != "get_session_slots" {
		t.Errorf("Action = %q", d.Action)
	}
	if d.Params["resource_id"] != "77" {
		t.Errorf("resource_id = %q, want numeric value stringified", d.Params["resource_id"])
	}
	if d.Params["session_id"] != "5" {
		t.Errorf("session_id = %q", d.Params["session_id"])
	}
	if d.Reasoning != "user wants open slots" {
		t.Errorf("Reasoning = %q", d.Reasoning)
	}
}

func TestParseDecisionDirectAnswer(t *testing.T) {
	d := parseDecision(`{"decision": "answer_directly", "answer": "We open at 8am."}`)
	if d.Kind != DecisionDirectAnswer {
		t.Fatalf("Kind = %v", d.Kind)
	}
	if d.Answer != "We open at 8am." {
		t.Errorf("Answer = %q", d.Answer)
	}
	if d.Reasoning != defaultReasoning {
		t.Errorf("Reasoning = %q, want default placeholder", d.Reasoning)
	}
}

func TestParseDecisionOutOfScope(t *testing.T) {
	d := parseDecision(`{"decision": "out_of_scope", "reasoning": "asked about the weather"}`)
	if d.Kind != DecisionOutOfScope {
		t.Fatalf("Kind = %v", d.Kind)
	}
	if d.Reasoning != "asked about the weather" {
		t.Errorf("Reasoning = %q", d.Reasoning)
	}
}

func TestParseDecisionMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no json at all", "I am not sure what you mean."},
		{"unbalanced braces", `{"decision": "use_tool"`},
		{"unknown variant", `{"decision": "ponder"}`},
		{"use_tool without action", `{"decision": "use_tool", "parameters": {}}`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := parseDecision(tt.text)
			if d.Kind != DecisionOutOfScope {
				t.Errorf("Kind = %v, want %v", d.Kind, DecisionOutOfScope)
			}
			if d.Reasoning == "" {
				t.Error("Reasoning is empty, want explanation")
			}
		})
	}
}

func TestStringifyParams(t *testing.T) {
	out := stringifyParams(map[string]any{
		"a": "text",
		"b": float64(42),
		"c": 1.5,
		"d": true,
		"e": nil,
	})
	if out["a"] != "text" || out["b"] != "42" || out["c"] != "1.5" || out["d"] != "true" {
		t.Errorf("stringifyParams = %v", out)
	}
	if _, ok := out["e"]; ok {
		t.Error("nil value should be dropped")
	}
}

func TestSelectAppointmentTool(t *testing.T) {
	tests := []struct {
		utterance string
		want      string
	}{
		{"book appointment", "create_walkin"},
		{"I want to book an appointment with a cardiologist", "create_walkin"},
		{"any slots for cardiology today", "get_session_slots"},
		{"what are today's appointments", "get_today_appointments"},
		{"show ongoing visits", "get_ongoing_visits"},
		{"what is the patient journey for my visit", "get_patient_journey"},
		{"do I have a follow-up appointment", "get_appointment_followup"},
		{"what's my appointment number", "get_appointment_number"},
		{"check in for my appointment", "create_visit"},
		{"when is my appointment", "get_today_appointments"},
	}
	for _, tt := range tests {
		if got := selectAppointmentTool(tt.utterance); got != tt.want {
			t.Errorf("selectAppointmentTool(%q) = %q, want %q", tt.utterance, got, tt.want)
		}
	}
}

func TestDecisionKindString(t *testing.T) {
	if got := DecisionUseTool.String(); got != "use_tool" {
		t.Errorf("String() = %q", got)
	}
	if got := DecisionKind(99).String(); !strings.Contains(got, "unknown") {
		t.Errorf("String() = %q", got)
	}
}
