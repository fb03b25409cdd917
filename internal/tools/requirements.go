package tools

import (
	"fmt"
	"sort"
	"strings"
)

// Requirement is the static parameter contract of a tool: which
// parameters it needs, which it accepts, and the literal prompt shown
// to the user when required ones are missing. Built once at
// registration and never mutated.
type Requirement struct {
	ToolName     string            `json:"tool_name"`
	Required     []string          `json:"required"`
	Optional     []string          `json:"optional,omitempty"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	UserMessage  string            `json:"user_message"`
}

// identityParams are parameters that identify a person, appointment, or
// visit. They are never default-filled: they must come from the user or
// the dispatch reports NeedsParameters. Guessing an identity would risk
// acting on the wrong patient.
var identityParams = map[string]bool{
	"patient_id":     true,
	"appointment_id": true,
	"visit_id":       true,
	"id_number":      true,
	"account_id":     true,
}

// IsIdentityParam reports whether a parameter is identity-bearing and
// therefore exempt from any default-filling policy.
func IsIdentityParam(name string) bool {
	return identityParams[name]
}

// buildUserMessage renders the literal prompt returned to the user when
// a tool's required parameters are missing. Deterministic: the agent
// returns this string verbatim without consulting the language model.
func buildUserMessage(t *Tool) string {
	if len(t.Required) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "To run %s I still need: ", t.Title)

	parts := make([]string, 0, len(t.Required))
	for _, name := range t.Required {
		if desc, ok := t.ParamDocs[name]; ok {
			parts = append(parts, fmt.Sprintf("%s (%s)", name, desc))
		} else {
			parts = append(parts, name)
		}
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(". Please provide them and I'll continue.")
	return b.String()
}

// requirement builds the static Requirement for a tool.
func requirement(t *Tool) *Requirement {
	req := &Requirement{
		ToolName:     t.Name,
		Required:     append([]string(nil), t.Required...),
		Optional:     append([]string(nil), t.Optional...),
		Descriptions: t.ParamDocs,
		UserMessage:  buildUserMessage(t),
	}
	sort.Strings(req.Optional)
	return req
}

// missingParams returns the required parameters that are absent or
// blank. A parameter counts as present only when its trimmed value is
// non-empty; forwarding blank identifiers downstream is never useful.
func missingParams(required []string, params map[string]string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(params[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
