package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ivivacare/smartclinic/internal/intent"
	"github.com/ivivacare/smartclinic/internal/llm"
)

const (
	greetingReply = "Hello! I'm the SmartClinic assistant. I can help you with " +
		"doctor specialties and appointments. What can I do for you today?"

	howAreYouReply = "I'm doing well, thank you for asking! I'm here to help " +
		"you with doctor specialties and appointments. What can I do for you?"

	outOfScopeReply = "I can only help with doctor specialties and hospital " +
		"appointments. Is there anything in those areas I can do for you?"

	gatewayDownReply = "I'm having trouble thinking that one through right now. " +
		"Could you ask me about doctor specialties or appointments in a different way?"
)

const reasoningSystemPrompt = `You are a hospital assistant. You ONLY help with doctor specialties and appointments. Anything else is out of scope.

You have these tools:
%s
Reply with a single JSON object and nothing else:
{"decision": "use_tool", "action_type": "<tool name>", "parameters": {"<name>": "<value>"}, "reasoning": "<one sentence>"}
or
{"decision": "answer_directly", "answer": "<your answer>", "reasoning": "<one sentence>"}
or
{"decision": "out_of_scope", "reasoning": "<one sentence>"}

Rules:
- Only use parameter values the user actually stated. Never invent patient, visit, or appointment identifiers.
- If the request is not about doctor specialties or appointments, choose out_of_scope.`

// appointmentBuckets route an appointment-intent utterance to one of
// the registered tools by keyword. First match wins; order matters
// because "slots for today" must hit the slot lookup, not the today
// list.
var appointmentBuckets = []struct {
	terms []string
	tool  string
}{
	{[]string{"ongoing", "in progress"}, "get_ongoing_visits"},
	{[]string{"journey", "status of my visit", "where is the patient"}, "get_patient_journey"},
	{[]string{"follow-up", "follow up", "followup"}, "get_appointment_followup"},
	{[]string{"appointment number"}, "get_appointment_number"},
	{[]string{"check in", "check-in", "start my visit"}, "create_visit"},
	{[]string{"slot", "session"}, "get_session_slots"},
	{[]string{"walk-in", "walk in", "book", "schedule", "reschedule", "make an appointment", "new appointment"}, "create_walkin"},
	{[]string{"available doctor", "find a doctor", "which doctor", "availability"}, "get_user_dataset"},
	{[]string{"today"}, "get_today_appointments"},
}

// defaultAppointmentTool handles appointment-intent utterances no
// bucket claims.
const defaultAppointmentTool = "get_today_appointments"

func selectAppointmentTool(utterance string) string {
	q := strings.ToLower(utterance)
	for _, b := range appointmentBuckets {
		for _, term := range b.terms {
			if strings.Contains(q, term) {
				return b.tool
			}
		}
	}
	return defaultAppointmentTool
}

// reason runs the reasoning stage for an already classified utterance:
// templated replies and deterministic tool routing where the classifier
// decided, model consult only for unclassified utterances. Always
// returns a usable decision.
func (a *Agent) reason(ctx context.Context, utterance string, label intent.Label) Decision {
	switch label {
	case intent.Greeting:
		reply := greetingReply
		if intent.IsHowAreYou(utterance) {
			reply = howAreYouReply
		}
		return Decision{
			Kind:      DecisionDirectAnswer,
			Answer:    reply,
			Reasoning: "greeting detected by classifier",
		}

	case intent.Appointment:
		tool := selectAppointmentTool(utterance)
		return Decision{
			Kind:      DecisionUseTool,
			Action:    tool,
			Params:    map[string]string{},
			Reasoning: fmt.Sprintf("appointment intent routed to %s", tool),
		}

	case intent.Specialty:
		params := map[string]string{"query": utterance}
		if intent.IsFullListRequest(utterance, a.recentAssistantTurns()) {
			params["is_full_list"] = "true"
		}
		return Decision{
			Kind:      DecisionUseTool,
			Action:    "get_doctor_specialties",
			Params:    params,
			Reasoning: "specialty intent detected by classifier",
		}

	default:
		return a.consultModel(ctx, utterance)
	}
}

// consultModel asks the language model to decide. Gateway failure
// degrades to a direct in-scope invitation; unparseable output becomes
// an out-of-scope decision inside parseDecision.
func (a *Agent) consultModel(ctx context.Context, utterance string) Decision {
	system := fmt.Sprintf(reasoningSystemPrompt, a.tools.Catalog())

	// The current utterance is already the last history entry.
	messages := make([]llm.Message, 0, historyWindow+1)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, a.historyTail(historyWindow)...)

	resp, err := a.llm.Chat(ctx, messages)
	if err != nil {
		a.logger.Warn("reasoning model call failed", "error", err)
		return Decision{
			Kind:      DecisionDirectAnswer,
			Answer:    gatewayDownReply,
			Reasoning: "model gateway unavailable during reasoning",
		}
	}

	d := parseDecision(resp.Text())
	a.logger.Debug("model decision",
		"kind", d.Kind.String(),
		"action", d.Action,
		"reasoning", d.Reasoning,
	)
	return d
}
