package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ivivacare/smartclinic/internal/llm"
	"github.com/ivivacare/smartclinic/internal/tools"
)

const synthesisSystemPrompt = `You are a hospital assistant answering a user from tool output.

Use ONLY the information inside the DATA block. Do not add, infer, or invent anything that is not in it. If the data is an error, apologize briefly and say what went wrong in plain language. Answer in one short paragraph or a short list.`

// specialtyPreviewLimit bounds how many specialties a non-full-list
// answer may enumerate before switching to a count-and-offer sentence.
const specialtyPreviewLimit = 5

// previewThreshold is the result size above which a preview is used.
const previewThreshold = 11

// synthesize turns an action outcome into the final user-facing answer.
// The model is consulted with a grounding prompt; any gateway failure
// falls back to a deterministic template keyed by the tool name.
func (a *Agent) synthesize(ctx context.Context, utterance, action string, params map[string]string, out tools.Outcome) string {
	observation := buildObservation(action, params, out)

	messages := []llm.Message{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("QUESTION: %s\n\nDATA:\n%s", utterance, observation)},
	}

	resp, err := a.llm.Chat(ctx, messages)
	if err != nil {
		a.logger.Warn("synthesis model call failed, using template",
			"tool", action, "error", err)
		return fallbackAnswer(action, params, out)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return fallbackAnswer(action, params, out)
	}
	return answer
}

// buildObservation renders the outcome for the grounding prompt.
// Specialty results are pre-truncated here so a preview answer cannot
// leak the full list through the model.
func buildObservation(action string, params map[string]string, out tools.Outcome) string {
	if out.Kind == tools.OutcomeFailure {
		return "Error: " + out.Err
	}

	if action == "get_doctor_specialties" {
		if res, ok := out.Result.(tools.SpecialtyResult); ok {
			return specialtyAnswer(res, fullListRequested(params))
		}
	}

	raw, err := json.Marshal(out.Result)
	if err != nil {
		return fmt.Sprintf("%v", out.Result)
	}
	return string(raw)
}

func fullListRequested(params map[string]string) bool {
	return strings.EqualFold(params["is_full_list"], "true")
}

// specialtyAnswer renders a specialty result deterministically. Small
// results and explicit full-list requests enumerate everything; large
// previews show a handful and offer the rest.
func specialtyAnswer(res tools.SpecialtyResult, fullRequested bool) string {
	n := len(res.Specialties)
	if n == 0 {
		return "I couldn't find any specialties matching that."
	}

	if fullRequested || n < previewThreshold {
		var b strings.Builder
		fmt.Fprintf(&b, "We have %d specialties:\n", n)
		for _, s := range res.Specialties {
			fmt.Fprintf(&b, "- %s\n", s.Description)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "We have %d specialties, including:\n", n)
	for _, s := range res.Specialties[:specialtyPreviewLimit] {
		fmt.Fprintf(&b, "- %s\n", s.Description)
	}
	fmt.Fprintf(&b, "Would you like the full list?")
	return b.String()
}

// fallbackAnswer is the deterministic per-tool template table used when
// the synthesis gateway call fails. Every registered tool has an entry;
// unknown tools get the generic completion sentence.
func fallbackAnswer(action string, params map[string]string, out tools.Outcome) string {
	if out.Kind == tools.OutcomeFailure {
		return fmt.Sprintf("Sorry, I couldn't complete that request: %s", out.Err)
	}

	switch action {
	case "get_doctor_specialties":
		if res, ok := out.Result.(tools.SpecialtyResult); ok {
			return specialtyAnswer(res, fullListRequested(params))
		}
		return "I retrieved the specialty list, but couldn't format it. Please ask again."

	case "create_walkin":
		return "Your walk-in appointment has been booked."

	case "create_visit":
		return "Your visit has been created. You're checked in."

	case "activate_sso":
		return "Single sign-on has been activated for that account."

	case "get_today_appointments":
		return "I found today's appointments. " + summarizeCount(out.Result, "appointment")

	case "get_ongoing_visits":
		return "I found the ongoing visits. " + summarizeCount(out.Result, "visit")

	case "get_session_slots":
		return "I found the session slots. " + summarizeCount(out.Result, "open slot")

	case "get_user_dataset":
		return "I found matching appointment resources. " + summarizeCount(out.Result, "result")

	case "get_appointment_followup":
		return "I found the follow-up appointments. " + summarizeCount(out.Result, "follow-up")

	case "get_appointment_number":
		return "I looked up the appointment number for that visit."

	case "get_patient_journey":
		return "I retrieved the patient journey for that visit."

	case "search_by_id_number":
		return "I searched for that ID number. " + summarizeCount(out.Result, "match")

	case "init_appointments":
		return "The appointments reference data has been loaded."

	default:
		return "The operation completed successfully."
	}
}

// summarizeCount appends an item count when the result is a JSON list.
func summarizeCount(result any, noun string) string {
	items, ok := result.([]any)
	if !ok {
		return ""
	}
	if len(items) == 1 {
		return fmt.Sprintf("There is 1 %s.", noun)
	}
	return fmt.Sprintf("There are %d %ss.", len(items), noun)
}
