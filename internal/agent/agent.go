// Package agent implements the conversational core: one agent instance
// per session drives a Reason, Act, Observe, Synthesize loop over a
// fixed tool registry and a language model, and always returns exactly
// one answer per user utterance.
package agent

import (
	"context"
	"log/slog"

	"github.com/ivivacare/smartclinic/internal/intent"
	"github.com/ivivacare/smartclinic/internal/llm"
	"github.com/ivivacare/smartclinic/internal/tools"
)

// historyWindow is how many prior turns accompany a model consult.
const historyWindow = 6

const apologyReply = "I'm sorry, something went wrong on my side. " +
	"Please try asking again."

// TurnRecord is the audit record of one completed turn.
type TurnRecord struct {
	Utterance string
	Intent    string
	Decision  string
	Action    string
	Reasoning string
	Answer    string
}

// DecisionRecorder receives the audit record of each turn. Recording
// must never affect the answer; implementations report their own
// failures through the returned error, which the agent only logs.
type DecisionRecorder interface {
	RecordTurn(ctx context.Context, rec TurnRecord) error
}

// Agent holds one conversation. Not safe for concurrent use: the
// history belongs to a single session, so callers run one Chat at a
// time per instance. The registry and model client are shared and
// read-only.
type Agent struct {
	llm      llm.Client
	tools    *tools.Registry
	logger   *slog.Logger
	recorder DecisionRecorder // optional

	history []llm.Message
}

// Option configures an Agent.
type Option func(*Agent)

// WithRecorder attaches a turn audit recorder.
func WithRecorder(r DecisionRecorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// New creates an agent for one conversation session.
func New(client llm.Client, registry *tools.Registry, logger *slog.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		llm:    client,
		tools:  registry,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []llm.Message {
	out := make([]llm.Message, len(a.history))
	copy(out, a.history)
	return out
}

// Chat handles one user utterance and returns the answer. It never
// fails and never panics: every error path inside the pipeline
// degrades to a user-facing string, and each user turn gets exactly
// one assistant turn in the history.
func (a *Agent) Chat(ctx context.Context, utterance string) (answer string) {
	a.history = append(a.history, llm.Message{Role: "user", Content: utterance})

	// Registered first so it runs after the recover below and always
	// sees the final answer.
	defer func() {
		a.history = append(a.history, llm.Message{Role: "assistant", Content: answer})
	}()
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("chat pipeline panicked", "panic", rec)
			answer = apologyReply
		}
	}()

	label := intent.Classify(utterance, a.recentAssistantTurns())
	a.logger.Debug("utterance classified", "intent", label.String())
	decision := a.reason(ctx, utterance, label)

	switch decision.Kind {
	case DecisionDirectAnswer:
		answer = decision.Answer

	case DecisionOutOfScope:
		answer = outOfScopeReply

	case DecisionUseTool:
		outcome := a.tools.Dispatch(ctx, decision.Action, decision.Params)
		switch outcome.Kind {
		case tools.OutcomeNeedsParameters:
			// Literal prompt, no model round-trip.
			answer = outcome.Requirement.UserMessage
		default:
			answer = a.synthesize(ctx, utterance, decision.Action, decision.Params, outcome)
		}
	}

	if answer == "" {
		answer = apologyReply
	}

	a.record(ctx, TurnRecord{
		Utterance: utterance,
		Intent:    label.String(),
		Decision:  decision.Kind.String(),
		Action:    decision.Action,
		Reasoning: decision.Reasoning,
		Answer:    answer,
	})
	return answer
}

func (a *Agent) record(ctx context.Context, rec TurnRecord) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.RecordTurn(ctx, rec); err != nil {
		a.logger.Warn("turn record failed", "error", err)
	}
}

// recentAssistantTurns returns the assistant side of the recent
// history, oldest first, for the classifier's follow-up resolution.
func (a *Agent) recentAssistantTurns() []string {
	var out []string
	for _, m := range a.historyTail(historyWindow) {
		if m.Role == "assistant" {
			out = append(out, m.Content)
		}
	}
	return out
}

// historyTail returns up to n most recent turns, oldest first.
func (a *Agent) historyTail(n int) []llm.Message {
	if len(a.history) <= n {
		return a.history
	}
	return a.history[len(a.history)-n:]
}
