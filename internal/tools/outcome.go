package tools

// OutcomeKind identifies the result variant of a dispatch.
type OutcomeKind int

const (
	// OutcomeSuccess means the tool ran and Result holds its payload.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeNeedsParameters means required parameters were missing.
	// Requirement describes what the user must supply. The tool was
	// not executed.
	OutcomeNeedsParameters

	// OutcomeFailure means the tool was unknown or its execution
	// failed. Err holds the description. Terminal for this turn.
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNeedsParameters:
		return "needs_parameters"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the closed result union of a dispatch. Exactly one of
// Result, Requirement, or Err is meaningful, selected by Kind.
type Outcome struct {
	Kind        OutcomeKind
	Result      any          // OutcomeSuccess
	Requirement *Requirement // OutcomeNeedsParameters
	Err         string       // OutcomeFailure
}
