package refine

// State is a step of the refinement state machine for one diagram.
type State string

// Refinement states, in pipeline order.
const (
	StateInitial   State = "INITIAL"
	StateRendered  State = "RENDERED"
	StateCompiled  State = "COMPILED"
	StateCritiqued State = "CRITIQUED"
	StateExtracted State = "EXTRACTED"
	StateMerged    State = "MERGED"
	StateRendered2 State = "RENDERED2"
	StateFinal     State = "FINAL"
)

func (s State) String() string { return string(s) }

// validTransitions defines the refinement state machine transition rules.
//
//nolint:gochecknoglobals // Intentional package-level constant for state machine definition
var validTransitions = map[State][]State{
	StateInitial: {
		StateRendered,
	},
	StateRendered: {
		StateCompiled,
		StateFinal, // compile failed: partial
	},
	StateCompiled: {
		StateCritiqued,
		StateFinal, // diagram type not refined
	},
	StateCritiqued: {
		StateExtracted,
		StateFinal, // empty feedback
	},
	StateExtracted: {
		StateMerged,
	},
	StateMerged: {
		StateRendered2,
	},
	StateRendered2: {
		StateFinal, // recompiled, or recompile failed
	},
	StateFinal: {
		// Terminal
	},
}

// IsValidTransition reports whether the state machine allows from -> to.
func IsValidTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalState reports whether no further transitions are possible.
func IsTerminalState(s State) bool {
	return s == StateFinal
}
