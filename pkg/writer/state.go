package writer

// State is the lifecycle state of a StreamWriter.
//
//	Idle -> Writing <-> Paused
//	Writing, Paused -> Cancelled (cancel or I/O error)
//	Writing -> Completed (source exhausted)
type State int

const (
	StateIdle State = iota
	StateWriting
	StatePaused
	StateCancelled
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWriting:
		return "writing"
	case StatePaused:
		return "paused"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateCompleted
}

// Outcome is how a save ended.
type Outcome int

const (
	// OutcomeCompleted means every row of the source was written.
	OutcomeCompleted Outcome = iota
	// OutcomeCancelled means the save stopped early on request.
	OutcomeCancelled
	// OutcomeFailed means the output file could not be opened or written.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
