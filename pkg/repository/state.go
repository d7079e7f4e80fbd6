package repository

// State is the type state of a repository. Whether a save is running is
// tracked separately, see Repository.Saving.
type State int

const (
	// StateNoTypeYet means no item has fixed the stored type.
	StateNoTypeYet State = iota
	// StateTypeFixed means the stored type is set and may still widen once.
	StateTypeFixed
	// StateTypeWidened means the one allowed widening has happened.
	StateTypeWidened
)

func (s State) String() string {
	switch s {
	case StateNoTypeYet:
		return "no_type_yet"
	case StateTypeFixed:
		return "type_fixed"
	case StateTypeWidened:
		return "type_widened"
	default:
		return "unknown"
	}
}

// Outcome is what AddItem did with an item.
type Outcome int

const (
	// Rejected items are dropped.
	Rejected Outcome = iota
	// Appended items were stored as a new row.
	Appended
	// Widened items widened the stored type and were stored.
	Widened
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Widened:
		return "widened"
	default:
		return "rejected"
	}
}

// Stored reports whether the item became a row.
func (o Outcome) Stored() bool {
	return o == Appended || o == Widened
}
