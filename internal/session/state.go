package session

// State is the lifecycle state of a recording session.
type State int

const (
	Idle State = iota
	CountingDown
	Recording
	Stopped
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CountingDown:
		return "counting_down"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible without Reset.
func (s State) Terminal() bool {
	return s == Stopped || s == Cancelled
}

// Active reports whether a session holds a running process.
func (s State) Active() bool {
	return s == CountingDown || s == Recording
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
