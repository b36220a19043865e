package macro

// State is the macro loop's position in the reservation cycle. The
// machine is an explicit enum driven by Loop.Run; every transition
// happens in exactly one handler, never by recursion.
type State int

const (
	StateInit State = iota
	StateSearching
	StateCandidateSelected
	StateReserving
	StateReserved
	StatePaying
	StateNotifying
	StateReauth
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateInit:              "INIT",
	StateSearching:         "SEARCHING",
	StateCandidateSelected: "CANDIDATE_SELECTED",
	StateReserving:         "RESERVING",
	StateReserved:          "RESERVED",
	StatePaying:            "PAYING",
	StateNotifying:         "NOTIFYING",
	StateReauth:            "REAUTH",
	StateDone:              "DONE",
	StateFailed:            "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s State) terminal() bool {
	return s == StateDone || s == StateFailed
}
