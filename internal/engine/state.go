package engine

import "fmt"

// State is a step of the sync state machine. States are ordered; a run
// moves strictly forward.
type State int

const (
	StateScraped State = iota
	StateClassified
	StateFetching
	StateMerged
	StatePersisted
	StateManifested
)

var stateNames = [...]string{
	StateScraped:    "scraped",
	StateClassified: "classified",
	StateFetching:   "fetching",
	StateMerged:     "merged",
	StatePersisted:  "persisted",
	StateManifested: "manifested",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name in reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s is the success state.
func (s State) Terminal() bool {
	return s == StateManifested
}
