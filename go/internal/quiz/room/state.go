package room

import "fmt"

// State is a room's position in the game lifecycle.
type State int

const (
	StateNotStarted State = iota
	StateWait
	StateStarting
	StateAskingQuestion
	StateWaitingResults
	StateShowResults
	StateLastQuestion
	StateShowFinalResults
	StateGameOver
)

var stateNames = map[State]string{
	StateNotStarted:       "NOT_STARTED",
	StateWait:             "WAIT",
	StateStarting:         "STARTING",
	StateAskingQuestion:   "ASKING_QUESTION",
	StateWaitingResults:   "WAITING_RESULTS",
	StateShowResults:      "SHOW_RESULTS",
	StateLastQuestion:     "LAST_QUESTION",
	StateShowFinalResults: "SHOW_FINAL_RESULTS",
	StateGameOver:         "GAME_OVER",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// MarshalText encodes the state by name so that it reads well on the wire.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the legal forward edges. Any non-terminal state may also
// move to StateGameOver.
var transitions = map[State][]State{
	StateWait:             {StateStarting},
	StateStarting:         {StateAskingQuestion},
	StateAskingQuestion:   {StateWaitingResults},
	StateWaitingResults:   {StateShowResults, StateLastQuestion},
	StateShowResults:      {StateAskingQuestion},
	StateLastQuestion:     {StateShowFinalResults},
	StateShowFinalResults: {StateGameOver},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	if from == StateGameOver {
		return false
	}
	if to == StateGameOver {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
