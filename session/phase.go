package session

import (
	"errors"
	"fmt"

	"github.com/Seednode/partyclient/protocol"
)

// ErrIllegalTransition is reported when the server drives the phase along
// an edge the state machine does not have. The transition is still
// applied; the server is the authority.
var ErrIllegalTransition = errors.New("illegal phase transition")

var edges = map[Phase][]Phase{
	PhaseLobby:   {PhaseRound},
	PhaseRound:   {PhaseGrading},
	PhaseGrading: {PhaseResults},
	PhaseResults: {PhaseRound, PhaseGameOver},
}

// TargetPhase reports the phase an event moves the session into.
func TargetPhase(ev Event) (Phase, bool) {
	switch ev.Kind() {
	case protocol.TypeNewQuestion:
		return PhaseRound, true
	case protocol.TypeGradingStarted:
		return PhaseGrading, true
	case protocol.TypeRoundOver:
		return PhaseResults, true
	case protocol.TypeGameOver:
		return PhaseGameOver, true
	}
	return "", false
}

// CheckTransition returns nil for the allowed edges
// LOBBY→ROUND→GRADING→RESULTS→(ROUND|GAME_OVER).
func CheckTransition(from, to Phase) error {
	for _, allowed := range edges[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
