package session

import (
	"time"

	"github.com/Seednode/partyclient/protocol"
)

// Phase is the session's top-level state.
type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseRound    Phase = "ROUND"
	PhaseGrading  Phase = "GRADING"
	PhaseResults  Phase = "RESULTS"
	PhaseGameOver Phase = "GAME_OVER"
)

const (
	DefaultRounds               = 3
	DefaultRoundDuration        = 60 * time.Second
	DefaultIntermissionDuration = 120 * time.Second
)

// Player is one participant. Position is nil until the first world
// update names this player; smoothed positions live in the motion loop.
type Player struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	IsLocal      bool          `json:"isLocal"`
	IsRoomLeader bool          `json:"isRoomLeader"`
	Position     *protocol.Vec `json:"position,omitempty"`
	Score        float64       `json:"score"`
	Feedback     []string      `json:"feedback,omitempty"`

	// Locally owned: never part of a roster snapshot unless the server
	// chooses to send them explicitly.
	HasSubmittedThisRound  bool   `json:"hasSubmittedThisRound"`
	LastObservedVideoFrame string `json:"lastObservedVideoFrame,omitempty"`
	CameraEnabled          bool   `json:"cameraEnabled"`
}

type LeaderboardEntry struct {
	PlayerID    string  `json:"playerId"`
	DisplayName string  `json:"displayName"`
	Score       float64 `json:"score"`
}

type ChosenSettings struct {
	NumRounds int   `json:"numRounds"`
	AllVotes  []int `json:"allVotes"`
}

type Invite struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
}

// Coffee tracks the private two-party channel.
type Coffee struct {
	Invite    *Invite `json:"invite,omitempty"`
	PartnerID string  `json:"partnerId,omitempty"`
}

// MediaNotice is the persistent, non-blocking notice shown when a capture
// device could not be opened.
type MediaNotice struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// State is the whole session. It is treated as a value: the reducer
// never mutates the State it is given.
type State struct {
	RoomCode  string   `json:"roomCode"`
	LocalID   string   `json:"localId"`
	LocalName string   `json:"localName"`
	Phase     Phase    `json:"phase"`
	Roster    []Player `json:"roster"`

	Settings           protocol.Settings `json:"settings"`
	Votes              map[string]int    `json:"votes,omitempty"`
	IsChoosingSettings bool              `json:"isChoosingSettings"`
	IsStarting         bool              `json:"isStarting"`
	Chosen             *ChosenSettings   `json:"chosenSettings,omitempty"`

	Question             *protocol.Question `json:"question,omitempty"`
	RoundDeadline        time.Time          `json:"roundDeadline"`
	IntermissionDuration time.Duration      `json:"intermissionDuration"`
	IntermissionDeadline time.Time          `json:"intermissionDeadline"`
	Leaderboard          []LeaderboardEntry `json:"leaderboard"`

	Coffee    Coffee        `json:"coffee"`
	LastError string        `json:"lastError,omitempty"`
	Media     []MediaNotice `json:"media,omitempty"`
}

// New returns the empty state of the entry screen.
func New() State {
	return State{
		Phase: PhaseLobby,
		Settings: protocol.Settings{
			NumRounds:     DefaultRounds,
			RoundDuration: int(DefaultRoundDuration / time.Second),
		},
		IntermissionDuration: DefaultIntermissionDuration,
	}
}

// Local returns the local player's record, if identity is established
// and the record exists.
func (s State) Local() (Player, bool) {
	if s.LocalID == "" {
		return Player{}, false
	}
	return s.Player(s.LocalID)
}

// Player looks a record up by id.
func (s State) Player(id string) (Player, bool) {
	for _, p := range s.Roster {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Positions returns the authoritative position of every player that has
// one, keyed by id.
func (s State) Positions() map[string]protocol.Vec {
	out := make(map[string]protocol.Vec, len(s.Roster))
	for _, p := range s.Roster {
		if p.Position != nil {
			out[p.ID] = *p.Position
		}
	}
	return out
}

// Clone deep-copies everything a caller could mutate through.
func (s State) Clone() State {
	c := s
	if s.Roster != nil {
		c.Roster = make([]Player, len(s.Roster))
		for i, p := range s.Roster {
			c.Roster[i] = p.clone()
		}
	}
	if s.Votes != nil {
		c.Votes = make(map[string]int, len(s.Votes))
		for k, v := range s.Votes {
			c.Votes[k] = v
		}
	}
	if s.Chosen != nil {
		ch := *s.Chosen
		ch.AllVotes = append([]int(nil), s.Chosen.AllVotes...)
		c.Chosen = &ch
	}
	if s.Question != nil {
		q := *s.Question
		c.Question = &q
	}
	if s.Coffee.Invite != nil {
		inv := *s.Coffee.Invite
		c.Coffee.Invite = &inv
	}
	c.Leaderboard = append([]LeaderboardEntry(nil), s.Leaderboard...)
	c.Media = append([]MediaNotice(nil), s.Media...)
	return c
}

func (p Player) clone() Player {
	c := p
	if p.Position != nil {
		pos := *p.Position
		c.Position = &pos
	}
	if p.Feedback != nil {
		c.Feedback = append([]string(nil), p.Feedback...)
	}
	return c
}
