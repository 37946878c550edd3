package session

import (
	"time"

	"github.com/Seednode/partyclient/protocol"
)

// Apply returns the state that follows s once ev has been observed at
// now. It never mutates s, starts timers or fails: events it does not
// understand return s unchanged.
func Apply(s State, ev Event, now time.Time) State {
	switch e := ev.(type) {
	case protocol.VideoUpdate:
		if e.ID == "" || (s.LocalID != "" && e.ID == s.LocalID) {
			return s
		}
		if _, ok := s.Player(e.ID); !ok {
			return s
		}
	case protocol.AudioUpdate, protocol.Unknown:
		return s
	}

	next := s.Clone()

	switch e := ev.(type) {
	case JoinRoom:
		if next.RoomCode == "" {
			next.RoomCode = e.RoomCode
		}
		if next.LocalName == "" {
			next.LocalName = e.Name
		}

	case protocol.RoomCreated:
		if next.RoomCode == "" {
			next.RoomCode = e.RoomCode
		}

	case protocol.Welcome:
		if e.ID == "" || (next.LocalID != "" && next.LocalID != e.ID) {
			return s
		}
		next.LocalID = e.ID
		if e.Username != "" {
			next.LocalName = e.Username
		}
		if _, ok := next.Player(e.ID); !ok {
			next.Roster = append(next.Roster, Player{ID: e.ID, Name: next.LocalName})
		}

	case protocol.ServerError:
		next.LastError = e.Message

	case protocol.PlayerUpdate:
		next.Roster = mergeRoster(next.Roster, e.Players, next.LocalID)

	case protocol.SettingsUpdate:
		next.Settings = e.Settings
		next.Votes = nil
		if len(e.Votes) > 0 {
			next.Votes = make(map[string]int, len(e.Votes))
			for k, v := range e.Votes {
				next.Votes[k] = v
			}
		}

	case protocol.SettingsChosen:
		next.IsChoosingSettings = true
		next.Chosen = &ChosenSettings{
			NumRounds: e.Winner,
			AllVotes:  append([]int(nil), e.AllVotes...),
		}

	case protocol.GameStarting:
		next.IsStarting = true

	case protocol.NewQuestion:
		q := e.Question
		next.Phase = PhaseRound
		next.Question = &q
		next.IsChoosingSettings = false
		next.IsStarting = false
		next.Chosen = nil
		next.RoundDeadline = now.Add(roundDuration(next.Settings))
		for i := range next.Roster {
			next.Roster[i].HasSubmittedThisRound = false
		}

	case protocol.GradingStarted:
		next.Phase = PhaseGrading

	case protocol.GradingComplete:
		if i := next.indexOf(next.LocalID); i >= 0 {
			next.Roster[i].Score = e.Result.Score
			next.Roster[i].Feedback = append([]string(nil), e.Result.Feedback...)
			next.Roster[i].HasSubmittedThisRound = true
		}

	case protocol.RoundOver:
		next.Phase = PhaseResults
		next.Leaderboard = leaderboard(next, e.Leaderboard)
		applyScores(&next, e.Leaderboard)
		for i := range next.Roster {
			next.Roster[i].HasSubmittedThisRound = true
		}
		d := next.IntermissionDuration
		if e.IntermissionDuration > 0 {
			d = time.Duration(e.IntermissionDuration * float64(time.Second))
		}
		next.IntermissionDeadline = now.Add(d)

	case protocol.GameOver:
		next.Phase = PhaseGameOver
		next.Leaderboard = leaderboard(next, e.Leaderboard)
		applyScores(&next, e.Leaderboard)

	case protocol.VideoUpdate:
		next.Roster[next.indexOf(e.ID)].LastObservedVideoFrame = e.Frame

	case protocol.WorldUpdate:
		for i := range next.Roster {
			if pos, ok := e.Players[next.Roster[i].ID]; ok {
				next.Roster[i].Position = &protocol.Vec{X: pos.X, Y: pos.Y}
			}
		}

	case protocol.CoffeeInvite:
		next.Coffee.Invite = &Invite{SenderID: e.SenderID, SenderName: e.SenderName}

	case protocol.CoffeeStart:
		next.Coffee.PartnerID = e.PartnerID
		next.Coffee.Invite = nil

	case protocol.CoffeeEnded:
		next.Coffee.PartnerID = ""

	case LocalSubmitted:
		if i := next.indexOf(next.LocalID); i >= 0 {
			next.Roster[i].HasSubmittedThisRound = true
		}

	case MediaUnavailable:
		notice := MediaNotice{Kind: e.Device, Reason: e.Reason}
		replaced := false
		for i := range next.Media {
			if next.Media[i].Kind == e.Device {
				next.Media[i] = notice
				replaced = true
			}
		}
		if !replaced {
			next.Media = append(next.Media, notice)
		}

	case Reset:
		return New()

	default:
		return s
	}

	next.Roster = resolveLocal(next.Roster, next.LocalID)

	return next
}

func roundDuration(s protocol.Settings) time.Duration {
	if s.RoundDuration <= 0 {
		return DefaultRoundDuration
	}
	return time.Duration(s.RoundDuration) * time.Second
}

func (s State) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.Roster {
		if s.Roster[i].ID == id {
			return i
		}
	}
	return -1
}

// leaderboard replaces any prior standings wholesale. Missing display
// names are filled from the roster.
func leaderboard(s State, entries []protocol.LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Username
		if name == "" {
			if p, ok := s.Player(e.UserID); ok {
				name = p.Name
			}
		}
		out = append(out, LeaderboardEntry{PlayerID: e.UserID, DisplayName: name, Score: e.Score})
	}
	return out
}

func applyScores(s *State, entries []protocol.LeaderboardEntry) {
	for _, e := range entries {
		if i := s.indexOf(e.UserID); i >= 0 {
			s.Roster[i].Score = e.Score
		}
	}
}
