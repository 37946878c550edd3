package session

import (
	"testing"
	"time"

	"github.com/Seednode/partyclient/protocol"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func apply(s State, evs ...Event) State {
	for _, ev := range evs {
		s = Apply(s, ev, epoch)
	}
	return s
}

func roster(entries ...protocol.RosterEntry) protocol.PlayerUpdate {
	return protocol.PlayerUpdate{Players: entries}
}

func entry(id, name string, leader bool) protocol.RosterEntry {
	return protocol.RosterEntry{ID: id, Username: name, IsLeader: leader}
}

func localCount(s State) int {
	n := 0
	for _, p := range s.Roster {
		if p.IsLocal {
			n++
		}
	}
	return n
}

func TestApply_JoinAndFirstSnapshot(t *testing.T) {
	s := apply(New(),
		JoinRoom{RoomCode: "ABCD", Name: "Alice"},
		protocol.Welcome{ID: "p1", Username: "Alice"},
		roster(entry("p1", "Alice", true), entry("p2", "Bob", false)),
	)

	if s.RoomCode != "ABCD" {
		t.Errorf("RoomCode %q, want ABCD", s.RoomCode)
	}
	if len(s.Roster) != 2 {
		t.Fatalf("len(Roster) %d, want 2", len(s.Roster))
	}
	me, ok := s.Local()
	if !ok {
		t.Fatal("local player missing")
	}
	if me.ID != "p1" || !me.IsLocal || !me.IsRoomLeader {
		t.Errorf("local %+v, want p1 local leader", me)
	}
	bob, _ := s.Player("p2")
	if bob.IsLocal || bob.IsRoomLeader {
		t.Errorf("remote %+v, want non-local non-leader", bob)
	}
}

func TestApply_RosterMergePreservesLocalFields(t *testing.T) {
	s := apply(New(),
		protocol.Welcome{ID: "p1", Username: "Alice"},
		roster(entry("p1", "Alice", true), entry("p2", "Bob", false)),
		protocol.VideoUpdate{ID: "p2", Frame: "F"},
		protocol.WorldUpdate{Players: map[string]protocol.Vec{"p2": {X: 5, Y: 6}}},
	)
	s.Roster[1].HasSubmittedThisRound = true
	s.Roster[1].CameraEnabled = true

	s = apply(s, roster(entry("p1", "Alice", false), entry("p2", "Bobby", true)))

	bob, ok := s.Player("p2")
	if !ok {
		t.Fatal("p2 dropped")
	}
	if bob.LastObservedVideoFrame != "F" {
		t.Errorf("frame %q, want F", bob.LastObservedVideoFrame)
	}
	if !bob.HasSubmittedThisRound {
		t.Error("submission flag lost")
	}
	if !bob.CameraEnabled {
		t.Error("camera flag lost")
	}
	if bob.Position == nil || *bob.Position != (protocol.Vec{X: 5, Y: 6}) {
		t.Errorf("position %v, want {5 6}", bob.Position)
	}
	if bob.Name != "Bobby" || !bob.IsRoomLeader {
		t.Errorf("authoritative fields not applied: %+v", bob)
	}
}

func TestApply_RosterExplicitFieldsOverride(t *testing.T) {
	no := false
	s := apply(New(), roster(entry("p2", "Bob", false)))
	s.Roster[0].HasSubmittedThisRound = true

	e := entry("p2", "Bob", false)
	e.HasSubmitted = &no
	s = apply(s, roster(e))

	if s.Roster[0].HasSubmittedThisRound {
		t.Error("explicit has_submitted=false should override")
	}
}

func TestApply_RosterDropsAbsentPlayers(t *testing.T) {
	s := apply(New(), roster(entry("a", "A", false), entry("b", "B", false)))
	s = apply(s, roster(entry("a", "A", false)))

	if len(s.Roster) != 1 || s.Roster[0].ID != "a" {
		t.Errorf("roster %+v, want exactly a", s.Roster)
	}
}

func TestApply_RosterMergeKeysByIDNotName(t *testing.T) {
	s := apply(New(), roster(entry("a", "Sam", false), entry("b", "Sam", false)))
	s = apply(s, protocol.VideoUpdate{ID: "b", Frame: "FB"})
	s = apply(s, roster(entry("a", "Sam", false), entry("b", "Sam", false)))

	a, _ := s.Player("a")
	b, _ := s.Player("b")
	if a.LastObservedVideoFrame != "" || b.LastObservedVideoFrame != "FB" {
		t.Errorf("frames a=%q b=%q, want \"\" and FB", a.LastObservedVideoFrame, b.LastObservedVideoFrame)
	}
}

func TestApply_RosterBeforeWelcomeHasNoLocal(t *testing.T) {
	s := apply(New(), roster(entry("p1", "Alice", true)))
	if localCount(s) != 0 {
		t.Errorf("local count %d before welcome, want 0", localCount(s))
	}

	s = apply(s, protocol.Welcome{ID: "p1", Username: "Alice"})
	if localCount(s) != 1 {
		t.Errorf("local count %d after welcome, want 1", localCount(s))
	}
}

func TestApply_LocalIdentityStable(t *testing.T) {
	s := apply(New(), protocol.Welcome{ID: "p1", Username: "Alice"})

	snapshots := []protocol.PlayerUpdate{
		roster(entry("p2", "Bob", false)),
		roster(entry("p1", "Alice", false), entry("p3", "Cy", true)),
		roster(),
		roster(entry("p3", "Cy", true), entry("p1", "Alice", true)),
	}
	for i, snap := range snapshots {
		s = apply(s, snap, protocol.Welcome{ID: "intruder", Username: "X"})
		if localCount(s) != 1 {
			t.Fatalf("step %d: local count %d, want 1", i, localCount(s))
		}
		me, _ := s.Local()
		if me.ID != "p1" {
			t.Fatalf("step %d: local id %q, want p1", i, me.ID)
		}
	}
}

func TestApply_NewQuestionResetsSubmissionAndSetsDeadline(t *testing.T) {
	s := apply(New(),
		protocol.Welcome{ID: "p1", Username: "Alice"},
		roster(entry("p1", "Alice", true), entry("p2", "Bob", false)),
		protocol.SettingsUpdate{Settings: protocol.Settings{NumRounds: 2, RoundDuration: 90}},
		protocol.SettingsChosen{Winner: 2, AllVotes: []int{2, 3}},
	)
	for i := range s.Roster {
		s.Roster[i].HasSubmittedThisRound = true
	}

	s = apply(s, protocol.NewQuestion{Question: protocol.Question{ID: "q1", Prompt: "Why?"}})

	if s.Phase != PhaseRound {
		t.Errorf("Phase %q, want ROUND", s.Phase)
	}
	for _, p := range s.Roster {
		if p.HasSubmittedThisRound {
			t.Errorf("player %s still submitted", p.ID)
		}
	}
	if want := epoch.Add(90 * time.Second); !s.RoundDeadline.Equal(want) {
		t.Errorf("RoundDeadline %v, want %v", s.RoundDeadline, want)
	}
	if s.IsChoosingSettings || s.Chosen != nil {
		t.Error("settings animation should be cleared")
	}
	if s.Question == nil || s.Question.ID != "q1" {
		t.Errorf("Question %+v, want q1", s.Question)
	}
}

func TestApply_RoundLifecycle(t *testing.T) {
	s := apply(New(),
		protocol.Welcome{ID: "p1", Username: "Alice"},
		roster(entry("p1", "Alice", true), entry("p2", "Bob", false)),
		protocol.NewQuestion{Question: protocol.Question{ID: "q1"}},
	)
	if want := epoch.Add(DefaultRoundDuration); !s.RoundDeadline.Equal(want) {
		t.Errorf("RoundDeadline %v, want %v", s.RoundDeadline, want)
	}

	s = apply(s, protocol.RoundOver{Leaderboard: []protocol.LeaderboardEntry{
		{UserID: "p1", Score: 80},
		{UserID: "p2", Score: 60},
	}})

	if s.Phase != PhaseResults {
		t.Errorf("Phase %q, want RESULTS", s.Phase)
	}
	want := []LeaderboardEntry{
		{PlayerID: "p1", DisplayName: "Alice", Score: 80},
		{PlayerID: "p2", DisplayName: "Bob", Score: 60},
	}
	if len(s.Leaderboard) != len(want) {
		t.Fatalf("leaderboard %+v, want %+v", s.Leaderboard, want)
	}
	for i := range want {
		if s.Leaderboard[i] != want[i] {
			t.Errorf("leaderboard[%d] %+v, want %+v", i, s.Leaderboard[i], want[i])
		}
	}
	for _, p := range s.Roster {
		if !p.HasSubmittedThisRound {
			t.Errorf("player %s not marked submitted", p.ID)
		}
	}
	bob, _ := s.Player("p2")
	if bob.Score != 60 {
		t.Errorf("Bob score %v, want 60", bob.Score)
	}
	if want := epoch.Add(DefaultIntermissionDuration); !s.IntermissionDeadline.Equal(want) {
		t.Errorf("IntermissionDeadline %v, want %v", s.IntermissionDeadline, want)
	}
}

func TestApply_RoundOverIntermissionFromDuration(t *testing.T) {
	s := apply(New(), protocol.RoundOver{IntermissionDuration: 12.5})
	if want := epoch.Add(12500 * time.Millisecond); !s.IntermissionDeadline.Equal(want) {
		t.Errorf("IntermissionDeadline %v, want %v", s.IntermissionDeadline, want)
	}
}

func TestApply_LeaderboardReplacedWholesale(t *testing.T) {
	s := apply(New(),
		protocol.RoundOver{Leaderboard: []protocol.LeaderboardEntry{{UserID: "a", Score: 1}, {UserID: "b", Score: 2}}},
		protocol.GameOver{Leaderboard: []protocol.LeaderboardEntry{{UserID: "c", Username: "C", Score: 3}}},
	)
	if s.Phase != PhaseGameOver {
		t.Errorf("Phase %q, want GAME_OVER", s.Phase)
	}
	if len(s.Leaderboard) != 1 || s.Leaderboard[0].PlayerID != "c" {
		t.Errorf("leaderboard %+v, want only c", s.Leaderboard)
	}
}

func TestApply_SelfEchoSuppressed(t *testing.T) {
	s := apply(New(),
		protocol.Welcome{ID: "p1", Username: "Alice"},
		roster(entry("p1", "Alice", true)),
	)
	before := s

	after := apply(s, protocol.VideoUpdate{ID: "p1", Frame: "me"})
	if after.Roster[0].LastObservedVideoFrame != "" {
		t.Error("own video echo should be ignored")
	}
	if &after.Roster[0] != &before.Roster[0] {
		t.Error("own video echo should return the same state")
	}

	after = apply(s, protocol.AudioUpdate{ID: "p1", Chunk: "AAAA"})
	if &after.Roster[0] != &before.Roster[0] {
		t.Error("audio should never change the state")
	}
}

func TestApply_WorldUpdateByID(t *testing.T) {
	s := apply(New(),
		protocol.Welcome{ID: "p1", Username: "Sam"},
		roster(entry("p1", "Sam", true), entry("p2", "Sam", false)),
		protocol.WorldUpdate{Players: map[string]protocol.Vec{"p2": {X: 1, Y: 2}, "ghost": {X: 9, Y: 9}}},
	)
	me, _ := s.Local()
	if me.Position != nil {
		t.Errorf("local position %v, want nil", me.Position)
	}
	other, _ := s.Player("p2")
	if other.Position == nil || *other.Position != (protocol.Vec{X: 1, Y: 2}) {
		t.Errorf("p2 position %v, want {1 2}", other.Position)
	}
	if len(s.Roster) != 2 {
		t.Errorf("world update must not create players, roster %d", len(s.Roster))
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := apply(New(),
		protocol.Welcome{ID: "p1", Username: "Alice"},
		roster(entry("p1", "Alice", true), entry("p2", "Bob", false)),
		protocol.WorldUpdate{Players: map[string]protocol.Vec{"p2": {X: 1, Y: 2}}},
	)
	_ = apply(s,
		protocol.WorldUpdate{Players: map[string]protocol.Vec{"p2": {X: 100, Y: 200}}},
		protocol.NewQuestion{},
	)
	if got := *s.Roster[1].Position; got != (protocol.Vec{X: 1, Y: 2}) {
		t.Errorf("input state mutated: %v", got)
	}
	if s.Phase != PhaseLobby {
		t.Errorf("input phase mutated: %q", s.Phase)
	}
}

func TestApply_GradingAndLocalSubmit(t *testing.T) {
	s := apply(New(),
		protocol.Welcome{ID: "p1", Username: "Alice"},
		protocol.NewQuestion{},
		LocalSubmitted{},
	)
	me, _ := s.Local()
	if !me.HasSubmittedThisRound {
		t.Error("local submit not recorded")
	}

	s = apply(s, protocol.GradingStarted{}, protocol.GradingComplete{Result: protocol.GradeResult{Score: 70, Feedback: []string{"ok"}}})
	me, _ = s.Local()
	if s.Phase != PhaseGrading || me.Score != 70 || len(me.Feedback) != 1 {
		t.Errorf("phase %q local %+v", s.Phase, me)
	}
}

func TestApply_IdentityNotEstablishedIsNoop(t *testing.T) {
	s := apply(New(), LocalSubmitted{}, protocol.GradingComplete{Result: protocol.GradeResult{Score: 1}})
	if len(s.Roster) != 0 {
		t.Errorf("roster %+v, want empty", s.Roster)
	}
}

func TestApply_CoffeeLifecycle(t *testing.T) {
	s := apply(New(), protocol.CoffeeInvite{SenderID: "p2", SenderName: "Bob"})
	if s.Coffee.Invite == nil || s.Coffee.Invite.SenderID != "p2" {
		t.Fatalf("invite %+v", s.Coffee.Invite)
	}
	s = apply(s, protocol.CoffeeStart{PartnerID: "p2"})
	if s.Coffee.PartnerID != "p2" || s.Coffee.Invite != nil {
		t.Errorf("coffee %+v", s.Coffee)
	}
	s = apply(s, protocol.CoffeeEnded{})
	if s.Coffee.PartnerID != "" {
		t.Errorf("partner %q after end", s.Coffee.PartnerID)
	}
}

func TestApply_MediaUnavailableReplacesByDevice(t *testing.T) {
	s := apply(New(),
		MediaUnavailable{Device: "microphone", Reason: "denied"},
		MediaUnavailable{Device: "camera", Reason: "busy"},
		MediaUnavailable{Device: "microphone", Reason: "missing"},
	)
	if len(s.Media) != 2 {
		t.Fatalf("media %+v, want 2 notices", s.Media)
	}
	if s.Media[0].Reason != "missing" {
		t.Errorf("microphone reason %q, want missing", s.Media[0].Reason)
	}
}

func TestApply_RoomCodeImmutable(t *testing.T) {
	s := apply(New(), JoinRoom{RoomCode: "AAAA", Name: "x"}, protocol.RoomCreated{RoomCode: "BBBB"}, JoinRoom{RoomCode: "CCCC"})
	if s.RoomCode != "AAAA" {
		t.Errorf("RoomCode %q, want AAAA", s.RoomCode)
	}
}

func TestApply_ResetAndUnknown(t *testing.T) {
	s := apply(New(), JoinRoom{RoomCode: "AAAA", Name: "x"}, protocol.Welcome{ID: "p1"})
	if got := apply(s, protocol.Unknown{Type: "confetti"}); got.LocalID != "p1" {
		t.Error("unknown event should be a no-op")
	}
	s = apply(s, Reset{})
	if s.RoomCode != "" || s.LocalID != "" || len(s.Roster) != 0 || s.Phase != PhaseLobby {
		t.Errorf("reset state %+v", s)
	}
}
