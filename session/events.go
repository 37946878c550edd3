package session

// Event is anything the reducer understands: every protocol.Message
// satisfies it, as do the local events below.
type Event interface {
	Kind() string
}

// JoinRoom seeds the room code and the local display name before the
// server has confirmed either.
type JoinRoom struct {
	RoomCode string
	Name     string
}

// LocalSubmitted records that this client sent its answer.
type LocalSubmitted struct{}

// MediaUnavailable records a capture device that could not be opened.
type MediaUnavailable struct {
	Device string // "camera" or "microphone"
	Reason string
}

// Reset returns to the entry screen, discarding the session.
type Reset struct{}

func (JoinRoom) Kind() string         { return "local.join" }
func (LocalSubmitted) Kind() string   { return "local.submitted" }
func (MediaUnavailable) Kind() string { return "local.media_unavailable" }
func (Reset) Kind() string            { return "local.reset" }
