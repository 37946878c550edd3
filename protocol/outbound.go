package protocol

const (
	MinRounds = 1
	MaxRounds = 5
)

// Outbound is a message ready to hand to the bus.
type Outbound struct {
	Type    string
	Payload any
}

type createRoomPayload struct {
	Username string `json:"username"`
}

type joinPayload struct {
	Username string `json:"username"`
	RoomCode string `json:"room_code"`
}

type settingsPayload struct {
	Settings Settings `json:"settings"`
}

type submitPayload struct {
	Content string `json:"content"`
}

type framePayload struct {
	Frame string `json:"frame"`
}

type chunkPayload struct {
	Chunk    string `json:"chunk"`
	TargetID string `json:"target_id,omitempty"`
}

type keyPayload struct {
	Key string `json:"key"`
}

type targetPayload struct {
	TargetID string `json:"target_id,omitempty"`
}

func CreateRoom(username string) Outbound {
	return Outbound{TypeCreateRoom, createRoomPayload{Username: username}}
}

func Join(username, roomCode string) Outbound {
	return Outbound{TypeJoin, joinPayload{Username: username, RoomCode: roomCode}}
}

// UpdateSettings clamps the round count into the range the lobby allows.
func UpdateSettings(s Settings) Outbound {
	if s.NumRounds < MinRounds {
		s.NumRounds = MinRounds
	}
	if s.NumRounds > MaxRounds {
		s.NumRounds = MaxRounds
	}
	return Outbound{TypeUpdateSettings, settingsPayload{Settings: s}}
}

func StartGame() Outbound {
	return Outbound{TypeStartGame, struct{}{}}
}

func Submit(content string) Outbound {
	return Outbound{TypeSubmit, submitPayload{Content: content}}
}

func Video(frame string) Outbound {
	return Outbound{TypeVideoUpdate, framePayload{Frame: frame}}
}

// Audio addresses the chunk to target when non-empty, so the server
// routes it to that player only.
func Audio(chunk, target string) Outbound {
	return Outbound{TypeAudioUpdate, chunkPayload{Chunk: chunk, TargetID: target}}
}

func KeyDown(key string) Outbound {
	return Outbound{TypeKeyDown, keyPayload{Key: key}}
}

func KeyUp(key string) Outbound {
	return Outbound{TypeKeyUp, keyPayload{Key: key}}
}

func SkipIntermission() Outbound {
	return Outbound{TypeSkipIntermission, struct{}{}}
}

func CoffeeInviteTo(target string) Outbound {
	return Outbound{TypeCoffeeInvite, targetPayload{TargetID: target}}
}

func CoffeeAccept(target string) Outbound {
	return Outbound{TypeCoffeeAccept, targetPayload{TargetID: target}}
}

func CoffeeLeave(target string) Outbound {
	return Outbound{TypeCoffeeLeave, targetPayload{TargetID: target}}
}
