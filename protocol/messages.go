package protocol

// Vec is a 2D world position.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Settings is the shared game configuration.
type Settings struct {
	NumRounds     int `json:"num_rounds"`
	RoundDuration int `json:"round_duration"` // seconds
}

// RosterEntry is one player as the server reports it. Pointer fields are
// optional: nil means the server did not send the field.
type RosterEntry struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	IsLeader      bool   `json:"is_leader"`
	CameraEnabled *bool  `json:"camera_enabled,omitempty"`
	HasSubmitted  *bool  `json:"has_submitted,omitempty"`
}

// Question is the prompt for a round.
type Question struct {
	ID         string `json:"id"`
	Prompt     string `json:"prompt"`
	Type       string `json:"type"`
	Difficulty string `json:"difficulty,omitempty"`
	Duration   int    `json:"duration,omitempty"`
}

// LeaderboardEntry is one ranked result.
type LeaderboardEntry struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username,omitempty"`
	Score    float64 `json:"score"`
}

// GradeResult is the outcome of grading the local player's submission.
type GradeResult struct {
	Score    float64  `json:"score"`
	Feedback Feedback `json:"feedback,omitempty"`
}

type Welcome struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type RoomCreated struct {
	RoomCode string `json:"room_code"`
}

type ServerError struct {
	Message string `json:"message"`
}

type PlayerUpdate struct {
	Players   []RosterEntry `json:"players"`
	GameState string        `json:"game_state,omitempty"`
}

type SettingsUpdate struct {
	Settings Settings       `json:"settings"`
	Votes    map[string]int `json:"votes,omitempty"`
}

type SettingsChosen struct {
	Winner   int   `json:"winner"`
	AllVotes []int `json:"all_votes"`
}

type GameStarting struct{}

type NewQuestion struct {
	Question Question `json:"question"`
}

type GradingStarted struct{}

type GradingComplete struct {
	Result GradeResult `json:"result"`
}

type RoundOver struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	// IntermissionDuration is in seconds. The absolute
	// intermission_end_time some servers send is ignored.
	IntermissionDuration float64 `json:"intermission_duration,omitempty"`
}

type GameOver struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type VideoUpdate struct {
	ID    string `json:"id"`
	Frame string `json:"frame"`
}

type WorldUpdate struct {
	Players map[string]Vec `json:"players"`
}

type AudioUpdate struct {
	ID       string `json:"id"`
	Chunk    string `json:"chunk"`
	TargetID string `json:"target_id,omitempty"`
}

type CoffeeInvite struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
}

type CoffeeStart struct {
	PartnerID string `json:"partner_id"`
}

type CoffeeEnded struct{}

// Unknown is any message type this client does not understand.
type Unknown struct {
	Type string
}

func (Welcome) Kind() string         { return TypeWelcome }
func (RoomCreated) Kind() string     { return TypeRoomCreated }
func (ServerError) Kind() string     { return TypeError }
func (PlayerUpdate) Kind() string    { return TypePlayerUpdate }
func (SettingsUpdate) Kind() string  { return TypeSettingsUpdate }
func (SettingsChosen) Kind() string  { return TypeSettingsChosen }
func (GameStarting) Kind() string    { return TypeGameStarting }
func (NewQuestion) Kind() string     { return TypeNewQuestion }
func (GradingStarted) Kind() string  { return TypeGradingStarted }
func (GradingComplete) Kind() string { return TypeGradingComplete }
func (RoundOver) Kind() string       { return TypeRoundOver }
func (GameOver) Kind() string        { return TypeGameOver }
func (VideoUpdate) Kind() string     { return TypeVideoUpdate }
func (WorldUpdate) Kind() string     { return TypeWorldUpdate }
func (AudioUpdate) Kind() string     { return TypeAudioUpdate }
func (CoffeeInvite) Kind() string    { return TypeCoffeeInvite }
func (CoffeeStart) Kind() string     { return TypeCoffeeStart }
func (CoffeeEnded) Kind() string     { return TypeCoffeeEnded }
func (u Unknown) Kind() string       { return u.Type }
