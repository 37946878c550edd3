/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package protocol describes the JSON messages exchanged with the game
// server. Every message is a flat object tagged by its "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound message types.
const (
	TypeWelcome          = "welcome"
	TypeRoomCreated      = "room_created"
	TypeError            = "error"
	TypePlayerUpdate     = "player_update"
	TypeSettingsUpdate   = "settings_update"
	TypeSettingsChosen   = "settings_chosen"
	TypeGameStarting     = "game_starting"
	TypeNewQuestion      = "new_question"
	TypeGradingStarted   = "grading_started"
	TypeGradingComplete  = "grading_complete"
	TypeRoundOver        = "round_over"
	TypeGameOver         = "game_over"
	TypeVideoUpdate      = "video_update"
	TypeWorldUpdate      = "world_update"
	TypeAudioUpdate      = "audio_update"
	TypeCoffeeInvite     = "coffee_invite"
	TypeCoffeeStart      = "coffee_start"
	TypeCoffeeEnded      = "coffee_ended"
	TypeCreateRoom       = "create_room"
	TypeJoin             = "join"
	TypeUpdateSettings   = "update_settings"
	TypeStartGame        = "start_game"
	TypeSubmit           = "submit"
	TypeKeyDown          = "keydown"
	TypeKeyUp            = "keyup"
	TypeSkipIntermission = "skip_intermission"
	TypeCoffeeAccept     = "coffee_accept"
	TypeCoffeeLeave      = "coffee_leave"
)

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("malformed message")

// Message is implemented by every inbound message kind.
type Message interface {
	Kind() string
}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one inbound frame. Unrecognised types decode to Unknown
// without error so newer servers do not break older clients.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	var msg Message
	switch env.Type {
	case TypeWelcome:
		msg = &Welcome{}
	case TypeRoomCreated:
		msg = &RoomCreated{}
	case TypeError:
		msg = &ServerError{}
	case TypePlayerUpdate:
		msg = &PlayerUpdate{}
	case TypeSettingsUpdate:
		msg = &SettingsUpdate{}
	case TypeSettingsChosen:
		msg = &SettingsChosen{}
	case TypeGameStarting:
		msg = &GameStarting{}
	case TypeNewQuestion:
		msg = &NewQuestion{}
	case TypeGradingStarted:
		msg = &GradingStarted{}
	case TypeGradingComplete:
		msg = &GradingComplete{}
	case TypeRoundOver:
		msg = &RoundOver{}
	case TypeGameOver:
		msg = &GameOver{}
	case TypeVideoUpdate:
		msg = &VideoUpdate{}
	case TypeWorldUpdate:
		msg = &WorldUpdate{}
	case TypeAudioUpdate:
		msg = &AudioUpdate{}
	case TypeCoffeeInvite:
		msg = &CoffeeInvite{}
	case TypeCoffeeStart:
		msg = &CoffeeStart{}
	case TypeCoffeeEnded:
		msg = &CoffeeEnded{}
	default:
		return Unknown{Type: env.Type}, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}

	return deref(msg), nil
}

// deref hands out values so consumers can switch on concrete types
// without caring how they were decoded.
func deref(m Message) Message {
	switch v := m.(type) {
	case *Welcome:
		return *v
	case *RoomCreated:
		return *v
	case *ServerError:
		return *v
	case *PlayerUpdate:
		return *v
	case *SettingsUpdate:
		return *v
	case *SettingsChosen:
		return *v
	case *GameStarting:
		return *v
	case *NewQuestion:
		return *v
	case *GradingStarted:
		return *v
	case *GradingComplete:
		return *v
	case *RoundOver:
		return *v
	case *GameOver:
		return *v
	case *VideoUpdate:
		return *v
	case *WorldUpdate:
		return *v
	case *AudioUpdate:
		return *v
	case *CoffeeInvite:
		return *v
	case *CoffeeStart:
		return *v
	case *CoffeeEnded:
		return *v
	}
	return m
}

// Encode produces a flat tagged frame: the payload's fields are merged
// next to "type".
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, errors.New("trying to encode message with empty type")
	}

	fields := map[string]json.RawMessage{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("payload for %q must be a JSON object: %w", t, err)
			}
		}
	}

	tag, _ := json.Marshal(t)
	fields["type"] = tag

	return json.Marshal(fields)
}
