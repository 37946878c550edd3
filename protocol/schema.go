package protocol

import (
	"github.com/invopop/jsonschema"
)

// Schemas reflects a JSON schema for every inbound message kind, keyed
// by message type.
func Schemas() map[string]*jsonschema.Schema {
	kinds := []Message{
		Welcome{},
		RoomCreated{},
		ServerError{},
		PlayerUpdate{},
		SettingsUpdate{},
		SettingsChosen{},
		GameStarting{},
		NewQuestion{},
		GradingStarted{},
		GradingComplete{},
		RoundOver{},
		GameOver{},
		VideoUpdate{},
		WorldUpdate{},
		AudioUpdate{},
		CoffeeInvite{},
		CoffeeStart{},
		CoffeeEnded{},
	}

	out := make(map[string]*jsonschema.Schema, len(kinds))
	for _, k := range kinds {
		out[k.Kind()] = jsonschema.Reflect(k)
	}

	return out
}
