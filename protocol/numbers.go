package protocol

import (
	"encoding/json"
	"math"
)

// Feedback is grading feedback. Servers send either a list of remarks or
// a single string; both decode here.
type Feedback []string

func (f *Feedback) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*f = nil
		} else {
			*f = Feedback{one}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*f = many

	return nil
}

// whole rounds a JSON number to the nearest int, so 60.0 and 60 agree.
func whole(f float64) int {
	return int(math.Round(f))
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw struct {
		NumRounds     float64 `json:"num_rounds"`
		RoundDuration float64 `json:"round_duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.NumRounds = whole(raw.NumRounds)
	s.RoundDuration = whole(raw.RoundDuration)

	return nil
}

func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question

	var raw struct {
		plain
		Duration float64 `json:"duration,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*q = Question(raw.plain)
	q.Duration = whole(raw.Duration)

	return nil
}
