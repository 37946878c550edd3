package voice

import (
	"math"

	"github.com/Seednode/partyclient/protocol"
)

const (
	DefaultNear = 100.0
	DefaultFar  = 600.0
)

// Falloff maps distance to gain: full volume within Near, linear down to
// silence at Far.
type Falloff struct {
	Near float64
	Far  float64
}

var DefaultFalloff = Falloff{Near: DefaultNear, Far: DefaultFar}

func (f Falloff) Gain(distance float64) float64 {
	if distance <= f.Near {
		return 1
	}
	if f.Far <= f.Near {
		return 0
	}

	g := 1 - (distance-f.Near)/(f.Far-f.Near)
	return math.Max(0, math.Min(1, g))
}

func Distance(a, b protocol.Vec) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
