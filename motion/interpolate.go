// Package motion turns sparse authoritative positions into a smooth
// visual stream sampled once per frame.
package motion

import (
	"math"
	"time"

	"github.com/Seednode/partyclient/protocol"
)

const (
	DefaultFactor  = 0.1
	DefaultRate    = 60
	DefaultEpsilon = 1.0
)

// DefaultTau is the time constant equivalent to blending 10% of the
// remaining distance per frame at 60 frames per second.
var DefaultTau = TimeConstant(DefaultFactor, DefaultRate)

// TimeConstant converts a per-frame blend factor observed at rate frames
// per second into the time constant of the equivalent exponential decay,
// so smoothing speed no longer depends on how often Step runs.
func TimeConstant(factor, rate float64) time.Duration {
	if factor <= 0 || factor >= 1 || rate <= 0 {
		return 0
	}
	return time.Duration(-1 / (rate * math.Log(1-factor)) * float64(time.Second))
}

// Interpolator owns the visual positions. Nothing else writes them.
type Interpolator struct {
	tau     time.Duration
	epsilon float64
	visual  map[string]protocol.Vec
}

// NewInterpolator returns an interpolator with time constant tau. A tau
// of zero snaps straight to the target.
func NewInterpolator(tau time.Duration, epsilon float64) *Interpolator {
	if epsilon < 0 {
		epsilon = 0
	}
	return &Interpolator{
		tau:     tau,
		epsilon: epsilon,
		visual:  make(map[string]protocol.Vec),
	}
}

// Alpha is the fraction of the remaining distance covered in dt.
func (ip *Interpolator) Alpha(dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	if ip.tau <= 0 {
		return 1
	}
	return 1 - math.Exp(-dt.Seconds()/ip.tau.Seconds())
}

// Step advances every visual position toward its target by dt. Players
// seen for the first time start at their target; players no longer in
// targets are forgotten. It returns a copy of the visual positions.
func (ip *Interpolator) Step(targets map[string]protocol.Vec, dt time.Duration) map[string]protocol.Vec {
	for id := range ip.visual {
		if _, ok := targets[id]; !ok {
			delete(ip.visual, id)
		}
	}

	a := ip.Alpha(dt)

	out := make(map[string]protocol.Vec, len(targets))
	for id, target := range targets {
		v, ok := ip.visual[id]
		if !ok {
			v = target
		} else {
			v = ip.blend(v, target, a)
		}

		ip.visual[id] = v
		out[id] = v
	}

	return out
}

func (ip *Interpolator) blend(v, target protocol.Vec, a float64) protocol.Vec {
	v.X += (target.X - v.X) * a
	v.Y += (target.Y - v.Y) * a

	if math.Abs(target.X-v.X) < ip.epsilon && math.Abs(target.Y-v.Y) < ip.epsilon {
		return target
	}

	return v
}

// Visual returns the current visual position of id.
func (ip *Interpolator) Visual(id string) (protocol.Vec, bool) {
	v, ok := ip.visual[id]
	return v, ok
}

// Reset forgets every visual position.
func (ip *Interpolator) Reset() {
	clear(ip.visual)
}
