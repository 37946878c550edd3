package voice

import (
	"math"
	"time"
)

// CompressorSettings mirror a broadcast voice chain.
type CompressorSettings struct {
	Threshold float64 // dB
	Knee      float64 // dB
	Ratio     float64
	Attack    time.Duration
	Release   time.Duration
}

var VoiceCompressor = CompressorSettings{
	Threshold: -20,
	Knee:      10,
	Ratio:     4,
	Attack:    2 * time.Millisecond,
	Release:   150 * time.Millisecond,
}

// Compressor is a feed-forward soft-knee compressor. Gain reduction is
// tracked in dB and smoothed with separate attack and release times.
type Compressor struct {
	s         CompressorSettings
	attackK   float64
	releaseK  float64
	reduction float64
}

func NewCompressor(s CompressorSettings) *Compressor {
	if s.Ratio < 1 {
		s.Ratio = 1
	}
	if s.Knee < 0 {
		s.Knee = 0
	}

	return &Compressor{
		s:        s,
		attackK:  smoothing(s.Attack),
		releaseK: smoothing(s.Release),
	}
}

func smoothing(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return math.Exp(-1 / (d.Seconds() * SampleRate))
}

// curve is the static input/output level curve in dB.
func (c *Compressor) curve(in float64) float64 {
	t, w, r := c.s.Threshold, c.s.Knee, c.s.Ratio

	switch over := in - t; {
	case 2*over < -w:
		return in
	case w > 0 && 2*math.Abs(over) <= w:
		x := over + w/2
		return in + (1/r-1)*x*x/(2*w)
	default:
		return t + over/r
	}
}

// Process compresses samples in place.
func (c *Compressor) Process(samples []float32) {
	for i, s := range samples {
		level := math.Abs(float64(s))
		if level < 1e-6 {
			level = 1e-6
		}
		in := 20 * math.Log10(level)
		target := c.curve(in) - in

		k := c.releaseK
		if target < c.reduction {
			k = c.attackK
		}
		c.reduction = k*c.reduction + (1-k)*target

		samples[i] = float32(float64(s) * math.Pow(10, c.reduction/20))
	}
}

// Reduction is the current gain reduction in dB, zero or negative.
func (c *Compressor) Reduction() float64 {
	return c.reduction
}
