package voice

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	DefaultMeterWindow = 256
	DefaultNoiseFloor  = 0.05

	// Analyser constants, as a browser AnalyserNode uses them.
	meterSmoothing = 0.5
	meterMinDB     = -100.0
	meterMaxDB     = -30.0
)

// Meter is a frequency analyser over the most recent window of samples.
// Level is the RMS of the byte-scaled spectrum. It only drives the
// speaking indicator.
type Meter struct {
	mu    sync.Mutex
	ring  []float64
	pos   int
	floor float64

	fft    *fourier.FFT
	window []float64
	frame  []float64
	coeffs []complex128
	smooth []float64
}

func NewMeter(window int, floor float64) *Meter {
	if window < 2 {
		window = DefaultMeterWindow
	}
	return &Meter{
		ring:   make([]float64, window),
		floor:  floor,
		fft:    fourier.NewFFT(window),
		window: blackman(window),
		frame:  make([]float64, window),
		coeffs: make([]complex128, window/2+1),
		smooth: make([]float64, window/2),
	}
}

func blackman(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return w
}

func (m *Meter) Write(samples []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(samples) > len(m.ring) {
		samples = samples[len(samples)-len(m.ring):]
	}
	for _, s := range samples {
		m.ring[m.pos] = float64(s)
		m.pos = (m.pos + 1) % len(m.ring)
	}
}

// Level is the spectrum level in [0, 1], gated to zero below the noise
// floor. Each call advances the spectral smoothing, so it should be
// sampled at a steady rate.
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.ring)
	for i := range m.frame {
		m.frame[i] = m.ring[(m.pos+i)%n] * m.window[i]
	}
	m.coeffs = m.fft.Coefficients(m.coeffs, m.frame)

	var sum float64
	for k := range m.smooth {
		mag := cmplx.Abs(m.coeffs[k]) / float64(n)
		m.smooth[k] = meterSmoothing*m.smooth[k] + (1-meterSmoothing)*mag

		b := spectrumByte(m.smooth[k])
		sum += b * b
	}

	level := math.Sqrt(sum/float64(len(m.smooth))) / 255
	if level < m.floor {
		return 0
	}
	return level
}

// spectrumByte maps a magnitude onto 0..255 across the analyser's
// decibel range.
func spectrumByte(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	b := math.Floor(255 / (meterMaxDB - meterMinDB) * (db - meterMinDB))
	return max(0, min(255, b))
}

// Reset clears the window and the smoothed spectrum.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.ring)
	clear(m.smooth)
	m.pos = 0
}
