package voice

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClosed    = errors.New("audio context closed")
	ErrStaleNode = errors.New("node belongs to another audio context")
)

const DefaultGainTau = 100 * time.Millisecond

// Node is a peer's gain stage inside one Mixer. It carries the
// generation of the mixer that created it.
type Node struct {
	id     string
	gen    string
	gain   float64
	target float64
	meter  *Meter
}

func (n *Node) ID() string         { return n.id }
func (n *Node) Generation() string { return n.gen }

// Level is the speaking level of this node's output.
func (n *Node) Level() float64 {
	return n.meter.Level()
}

type source struct {
	node    *Node
	start   int64
	samples []float32
}

// Mixer is a software audio context: a sample clock advanced by Render,
// gain nodes, and chunks scheduled against the clock. A closed Mixer
// cannot be reopened; create a new one, which gets a new generation.
type Mixer struct {
	mu      sync.Mutex
	gen     string
	clock   int64
	gainK   float64
	nodes   map[*Node]struct{}
	sources []source
	closed  bool

	meterWindow int
	noiseFloor  float64
}

// NewMixer returns a running mixer. Gain changes approach their target
// exponentially with time constant gainTau.
func NewMixer(gainTau time.Duration, meterWindow int, noiseFloor float64) *Mixer {
	k := 1.0
	if gainTau > 0 {
		k = 1 - math.Exp(-1/(gainTau.Seconds()*SampleRate))
	}

	return &Mixer{
		gen:         uuid.NewString(),
		gainK:       k,
		nodes:       make(map[*Node]struct{}),
		meterWindow: meterWindow,
		noiseFloor:  noiseFloor,
	}
}

func (m *Mixer) Generation() string {
	return m.gen
}

// Now is the mixer clock: the amount of audio rendered so far.
func (m *Mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.clock) * time.Second / SampleRate
}

func (m *Mixer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mixer) NewNode(id string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	n := &Node{
		id:     id,
		gen:    m.gen,
		gain:   1,
		target: 1,
		meter:  NewMeter(m.meterWindow, m.noiseFloor),
	}
	m.nodes[n] = struct{}{}

	return n, nil
}

func (m *Mixer) checkLocked(n *Node) error {
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.nodes[n]; !ok || n.gen != m.gen {
		return ErrStaleNode
	}
	return nil
}

// Schedule plays samples through n starting at mixer time at. Any part
// that lies in the past is skipped.
func (m *Mixer) Schedule(n *Node, at time.Duration, samples []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(n); err != nil {
		return err
	}

	m.sources = append(m.sources, source{node: n, start: samplesIn(at), samples: samples})

	return nil
}

// SetGain moves n's gain toward g, clamped to [0, 1].
func (m *Mixer) SetGain(n *Node, g float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(n); err != nil {
		return err
	}
	n.target = math.Max(0, math.Min(1, g))

	return nil
}

// Gain reports n's current and target gain.
func (m *Mixer) Gain(n *Node) (current, target float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return n.gain, n.target
}

// Disconnect removes n and everything scheduled on it.
func (m *Mixer) Disconnect(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.nodes, n)
	m.dropSourcesLocked(func(s source) bool { return s.node == n })
}

func (m *Mixer) dropSourcesLocked(drop func(source) bool) {
	kept := m.sources[:0]
	for _, s := range m.sources {
		if !drop(s) {
			kept = append(kept, s)
		}
	}
	clear(m.sources[len(kept):])
	m.sources = kept
}

// Render mixes the next len(dst) samples into dst and advances the clock.
func (m *Mixer) Render(dst []float32) error {
	clear(dst)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	n := int64(len(dst))
	from, to := m.clock, m.clock+n

	outs := make(map[*Node][]float32, len(m.nodes))
	ramps := make(map[*Node][]float32, len(m.nodes))
	for node := range m.nodes {
		ramp := make([]float32, n)
		g := node.gain
		for i := range ramp {
			g += (node.target - g) * m.gainK
			ramp[i] = float32(g)
		}
		node.gain = g
		ramps[node] = ramp
		outs[node] = make([]float32, n)
	}

	for _, s := range m.sources {
		lo := max(s.start, from)
		hi := min(s.start+int64(len(s.samples)), to)
		out, ramp := outs[s.node], ramps[s.node]
		for t := lo; t < hi; t++ {
			out[t-from] += s.samples[t-s.start] * ramp[t-from]
		}
	}

	for node, out := range outs {
		for i, v := range out {
			dst[i] += v
		}
		node.meter.Write(out)
	}

	for i, v := range dst {
		dst[i] = max(-1, min(1, v))
	}

	m.clock = to
	m.dropSourcesLocked(func(s source) bool { return s.start+int64(len(s.samples)) <= to })

	return nil
}

// Close stops the mixer and releases every node and scheduled chunk.
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	clear(m.nodes)
	m.sources = nil

	return nil
}
