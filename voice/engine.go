package voice

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Seednode/partyclient/protocol"
)

// LocalLevelKey names the local level until identity is known.
const LocalLevelKey = "me"

type Options struct {
	Jitter      JitterPolicy
	Falloff     Falloff
	GainTau     time.Duration
	MeterWindow int
	NoiseFloor  float64
	Logger      *log.Logger
}

type peer struct {
	node   *Node
	cursor time.Duration
}

// Engine owns the per-peer playback state. Inbound messages arrive via
// HandleMessage, spatial gains via UpdateSpatial; the mixer is drained
// by Play.
type Engine struct {
	opts   Options
	logger *log.Logger

	mu        sync.Mutex
	mixer     *Mixer
	peers     map[string]*peer
	localID   string
	partnerID string
	local     *Meter
}

func NewEngine(opts Options) *Engine {
	if opts.Jitter == (JitterPolicy{}) {
		opts.Jitter = DefaultJitter
	}
	if opts.Falloff == (Falloff{}) {
		opts.Falloff = DefaultFalloff
	}
	if opts.MeterWindow <= 0 {
		opts.MeterWindow = DefaultMeterWindow
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	e := &Engine{
		opts:   opts,
		logger: opts.Logger,
		peers:  make(map[string]*peer),
		local:  NewMeter(opts.MeterWindow, opts.NoiseFloor),
	}
	e.mixer = e.newMixer()

	return e
}

func (e *Engine) newMixer() *Mixer {
	return NewMixer(e.opts.GainTau, e.opts.MeterWindow, e.opts.NoiseFloor)
}

// Start opens a fresh audio context after Teardown. It is a no-op while
// the current one is running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.mixer.Closed() {
		return
	}
	e.mixer = e.newMixer()
	e.local.Reset()
	e.logger.Printf("VOICE: audio context %s opened", e.mixer.Generation())
}

// Teardown clears every peer entry and only then closes the audio
// context, so nothing can reach a node bound to a closed context.
func (e *Engine) Teardown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clear(e.peers)
	return e.mixer.Close()
}

// HandleMessage is the fan-out listener.
func (e *Engine) HandleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Welcome:
		e.mu.Lock()
		if e.localID == "" {
			e.localID = m.ID
		}
		e.mu.Unlock()

	case protocol.PlayerUpdate:
		e.prune(m.Players)

	case protocol.CoffeeStart:
		e.mu.Lock()
		e.partnerID = m.PartnerID
		e.mu.Unlock()

	case protocol.CoffeeEnded:
		e.mu.Lock()
		e.partnerID = ""
		e.mu.Unlock()

	case protocol.AudioUpdate:
		if err := e.Receive(m); err != nil {
			e.logger.Printf("VOICE: dropping chunk from %s: %v", m.ID, err)
		}
	}
}

// prune releases the node of every peer missing from the roster.
func (e *Engine) prune(players []protocol.RosterEntry) {
	present := make(map[string]bool, len(players))
	for _, p := range players {
		present[p.ID] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id, p := range e.peers {
		if present[id] {
			continue
		}
		e.mixer.Disconnect(p.node)
		delete(e.peers, id)
		e.logger.Printf("VOICE: released %s (left the room)", id)
	}
}

// SetLocalID pins the local identity. The first id wins.
func (e *Engine) SetLocalID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.localID == "" {
		e.localID = id
	}
}

// ForgetIdentity clears the local and partner ids so the next welcome
// can pin a new identity.
func (e *Engine) ForgetIdentity() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.localID, e.partnerID = "", ""
}

// Partner is the private-channel partner, empty outside a coffee chat.
// Captured chunks are addressed to it.
func (e *Engine) Partner() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.partnerID
}

// acceptsLocked enforces self-echo suppression and the private-channel
// boundary: chunks addressed to someone else are never played, and while
// in a private channel only the partner is heard.
func (e *Engine) acceptsLocked(m protocol.AudioUpdate) bool {
	if m.ID == "" || m.ID == e.localID {
		return false
	}
	if m.TargetID != "" && m.TargetID != e.localID {
		return false
	}
	if e.partnerID != "" && m.ID != e.partnerID {
		return false
	}
	return true
}

// Receive decodes a peer chunk and schedules it on that peer's node.
// Ignored chunks return nil; undecodable ones return the decode error.
func (e *Engine) Receive(m protocol.AudioUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.acceptsLocked(m) {
		return nil
	}
	if e.mixer.Closed() {
		return nil
	}

	samples, err := DecodeChunk(m.Chunk)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	p := e.peers[m.ID]
	if p != nil && p.node.Generation() != e.mixer.Generation() {
		p = nil
	}
	if p == nil {
		node, err := e.mixer.NewNode(m.ID)
		if err != nil {
			return err
		}
		p = &peer{node: node, cursor: e.mixer.Now()}
		e.peers[m.ID] = p
	}

	start, next := e.opts.Jitter.Schedule(p.cursor, e.mixer.Now(), Duration(len(samples)))
	if err := e.mixer.Schedule(p.node, start, samples); err != nil {
		return err
	}
	p.cursor = next

	return nil
}

// UpdateSpatial retargets every peer's gain from the distance between
// visual positions. The private-channel partner is always at full
// volume; peers without a known position keep their gain.
func (e *Engine) UpdateSpatial(visual map[string]protocol.Vec, localID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if localID == "" {
		localID = e.localID
	}
	me, haveMe := visual[localID]

	for id, p := range e.peers {
		var g float64
		switch {
		case e.partnerID != "":
			if id != e.partnerID {
				continue
			}
			g = 1
		case !haveMe:
			continue
		default:
			pos, ok := visual[id]
			if !ok {
				continue
			}
			g = e.opts.Falloff.Gain(Distance(me, pos))
		}

		if err := e.mixer.SetGain(p.node, g); err != nil {
			return
		}
	}
}

// Cursor reports a peer's playback cursor relative to the mixer clock.
func (e *Engine) Cursor(id string) (cursor, now time.Duration, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.peers[id]
	if !ok {
		return 0, 0, false
	}
	return p.cursor, e.mixer.Now(), true
}

// Gain reports a peer's current and target gain.
func (e *Engine) Gain(id string) (current, target float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.peers[id]
	if !ok {
		return 0, 0, false
	}
	current, target = e.mixer.Gain(p.node)
	return current, target, true
}

func (e *Engine) Peers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.peers))
	for id := range e.peers {
		ids = append(ids, id)
	}
	return ids
}

// LocalMeter is fed by capture before compression.
func (e *Engine) LocalMeter() *Meter {
	return e.local
}

// Levels returns the gated speaking level of the local source and of
// every peer.
func (e *Engine) Levels() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.localID
	if key == "" {
		key = LocalLevelKey
	}

	levels := make(map[string]float64, len(e.peers)+1)
	levels[key] = e.local.Level()
	for id, p := range e.peers {
		levels[id] = p.node.Level()
	}

	return levels
}

// Render mixes the next len(dst) samples. After Teardown it renders
// silence.
func (e *Engine) Render(dst []float32) {
	e.mu.Lock()
	m := e.mixer
	e.mu.Unlock()

	if err := m.Render(dst); err != nil {
		clear(dst)
	}
}

// Play drains the mixer in real time, writing s16le PCM to w every
// period. A nil w discards the audio but still advances the clock.
func (e *Engine) Play(ctx context.Context, w io.Writer, period time.Duration) error {
	if w == nil {
		w = io.Discard
	}
	if period <= 0 {
		period = 20 * time.Millisecond
	}

	buf := make([]float32, samplesIn(period))

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Render(buf)
			if _, err := w.Write(EncodePCM(buf)); err != nil {
				return err
			}
		}
	}
}
