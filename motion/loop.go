package motion

import (
	"context"
	"errors"
	"log"
	"maps"
	"sync"
	"time"

	"github.com/Seednode/partyclient/protocol"
)

var ErrRunning = errors.New("frame loop already running")

// Source provides the latest authoritative positions and the local id.
// *session.Store satisfies it.
type Source interface {
	Positions() (map[string]protocol.Vec, string)
}

// Frame is one render-ready sample.
type Frame struct {
	Seq     uint64                  `json:"seq"`
	At      time.Time               `json:"at"`
	LocalID string                  `json:"localId,omitempty"`
	Visual  map[string]protocol.Vec `json:"visual"`
	Camera  protocol.Vec            `json:"camera"`
}

type LoopOptions struct {
	FPS      int
	Tau      time.Duration
	Epsilon  float64
	Viewport Viewport

	// OnFrame runs on the loop goroutine after every tick.
	OnFrame func(Frame)

	Logger *log.Logger
}

// Loop samples Source once per frame, independent of message arrival.
type Loop struct {
	src     Source
	ip      *Interpolator
	fps     int
	vp      Viewport
	onFrame func(Frame)
	logger  *log.Logger

	mu     sync.RWMutex
	latest Frame
	last   time.Time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoop(src Source, opts LoopOptions) *Loop {
	if opts.FPS <= 0 {
		opts.FPS = DefaultRate
	}
	if opts.Viewport == (Viewport{}) {
		opts.Viewport = DefaultViewport
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Loop{
		src:     src,
		ip:      NewInterpolator(opts.Tau, opts.Epsilon),
		fps:     opts.FPS,
		vp:      opts.Viewport,
		onFrame: opts.OnFrame,
		logger:  opts.Logger,
	}
}

// Tick advances the loop to now and publishes the resulting frame.
func (l *Loop) Tick(now time.Time) Frame {
	targets, localID := l.src.Positions()

	l.mu.Lock()
	var dt time.Duration
	if !l.last.IsZero() {
		dt = now.Sub(l.last)
	}
	l.last = now

	visual := l.ip.Step(targets, dt)
	f := Frame{
		Seq:     l.latest.Seq + 1,
		At:      now,
		LocalID: localID,
		Visual:  visual,
		Camera:  Camera(l.vp, visual, localID),
	}
	l.latest = f
	l.mu.Unlock()

	if l.onFrame != nil {
		l.onFrame(f)
	}

	return f
}

// Latest returns a copy of the most recent frame.
func (l *Loop) Latest() Frame {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f := l.latest
	f.Visual = maps.Clone(l.latest.Visual)
	return f
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.fps))
	defer ticker.Stop()

	l.logger.Printf("MOTION: frame loop started at %d fps", l.fps)
	defer l.logger.Printf("MOTION: frame loop stopped")

	l.Tick(time.Now())

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}

// Start runs the loop in the background until Stop is called or ctx is
// done. The visual state starts fresh on every Start.
func (l *Loop) Start(ctx context.Context) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.cancel != nil {
		return ErrRunning
	}

	l.mu.Lock()
	l.ip.Reset()
	l.last = time.Time{}
	l.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done

	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()

	return nil
}

// Stop cancels the scheduled continuation and waits for the loop to
// exit. It is safe to call when the loop is not running.
func (l *Loop) Stop() {
	l.runMu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether Start has been called without a matching Stop.
func (l *Loop) Running() bool {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.cancel != nil
}
