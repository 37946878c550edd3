package main

import (
	"context"
	"log"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/Seednode/partyclient/bus"
	"github.com/Seednode/partyclient/motion"
	"github.com/Seednode/partyclient/protocol"
	"github.com/Seednode/partyclient/session"
	"github.com/Seednode/partyclient/voice"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const playbackPeriod = 20 * time.Millisecond

// Client ties the bus, the session store, the frame loop and the voice
// engine together.
type Client struct {
	cfg    *Config
	logger *log.Logger
	id     string

	store  *session.Store
	bus    *bus.Bus
	fan    *bus.Broadcaster
	frames *motion.Loop
	keys   *motion.Keys
	voice  *voice.Engine

	runCtx context.Context

	levelsMu sync.RWMutex
	levels   map[string]float64
	speaking map[string]bool
}

func newClient(cfg *Config, logger *log.Logger, dialer bus.Dialer) *Client {
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		id:       uuid.NewString(),
		store:    session.NewStore(logger),
		fan:      bus.NewBroadcaster(),
		levels:   map[string]float64{},
		speaking: map[string]bool{},
		runCtx:   context.Background(),
	}

	c.bus = bus.New(dialer, bus.Options{
		URL:            cfg.serverURL,
		ReconnectDelay: cfg.reconnectDelay,
		DialsPerMinute: cfg.dialsPerMinute,
		Traffic:        cfg.debugTraffic,
		Logger:         logger,
	})

	c.voice = voice.NewEngine(voice.Options{
		Jitter:      cfg.jitter(),
		Falloff:     voice.Falloff{Near: cfg.near, Far: cfg.far},
		GainTau:     cfg.gainTau,
		MeterWindow: cfg.meterWindow,
		NoiseFloor:  cfg.noiseFloor,
		Logger:      logger,
	})

	c.frames = motion.NewLoop(c.store, motion.LoopOptions{
		FPS:      cfg.fps,
		Tau:      cfg.tau(),
		Epsilon:  cfg.snapEpsilon,
		Viewport: cfg.viewport(),
		OnFrame: func(f motion.Frame) {
			c.voice.UpdateSpatial(f.Visual, f.LocalID)
		},
		Logger: logger,
	})

	c.keys = motion.NewKeys(c.bus)

	c.fan.Subscribe(c.voice.HandleMessage)
	c.store.Subscribe(c.onEvent)

	return c
}

// onEvent starts the frame loop once the session has an identity and
// stops it when the session is reset.
func (c *Client) onEvent(s session.State, ev session.Event) {
	switch ev.(type) {
	case protocol.Welcome:
		if s.LocalID != "" && !c.frames.Running() {
			if err := c.frames.Start(c.runCtx); err != nil {
				c.logger.Printf("CLIENT: %v", err)
			}
		}
	case protocol.ServerError:
		c.logger.Printf("CLIENT: server error: %s", s.LastError)
	case session.Reset:
		c.frames.Stop()
	}
}

// join queues the room entry message; the bus sends it on first connect.
// An empty room creates one.
func (c *Client) join(room string) error {
	c.store.Dispatch(session.JoinRoom{RoomCode: room, Name: c.cfg.name})

	if room == "" {
		return c.bus.Post(protocol.CreateRoom(c.cfg.name))
	}
	return c.bus.Post(protocol.Join(c.cfg.name, room))
}

// Run blocks until ctx is done or a component fails, then tears down the
// frame loop, the voice engine and the bus together.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	c.runCtx = ctx

	defer c.teardown()

	if err := c.join(c.cfg.room); err != nil {
		return err
	}

	out, err := openAudioOut(c.cfg.audioOut)
	if err != nil {
		return err
	}
	defer func() {
		logf(c.cfg, "VOICE: wrote %s of audio", humanReadableSize(out.Written()))
		out.Close()
	}()

	g.Go(func() error {
		return c.bus.Run(ctx)
	})

	g.Go(func() error {
		return c.fan.Relay(ctx, c.bus.Inbound(), func(m protocol.Message) {
			c.store.Dispatch(m)
		})
	})

	g.Go(func() error {
		return c.voice.Play(ctx, out, playbackPeriod)
	})

	g.Go(func() error {
		return c.meterLoop(ctx)
	})

	if c.cfg.mic != "" {
		g.Go(func() error {
			return c.capture(ctx)
		})
	}

	if c.cfg.port != 0 {
		g.Go(func() error {
			return serveDebug(ctx, c.cfg, c)
		})
	}

	return g.Wait()
}

func (c *Client) teardown() {
	c.frames.Stop()
	if err := c.voice.Teardown(); err != nil {
		c.logger.Printf("VOICE: teardown: %v", err)
	}
	c.bus.Close()
}

// capture streams the microphone. A source that cannot be opened becomes
// a visible notice and the session carries on without audio.
func (c *Client) capture(ctx context.Context) error {
	src, err := openMic(c.cfg.mic)
	if err != nil {
		c.store.Dispatch(session.MediaUnavailable{Device: "microphone", Reason: err.Error()})
		c.logger.Printf("VOICE: microphone unavailable: %v", err)
		return nil
	}
	defer src.Close()

	capture := &voice.Capture{
		Source:    src,
		Out:       c.bus,
		ChunkSize: c.cfg.chunkSize,
		Target:    c.voice.Partner,
		Meter:     c.voice.LocalMeter(),
		Realtime:  c.cfg.mic != "-",
		Logger:    c.logger,
	}

	if err := capture.Run(ctx); err != nil {
		c.store.Dispatch(session.MediaUnavailable{Device: "microphone", Reason: err.Error()})
		c.logger.Printf("VOICE: microphone failed: %v", err)
	}

	return nil
}

// meterLoop samples speaking levels independently of the frame loop.
func (c *Client) meterLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.meterHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.updateLevels(c.voice.Levels())
		}
	}
}

func (c *Client) updateLevels(levels map[string]float64) {
	c.levelsMu.Lock()
	defer c.levelsMu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(levels)) {
		on := levels[id] > 0
		if on != c.speaking[id] {
			if on {
				logf(c.cfg, "VOICE: %s started speaking", id)
			} else {
				logf(c.cfg, "VOICE: %s stopped speaking", id)
			}
		}
		c.speaking[id] = on
	}
	for id := range c.speaking {
		if _, ok := levels[id]; !ok {
			delete(c.speaking, id)
		}
	}

	c.levels = levels
}

func (c *Client) Levels() map[string]float64 {
	c.levelsMu.RLock()
	defer c.levelsMu.RUnlock()
	return maps.Clone(c.levels)
}

// Run is the root command: it connects and plays until interrupted.
func Run(ctx context.Context, cfg *Config) error {
	var err error

	if timeZone := os.Getenv("TZ"); timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: partyclient v%s", releaseVersion)

	logger := newLogger(cfg)
	c := newClient(cfg, logger, bus.WebsocketDialer{
		HandshakeTimeout: timeout,
		WriteTimeout:     timeout,
	})

	logf(cfg, "CLIENT: instance %s joining %s as %q", c.id, cfg.serverURL, cfg.name)

	return c.Run(ctx)
}
