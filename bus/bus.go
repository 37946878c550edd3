/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package bus keeps a persistent connection to the game server. Outbound
// messages are queued while disconnected and flushed in order once the
// connection is back; inbound frames are decoded and handed out in
// arrival order.
package bus

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Seednode/partyclient/protocol"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var ErrClosed = errors.New("bus closed")

const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultDialsPerMinute = 12
	DefaultDialBurst      = 3
)

type Options struct {
	URL string

	// ReconnectDelay is waited unconditionally after every closed or
	// failed connection.
	ReconnectDelay time.Duration

	// DialsPerMinute and DialBurst cap how fast connect/close cycles
	// may repeat.
	DialsPerMinute int
	DialBurst      int

	// InboundBuffer is the capacity of the channel returned by Inbound.
	InboundBuffer int

	// Traffic enables [WS IN]/[WS OUT] logging from the start.
	Traffic bool

	Logger *log.Logger
}

type pending struct {
	data     []byte
	volatile bool
	quiet    bool
}

// Bus is the message bus adapter. Send may be called from any goroutine;
// exactly one writer drains the queue.
type Bus struct {
	dialer  Dialer
	url     string
	delay   time.Duration
	limiter *rate.Limiter
	logger  *log.Logger

	mu        sync.Mutex
	queue     []pending
	connected bool

	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	inbound chan protocol.Message
	traffic atomic.Bool
}

func New(dialer Dialer, opts Options) *Bus {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.DialsPerMinute <= 0 {
		opts.DialsPerMinute = DefaultDialsPerMinute
	}
	if opts.DialBurst <= 0 {
		opts.DialBurst = DefaultDialBurst
	}
	if opts.InboundBuffer <= 0 {
		opts.InboundBuffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	b := &Bus{
		dialer:  dialer,
		url:     opts.URL,
		delay:   opts.ReconnectDelay,
		limiter: rate.NewLimiter(rate.Limit(float64(opts.DialsPerMinute)/60), opts.DialBurst),
		logger:  opts.Logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		inbound: make(chan protocol.Message, opts.InboundBuffer),
	}
	b.traffic.Store(opts.Traffic)

	return b
}

// Inbound delivers decoded messages in arrival order. It is closed when
// Run returns.
func (b *Bus) Inbound() <-chan protocol.Message {
	return b.inbound
}

// SetTraffic toggles raw traffic logging. Video and audio payloads are
// never logged.
func (b *Bus) SetTraffic(on bool) {
	b.traffic.Store(on)
	b.logger.Printf("BUS: traffic logging %v", on)
}

func (b *Bus) Traffic() bool {
	return b.traffic.Load()
}

func (b *Bus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Pending reports how many outbound messages are waiting to be written.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Send encodes a message and queues it. Queued messages survive
// disconnects and are written exactly once, in the order they were sent.
func (b *Bus) Send(t string, payload any) error {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}

	return b.enqueue(pending{data: data, quiet: quiet(t)}, false)
}

func (b *Bus) Post(o protocol.Outbound) error {
	return b.Send(o.Type, o.Payload)
}

// TrySend is Post for real-time media. While disconnected the message is
// dropped instead of queued, and anything of this kind still queued when
// a connection is lost is discarded, since stale frames are worthless.
func (b *Bus) TrySend(o protocol.Outbound) bool {
	data, err := protocol.Encode(o.Type, o.Payload)
	if err != nil {
		return false
	}

	return b.enqueue(pending{data: data, volatile: true, quiet: quiet(o.Type)}, true) == nil
}

func (b *Bus) enqueue(p pending, onlineOnly bool) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	b.mu.Lock()
	if onlineOnly && !b.connected {
		b.mu.Unlock()
		return errOffline
	}
	b.queue = append(b.queue, p)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}

	return nil
}

var errOffline = errors.New("not connected")

// Close stops Run and rejects further sends. Messages still queued are
// abandoned.
func (b *Bus) Close() error {
	b.once.Do(func() { close(b.done) })
	return nil
}

// Run connects and reconnects until ctx is done or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	defer close(b.inbound)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil
		}

		conn, err := b.dialer.Dial(ctx, b.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Printf("BUS: dial %s failed: %v", b.url, err)
		} else {
			b.setConnected(true)
			b.logger.Printf("BUS: connected to %s", b.url)

			err = b.serve(ctx, conn)

			b.setConnected(false)
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Printf("BUS: connection lost: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.delay):
		}
	}
}

func (b *Bus) setConnected(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connected = on
	if on {
		return
	}

	kept := b.queue[:0]
	for _, p := range b.queue {
		if !p.volatile {
			kept = append(kept, p)
		}
	}
	clear(b.queue[len(kept):])
	b.queue = kept
}

func (b *Bus) serve(ctx context.Context, conn Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		return nil
	})

	g.Go(func() error {
		return b.readLoop(gctx, conn)
	})

	g.Go(func() error {
		return b.writeLoop(gctx, conn)
	})

	return g.Wait()
}

func (b *Bus) readLoop(ctx context.Context, conn Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			b.logger.Printf("BUS: discarding malformed message: %v", err)
			continue
		}

		if b.traffic.Load() && !quiet(msg.Kind()) {
			b.logger.Printf("[WS IN] %s", data)
		}

		select {
		case b.inbound <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeLoop writes the head of the queue and only then removes it, so a
// failed write leaves the message in place for the next connection.
func (b *Bus) writeLoop(ctx context.Context, conn Conn) error {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()

			select {
			case <-b.wake:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		p := b.queue[0]
		b.mu.Unlock()

		if err := conn.WriteMessage(p.data); err != nil {
			return err
		}

		if b.traffic.Load() && !p.quiet {
			b.logger.Printf("[WS OUT] %s", p.data)
		}

		b.mu.Lock()
		b.queue[0] = pending{}
		b.queue = b.queue[1:]
		b.mu.Unlock()
	}
}

func quiet(t string) bool {
	return t == protocol.TypeVideoUpdate || t == protocol.TypeAudioUpdate
}
