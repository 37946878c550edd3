package voice

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/Seednode/partyclient/protocol"
)

// Sender transmits real-time media, dropping it while offline.
// *bus.Bus satisfies it.
type Sender interface {
	TrySend(protocol.Outbound) bool
}

// Capture reads raw s16le mono PCM at SampleRate from a microphone
// source, compresses it and sends it in fixed-size chunks.
type Capture struct {
	Source io.Reader
	Out    Sender

	// ChunkSize is the number of samples per message.
	ChunkSize int

	// Target returns the player the next chunk is addressed to; empty
	// broadcasts to the room.
	Target func() string

	// Meter, if set, sees the signal before compression.
	Meter *Meter

	Compressor *Compressor

	// Realtime paces reads to the chunk duration, as a live device would.
	Realtime bool

	Logger *log.Logger
}

// Run sends chunks until the source is exhausted or ctx is done. A final
// partial chunk is sent as is.
func (c *Capture) Run(ctx context.Context) error {
	size := c.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	comp := c.Compressor
	if comp == nil {
		comp = NewCompressor(VoiceCompressor)
	}
	logger := c.Logger
	if logger == nil {
		logger = log.Default()
	}

	buf := make([]byte, size*2)
	start := time.Now()
	var sent, dropped int

	defer func() {
		logger.Printf("VOICE: capture stopped after %d chunks (%d dropped offline)", sent, dropped)
	}()

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil
		}

		read, err := io.ReadFull(c.Source, buf)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
		case err != nil:
			return err
		}

		samples, err := DecodePCM(buf[:read&^1])
		if err != nil {
			return err
		}

		if c.Meter != nil {
			c.Meter.Write(samples)
		}
		comp.Process(samples)

		var target string
		if c.Target != nil {
			target = c.Target()
		}

		if c.Out.TrySend(protocol.Audio(EncodeChunk(samples), target)) {
			sent++
		} else {
			dropped++
		}

		if read < len(buf) {
			return nil
		}

		if c.Realtime {
			wait := time.Until(start.Add(time.Duration(n) * Duration(size)))
			if wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return nil
				case <-t.C:
				}
			}
		}
	}
}
