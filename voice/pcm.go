/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package voice is the audio mixing engine: microphone chunks are
// compressed, encoded and sent over the bus; peer chunks are decoded,
// jitter-scheduled into a software mixer and attenuated by distance.
package voice

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// SampleRate is shared by capture and playback. A mismatch between the
// two is a bug, so it is not configurable.
const SampleRate = 48000

// DefaultChunkSize is about 341ms at SampleRate.
const DefaultChunkSize = 16384

var ErrOddLength = errors.New("pcm data has odd length")

// EncodePCM converts samples to 16-bit signed little-endian PCM, hard
// clipping anything outside [-1, 1].
func EncodePCM(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

func toInt16(s float32) int16 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s <= -1:
		return -0x8000
	case s >= 1:
		return 0x7FFF
	case s < 0:
		return int16(s * 0x8000)
	default:
		return int16(s * 0x7FFF)
	}
}

// DecodePCM is the inverse of EncodePCM.
func DecodePCM(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}

	out := make([]float32, len(data)/2)
	for i := range out {
		x := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if x < 0 {
			out[i] = float32(x) / 0x8000
		} else {
			out[i] = float32(x) / 0x7FFF
		}
	}
	return out, nil
}

// EncodeChunk produces the transport form of a chunk: base64 PCM.
func EncodeChunk(samples []float32) string {
	return base64.StdEncoding.EncodeToString(EncodePCM(samples))
}

func DecodeChunk(chunk string) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(chunk)
	if err != nil {
		return nil, fmt.Errorf("decoding audio chunk: %w", err)
	}
	return DecodePCM(data)
}

// Duration is the playback length of n samples at SampleRate.
func Duration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}

func samplesIn(d time.Duration) int64 {
	return int64(d) * SampleRate / int64(time.Second)
}
