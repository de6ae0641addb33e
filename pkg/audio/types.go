// ABOUTME: Audio type definitions
// ABOUTME: Defines the canonical float sample buffer and export descriptors
package audio

import (
	"fmt"
	"time"
)

// MasterSampleRate is the rate every imported sample is converted to
const MasterSampleRate = 48000

const (
	// 16-bit scaling constants, deliberately asymmetric to cover the full
	// two's-complement range
	PCM16NegativeScale = 0x8000
	PCM16PositiveScale = 0x7FFF
)

// SampleFormat selects the on-disk sample encoding
type SampleFormat int

const (
	SampleFormatPCM16 SampleFormat = iota
	SampleFormatFloat32
)

// BitDepth returns the bits per sample written for the format
func (f SampleFormat) BitDepth() int {
	if f == SampleFormatFloat32 {
		return 32
	}
	return 16
}

func (f SampleFormat) String() string {
	if f == SampleFormatFloat32 {
		return "float32"
	}
	return "pcm16"
}

// ParseSampleFormat parses "pcm16" or "float32"
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch s {
	case "pcm16", "pcm", "16":
		return SampleFormatPCM16, nil
	case "float32", "float", "32":
		return SampleFormatFloat32, nil
	}
	return 0, fmt.Errorf("unknown sample format: %s (supported: pcm16, float32)", s)
}

// ChannelMode selects which channels of a buffer are exported
type ChannelMode int

const (
	ChannelsFull ChannelMode = iota
	ChannelsLeft
	ChannelsRight
	ChannelsMono // average of channels 0 and 1
)

func (m ChannelMode) String() string {
	switch m {
	case ChannelsLeft:
		return "left"
	case ChannelsRight:
		return "right"
	case ChannelsMono:
		return "mono"
	}
	return "full"
}

// ParseChannelMode parses "full", "left", "right" or "mono"
func ParseChannelMode(s string) (ChannelMode, error) {
	switch s {
	case "full", "":
		return ChannelsFull, nil
	case "left":
		return ChannelsLeft, nil
	case "right":
		return ChannelsRight, nil
	case "mono":
		return ChannelsMono, nil
	}
	return 0, fmt.Errorf("unknown channel mode: %s (supported: full, left, right, mono)", s)
}

// Format describes a decoded source stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Buffer is decoded audio, one float32 slice per channel in [-1, 1]
type Buffer struct {
	Channels   [][]float32
	SampleRate int
}

// NewBuffer allocates a zeroed buffer
func NewBuffer(channels, frames, sampleRate int) *Buffer {
	b := &Buffer{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for ch := range b.Channels {
		b.Channels[ch] = make([]float32, frames)
	}
	return b
}

// NumChannels returns the channel count
func (b *Buffer) NumChannels() int {
	return len(b.Channels)
}

// Frames returns the per-channel length
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length at the buffer's rate
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Interleave returns the frames as L0,R0,L1,R1,...
func (b *Buffer) Interleave() []float32 {
	channels := b.NumChannels()
	if channels == 1 {
		return b.Channels[0]
	}
	frames := b.Frames()
	out := make([]float32, frames*channels)
	for ch, data := range b.Channels {
		for i, s := range data {
			out[i*channels+ch] = s
		}
	}
	return out
}

// BufferFromInterleaved splits interleaved samples into channels
func BufferFromInterleaved(samples []float32, channels, sampleRate int) *Buffer {
	frames := len(samples) / channels
	b := NewBuffer(channels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			b.Channels[ch][i] = samples[i*channels+ch]
		}
	}
	return b
}

// SampleToInt16 clamps a float sample to [-1, 1] and scales it to 16 bits
func SampleToInt16(sample float32) int16 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	if sample < 0 {
		return int16(sample * PCM16NegativeScale)
	}
	return int16(sample * PCM16PositiveScale)
}

// SampleFromInt converts a signed integer sample of the given bit depth to float
func SampleFromInt(sample int32, bitDepth int) float32 {
	return float32(sample) / float32(int64(1)<<(bitDepth-1))
}
