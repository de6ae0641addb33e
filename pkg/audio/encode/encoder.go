// ABOUTME: Encoder interface definition
// ABOUTME: Common interface, options and factory for all file encoders
package encode

import (
	"fmt"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

// Encoder serializes a buffer into a file format
type Encoder interface {
	// Encode converts a buffer to encoded file bytes
	Encode(buf *audio.Buffer) ([]byte, error)

	// Extension returns the file extension including the dot
	Extension() string
}

// Loop marks a sustain loop in frames, end exclusive
type Loop struct {
	Start int
	End   int
}

// Options control how a buffer is written
type Options struct {
	Format   audio.SampleFormat
	Channels audio.ChannelMode
	Loop     *Loop // AIFF only, ignored by other containers
}

func (o Options) validate() error {
	switch o.Format {
	case audio.SampleFormatPCM16, audio.SampleFormatFloat32:
	default:
		return fmt.Errorf("unsupported sample format: %d", o.Format)
	}
	switch o.Channels {
	case audio.ChannelsFull, audio.ChannelsLeft, audio.ChannelsRight, audio.ChannelsMono:
	default:
		return fmt.Errorf("unsupported channel mode: %d", o.Channels)
	}
	return nil
}

// New creates an encoder for the named container: "wav", "aiff" or "pcm"
func New(container string, opts Options) (Encoder, error) {
	switch container {
	case "wav":
		return NewWAV(opts)
	case "aiff", "aif":
		return NewAIFF(opts)
	case "pcm", "raw":
		return NewPCM(opts)
	}
	return nil, fmt.Errorf("unsupported container: %s (supported: wav, aiff, pcm)", container)
}
