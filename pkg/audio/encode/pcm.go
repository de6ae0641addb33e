// ABOUTME: Headerless PCM encoder
// ABOUTME: Encodes float samples to raw 16-bit or 32-bit float bytes
package encode

import (
	"encoding/binary"
	"math"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

// PCMEncoder writes interleaved little-endian samples with no header
type PCMEncoder struct {
	opts Options
}

// NewPCM creates a new raw PCM encoder
func NewPCM(opts Options) (*PCMEncoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &PCMEncoder{opts: opts}, nil
}

// Encode converts the selected channels to raw sample bytes
func (e *PCMEncoder) Encode(buf *audio.Buffer) ([]byte, error) {
	samples := interleave(selectChannels(buf, e.opts.Channels))
	output := make([]byte, len(samples)*e.opts.Format.BitDepth()/8)
	putSamples(output, samples, e.opts.Format, binary.LittleEndian)
	return output, nil
}

// Extension returns ".pcm"
func (e *PCMEncoder) Extension() string {
	return ".pcm"
}

// putSamples writes samples into dst, which must be exactly large enough
func putSamples(dst []byte, samples []float32, format audio.SampleFormat, order binary.ByteOrder) {
	if format == audio.SampleFormatFloat32 {
		// 32-bit float: 4 bytes per sample, written verbatim
		for i, s := range samples {
			order.PutUint32(dst[i*4:], math.Float32bits(s))
		}
		return
	}

	// 16-bit PCM: 2 bytes per sample
	for i, s := range samples {
		order.PutUint16(dst[i*2:], uint16(audio.SampleToInt16(s)))
	}
}
