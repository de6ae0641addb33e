// ABOUTME: WAV file encoder
// ABOUTME: Writes a canonical 44-byte RIFF/WAVE header followed by sample data
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

const (
	wavHeaderSize = 44
	wavFmtSize    = 16

	WAVFormatPCM   = 1
	WAVFormatFloat = 3
)

// WAVDescriptor holds the fmt chunk fields of a WAV file
type WAVDescriptor struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Format     audio.SampleFormat
}

// FormatTag returns the fmt chunk format code
func (d WAVDescriptor) FormatTag() uint16 {
	if d.Format == audio.SampleFormatFloat32 {
		return WAVFormatFloat
	}
	return WAVFormatPCM
}

// BlockAlign returns the bytes per frame
func (d WAVDescriptor) BlockAlign() int {
	return d.Channels * d.BitDepth / 8
}

// WAVEncoder encodes buffers as RIFF/WAVE files
type WAVEncoder struct {
	opts Options
}

// NewWAV creates a new WAV encoder
func NewWAV(opts Options) (*WAVEncoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &WAVEncoder{opts: opts}, nil
}

// EncodeWAV is a shorthand for NewWAV followed by Encode
func EncodeWAV(buf *audio.Buffer, opts Options) ([]byte, error) {
	e, err := NewWAV(opts)
	if err != nil {
		return nil, err
	}
	return e.Encode(buf)
}

// Extension returns ".wav"
func (e *WAVEncoder) Extension() string {
	return ".wav"
}

// Encode writes the header and the selected, interleaved channels
func (e *WAVEncoder) Encode(buf *audio.Buffer) ([]byte, error) {
	channels := selectChannels(buf, e.opts.Channels)
	if len(channels) == 0 {
		return nil, fmt.Errorf("cannot encode a buffer with no channels")
	}
	samples := interleave(channels)

	d := WAVDescriptor{
		SampleRate: buf.SampleRate,
		Channels:   len(channels),
		BitDepth:   e.opts.Format.BitDepth(),
		Format:     e.opts.Format,
	}
	dataBytes := len(samples) * d.BitDepth / 8

	output := make([]byte, wavHeaderSize+dataBytes)
	writeWAVHeader(output, d, dataBytes)
	putSamples(output[wavHeaderSize:], samples, e.opts.Format, binary.LittleEndian)

	return output, nil
}

func writeWAVHeader(dst []byte, d WAVDescriptor, dataBytes int) {
	le := binary.LittleEndian
	blockAlign := d.BlockAlign()

	copy(dst[0:4], "RIFF")
	le.PutUint32(dst[4:], uint32(36+dataBytes))
	copy(dst[8:12], "WAVE")

	copy(dst[12:16], "fmt ")
	le.PutUint32(dst[16:], wavFmtSize)
	le.PutUint16(dst[20:], d.FormatTag())
	le.PutUint16(dst[22:], uint16(d.Channels))
	le.PutUint32(dst[24:], uint32(d.SampleRate))
	le.PutUint32(dst[28:], uint32(d.SampleRate*blockAlign))
	le.PutUint16(dst[32:], uint16(blockAlign))
	le.PutUint16(dst[34:], uint16(d.BitDepth))

	copy(dst[36:40], "data")
	le.PutUint32(dst[40:], uint32(dataBytes))
}
