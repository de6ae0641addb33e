// ABOUTME: AIFF file encoder
// ABOUTME: Writes FORM/AIFF (PCM16) or FORM/AIFC (float32) with optional loop markers
package encode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

const (
	aifcVersion1 = 0xA2805140

	markerLoopStart = 1
	markerLoopEnd   = 2

	loopModeForward = 1
)

// extendedFloat is the 80-bit IEEE 754 extended value AIFF uses for the
// sample rate: sign * 1.mantissa * 2^(exponent-16383)
type extendedFloat struct {
	Sign     bool
	Exponent uint16
	Mantissa uint64
}

func extendedFromFloat64(val float64) extendedFloat {
	if val == 0 {
		return extendedFloat{}
	}

	bits := math.Float64bits(val)
	sign := bits & (1 << 63)
	exponent := (bits^sign)>>52 - 1023 + 16383
	mantissa := uint64(1)<<63 | (bits&(1<<52-1))<<11

	return extendedFloat{
		Sign:     sign != 0,
		Exponent: uint16(exponent),
		Mantissa: mantissa,
	}
}

func float64FromExtended(val extendedFloat) float64 {
	if val.Exponent == 0 && val.Mantissa == 0 {
		return 0
	}
	f := float64(val.Mantissa) / math.Pow(2, 63) * math.Pow(2, float64(val.Exponent)-16383)
	if val.Sign {
		return -f
	}
	return f
}

func (e extendedFloat) bytes() [10]byte {
	var out [10]byte
	exp := e.Exponent
	if e.Sign {
		exp |= 0x8000
	}
	binary.BigEndian.PutUint16(out[0:], exp)
	binary.BigEndian.PutUint64(out[2:], e.Mantissa)
	return out
}

// AIFFEncoder encodes buffers as AIFF, or AIFF-C for float samples
type AIFFEncoder struct {
	opts Options
}

// NewAIFF creates a new AIFF encoder
func NewAIFF(opts Options) (*AIFFEncoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &AIFFEncoder{opts: opts}, nil
}

// EncodeAIFF is a shorthand for NewAIFF followed by Encode
func EncodeAIFF(buf *audio.Buffer, opts Options) ([]byte, error) {
	e, err := NewAIFF(opts)
	if err != nil {
		return nil, err
	}
	return e.Encode(buf)
}

// Extension returns ".aif"
func (e *AIFFEncoder) Extension() string {
	return ".aif"
}

// Encode writes COMM, optional MARK/INST and SSND chunks inside a FORM
func (e *AIFFEncoder) Encode(buf *audio.Buffer) ([]byte, error) {
	channels := selectChannels(buf, e.opts.Channels)
	if len(channels) == 0 {
		return nil, fmt.Errorf("cannot encode a buffer with no channels")
	}
	samples := interleave(channels)
	frames := len(channels[0])
	isFloat := e.opts.Format == audio.SampleFormatFloat32

	var chunks bytes.Buffer
	if isFloat {
		writeChunk(&chunks, "FVER", func(b *bytes.Buffer) {
			binary.Write(b, binary.BigEndian, uint32(aifcVersion1))
		})
	}

	writeChunk(&chunks, "COMM", func(b *bytes.Buffer) {
		binary.Write(b, binary.BigEndian, int16(len(channels)))
		binary.Write(b, binary.BigEndian, uint32(frames))
		binary.Write(b, binary.BigEndian, int16(e.opts.Format.BitDepth()))
		rate := extendedFromFloat64(float64(buf.SampleRate)).bytes()
		b.Write(rate[:])
		if isFloat {
			b.WriteString("fl32")
			writePString(b, "32-bit floating point")
		}
	})

	if loop := e.opts.Loop; loop != nil && loop.End > loop.Start {
		writeChunk(&chunks, "MARK", func(b *bytes.Buffer) {
			binary.Write(b, binary.BigEndian, uint16(2))
			binary.Write(b, binary.BigEndian, uint16(markerLoopStart))
			binary.Write(b, binary.BigEndian, uint32(loop.Start))
			writePString(b, "beg loop")
			binary.Write(b, binary.BigEndian, uint16(markerLoopEnd))
			binary.Write(b, binary.BigEndian, uint32(loop.End))
			writePString(b, "end loop")
		})
		writeChunk(&chunks, "INST", func(b *bytes.Buffer) {
			// base note, detune, low/high note, low/high velocity
			b.Write([]byte{60, 0, 0, 127, 1, 127})
			binary.Write(b, binary.BigEndian, int16(0)) // gain
			binary.Write(b, binary.BigEndian, int16(loopModeForward))
			binary.Write(b, binary.BigEndian, uint16(markerLoopStart))
			binary.Write(b, binary.BigEndian, uint16(markerLoopEnd))
			// no release loop
			binary.Write(b, binary.BigEndian, [3]int16{})
		})
	}

	writeChunk(&chunks, "SSND", func(b *bytes.Buffer) {
		binary.Write(b, binary.BigEndian, uint32(0)) // offset
		binary.Write(b, binary.BigEndian, uint32(0)) // block size
		data := make([]byte, len(samples)*e.opts.Format.BitDepth()/8)
		putSamples(data, samples, e.opts.Format, binary.BigEndian)
		b.Write(data)
	})

	formType := "AIFF"
	if isFloat {
		formType = "AIFC"
	}

	output := make([]byte, 0, 12+chunks.Len())
	output = append(output, "FORM"...)
	output = binary.BigEndian.AppendUint32(output, uint32(4+chunks.Len()))
	output = append(output, formType...)
	output = append(output, chunks.Bytes()...)

	return output, nil
}

// writeChunk writes id, big-endian size and body, padded to an even length
func writeChunk(out *bytes.Buffer, id string, body func(*bytes.Buffer)) {
	var b bytes.Buffer
	body(&b)

	out.WriteString(id)
	binary.Write(out, binary.BigEndian, uint32(b.Len()))
	out.Write(b.Bytes())
	if b.Len()%2 != 0 {
		out.WriteByte(0)
	}
}

// writePString writes a Pascal string padded to an even total length
func writePString(b *bytes.Buffer, s string) {
	b.WriteByte(byte(len(s)))
	b.WriteString(s)
	if (len(s)+1)%2 != 0 {
		b.WriteByte(0)
	}
}
