// ABOUTME: WAV file decoder
// ABOUTME: Decodes RIFF/WAVE bytes to a float buffer at the file's native rate
package decode

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

const wavFormatIEEEFloat = 3

// DecodeWAVFile decodes a complete WAV file. PCM at 8, 16, 24 and 32 bits and
// 32-bit IEEE float are supported.
func DecodeWAVFile(data []byte) (*audio.Buffer, audio.Format, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, audio.Format{}, ErrInvalidWAV
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, audio.Format{}, fmt.Errorf("%w: reading PCM data: %v", ErrInvalidWAV, err)
	}
	if pcm == nil {
		return nil, audio.Format{}, fmt.Errorf("%w: empty WAV buffer", ErrTruncated)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels < 1 || bitDepth < 8 {
		return nil, audio.Format{}, fmt.Errorf("%w: %d channels, %d-bit", ErrInvalidWAV, channels, bitDepth)
	}
	isFloat := dec.WavAudioFormat == wavFormatIEEEFloat
	format := audio.Format{
		Codec:      string(KindWAV),
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
	}

	frames := len(pcm.Data) / channels
	buf := audio.NewBuffer(channels, frames, format.SampleRate)
	for i, v := range pcm.Data[:frames*channels] {
		var s float32
		switch {
		case isFloat && bitDepth == 32:
			s = math.Float32frombits(uint32(v))
		case bitDepth == 8:
			// 8-bit WAV is unsigned
			s = float32(v-128) / 128
		case bitDepth == 32:
			s = audio.SampleFromInt(int32(uint32(v)), 32)
		default:
			s = audio.SampleFromInt(int32(v), bitDepth)
		}
		buf.Channels[i%channels][i/channels] = s
	}

	return buf, format, nil
}
