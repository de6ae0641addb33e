// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes a complete FLAC file to a float buffer
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

// DecodeFLAC decodes a complete FLAC file frame by frame
func DecodeFLAC(data []byte) (*audio.Buffer, audio.Format, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	format := audio.Format{
		Codec:      string(KindFLAC),
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
		BitDepth:   int(info.BitsPerSample),
	}
	if format.Channels < 1 {
		return nil, format, fmt.Errorf("invalid FLAC stream: %d channels", format.Channels)
	}

	buf := &audio.Buffer{
		Channels:   make([][]float32, format.Channels),
		SampleRate: format.SampleRate,
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, 0, info.NSamples)
	}

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, format, fmt.Errorf("flac frame error: %w", err)
		}

		for ch := 0; ch < format.Channels; ch++ {
			for _, sample := range frame.Subframes[ch].Samples {
				buf.Channels[ch] = append(buf.Channels[ch], audio.SampleFromInt(sample, format.BitDepth))
			}
		}
	}

	return buf, format, nil
}
