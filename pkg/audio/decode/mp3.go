// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes a complete MP3 file to a stereo float buffer
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

// DecodeMP3 decodes a complete MP3 file. The decoder always produces
// 16-bit stereo, so mono files come back with two identical channels.
func DecodeMP3(data []byte) (*audio.Buffer, audio.Format, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	format := audio.Format{
		Codec:      string(KindMP3),
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}

	// 2 bytes per int16 sample, 2 channels
	frames := len(pcm) / 4
	buf := audio.NewBuffer(2, frames, format.SampleRate)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		buf.Channels[0][i] = audio.SampleFromInt(int32(left), 16)
		buf.Channels[1][i] = audio.SampleFromInt(int32(right), 16)
	}

	return buf, format, nil
}
