// ABOUTME: Decoder dispatch and shared error taxonomy
// ABOUTME: Sniffs raw file bytes and routes them to the matching decoder
package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

var (
	// ErrNotSDSStream is returned when the SDS header magic does not match
	ErrNotSDSStream = errors.New("not an SDS stream")
	// ErrUnsupportedBitDepth is returned for SDS dumps that are not 16-bit
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
	// ErrSampleRateOutOfRange is returned when the SDS rate is outside 4000-96000 Hz
	ErrSampleRateOutOfRange = errors.New("sample rate out of range")
	// ErrTruncated is returned when a stream ends before any audio data
	ErrTruncated = errors.New("truncated stream")
	// ErrUnknownFormat is returned when no decoder accepts the data
	ErrUnknownFormat = errors.New("unknown audio format")
	// ErrInvalidWAV is returned for RIFF/WAVE data that cannot be decoded
	ErrInvalidWAV = errors.New("invalid WAV file")
)

// Kind identifies the container a file was decoded from
type Kind string

const (
	KindUnknown Kind = ""
	KindSDS     Kind = "sds"
	KindWAV     Kind = "wav"
	KindFLAC    Kind = "flac"
	KindMP3     Kind = "mp3"
)

// Loop marks a sustain loop in frames, end exclusive
type Loop struct {
	Start int
	End   int
	Type  byte
}

// Decoded is the result of decoding one file
type Decoded struct {
	Kind   Kind
	Format audio.Format  // native stream format
	Buffer *audio.Buffer // SDS: already at audio.MasterSampleRate; others: native rate
	Loop   *Loop         // in Buffer frames, nil when the source has no loop
}

// Sniff guesses the container from magic bytes
func Sniff(data []byte) Kind {
	switch {
	case IsSDS(data):
		return KindSDS
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return KindWAV
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC")):
		return KindFLAC
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return KindMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return KindMP3
	}
	return KindUnknown
}

// Decode decodes a file of any supported kind. When the magic bytes are
// not recognised every decoder is tried in turn.
func Decode(data []byte) (*Decoded, error) {
	kind := Sniff(data)
	if kind != KindUnknown {
		return decodeAs(kind, data)
	}

	for _, k := range []Kind{KindSDS, KindWAV, KindFLAC, KindMP3} {
		if d, err := decodeAs(k, data); err == nil {
			return d, nil
		}
	}
	return nil, ErrUnknownFormat
}

func decodeAs(kind Kind, data []byte) (*Decoded, error) {
	switch kind {
	case KindSDS:
		s, err := DecodeSDS(data)
		if err != nil {
			return nil, err
		}
		d := &Decoded{
			Kind: KindSDS,
			Format: audio.Format{
				Codec:      string(KindSDS),
				SampleRate: s.Header.SampleRate,
				Channels:   1,
				BitDepth:   s.Header.BitDepth,
			},
			Buffer: s.Buffer,
		}
		if s.Header.HasLoop() {
			start, end := s.Loop()
			d.Loop = &Loop{Start: start, End: end, Type: s.Header.LoopType}
		}
		return d, nil
	case KindWAV:
		buf, format, err := DecodeWAVFile(data)
		if err != nil {
			return nil, err
		}
		return &Decoded{Kind: KindWAV, Format: format, Buffer: buf}, nil
	case KindFLAC:
		buf, format, err := DecodeFLAC(data)
		if err != nil {
			return nil, err
		}
		return &Decoded{Kind: KindFLAC, Format: format, Buffer: buf}, nil
	case KindMP3:
		buf, format, err := DecodeMP3(data)
		if err != nil {
			return nil, err
		}
		return &Decoded{Kind: KindMP3, Format: format, Buffer: buf}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, kind)
}
