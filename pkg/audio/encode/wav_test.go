// ABOUTME: Unit tests for WAV encoder
// ABOUTME: Tests header layout, sample encoding and channel selection
package encode

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-audio/wav"
	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

func stereoBuffer(left, right []float32, rate int) *audio.Buffer {
	return &audio.Buffer{Channels: [][]float32{left, right}, SampleRate: rate}
}

func TestWAVHeader(t *testing.T) {
	buf := audio.NewBuffer(1, 100, 48000)

	output, err := EncodeWAV(buf, Options{Format: audio.SampleFormatPCM16})
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	if len(output) != 44+200 {
		t.Fatalf("expected %d bytes, got %d", 244, len(output))
	}

	le := binary.LittleEndian
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"chunk size", le.Uint32(output[4:]), 36 + 200},
		{"fmt size", le.Uint32(output[16:]), 16},
		{"format", uint32(le.Uint16(output[20:])), WAVFormatPCM},
		{"channels", uint32(le.Uint16(output[22:])), 1},
		{"sample rate", le.Uint32(output[24:]), 48000},
		{"byte rate", le.Uint32(output[28:]), 96000},
		{"block align", uint32(le.Uint16(output[32:])), 2},
		{"bits per sample", uint32(le.Uint16(output[34:])), 16},
		{"data bytes", le.Uint32(output[40:]), 200},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, c.got)
		}
	}

	for offset, tag := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if string(output[offset:offset+4]) != tag {
			t.Errorf("expected %q at offset %d, got %q", tag, offset, output[offset:offset+4])
		}
	}
}

func TestWAVPCM16Clamp(t *testing.T) {
	buf := &audio.Buffer{Channels: [][]float32{{-1.0, 1.0, 1.5, -1.5}}, SampleRate: 48000}

	output, err := EncodeWAV(buf, Options{Format: audio.SampleFormatPCM16})
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	want := []int16{-32768, 32767, 32767, -32768}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(output[44+i*2:]))
		if got != w {
			t.Errorf("sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestWAVFloat32(t *testing.T) {
	samples := []float32{0.25, -0.5, 1.5, -0.125}
	buf := &audio.Buffer{Channels: [][]float32{samples}, SampleRate: 44100}

	output, err := EncodeWAV(buf, Options{Format: audio.SampleFormatFloat32})
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	if tag := binary.LittleEndian.Uint16(output[20:]); tag != WAVFormatFloat {
		t.Errorf("expected format tag 3, got %d", tag)
	}
	if bits := binary.LittleEndian.Uint16(output[34:]); bits != 32 {
		t.Errorf("expected 32 bits per sample, got %d", bits)
	}
	if dataBytes := binary.LittleEndian.Uint32(output[40:]); dataBytes != 16 {
		t.Errorf("expected 16 data bytes, got %d", dataBytes)
	}

	// Float samples are written verbatim, without clamping
	for i, s := range samples {
		got := math.Float32frombits(binary.LittleEndian.Uint32(output[44+i*4:]))
		if got != s {
			t.Errorf("sample %d: expected %v, got %v", i, s, got)
		}
	}
}

func TestWAVChannelModes(t *testing.T) {
	buf := stereoBuffer([]float32{0.5, -0.5}, []float32{0.25, 0.75}, 48000)

	tests := []struct {
		name     string
		mode     audio.ChannelMode
		channels uint16
		want     []float32
	}{
		{"full interleaves", audio.ChannelsFull, 2, []float32{0.5, 0.25, -0.5, 0.75}},
		{"left", audio.ChannelsLeft, 1, []float32{0.5, -0.5}},
		{"right", audio.ChannelsRight, 1, []float32{0.25, 0.75}},
		{"mono averages", audio.ChannelsMono, 1, []float32{0.375, 0.125}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := EncodeWAV(buf, Options{Format: audio.SampleFormatFloat32, Channels: tt.mode})
			if err != nil {
				t.Fatalf("EncodeWAV() failed: %v", err)
			}

			if ch := binary.LittleEndian.Uint16(output[22:]); ch != tt.channels {
				t.Errorf("expected %d channels, got %d", tt.channels, ch)
			}
			if align := binary.LittleEndian.Uint16(output[32:]); align != tt.channels*4 {
				t.Errorf("expected block align %d, got %d", tt.channels*4, align)
			}
			if len(output) != 44+len(tt.want)*4 {
				t.Fatalf("expected %d bytes, got %d", 44+len(tt.want)*4, len(output))
			}
			for i, w := range tt.want {
				got := math.Float32frombits(binary.LittleEndian.Uint32(output[44+i*4:]))
				if got != w {
					t.Errorf("sample %d: expected %v, got %v", i, w, got)
				}
			}
		})
	}
}

func TestWAVMoreThanTwoChannels(t *testing.T) {
	buf := &audio.Buffer{
		Channels:   [][]float32{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}},
		SampleRate: 48000,
	}

	output, err := EncodeWAV(buf, Options{Format: audio.SampleFormatFloat32})
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	if ch := binary.LittleEndian.Uint16(output[22:]); ch != 1 {
		t.Errorf("expected only the first channel to be written, got %d channels", ch)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(output[48:])); got != 0.2 {
		t.Errorf("expected second frame of channel 0, got %v", got)
	}
}

func TestWAVReadableByDecoder(t *testing.T) {
	left := []float32{0, 0.5, -0.5, 1, -1}
	right := []float32{0.25, -0.25, 0, 0.75, -0.75}
	buf := stereoBuffer(left, right, 44100)

	output, err := EncodeWAV(buf, Options{Format: audio.SampleFormatPCM16})
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(output))
	if !dec.IsValidFile() {
		t.Fatal("decoder rejected encoded file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() failed: %v", err)
	}

	if dec.SampleRate != 44100 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("unexpected format: %d Hz, %d channels, %d-bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(pcm.Data) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(pcm.Data))
	}
	for i := range left {
		if pcm.Data[i*2] != int(audio.SampleToInt16(left[i])) {
			t.Errorf("left %d: expected %d, got %d", i, audio.SampleToInt16(left[i]), pcm.Data[i*2])
		}
		if pcm.Data[i*2+1] != int(audio.SampleToInt16(right[i])) {
			t.Errorf("right %d: expected %d, got %d", i, audio.SampleToInt16(right[i]), pcm.Data[i*2+1])
		}
	}
}

func TestNewWAVInvalidOptions(t *testing.T) {
	if _, err := NewWAV(Options{Format: audio.SampleFormat(7)}); err == nil {
		t.Error("expected error for unknown sample format")
	}
	if _, err := NewWAV(Options{Channels: audio.ChannelMode(9)}); err == nil {
		t.Error("expected error for unknown channel mode")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		container string
		ext       string
		wantErr   bool
	}{
		{"wav", ".wav", false},
		{"aiff", ".aif", false},
		{"pcm", ".pcm", false},
		{"ogg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.container, func(t *testing.T) {
			e, err := New(tt.container, Options{})
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if e.Extension() != tt.ext {
				t.Errorf("expected extension %s, got %s", tt.ext, e.Extension())
			}
		})
	}
}

func TestOutputChannels(t *testing.T) {
	stereo := audio.NewBuffer(2, 4, 48000)
	tests := []struct {
		name string
		buf  *audio.Buffer
		mode audio.ChannelMode
		want int
	}{
		{"stereo full", stereo, audio.ChannelsFull, 2},
		{"stereo mono", stereo, audio.ChannelsMono, 1},
		{"stereo right", stereo, audio.ChannelsRight, 1},
		{"mono full", audio.NewBuffer(1, 4, 48000), audio.ChannelsFull, 1},
		{"quad full", audio.NewBuffer(4, 4, 48000), audio.ChannelsFull, 1},
		{"empty", &audio.Buffer{}, audio.ChannelsFull, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputChannels(tt.buf, tt.mode); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
			if tt.want > 0 {
				if got := len(selectChannels(tt.buf, tt.mode)); got != tt.want {
					t.Errorf("selectChannels returned %d channels, expected %d", got, tt.want)
				}
			}
		})
	}
}
