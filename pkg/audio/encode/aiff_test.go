// ABOUTME: Unit tests for AIFF encoder
// ABOUTME: Walks the chunk layout and checks rate, loop markers and sample bytes
package encode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

// aiffChunks splits a FORM body into its chunks, keyed by id
func aiffChunks(t *testing.T, data []byte) (string, []string, map[string][]byte) {
	t.Helper()

	if string(data[0:4]) != "FORM" {
		t.Fatalf("expected FORM, got %q", data[0:4])
	}
	if size := binary.BigEndian.Uint32(data[4:]); int(size) != len(data)-8 {
		t.Fatalf("FORM size %d does not match file length %d", size, len(data)-8)
	}

	formType := string(data[8:12])
	var order []string
	chunks := make(map[string][]byte)
	for pos := 12; pos < len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.BigEndian.Uint32(data[pos+4:]))
		chunks[id] = data[pos+8 : pos+8+size]
		order = append(order, id)
		pos += 8 + size + size%2
	}
	return formType, order, chunks
}

func TestExtendedFloat(t *testing.T) {
	rate := extendedFromFloat64(48000).bytes()
	want := [10]byte{0x40, 0x0E, 0xBB, 0x80, 0, 0, 0, 0, 0, 0}
	if rate != want {
		t.Errorf("48000: expected % X, got % X", want, rate)
	}

	for _, v := range []float64{0, 1, 8000, 44100, 48000, 96000, 0.5, -22050} {
		got := float64FromExtended(extendedFromFloat64(v))
		if got != v {
			t.Errorf("round trip %v: got %v", v, got)
		}
	}
}

func TestAIFFPCM16(t *testing.T) {
	buf := stereoBuffer([]float32{0.5, -1}, []float32{1, -0.5}, 44100)

	output, err := EncodeAIFF(buf, Options{Format: audio.SampleFormatPCM16})
	if err != nil {
		t.Fatalf("EncodeAIFF() failed: %v", err)
	}

	formType, order, chunks := aiffChunks(t, output)
	if formType != "AIFF" {
		t.Errorf("expected AIFF form, got %s", formType)
	}
	if len(order) != 2 || order[0] != "COMM" || order[1] != "SSND" {
		t.Errorf("expected COMM, SSND chunks, got %v", order)
	}

	comm := chunks["COMM"]
	if len(comm) != 18 {
		t.Fatalf("expected 18-byte COMM, got %d", len(comm))
	}
	if ch := binary.BigEndian.Uint16(comm[0:]); ch != 2 {
		t.Errorf("expected 2 channels, got %d", ch)
	}
	if frames := binary.BigEndian.Uint32(comm[2:]); frames != 2 {
		t.Errorf("expected 2 frames, got %d", frames)
	}
	if bits := binary.BigEndian.Uint16(comm[6:]); bits != 16 {
		t.Errorf("expected 16 bits, got %d", bits)
	}
	if rate := extendedFromFloat64(44100).bytes(); string(comm[8:18]) != string(rate[:]) {
		t.Errorf("unexpected sample rate bytes % X", comm[8:18])
	}

	ssnd := chunks["SSND"]
	if len(ssnd) != 8+8 {
		t.Fatalf("expected 16-byte SSND, got %d", len(ssnd))
	}
	want := []int16{16383, 32767, -32768, -16384}
	for i, w := range want {
		got := int16(binary.BigEndian.Uint16(ssnd[8+i*2:]))
		if got != w {
			t.Errorf("sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestAIFFFloat32(t *testing.T) {
	samples := []float32{0.25, -0.75, 1.25}
	buf := &audio.Buffer{Channels: [][]float32{samples}, SampleRate: 48000}

	output, err := EncodeAIFF(buf, Options{Format: audio.SampleFormatFloat32})
	if err != nil {
		t.Fatalf("EncodeAIFF() failed: %v", err)
	}

	formType, order, chunks := aiffChunks(t, output)
	if formType != "AIFC" {
		t.Errorf("expected AIFC form, got %s", formType)
	}
	if len(order) != 3 || order[0] != "FVER" {
		t.Errorf("expected FVER first, got %v", order)
	}
	if v := binary.BigEndian.Uint32(chunks["FVER"]); v != aifcVersion1 {
		t.Errorf("unexpected FVER version %X", v)
	}

	comm := chunks["COMM"]
	if string(comm[18:22]) != "fl32" {
		t.Errorf("expected fl32 compression type, got %q", comm[18:22])
	}
	if bits := binary.BigEndian.Uint16(comm[6:]); bits != 32 {
		t.Errorf("expected 32 bits, got %d", bits)
	}

	ssnd := chunks["SSND"]
	for i, s := range samples {
		got := math.Float32frombits(binary.BigEndian.Uint32(ssnd[8+i*4:]))
		if got != s {
			t.Errorf("sample %d: expected %v, got %v", i, s, got)
		}
	}
}

func TestAIFFLoopChunks(t *testing.T) {
	buf := audio.NewBuffer(1, 1000, 48000)

	output, err := EncodeAIFF(buf, Options{Loop: &Loop{Start: 100, End: 900}})
	if err != nil {
		t.Fatalf("EncodeAIFF() failed: %v", err)
	}

	_, order, chunks := aiffChunks(t, output)
	if len(order) != 4 || order[1] != "MARK" || order[2] != "INST" {
		t.Fatalf("expected COMM, MARK, INST, SSND, got %v", order)
	}

	mark := chunks["MARK"]
	if n := binary.BigEndian.Uint16(mark[0:]); n != 2 {
		t.Fatalf("expected 2 markers, got %d", n)
	}
	if id := binary.BigEndian.Uint16(mark[2:]); id != markerLoopStart {
		t.Errorf("expected first marker id %d, got %d", markerLoopStart, id)
	}
	if pos := binary.BigEndian.Uint32(mark[4:]); pos != 100 {
		t.Errorf("expected loop start 100, got %d", pos)
	}
	if name := string(mark[9 : 9+mark[8]]); name != "beg loop" {
		t.Errorf("expected marker name %q, got %q", "beg loop", name)
	}
	// "beg loop" is 8 bytes: count byte + name + pad = 10
	second := mark[8+10:]
	if id := binary.BigEndian.Uint16(second[0:]); id != markerLoopEnd {
		t.Errorf("expected second marker id %d, got %d", markerLoopEnd, id)
	}
	if pos := binary.BigEndian.Uint32(second[2:]); pos != 900 {
		t.Errorf("expected loop end 900, got %d", pos)
	}

	inst := chunks["INST"]
	if len(inst) != 20 {
		t.Fatalf("expected 20-byte INST, got %d", len(inst))
	}
	if mode := binary.BigEndian.Uint16(inst[8:]); mode != loopModeForward {
		t.Errorf("expected forward sustain loop, got %d", mode)
	}
	if b, e := binary.BigEndian.Uint16(inst[10:]), binary.BigEndian.Uint16(inst[12:]); b != markerLoopStart || e != markerLoopEnd {
		t.Errorf("expected sustain loop markers 1-2, got %d-%d", b, e)
	}
}

func TestAIFFEmptyLoopOmitted(t *testing.T) {
	buf := audio.NewBuffer(1, 10, 48000)

	output, err := EncodeAIFF(buf, Options{Loop: &Loop{Start: 5, End: 5}})
	if err != nil {
		t.Fatalf("EncodeAIFF() failed: %v", err)
	}

	_, order, _ := aiffChunks(t, output)
	for _, id := range order {
		if id == "MARK" || id == "INST" {
			t.Errorf("unexpected %s chunk for an empty loop", id)
		}
	}
}
