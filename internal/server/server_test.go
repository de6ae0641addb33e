// ABOUTME: Tests for the conversion service
// ABOUTME: Runs the /convert handler under httptest and talks to it over WebSocket
package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sampledeck/sampledeck-go/internal/client"
	"github.com/sampledeck/sampledeck-go/internal/library"
	"github.com/sampledeck/sampledeck-go/internal/protocol"
	"github.com/sampledeck/sampledeck-go/pkg/audio"
	"github.com/sampledeck/sampledeck-go/pkg/audio/decode"
	"github.com/sampledeck/sampledeck-go/pkg/audio/encode"
)

func startTestServer(t *testing.T) (*Server, *library.Library, string) {
	t.Helper()
	lib := library.New()
	s := New(Config{Name: "test"}, lib)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, lib, strings.TrimPrefix(ts.URL, "http://")
}

func connect(t *testing.T, addr string) *client.Client {
	t.Helper()
	c := client.NewClient(client.Config{ServerAddr: addr, Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// sdsDump builds a one-packet 16-bit SDS dump at 48 kHz with a loop
func sdsDump(samples []int32) []byte {
	h := []byte{0xF0, 0x7E, 0x00, 0x01, 0x00, 0x00, 16}
	word := func(v int) []byte { return []byte{byte(v & 0x7F), byte(v >> 7 & 0x7F), byte(v >> 14 & 0x7F)} }
	h = append(h, word(20834)...) // period for 48000 Hz
	h = append(h, word(len(samples))...)
	h = append(h, word(0)...)
	h = append(h, word(len(samples)-1)...)
	h = append(h, 0x00, 0xF7)

	p := make([]byte, 127)
	copy(p, []byte{0xF0, 0x7E, 0x00, 0x02, 0x00})
	for i, s := range samples {
		u := uint16(s + 0x8000)
		p[5+i*3] = byte(u>>9) & 0x7F
		p[6+i*3] = byte(u>>2) & 0x7F
		p[7+i*3] = byte(u&0x03) << 5
	}
	var sum byte
	for _, b := range p[1:125] {
		sum ^= b
	}
	p[125] = sum & 0x7F
	p[126] = 0xF7

	return append(h, p...)
}

func TestServerHello(t *testing.T) {
	s, _, addr := startTestServer(t)
	c := connect(t, addr)

	hello := c.Hello()
	if hello.ServerID != s.ID() {
		t.Errorf("expected server ID %s, got %s", s.ID(), hello.ServerID)
	}
	if hello.Version != ProtocolVersion {
		t.Errorf("expected version %d, got %d", ProtocolVersion, hello.Version)
	}
	if hello.DeviceInfo == nil || hello.DeviceInfo.ProductName == "" {
		t.Errorf("expected device info, got %+v", hello.DeviceInfo)
	}
}

func TestConvertSDSToWAV(t *testing.T) {
	_, lib, addr := startTestServer(t)
	c := connect(t, addr)

	samples := make([]int32, 40)
	for i := range samples {
		samples[i] = int32(i * 500)
	}

	result, data, err := c.Convert(protocol.ConvertRequest{Name: "dump.syx"}, sdsDump(samples))
	if err != nil {
		t.Fatalf("Convert() failed: %v", err)
	}

	if result.SourceKind != "sds" {
		t.Errorf("expected source kind sds, got %q", result.SourceKind)
	}
	if result.NativeRate != 48000 || result.SampleRate != audio.MasterSampleRate {
		t.Errorf("unexpected rates: native %d, output %d", result.NativeRate, result.SampleRate)
	}
	// 40 - 40/120*5 = 38.33 frames kept
	if result.Frames != 38 {
		t.Errorf("expected 38 frames, got %d", result.Frames)
	}
	if result.Name != "dump" || result.Extension != ".wav" {
		t.Errorf("unexpected name %q extension %q", result.Name, result.Extension)
	}
	if result.LoopStart == nil || result.LoopEnd == nil || *result.LoopEnd != 38 {
		t.Errorf("expected loop ending at 38, got %v-%v", result.LoopStart, result.LoopEnd)
	}
	if result.Size != len(data) || len(data) != 44+38*2 {
		t.Errorf("expected %d bytes, got %d (reported %d)", 44+38*2, len(data), result.Size)
	}
	if string(data[0:4]) != "RIFF" {
		t.Errorf("expected RIFF file, got %q", data[0:4])
	}

	if _, err := lib.Get(result.ID); err != nil {
		t.Errorf("expected sample %s in library: %v", result.ID, err)
	}
}

func TestConvertWAVToAIFFFloat(t *testing.T) {
	_, _, addr := startTestServer(t)
	c := connect(t, addr)

	src := audio.NewBuffer(2, 441, 44100)
	wav, err := encode.EncodeWAV(src, encode.Options{})
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	result, data, err := c.Convert(protocol.ConvertRequest{
		Name:     "pad.wav",
		Format:   "aiff",
		Encoding: "float32",
		Channels: "mono",
	}, wav)
	if err != nil {
		t.Fatalf("Convert() failed: %v", err)
	}

	if result.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", result.Channels)
	}
	if result.NativeRate != 44100 {
		t.Errorf("expected native rate 44100, got %d", result.NativeRate)
	}
	if string(data[0:4]) != "FORM" || string(data[8:12]) != "AIFC" {
		t.Errorf("expected FORM/AIFC, got %q/%q", data[0:4], data[8:12])
	}
	if size := binary.BigEndian.Uint32(data[4:]); int(size) != len(data)-8 {
		t.Errorf("FORM size %d does not match %d", size, len(data)-8)
	}
}

func TestConvertErrors(t *testing.T) {
	_, lib, addr := startTestServer(t)
	c := connect(t, addr)

	twelveBit := sdsDump(make([]int32, 10))
	twelveBit[6] = 12

	tests := []struct {
		name string
		req  protocol.ConvertRequest
		data []byte
		kind string
	}{
		{"unknown format", protocol.ConvertRequest{}, []byte("not audio at all"), protocol.ErrorUnknownFormat},
		{"corrupt wav", protocol.ConvertRequest{}, []byte("RIFF\x0c\x00\x00\x00WAVEjunkjunk"), protocol.ErrorUnknownFormat},
		{"12-bit sds", protocol.ConvertRequest{}, twelveBit, protocol.ErrorUnsupportedBitDepth},
		{"bad container", protocol.ConvertRequest{Format: "mp3"}, twelveBit, protocol.ErrorInvalidRequest},
		{"bad channels", protocol.ConvertRequest{Channels: "surround"}, twelveBit, protocol.ErrorInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.Convert(tt.req, tt.data)
			var convErr *client.ConvertError
			if !errors.As(err, &convErr) {
				t.Fatalf("expected ConvertError, got %v", err)
			}
			if convErr.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s (%s)", tt.kind, convErr.Kind, convErr.Message)
			}
		})
	}

	if lib.Len() != 0 {
		t.Errorf("expected failed conversions to stay out of the library, got %d", lib.Len())
	}
}

func TestBinaryWithoutRequest(t *testing.T) {
	_, _, addr := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/convert", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello protocol.Message
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != protocol.TypeServerHello {
		t.Fatalf("expected server/hello, got %v (%v)", hello.Type, err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var reply struct {
		Type    string                `json:"type"`
		Payload protocol.ConvertError `json:"payload"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if reply.Type != protocol.TypeConvertError || reply.Payload.Kind != protocol.ErrorInvalidRequest {
		t.Errorf("expected invalid_request error, got %+v", reply)
	}
}

func TestParseRequestDefaults(t *testing.T) {
	p, err := parseRequest(protocol.ConvertRequest{})
	if err != nil {
		t.Fatalf("parseRequest() failed: %v", err)
	}
	if p.name != "sample" || p.export.Container != "wav" {
		t.Errorf("unexpected defaults: %q %q", p.name, p.export.Container)
	}
	if p.export.Encode.Format != audio.SampleFormatPCM16 || p.export.Encode.Channels != audio.ChannelsFull {
		t.Errorf("unexpected encode defaults: %+v", p.export.Encode)
	}
}

func TestStatus(t *testing.T) {
	s, lib, _ := startTestServer(t)
	lib.Add(&library.Sample{Name: "kick", Buffer: audio.NewBuffer(1, 1, audio.MasterSampleRate)})

	status := s.status()
	if status.Name != "test" || status.Samples != 1 || status.LastSample != "kick" {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Port: 0, Name: "test"}, library.New())

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	time.Sleep(50 * time.Millisecond)
	s.Stop()
	s.Stop() // second call is a no-op

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{fmt.Errorf("decoding x.wav: %w", decode.ErrInvalidWAV), protocol.ErrorUnknownFormat},
		{fmt.Errorf("decoding x.bin: %w", decode.ErrUnknownFormat), protocol.ErrorUnknownFormat},
		{fmt.Errorf("decoding x.syx: %w", decode.ErrTruncated), protocol.ErrorTruncated},
		{fmt.Errorf("decoding x.syx: %w", decode.ErrNotSDSStream), protocol.ErrorNotSDS},
		{fmt.Errorf("decoding x.syx: %w", decode.ErrSampleRateOutOfRange), protocol.ErrorRateOutOfRange},
		{errors.New("disk on fire"), protocol.ErrorInternal},
	}

	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.kind {
			t.Errorf("errorKind(%v) = %s, expected %s", tt.err, got, tt.kind)
		}
	}
}

func TestStartStopWithMDNS(t *testing.T) {
	// Port 0 cannot be advertised; the failure is logged and the
	// server still runs and stops normally
	s := New(Config{Port: 0, Name: "test", EnableMDNS: true}, library.New())

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestTUIView(t *testing.T) {
	m := tuiModel{
		status: ServerStatus{
			Name:       "studio",
			Port:       8928,
			Samples:    3,
			LastSample: "snare",
			Clients: []ClientInfo{
				{Addr: "10.0.0.2:5000", ID: "0123456789abcdef", State: "converting", Conversions: 2},
			},
		},
		startTime: time.Now(),
	}

	view := m.View()
	for _, want := range []string{"studio", "ws://0.0.0.0:8928/convert", "3 samples", "snare", "Clients (1)", "01234567", "10.0.0.2:5000", "2 converted"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}

	m.status.Clients = nil
	if !strings.Contains(m.View(), "none") {
		t.Errorf("expected empty client list, got:\n%s", m.View())
	}
}
