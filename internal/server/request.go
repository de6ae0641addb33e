// ABOUTME: Conversion request parsing and result mapping
// ABOUTME: Turns convert/request payloads into export options and errors into wire kinds
package server

import (
	"errors"
	"fmt"

	"github.com/sampledeck/sampledeck-go/internal/library"
	"github.com/sampledeck/sampledeck-go/internal/protocol"
	"github.com/sampledeck/sampledeck-go/pkg/audio"
	"github.com/sampledeck/sampledeck-go/pkg/audio/decode"
	"github.com/sampledeck/sampledeck-go/pkg/audio/encode"
)

// errInvalidRequest marks request validation failures
var errInvalidRequest = errors.New("invalid request")

// pendingRequest is a validated request waiting for its file
type pendingRequest struct {
	name   string
	export library.ExportOptions
	err    error // set when the request was rejected
}

// parseRequest validates a request and fills in defaults:
// wav, pcm16, full channels, name "sample"
func parseRequest(req protocol.ConvertRequest) (*pendingRequest, error) {
	p := &pendingRequest{name: req.Name}
	if p.name == "" {
		p.name = "sample"
	}

	switch req.Format {
	case "", "wav":
		p.export.Container = "wav"
	case "aiff", "aif":
		p.export.Container = "aiff"
	default:
		return nil, fmt.Errorf("%w: unsupported format %q (supported: wav, aiff)", errInvalidRequest, req.Format)
	}

	encoding := req.Encoding
	if encoding == "" {
		encoding = "pcm16"
	}
	format, err := audio.ParseSampleFormat(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	p.export.Encode.Format = format

	channels, err := audio.ParseChannelMode(req.Channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	p.export.Encode.Channels = channels

	return p, nil
}

// errorKind maps a conversion error to its convert/error kind
func errorKind(err error) string {
	switch {
	case errors.Is(err, errInvalidRequest):
		return protocol.ErrorInvalidRequest
	case errors.Is(err, decode.ErrNotSDSStream):
		return protocol.ErrorNotSDS
	case errors.Is(err, decode.ErrUnsupportedBitDepth):
		return protocol.ErrorUnsupportedBitDepth
	case errors.Is(err, decode.ErrSampleRateOutOfRange):
		return protocol.ErrorRateOutOfRange
	case errors.Is(err, decode.ErrTruncated):
		return protocol.ErrorTruncated
	case errors.Is(err, decode.ErrUnknownFormat), errors.Is(err, decode.ErrInvalidWAV):
		return protocol.ErrorUnknownFormat
	}
	return protocol.ErrorInternal
}

func buildResult(id string, sample *library.Sample, req *pendingRequest, ext string, size int) protocol.ConvertResult {
	result := protocol.ConvertResult{
		ID:         id,
		Name:       sample.Name,
		SourceKind: string(sample.Kind),
		NativeRate: sample.NativeRate,
		SampleRate: sample.Buffer.SampleRate,
		Channels:   encode.OutputChannels(sample.Buffer, req.export.Encode.Channels),
		Frames:     sample.Frames(),
		Extension:  ext,
		Size:       size,
	}
	if sample.Loop != nil {
		start, end := sample.Loop.Start, sample.Loop.End
		result.LoopStart = &start
		result.LoopEnd = &end
	}
	return result
}
