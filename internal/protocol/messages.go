// ABOUTME: Conversion service message type definitions
// ABOUTME: Defines structs for all JSON messages exchanged on /convert
package protocol

// Message types
const (
	TypeServerHello    = "server/hello"
	TypeConvertRequest = "convert/request"
	TypeConvertResult  = "convert/result"
	TypeConvertError   = "convert/error"
)

// Error kinds reported in ConvertError
const (
	ErrorNotSDS              = "not_sds"
	ErrorUnsupportedBitDepth = "unsupported_bit_depth"
	ErrorRateOutOfRange      = "rate_out_of_range"
	ErrorTruncated           = "truncated"
	ErrorUnknownFormat       = "unknown_format"
	ErrorInvalidRequest      = "invalid_request"
	ErrorInternal            = "internal"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ServerHello is sent to every client right after the upgrade
type ServerHello struct {
	ServerID   string      `json:"server_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains software identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ConvertRequest announces the binary file that follows
type ConvertRequest struct {
	Name     string `json:"name"`
	Format   string `json:"format"`   // "wav" or "aiff"
	Encoding string `json:"encoding"` // "pcm16" or "float32"
	Channels string `json:"channels"` // "full", "left", "right" or "mono"
}

// ConvertResult describes the encoded file sent as the next binary message
type ConvertResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SourceKind string `json:"source_kind"`
	NativeRate int    `json:"native_rate"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Frames     int    `json:"frames"`
	Extension  string `json:"extension"`
	Size       int    `json:"size"`
	LoopStart  *int   `json:"loop_start,omitempty"`
	LoopEnd    *int   `json:"loop_end,omitempty"`
}

// ConvertError reports a failed conversion
type ConvertError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
