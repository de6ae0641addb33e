// ABOUTME: MIDI Sample Dump Standard decoder
// ABOUTME: Parses SDS SysEx dumps into PCM and converts them to the master rate
package decode

import (
	"fmt"
	"math"
	"time"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
	"github.com/sampledeck/sampledeck-go/pkg/audio/resample"
)

const (
	sdsHeaderSize       = 21
	sdsPacketSize       = 127
	sdsPacketDataOffset = 5
	sdsPacketDataSize   = 120
	sdsChecksumOffset   = 125
	sdsBytesPerSample   = 3

	// SDSNoLoop is the loop type byte that marks a sample without a loop
	SDSNoLoop = 0x7F

	MinSDSSampleRate = 4000
	MaxSDSSampleRate = 96000

	sysExStart    = 0xF0
	sysExEnd      = 0xF7
	nonRealTime   = 0x7E
	sdsDumpHeader = 0x01
	sdsDataPacket = 0x02
)

// SDSHeader is the parsed dump header block
type SDSHeader struct {
	DeviceID     byte
	SampleNumber int
	BitDepth     int
	SamplePeriod int // units of 1e-10 s
	SampleRate   int
	SampleLength int
	LoopStart    int
	LoopEnd      int // exclusive
	LoopType     byte
}

// HasLoop reports whether the dump carries a loop
func (h SDSHeader) HasLoop() bool {
	return h.LoopType != SDSNoLoop
}

// Duration returns the sample length at the native rate
func (h SDSHeader) Duration() time.Duration {
	if h.SampleRate <= 0 {
		return 0
	}
	return time.Duration(h.SampleLength) * time.Second / time.Duration(h.SampleRate)
}

// SDSSample is a decoded dump converted to audio.MasterSampleRate
type SDSSample struct {
	Header         SDSHeader
	Buffer         *audio.Buffer
	DecodedSamples int // raw samples recovered from the packets
	ChecksumErrors int
}

// Loop returns the loop points scaled to the converted buffer's rate
func (s *SDSSample) Loop() (start, end int) {
	scale := float64(s.Buffer.SampleRate) / float64(s.Header.SampleRate)
	start = int(math.Floor(float64(s.Header.LoopStart)*scale + 0.5))
	end = int(math.Floor(float64(s.Header.LoopEnd)*scale + 0.5))
	if frames := s.Buffer.Frames(); end > frames {
		end = frames
	}
	if start > end {
		start = end
	}
	return start, end
}

// sevenBitWord joins three 7-bit bytes, most significant first
func sevenBitWord(hi, mid, lo byte) int {
	return int(hi&0x7F)<<14 | int(mid&0x7F)<<7 | int(lo&0x7F)
}

// IsSDS reports whether data starts with an SDS dump header
func IsSDS(data []byte) bool {
	return len(data) >= sdsHeaderSize &&
		data[0] == sysExStart &&
		data[1] == nonRealTime &&
		data[3] == sdsDumpHeader &&
		data[20] == sysExEnd
}

// ParseSDSHeader validates and parses the 21-byte dump header
func ParseSDSHeader(data []byte) (SDSHeader, error) {
	if !IsSDS(data) {
		return SDSHeader{}, ErrNotSDSStream
	}

	h := SDSHeader{
		DeviceID:     data[2],
		SampleNumber: int(data[4]&0x7F) | int(data[5]&0x7F)<<7,
		BitDepth:     int(data[6]),
	}
	if h.BitDepth != 16 {
		return h, fmt.Errorf("%w: %d (supported: 16)", ErrUnsupportedBitDepth, h.BitDepth)
	}

	h.SamplePeriod = sevenBitWord(data[9], data[8], data[7])
	h.SampleLength = sevenBitWord(data[12], data[11], data[10])
	h.LoopStart = sevenBitWord(data[15], data[14], data[13])
	h.LoopEnd = sevenBitWord(data[18], data[17], data[16]) + 1
	h.LoopType = data[19]

	if h.SamplePeriod == 0 {
		return h, fmt.Errorf("%w: zero sample period", ErrSampleRateOutOfRange)
	}
	h.SampleRate = int(math.Ceil(1e8/float64(h.SamplePeriod))) * 10

	if h.LoopType == SDSNoLoop {
		h.LoopStart = h.SampleLength
		h.LoopEnd = h.SampleLength
	}

	if h.SampleRate < MinSDSSampleRate || h.SampleRate > MaxSDSSampleRate {
		return h, fmt.Errorf("%w: %d Hz (supported: %d-%d)",
			ErrSampleRateOutOfRange, h.SampleRate, MinSDSSampleRate, MaxSDSSampleRate)
	}

	return h, nil
}

func isSDSPacket(data []byte, offset int) bool {
	return offset >= 0 && offset+sdsPacketSize <= len(data) &&
		data[offset] == sysExStart &&
		data[offset+1] == nonRealTime &&
		data[offset+3] == sdsDataPacket &&
		data[offset+sdsPacketSize-1] == sysExEnd
}

func findSDSPacket(data []byte, from int) int {
	for i := from; i+sdsPacketSize <= len(data); i++ {
		if isSDSPacket(data, i) {
			return i
		}
	}
	return -1
}

// sdsChecksumOK checks the XOR of bytes 1..124 against the checksum byte
func sdsChecksumOK(packet []byte) bool {
	var sum byte
	for _, b := range packet[1:sdsChecksumOffset] {
		sum ^= b
	}
	return sum&0x7F == packet[sdsChecksumOffset]&0x7F
}

func decodeSDSWord(b0, b1, b2 byte) int32 {
	return (int32(b0)<<9 | int32(b1)<<2 | int32(b2)>>5) - 0x8000
}

// DecodeSDSSamples extracts up to h.SampleLength signed 16-bit samples from
// the data packets following the header. Packets are read 127 bytes apart;
// anything between packets (handshake replies in a captured session) is
// skipped by rescanning. It also returns the number of packets whose
// checksum did not match.
func DecodeSDSSamples(data []byte, h SDSHeader) ([]int32, int, error) {
	samples := make([]int32, 0, h.SampleLength)
	if h.SampleLength == 0 {
		return samples, 0, nil
	}

	offset := findSDSPacket(data, 0)
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: no SDS data packet found", ErrTruncated)
	}

	badChecksums := 0
	for offset >= 0 && len(samples) < h.SampleLength {
		packet := data[offset : offset+sdsPacketSize]
		if !sdsChecksumOK(packet) {
			badChecksums++
		}

		payload := packet[sdsPacketDataOffset : sdsPacketDataOffset+sdsPacketDataSize]
		for i := 0; i+sdsBytesPerSample <= len(payload) && len(samples) < h.SampleLength; i += sdsBytesPerSample {
			samples = append(samples, decodeSDSWord(payload[i], payload[i+1], payload[i+2]))
		}

		next := offset + sdsPacketSize
		if isSDSPacket(data, next) {
			offset = next
		} else {
			offset = findSDSPacket(data, next)
		}
	}

	return samples, badChecksums, nil
}

// DecodeSDS decodes a complete dump and converts it to a mono buffer at
// audio.MasterSampleRate normalized to [-1, 1].
func DecodeSDS(data []byte) (*SDSSample, error) {
	h, err := ParseSDSHeader(data)
	if err != nil {
		return nil, err
	}

	raw, badChecksums, err := DecodeSDSSamples(data, h)
	if err != nil {
		return nil, err
	}

	r, err := resample.New(h.SampleRate, audio.MasterSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	input := make([]float32, len(raw))
	for i, s := range raw {
		input[i] = float32(s)
	}
	output := r.Resample(input)

	for i := range output {
		output[i] /= 32767
	}

	// Drop the trailing 5/120 of the converted frames. The trim is empirical
	// and its cause unconfirmed.
	n := len(output)
	keep := int(float64(n) - float64(n)/120*5)
	output = output[:keep]

	return &SDSSample{
		Header:         h,
		Buffer:         &audio.Buffer{Channels: [][]float32{output}, SampleRate: audio.MasterSampleRate},
		DecodedSamples: len(raw),
		ChecksumErrors: badChecksums,
	}, nil
}
