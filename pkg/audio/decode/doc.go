// ABOUTME: Audio decoder package for sample import
// ABOUTME: Provides the SDS decoder and host decoders for WAV, FLAC, MP3
// Package decode turns raw file bytes into audio buffers.
//
// The MIDI Sample Dump Standard decoder parses SysEx dumps from hardware
// samplers and converts them to audio.MasterSampleRate. WAV, FLAC and MP3
// files are decoded at their native rate; converting them is left to the
// caller.
//
// Decode sniffs the magic bytes and picks the right decoder. Failures are
// reported with the sentinel errors in this package so callers can use
// errors.Is to tell a foreign file from a broken one.
//
// Example:
//
//	d, err := decode.Decode(data)
//	if errors.Is(err, decode.ErrUnsupportedBitDepth) {
//	    // file not supported
//	}
package decode
