// ABOUTME: Audio file encoder package
// ABOUTME: Provides the Encoder interface and WAV, AIFF and raw PCM implementations
// Package encode writes float sample buffers to audio files.
//
// Supports: WAV (PCM16, float32), AIFF/AIFF-C (PCM16, float32, sustain loop),
// raw PCM.
//
// Every encoder first reduces the buffer to the channels selected by
// Options.Channels, then interleaves and serializes them.
//
// Example:
//
//	enc, err := encode.New("wav", encode.Options{Format: audio.SampleFormatPCM16})
//	data, err := enc.Encode(buf)
package encode
