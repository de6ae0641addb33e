// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Buffer, export descriptors and sample conversion functions
// Package audio provides the canonical in-memory audio types shared by the
// resampler, decoders and encoders.
//
// This package defines:
//   - Buffer: multi-channel float32 audio in [-1, 1] with a sample rate
//   - SampleFormat: PCM16 or Float32 export encoding
//   - ChannelMode: full, left, right or mono-sum channel selection
//
// Every imported sample ends up at MasterSampleRate.
//
// Example:
//
//	buf := audio.NewBuffer(2, 48000, audio.MasterSampleRate)
//	interleaved := buf.Interleave()
//	s16 := audio.SampleToInt16(interleaved[0])
package audio
