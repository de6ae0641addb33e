// ABOUTME: Audio resampling package with streaming state
// ABOUTME: Converts interleaved float audio between sample rates
// Package resample provides audio sample rate conversion.
//
// The algorithm is chosen once from the rate pair: equal rates pass the
// input through, upsampling uses linear interpolation and downsampling
// averages the input over each output frame's time window (a box filter).
// Both paths carry state between calls, so a stream can be converted in
// chunks with the same result as converting it in one call.
//
// Example:
//
//	r, err := resample.New(44100, 48000, 2)
//	out := make([]float32, r.OutputSize(len(in)))
//	n := r.Process(in, out)
package resample
