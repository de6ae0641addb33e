// ABOUTME: Streaming resampler for converting audio sample rates
// ABOUTME: Linear interpolation when upsampling, box-filter averaging when downsampling
package resample

import (
	"errors"
	"fmt"
	"math"

	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

// ErrInvalidConfig is returned by New for non-positive rates or channel counts
var ErrInvalidConfig = errors.New("invalid resampler config")

// allocationHeadroom is 1 + 2^-21. It absorbs float rounding in OutputSize
// so the computed size never falls one frame short.
const allocationHeadroom = 1.000000476837158203125

// Mode is the conversion algorithm, fixed at construction
type Mode int

const (
	ModeBypass Mode = iota
	ModeUpsample
	ModeDownsample
)

func (m Mode) String() string {
	switch m {
	case ModeUpsample:
		return "upsample"
	case ModeDownsample:
		return "downsample"
	}
	return "bypass"
}

// Resampler converts interleaved float32 audio between sample rates.
//
// A Resampler carries state between calls so a stream may be fed in
// arbitrary chunks. It is not safe for concurrent use; give each
// conversion pipeline its own instance.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	mode       Mode

	lastWeight float64
	lastOutput []float64 // one value per channel
	tailExists bool      // downsample only
	accum      []float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: input rate %d, output rate %d, channels %d",
			ErrInvalidConfig, inputRate, outputRate, channels)
	}

	r := &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastOutput: make([]float64, channels),
		accum:      make([]float64, channels),
	}

	switch {
	case inputRate == outputRate:
		r.mode = ModeBypass
	case inputRate < outputRate:
		r.mode = ModeUpsample
	default:
		r.mode = ModeDownsample
	}

	r.Reset()
	return r, nil
}

// Mode returns the algorithm selected at construction
func (r *Resampler) Mode() Mode {
	return r.mode
}

// Channels returns the interleaved channel count
func (r *Resampler) Channels() int {
	return r.channels
}

// Ratio returns inputRate/outputRate
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// Reset discards carried state so the next call starts a new stream
func (r *Resampler) Reset() {
	// Upsampling starts with a full weight so the zeroed lastOutput is
	// never blended into the first chunk.
	r.lastWeight = 1
	r.tailExists = false
	for i := range r.lastOutput {
		r.lastOutput[i] = 0
	}
}

// OutputSize returns the number of output samples to allocate for
// inputSamples interleaved input samples
func (r *Resampler) OutputSize(inputSamples int) int {
	return OutputSize(inputSamples, r.inputRate, r.outputRate, r.channels)
}

// OutputSize returns the interleaved output allocation for a conversion.
// It is never smaller than what a single Process call can emit.
func OutputSize(inputSamples, inputRate, outputRate, channels int) int {
	frames := math.Ceil(float64(inputSamples) * float64(outputRate) / float64(inputRate) /
		float64(channels) * allocationHeadroom)
	return int(frames)*channels + channels
}

// Process converts one chunk of interleaved input into output and returns
// the number of samples written. Trailing samples that do not form a whole
// frame are ignored. output should hold at least OutputSize(len(input))
// samples; emission stops early if it does not.
func (r *Resampler) Process(input, output []float32) int {
	input = input[:len(input)-len(input)%r.channels]
	if len(input) == 0 {
		return 0
	}

	switch r.mode {
	case ModeUpsample:
		return r.upsample(input, output)
	case ModeDownsample:
		return r.downsample(input, output)
	}
	return copy(output, input)
}

// Resample converts one chunk and returns a freshly sized output slice.
// In bypass mode the input slice itself is returned.
func (r *Resampler) Resample(input []float32) []float32 {
	if r.mode == ModeBypass {
		return input
	}
	output := make([]float32, r.OutputSize(len(input)))
	n := r.Process(input, output)
	return output[:n]
}

func (r *Resampler) upsample(input, output []float32) int {
	channels := r.channels
	outIdx := 0

	// Blend the last frame of the previous chunk into the first frame of
	// this one
	weight := r.lastWeight
	for ; weight < 1; weight += r.ratio {
		if outIdx+channels > len(output) {
			break
		}
		frac := math.Mod(weight, 1)
		for ch := 0; ch < channels; ch++ {
			output[outIdx] = float32(r.lastOutput[ch]*(1-frac) + float64(input[ch])*frac)
			outIdx++
		}
	}

	weight -= 1
	if weight < 0 {
		weight = 0
	}

	lastFrame := len(input) - channels
	sourceOffset := int(weight) * channels
	for sourceOffset < lastFrame && outIdx+channels <= len(output) {
		frac := math.Mod(weight, 1)
		for ch := 0; ch < channels; ch++ {
			output[outIdx] = float32(float64(input[sourceOffset+ch])*(1-frac) +
				float64(input[sourceOffset+channels+ch])*frac)
			outIdx++
		}
		weight += r.ratio
		sourceOffset = int(weight) * channels
	}

	if sourceOffset > lastFrame {
		sourceOffset = lastFrame
	}
	for ch := 0; ch < channels; ch++ {
		r.lastOutput[ch] = float64(input[sourceOffset+ch])
	}
	r.lastWeight = math.Mod(weight, 1)

	return outIdx
}

func (r *Resampler) downsample(input, output []float32) int {
	channels := r.channels
	frames := len(input) / channels
	accum := r.accum

	outIdx := 0
	pos := 0        // whole input frames consumed
	consumed := 0.0 // fraction of frame pos already integrated

	resumeTail := r.tailExists
	r.tailExists = false

	for pos < frames && outIdx+channels <= len(output) {
		var weight float64
		if resumeTail {
			weight = r.lastWeight
			copy(accum, r.lastOutput)
			resumeTail = false
		} else {
			weight = r.ratio
			for ch := range accum {
				accum[ch] = 0
			}
		}

		for weight > 0 && pos < frames {
			amountToNext := 1 - consumed
			base := pos * channels
			if weight >= amountToNext {
				for ch := 0; ch < channels; ch++ {
					accum[ch] += float64(input[base+ch]) * amountToNext
				}
				pos++
				consumed = 0
				weight -= amountToNext
			} else {
				for ch := 0; ch < channels; ch++ {
					accum[ch] += float64(input[base+ch]) * weight
				}
				consumed += weight
				weight = 0
			}
		}

		if weight > 0 {
			// Input ran out mid-frame: finish it on the next chunk
			r.lastWeight = weight
			copy(r.lastOutput, accum)
			r.tailExists = true
			break
		}

		for ch := 0; ch < channels; ch++ {
			output[outIdx] = float32(accum[ch] / r.ratio)
			outIdx++
		}
	}

	if resumeTail {
		r.tailExists = true
	}

	return outIdx
}

// ResampleBuffer converts a whole buffer to outputRate with a fresh
// Resampler. A buffer already at outputRate is returned unchanged.
func ResampleBuffer(buf *audio.Buffer, outputRate int) (*audio.Buffer, error) {
	r, err := New(buf.SampleRate, outputRate, buf.NumChannels())
	if err != nil {
		return nil, err
	}
	if r.Mode() == ModeBypass {
		return buf, nil
	}

	output := r.Resample(buf.Interleave())
	return audio.BufferFromInterleaved(output, r.channels, outputRate), nil
}
