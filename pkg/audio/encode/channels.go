// ABOUTME: Channel selection shared by all encoders
// ABOUTME: Reduces a buffer to the channels written and interleaves them
package encode

import "github.com/sampledeck/sampledeck-go/pkg/audio"

// selectChannels returns the channels an export writes.
//
// Left, right and mono yield one channel; a mono buffer is written as is
// in every mode. Full keeps a stereo pair and writes anything wider as its
// first channel only: interleaving more than two channels is not supported.
func selectChannels(buf *audio.Buffer, mode audio.ChannelMode) [][]float32 {
	channels := buf.Channels
	switch {
	case len(channels) == 0:
		return nil
	case len(channels) == 1:
		return channels[:1]
	}

	switch mode {
	case audio.ChannelsLeft:
		return channels[:1]
	case audio.ChannelsRight:
		return channels[1:2]
	case audio.ChannelsMono:
		left, right := channels[0], channels[1]
		mono := make([]float32, len(left))
		for i := range mono {
			mono[i] = (left[i] + right[i]) / 2
		}
		return [][]float32{mono}
	}

	if len(channels) == 2 {
		return channels
	}
	return channels[:1]
}

// interleave lays out channels as L0,R0,L1,R1,...
func interleave(channels [][]float32) []float32 {
	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	}

	frames := len(channels[0])
	out := make([]float32, frames*len(channels))
	for ch, data := range channels {
		for i, s := range data {
			out[i*len(channels)+ch] = s
		}
	}
	return out
}

// OutputChannels returns how many channels an export of buf writes in mode
func OutputChannels(buf *audio.Buffer, mode audio.ChannelMode) int {
	switch n := buf.NumChannels(); {
	case n == 0:
		return 0
	case n == 2 && mode == audio.ChannelsFull:
		return 2
	}
	return 1
}
