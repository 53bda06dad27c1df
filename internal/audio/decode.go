package audio

import "fmt"

// Synthesis output format: raw PCM, 24 kHz, mono.
const (
	SynthSampleRate = 24000
	SynthChannels   = 1
)

// Buffer is decoded audio ready for playback.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// DecodePCM16 interprets data as 16-bit little-endian signed PCM and
// normalizes each sample to a float32 amplitude in [-1, 1].
func DecodePCM16(data []byte, sampleRate, channels int) (*Buffer, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm payload has odd length %d", len(data))
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid pcm layout: %d Hz, %d channels", sampleRate, channels)
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		samples[i] = float32(s) / 32768
	}

	return &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    samples,
	}, nil
}
