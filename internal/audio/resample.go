package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from one rate to another. Equal rates
// return the input unchanged.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rates %d -> %d", from, to)
	}
	if from == to || len(samples) == 0 {
		return samples, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: failed to create resampler: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample %d -> %d: %w", from, to, err)
	}
	// Drain the filter delay line; Process alone drops the tail.
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("audio: flush resampler: %w", err)
	}
	output = append(output, tail...)

	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = float32(s)
	}
	return out, nil
}

// Load decodes WAV data and resamples it to rate.
func Load(data []byte, rate int) (*Clip, error) {
	clip, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	if clip.SampleRate == rate {
		return clip, nil
	}

	samples, err := Resample(clip.Samples, clip.SampleRate, rate)
	if err != nil {
		return nil, err
	}
	return &Clip{Samples: samples, SampleRate: rate, Channels: clip.Channels}, nil
}
