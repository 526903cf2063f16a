package transcode

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// downmix averages interleaved channels into one
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	scale := 1.0 / float64(channels)

	for i := range frames {
		sum := 0.0
		base := i * channels
		for c := range channels {
			sum += interleaved[base+c]
		}
		mono[i] = sum * scale
	}

	return mono
}

// resampleMono converts a mono signal from srcRate to dstRate
func resampleMono(samples []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate == dstRate {
		return samples, nil
	}
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates: %d -> %d", srcRate, dstRate)
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	// The filter delay holds back the tail until flushed
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush error: %w", err)
	}
	out = append(out, tail...)

	// Pin the length to the input duration; the flush pads past it
	want := resampledLength(len(samples), srcRate, dstRate)
	if len(out) >= want {
		return out[:want], nil
	}
	return append(out, make([]float64, want-len(out))...), nil
}

// resampledLength is the output length for n input samples
func resampledLength(n, srcRate, dstRate int) int {
	return int(math.Round(float64(n) * float64(dstRate) / float64(srcRate)))
}
