package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// DefaultSampleRate is the canonical analysis rate. Every frequency statistic
// downstream assumes it, so all input is converted to it.
const DefaultSampleRate = 22050

// LoaderConfig holds signal loader configuration
type LoaderConfig struct {
	TargetSampleRate int           `yaml:"target_sample_rate" json:"target_sample_rate"`
	MaxDuration      time.Duration `yaml:"max_duration" json:"max_duration"` // 0 = no limit
	EnableFFmpeg     bool          `yaml:"enable_ffmpeg" json:"enable_ffmpeg"`
	FFmpegPath       string        `yaml:"ffmpeg_path" json:"ffmpeg_path"`
	FFprobePath      string        `yaml:"ffprobe_path" json:"ffprobe_path"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultLoaderConfig returns default loader configuration
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		TargetSampleRate: DefaultSampleRate,
		MaxDuration:      3 * time.Second, // matches the reference feature extractor
		EnableFFmpeg:     false,
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          30 * time.Second,
	}
}

// Validate validates the loader configuration
func (c *LoaderConfig) Validate() error {
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", c.TargetSampleRate)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative: %v", c.MaxDuration)
	}
	if c.EnableFFmpeg && (c.FFmpegPath == "" || c.FFprobePath == "") {
		return fmt.Errorf("ffmpeg enabled but ffmpeg/ffprobe path empty")
	}
	return nil
}

// Loader turns encoded audio into a mono Waveform at the canonical rate
type Loader struct {
	config *LoaderConfig
	ffmpeg *FFmpegDecoder
	logger logging.Logger
}

// NewLoader creates a new signal loader
func NewLoader(config *LoaderConfig) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}

	l := &Loader{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "signal_loader",
		}),
	}
	if config.EnableFFmpeg {
		l.ffmpeg = NewFFmpegDecoder(config)
	}
	return l
}

// SampleRate returns the rate every loaded Waveform has
func (l *Loader) SampleRate() int {
	return l.config.TargetSampleRate
}

// LoadFile decodes an audio file
func (l *Loader) LoadFile(ctx context.Context, path string) (*Waveform, error) {
	const op = "transcode.LoadFile"

	f, err := os.Open(path)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindDecode, op, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, _ := io.ReadFull(f, header)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, voiceerr.New(voiceerr.KindDecode, op, err)
	}

	if isWAV(header[:n]) {
		w, err := l.fromWAV(op, f)
		if !errors.Is(err, errUnsupportedWAV) || l.ffmpeg == nil {
			return w, err
		}
		l.logger.Debug("Falling back to ffmpeg for wav encoding", logging.Fields{"function": op, "path": path})
	} else if l.ffmpeg == nil {
		return nil, voiceerr.Errorf(voiceerr.KindDecode, op, "unsupported container for %s (not RIFF/WAVE, ffmpeg disabled)", path)
	}

	w, err := l.ffmpeg.DecodeFile(ctx, path)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindDecode, op, err)
	}
	return l.finish(op, w)
}

// LoadBytes decodes an in-memory audio buffer
func (l *Loader) LoadBytes(ctx context.Context, data []byte) (*Waveform, error) {
	const op = "transcode.LoadBytes"

	if len(data) == 0 {
		return nil, voiceerr.Errorf(voiceerr.KindEmptyAudio, op, "empty audio data")
	}

	if isWAV(data) {
		w, err := l.fromWAV(op, bytes.NewReader(data))
		if !errors.Is(err, errUnsupportedWAV) || l.ffmpeg == nil {
			return w, err
		}
		l.logger.Debug("Falling back to ffmpeg for wav encoding", logging.Fields{"function": op})
	} else if l.ffmpeg == nil {
		return nil, voiceerr.Errorf(voiceerr.KindDecode, op, "unsupported container (not RIFF/WAVE, ffmpeg disabled)")
	}

	w, err := l.ffmpeg.DecodeBytes(ctx, data)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindDecode, op, err)
	}
	return l.finish(op, w)
}

// LoadReader decodes audio from an io.Reader
func (l *Loader) LoadReader(ctx context.Context, r io.Reader) (*Waveform, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindDecode, "transcode.LoadReader", err)
	}
	return l.LoadBytes(ctx, data)
}

// Conform converts an externally produced waveform to the canonical rate and
// applies MaxDuration. The input is not modified.
func (l *Loader) Conform(w *Waveform) (*Waveform, error) {
	const op = "transcode.Conform"

	if w == nil || w.SampleRate <= 0 {
		return nil, voiceerr.Errorf(voiceerr.KindDecode, op, "invalid waveform")
	}
	if len(w.Samples) == 0 {
		return nil, voiceerr.Errorf(voiceerr.KindEmptyAudio, op, "waveform has no samples")
	}

	samples, err := resampleMono(w.Samples, w.SampleRate, l.config.TargetSampleRate)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindDecode, op, err)
	}

	return l.finish(op, &Waveform{
		Samples:        samples,
		SampleRate:     l.config.TargetSampleRate,
		SourceRate:     w.SourceRate,
		SourceChannels: w.SourceChannels,
		Codec:          w.Codec,
	})
}

func (l *Loader) fromWAV(op string, r io.ReadSeeker) (*Waveform, error) {
	frames, err := decodeWAV(r)
	if err != nil {
		if !errors.Is(err, errUnsupportedWAV) {
			l.logger.Error(err, "Failed to decode wav", logging.Fields{"function": op})
		}
		return nil, voiceerr.New(voiceerr.KindDecode, op, err)
	}

	mono := downmix(frames.samples, frames.channels)

	samples, err := resampleMono(mono, frames.sampleRate, l.config.TargetSampleRate)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindDecode, op, err)
	}

	l.logger.Debug("WAV decoded", logging.Fields{
		"function":         op,
		"input_rate":       frames.sampleRate,
		"input_channels":   frames.channels,
		"bit_depth":        frames.bitDepth,
		"output_rate":      l.config.TargetSampleRate,
		"output_samples":   len(samples),
		"resample_applied": frames.sampleRate != l.config.TargetSampleRate,
	})

	return l.finish(op, &Waveform{
		Samples:        samples,
		SampleRate:     l.config.TargetSampleRate,
		SourceRate:     frames.sampleRate,
		SourceChannels: frames.channels,
		Codec:          "pcm_wav",
	})
}

// finish truncates to MaxDuration and enforces the non-empty invariant
func (l *Loader) finish(op string, w *Waveform) (*Waveform, error) {
	if l.config.MaxDuration > 0 {
		limit := int(l.config.MaxDuration.Seconds() * float64(w.SampleRate))
		if limit > 0 && len(w.Samples) > limit {
			w.Samples = w.Samples[:limit]
		}
	}

	if len(w.Samples) == 0 {
		return nil, voiceerr.Errorf(voiceerr.KindEmptyAudio, op, "no audio samples decoded")
	}

	return w, nil
}
