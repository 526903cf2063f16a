package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-voz/logging"
)

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// FFmpegDecoder decodes any container ffmpeg understands into mono f64le PCM
// at the target sample rate. It shells out to ffprobe/ffmpeg binaries.
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
	sampleRate  int
	maxDuration time.Duration
	timeout     time.Duration
	logger      logging.Logger
}

// NewFFmpegDecoder creates a decoder from the loader configuration
func NewFFmpegDecoder(config *LoaderConfig) *FFmpegDecoder {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	return &FFmpegDecoder{
		ffmpegPath:  config.FFmpegPath,
		ffprobePath: config.FFprobePath,
		sampleRate:  config.TargetSampleRate,
		maxDuration: config.MaxDuration,
		timeout:     config.Timeout,
		logger: logging.WithFields(logging.Fields{
			"component": "ffmpeg_decoder",
		}),
	}
}

// DecodeFile decodes an audio file
func (d *FFmpegDecoder) DecodeFile(ctx context.Context, filename string) (*Waveform, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	metadata, err := d.probe(ctx, filename, nil)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	output, err := d.run(ctx, filename, nil)
	if err != nil {
		logger.Error(err, "FFmpeg decode failed")
		return nil, err
	}

	return d.toWaveform(output, metadata)
}

// DecodeBytes decodes audio piped through stdin
func (d *FFmpegDecoder) DecodeBytes(ctx context.Context, data []byte) (*Waveform, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function":  "DecodeBytes",
		"data_size": len(data),
	})

	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}

	metadata, err := d.probe(ctx, "pipe:0", data)
	if err != nil {
		logger.Error(err, "Failed to probe audio metadata")
		return nil, err
	}

	output, err := d.run(ctx, "pipe:0", data)
	if err != nil {
		logger.Error(err, "FFmpeg decode failed")
		return nil, err
	}

	return d.toWaveform(output, metadata)
}

// Available checks that both binaries can be executed
func (d *FFmpegDecoder) Available(ctx context.Context) error {
	if err := exec.CommandContext(ctx, d.ffmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.ffmpegPath, err)
	}
	if err := exec.CommandContext(ctx, d.ffprobePath, "-version").Run(); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.ffprobePath, err)
	}
	return nil
}

func (d *FFmpegDecoder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(ctx, d.timeout)
	}
	return context.WithCancel(ctx)
}

// probe runs ffprobe on input; data is piped to stdin when input is pipe:0
func (d *FFmpegDecoder) probe(ctx context.Context, input string, data []byte) (*AudioMetadata, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		input,
	}

	cmd := exec.CommandContext(ctx, d.ffprobePath, args...)
	if data != nil {
		cmd.Stdin = bytes.NewReader(data)
	}

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// buildArgs builds the ffmpeg arguments for mono f64le output
func (d *FFmpegDecoder) buildArgs(input string) []string {
	args := []string{"-i", input, "-vn", "-map", "0:a:0?"}

	if d.maxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.maxDuration.Seconds()))
	}

	args = append(args,
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.sampleRate),
		"-af", fmt.Sprintf("aresample=%d:resampler=soxr", d.sampleRate),
		"-v", "error",
		"pipe:1",
	)

	return args
}

func (d *FFmpegDecoder) run(ctx context.Context, input string, data []byte) ([]byte, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := d.buildArgs(input)
	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	if data != nil {
		cmd.Stdin = bytes.NewReader(data)
	}

	d.logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	return output, nil
}

func (d *FFmpegDecoder) toWaveform(output []byte, metadata *AudioMetadata) (*Waveform, error) {
	samples := bytesToFloat64(output)

	return &Waveform{
		Samples:        samples,
		SampleRate:     d.sampleRate,
		SourceRate:     metadata.SampleRate,
		SourceChannels: metadata.Channels,
		Codec:          metadata.Codec,
	}, nil
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	// Missing fields are tolerated; ffmpeg resamples to the target rate anyway
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// bytesToFloat64 converts raw float64 little-endian bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	// Trim to multiple of 8 bytes
	data = data[:len(data)-(len(data)%8)]
	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}
