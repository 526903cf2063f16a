package transcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatExtensible = 0xFFFE
)

// errUnsupportedWAV marks a valid RIFF/WAVE file whose sample encoding is
// not integer PCM; ffmpeg can still decode it
var errUnsupportedWAV = errors.New("unsupported wav encoding")

// isWAV reports whether header starts with a RIFF/WAVE signature
func isWAV(header []byte) bool {
	return len(header) >= 12 &&
		bytes.Equal(header[0:4], []byte("RIFF")) &&
		bytes.Equal(header[8:12], []byte("WAVE"))
}

// pcmFrames holds interleaved samples scaled to [-1, 1]
type pcmFrames struct {
	samples    []float64
	sampleRate int
	channels   int
	bitDepth   int
}

// decodeWAV reads integer PCM WAV data
func decodeWAV(r io.ReadSeeker) (*pcmFrames, error) {
	tag, sub, err := readFormat(r)
	if err != nil {
		return nil, err
	}
	if !isIntegerPCM(tag, sub) {
		return nil, fmt.Errorf("%w: format tag 0x%04x, subformat 0x%04x", errUnsupportedWAV, tag, sub)
	}

	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav pcm: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("wav file has no format chunk")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 {
		bitDepth = buf.SourceBitDepth
	}

	samples, err := scaleIntPCM(buf.Data, bitDepth)
	if err != nil {
		return nil, err
	}

	return &pcmFrames{
		samples:    samples,
		sampleRate: buf.Format.SampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
	}, nil
}

// isIntegerPCM reports whether the fmt chunk describes integer PCM. An
// extensible header without the extension is taken as PCM.
func isIntegerPCM(tag, sub uint16) bool {
	switch tag {
	case wavFormatPCM:
		return true
	case wavFormatExtensible:
		return sub == 0 || sub == wavFormatPCM
	default:
		return false
	}
}

// readFormat walks the RIFF chunks to the fmt chunk and returns its format
// tag and, for WAVE_FORMAT_EXTENSIBLE, the first two bytes of the subformat
// GUID. go-audio skips the extension so it is read here. r is rewound.
func readFormat(r io.ReadSeeker) (tag, sub uint16, err error) {
	defer func() {
		if _, serr := r.Seek(0, io.SeekStart); serr != nil && err == nil {
			err = serr
		}
	}()

	if _, err := r.Seek(12, io.SeekStart); err != nil {
		return 0, 0, err
	}

	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return 0, 0, fmt.Errorf("wav file has no fmt chunk: %w", err)
		}
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		if !bytes.Equal(hdr[0:4], []byte("fmt ")) {
			if _, err := r.Seek(size+size%2, io.SeekCurrent); err != nil {
				return 0, 0, err
			}
			continue
		}

		if size < 16 {
			return 0, 0, fmt.Errorf("fmt chunk too short: %d bytes", size)
		}
		body := make([]byte, min(size, 40))
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, 0, fmt.Errorf("failed to read fmt chunk: %w", err)
		}

		tag = binary.LittleEndian.Uint16(body[0:2])
		if tag == wavFormatExtensible && len(body) >= 26 {
			sub = binary.LittleEndian.Uint16(body[24:26])
		}
		return tag, sub, nil
	}
}

// scaleIntPCM converts integer samples to float64 in [-1, 1].
// 8-bit WAV is unsigned with a 128 offset.
func scaleIntPCM(data []int, bitDepth int) ([]float64, error) {
	out := make([]float64, len(data))

	switch bitDepth {
	case 8:
		for i, v := range data {
			out[i] = float64(v-128) / 128.0
		}
	case 16, 24, 32:
		full := float64(int64(1) << (bitDepth - 1))
		for i, v := range data {
			out[i] = float64(v) / full
		}
	default:
		return nil, fmt.Errorf("unsupported wav bit depth: %d", bitDepth)
	}

	return out, nil
}
