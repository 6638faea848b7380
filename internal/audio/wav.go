// Package audio decodes uploaded audio into mono float32 samples at the rate
// the embedding model expects.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Error definitions for the audio package.
var (
	ErrInvalidWAV        = errors.New("invalid WAV data")
	ErrUnsupportedFormat = errors.New("unsupported WAV encoding")
)

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// Clip is decoded mono audio.
type Clip struct {
	Samples    []float32
	SampleRate int

	// Channels is the channel count of the source before downmixing.
	Channels int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// DecodeWAV decodes 16-bit PCM or 32-bit float WAV data into mono samples in
// [-1, 1]. Multi-channel audio is averaged down to one channel. Unknown
// chunks are skipped.
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: need at least 12 bytes, got %d", ErrInvalidWAV, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	}
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing WAVE format", ErrInvalidWAV)
	}

	var (
		format  *wavFormat
		payload []byte
	)
	for offset := 12; offset+8 <= len(data); {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if end > len(data) {
			// Streaming writers leave the data size unset; take what is there.
			if id != "data" {
				return nil, fmt.Errorf("%w: %q chunk overruns file", ErrInvalidWAV, id)
			}
			end = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk is %d bytes", ErrInvalidWAV, size)
			}
			var f wavFormat
			if err := binary.Read(bytes.NewReader(data[body:end]), binary.LittleEndian, &f); err != nil {
				return nil, fmt.Errorf("%w: read fmt chunk: %v", ErrInvalidWAV, err)
			}
			if f.AudioFormat == formatExtensible && size >= 26 {
				// The sub-format GUID starts with the actual format tag.
				f.AudioFormat = binary.LittleEndian.Uint16(data[body+24 : body+26])
			}
			format = &f
		case "data":
			payload = data[body:end]
		}

		// Chunks are word aligned.
		offset = end + size%2
	}

	if format == nil {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}
	if format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidWAV, format.NumChannels, format.SampleRate)
	}

	var (
		decode func([]byte) float32
		width  int
	)
	switch {
	case format.AudioFormat == formatPCM && format.BitsPerSample == 16:
		width = 2
		decode = func(b []byte) float32 {
			return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		}
	case format.AudioFormat == formatIEEEFloat && format.BitsPerSample == 32:
		width = 4
		decode = func(b []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	default:
		return nil, fmt.Errorf("%w: format %d with %d bits per sample",
			ErrUnsupportedFormat, format.AudioFormat, format.BitsPerSample)
	}

	channels := int(format.NumChannels)
	frameSize := width * channels
	frames := len(payload) / frameSize
	samples := make([]float32, frames)
	for i := range frames {
		frame := payload[i*frameSize : (i+1)*frameSize]
		var sum float32
		for c := range channels {
			sum += decode(frame[c*width:])
		}
		samples[i] = sum / float32(channels)
	}

	return &Clip{
		Samples:    samples,
		SampleRate: int(format.SampleRate),
		Channels:   channels,
	}, nil
}

// EncodeWAV encodes mono samples in [-1, 1] as 16-bit PCM WAV.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, wavFormat{
		AudioFormat:   formatPCM,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
	})
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		pcm[i] = int16(s * 32767)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	return buf.Bytes(), nil
}
