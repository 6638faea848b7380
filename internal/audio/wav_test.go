package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWAV(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	data, err := EncodeWAV(samples, 16000)
	require.NoError(t, err)
	assert.Len(t, data, 44+len(samples)*2)

	clip, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, clip.SampleRate)
	assert.Equal(t, 1, clip.Channels)
	require.Len(t, clip.Samples, len(samples))
	for i, s := range samples {
		assert.InDelta(t, s, clip.Samples[i], 1e-3)
	}
}

// buildWAV assembles a RIFF file from raw chunks.
func buildWAV(chunks ...[]byte) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.Write(c)
	}
	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func chunk(id string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(id)
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(payload)))
	b.Write(payload)
	if len(payload)%2 == 1 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func fmtChunk(format, channels uint16, rate uint32, bits uint16) []byte {
	var b bytes.Buffer
	blockAlign := channels * bits / 8
	_ = binary.Write(&b, binary.LittleEndian, wavFormat{
		AudioFormat:   format,
		NumChannels:   channels,
		SampleRate:    rate,
		ByteRate:      rate * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: bits,
	})
	return chunk("fmt ", b.Bytes())
}

func TestDecodeWAV_StereoFloatDownmix(t *testing.T) {
	var pcm bytes.Buffer
	for _, v := range []float32{0.2, 0.4, -1, 1} {
		_ = binary.Write(&pcm, binary.LittleEndian, math.Float32bits(v))
	}
	data := buildWAV(
		fmtChunk(formatIEEEFloat, 2, 48000, 32),
		chunk("LIST", []byte("INFOtest!")),
		chunk("data", pcm.Bytes()),
	)

	clip, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 48000, clip.SampleRate)
	assert.Equal(t, 2, clip.Channels)
	require.Len(t, clip.Samples, 2)
	assert.InDelta(t, 0.3, clip.Samples[0], 1e-6)
	assert.InDelta(t, 0, clip.Samples[1], 1e-6)
}

func TestDecodeWAV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"too short", []byte("RIFF"), ErrInvalidWAV},
		{"not riff", append([]byte("RIFX\x00\x00\x00\x00WAVE"), make([]byte, 32)...), ErrInvalidWAV},
		{"no fmt", buildWAV(chunk("data", []byte{0, 0})), ErrInvalidWAV},
		{"no data", buildWAV(fmtChunk(formatPCM, 1, 16000, 16)), ErrInvalidWAV},
		{"8-bit pcm", buildWAV(fmtChunk(formatPCM, 1, 16000, 8), chunk("data", []byte{1, 2})), ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWAV(tt.data)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestResample(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
	}

	same, err := Resample(in, 48000, 48000)
	require.NoError(t, err)
	assert.Len(t, same, len(in))

	out, err := Resample(in, 48000, 16000)
	require.NoError(t, err)
	assert.InDelta(t, 16000, len(out), 1)

	short, err := Resample(in[:4800], 48000, 16000)
	require.NoError(t, err)
	assert.InDelta(t, 1600, len(short), 1)

	_, err = Resample(in, 0, 16000)
	assert.Error(t, err)
}
