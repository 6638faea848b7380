package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/emovec/internal/audio"
	"github.com/ekisa-team/emovec/internal/service"
)

// maxUploadBytes bounds a WAV upload (~5 minutes of 48kHz stereo float).
const maxUploadBytes = 64 << 20

type (
	DetectRequestDTO struct {
		Samples    []float32 `json:"samples" doc:"Mono audio samples in [-1, 1]"`
		SampleRate int       `json:"sample_rate,omitempty" minimum:"1000" doc:"Rate of samples; defaults to the model rate"`
	}

	DetectResponseDTO struct {
		service.Prediction
		Samples    int     `json:"samples"`
		SampleRate int     `json:"sample_rate"`
		Duration   float64 `json:"duration_seconds"`
	}
)

type (
	DetectInput struct {
		Body DetectRequestDTO
	}

	DetectWAVInput struct {
		RawBody huma.MultipartFormFiles[struct {
			AudioFile huma.FormFile `form:"file" contentType:"audio/*,application/octet-stream" required:"true"`
		}]
	}

	DetectOutput struct {
		Body DetectResponseDTO
	}
)

// RequestRecorder counts API requests.
type RequestRecorder interface {
	RecordRequest(transport string, ok bool)
}

// EmotionHandler handles HTTP requests for emotion detection.
type EmotionHandler struct {
	service    *service.Emotion
	sampleRate int
	recorder   RequestRecorder
}

// NewEmotionHandler creates a new EmotionHandler instance. sampleRate is the
// rate the embedding model expects; other input rates are resampled.
func NewEmotionHandler(api huma.API, service *service.Emotion, sampleRate int, recorder RequestRecorder) *EmotionHandler {
	h := &EmotionHandler{
		service:    service,
		sampleRate: sampleRate,
		recorder:   recorder,
	}

	huma.Register(api, huma.Operation{
		OperationID:   "detect-emotion",
		Method:        http.MethodPost,
		Path:          "/emotion",
		Summary:       "Detect the emotion in raw audio samples",
		Tags:          []string{"emotion"},
		DefaultStatus: http.StatusOK,
	}, h.handleDetect)

	huma.Register(api, huma.Operation{
		OperationID:   "detect-emotion-wav",
		Method:        http.MethodPost,
		Path:          "/emotion/wav",
		Summary:       "Detect the emotion in a WAV file",
		Tags:          []string{"emotion"},
		DefaultStatus: http.StatusOK,
		MaxBodyBytes:  maxUploadBytes,
	}, h.handleDetectWAV)

	return h
}

// handleDetect handles the detect-emotion operation.
func (h *EmotionHandler) handleDetect(ctx context.Context, input *DetectInput) (*DetectOutput, error) {
	rate := input.Body.SampleRate
	if rate == 0 {
		rate = h.sampleRate
	}

	samples, err := audio.Resample(input.Body.Samples, rate, h.sampleRate)
	if err != nil {
		h.record(false)
		return nil, huma.Error400BadRequest("failed to resample audio", err)
	}

	return h.detect(ctx, &audio.Clip{Samples: samples, SampleRate: h.sampleRate, Channels: 1})
}

// handleDetectWAV handles the detect-emotion-wav operation.
func (h *EmotionHandler) handleDetectWAV(ctx context.Context, input *DetectWAVInput) (*DetectOutput, error) {
	audioFile := input.RawBody.Data().AudioFile
	if !audioFile.IsSet {
		h.record(false)
		return nil, huma.Error400BadRequest("audio file is required", nil)
	}

	data, err := io.ReadAll(audioFile)
	if err != nil {
		h.record(false)
		return nil, huma.Error500InternalServerError("failed to read audio file", err)
	}

	clip, err := audio.Load(data, h.sampleRate)
	if err != nil {
		h.record(false)
		if errors.Is(err, audio.ErrInvalidWAV) || errors.Is(err, audio.ErrUnsupportedFormat) {
			return nil, huma.Error400BadRequest("invalid WAV file", err)
		}
		return nil, huma.Error500InternalServerError("failed to decode audio", err)
	}

	return h.detect(ctx, clip)
}

func (h *EmotionHandler) detect(ctx context.Context, clip *audio.Clip) (*DetectOutput, error) {
	pred, err := h.service.Detect(ctx, clip.Samples)
	if err != nil {
		h.record(false)
		if errors.Is(err, service.ErrUnavailable) {
			return nil, huma.Error422UnprocessableEntity("emotion inference failed", err)
		}
		return nil, huma.Error500InternalServerError("failed to detect emotion", err)
	}

	h.record(true)
	return &DetectOutput{
		Body: DetectResponseDTO{
			Prediction: *pred,
			Samples:    len(clip.Samples),
			SampleRate: clip.SampleRate,
			Duration:   clip.Duration(),
		},
	}, nil
}

func (h *EmotionHandler) record(ok bool) {
	if h.recorder != nil {
		h.recorder.RecordRequest("http", ok)
	}
}
