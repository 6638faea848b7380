package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ekisa-team/emovec/internal/audio"
	"github.com/ekisa-team/emovec/internal/mapsafe"
	"github.com/ekisa-team/emovec/internal/service"
)

// RequestRecorder counts API requests.
type RequestRecorder interface {
	RecordRequest(transport string, ok bool)
}

// EmotionServer implements EmotionServiceServer on top of the emotion
// service.
type EmotionServer struct {
	service    *service.Emotion
	sampleRate int
	health     func() error
	recorder   RequestRecorder
}

// NewEmotionServer creates a new EmotionServer. health reports a fatal
// pipeline error, if any.
func NewEmotionServer(svc *service.Emotion, sampleRate int, health func() error, recorder RequestRecorder) *EmotionServer {
	return &EmotionServer{
		service:    svc,
		sampleRate: sampleRate,
		health:     health,
		recorder:   recorder,
	}
}

// Detect implements EmotionServiceServer.
func (s *EmotionServer) Detect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()

	samples, ok := mapsafe.Float32s(fields, "samples")
	if !ok {
		s.record(false)
		return nil, status.Error(codes.InvalidArgument, "samples must be a list of numbers")
	}
	rate := mapsafe.Get(fields, "sample_rate", s.sampleRate)
	if rate <= 0 {
		s.record(false)
		return nil, status.Errorf(codes.InvalidArgument, "invalid sample_rate %d", rate)
	}

	samples, err := audio.Resample(samples, rate, s.sampleRate)
	if err != nil {
		s.record(false)
		return nil, status.Errorf(codes.InvalidArgument, "resample: %v", err)
	}

	pred, err := s.service.Detect(ctx, samples)
	if err != nil {
		s.record(false)
		if s.health != nil {
			if herr := s.health(); herr != nil {
				return nil, status.Errorf(codes.Unavailable, "emotion inference unavailable: %v", herr)
			}
		}
		if errors.Is(err, service.ErrUnavailable) {
			return nil, status.Error(codes.FailedPrecondition, "emotion inference failed")
		}
		return nil, status.Errorf(codes.Internal, "detect: %v", err)
	}

	scores := make([]any, len(pred.Scores))
	for i, v := range pred.Scores {
		scores[i] = float64(v)
	}
	labels := make([]any, len(pred.Labels))
	for i, l := range pred.Labels {
		labels[i] = map[string]any{"label": l.Label, "score": float64(l.Score)}
	}

	resp, err := structpb.NewStruct(map[string]any{
		"dominant":    pred.Dominant,
		"scores":      scores,
		"labels":      labels,
		"samples":     len(samples),
		"sample_rate": s.sampleRate,
	})
	if err != nil {
		s.record(false)
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	s.record(true)
	return resp, nil
}

func (s *EmotionServer) record(ok bool) {
	if s.recorder != nil {
		s.recorder.RecordRequest("grpc", ok)
	}
}
