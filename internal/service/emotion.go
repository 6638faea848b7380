// Package service exposes the emotion pipeline to the transports.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ekisa-team/emovec/internal/pipeline"
)

// Error definitions for the service package.
var (
	ErrUnavailable = errors.New("emotion inference unavailable")
)

// DefaultLabels is the emotion2vec 9-class label set in output order.
var DefaultLabels = []string{
	"angry",
	"disgusted",
	"fearful",
	"happy",
	"neutral",
	"other",
	"sad",
	"surprised",
	"unknown",
}

// Inferrer runs the two-stage inference.
type Inferrer interface {
	Infer(ctx context.Context, samples []float32) (pipeline.Scores, bool)
}

// LabeledScore is one class score with its label.
type LabeledScore struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// Prediction is the labeled outcome of one inference. Scores are raw and
// un-normalized.
type Prediction struct {
	Scores   []float32      `json:"scores"`
	Labels   []LabeledScore `json:"labels"`
	Dominant string         `json:"dominant"`
}

// Emotion is a service abstraction for speech emotion recognition.
type Emotion struct {
	inferrer Inferrer
	labels   []string
}

// NewEmotion creates a new Emotion service. Empty labels fall back to
// DefaultLabels.
func NewEmotion(inferrer Inferrer, labels []string) *Emotion {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return &Emotion{
		inferrer: inferrer,
		labels:   labels,
	}
}

// Labels returns the configured class labels.
func (s *Emotion) Labels() []string {
	return s.labels
}

// Detect scores mono samples at the model sample rate.
func (s *Emotion) Detect(ctx context.Context, samples []float32) (*Prediction, error) {
	scores, ok := s.inferrer.Infer(ctx, samples)
	if !ok {
		return nil, ErrUnavailable
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: empty scores", ErrUnavailable)
	}

	pred := &Prediction{
		Scores: scores,
		Labels: make([]LabeledScore, len(scores)),
	}
	best := 0
	for i, score := range scores {
		pred.Labels[i] = LabeledScore{Label: s.label(i), Score: score}
		if score > scores[best] {
			best = i
		}
	}
	pred.Dominant = s.label(best)
	return pred, nil
}

// label returns the name of class i, or its index when the model has more
// classes than configured labels.
func (s *Emotion) label(i int) string {
	if i < len(s.labels) {
		return s.labels[i]
	}
	return "class_" + strconv.Itoa(i)
}
