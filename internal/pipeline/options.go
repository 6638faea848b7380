package pipeline

import (
	"log/slog"

	"github.com/ekisa-team/emovec/internal/tensor"
)

// Default tensor names of the emotion2vec export.
const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
	DefaultMaskName   = "padding_mask"
)

// Options configures a Pipeline.
type Options struct {
	// EmbeddingModel is the Stage-1 artifact path. Required.
	EmbeddingModel string

	// ClassifierModel is the Stage-2 artifact path. Empty runs Stage-1 only
	// and returns its flattened output as scores.
	ClassifierModel string

	InputName  string
	OutputName string
	MaskName   string

	// MaskType forces the padding mask element type. tensor.Invalid adopts
	// whatever the classifier declares.
	MaskType tensor.DType

	// MinSamples is the shortest accepted input. Values below 1 mean 1.
	MinSamples int

	// Classes pins the expected score count. Zero pins it on the first
	// successful two-stage call and leaves single-stage output unchecked.
	Classes int

	Logger   *slog.Logger
	Observer Observer
}

func (o *Options) applyDefaults() {
	if o.InputName == "" {
		o.InputName = DefaultInputName
	}
	if o.OutputName == "" {
		o.OutputName = DefaultOutputName
	}
	if o.MaskName == "" {
		o.MaskName = DefaultMaskName
	}
	if o.MinSamples < 1 {
		o.MinSamples = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
}
