package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/emovec/internal/model"
)

type (
	ListModelsOutput struct {
		Body struct {
			Models []model.InstanceInfo `json:"models"`
		}
	}

	HealthOutput struct {
		Body struct {
			Status string `json:"status" enum:"ok,unavailable"`
			Error  string `json:"error,omitempty"`
		}
	}
)

// ModelsHandler exposes model session status.
type ModelsHandler struct {
	registry *model.Registry
	health   func() error
}

// NewModelsHandler creates a new ModelsHandler instance. health reports a
// fatal pipeline error, if any.
func NewModelsHandler(api huma.API, registry *model.Registry, health func() error) *ModelsHandler {
	h := &ModelsHandler{registry: registry, health: health}

	huma.Register(api, huma.Operation{
		OperationID: "list-models",
		Method:      http.MethodGet,
		Path:        "/models",
		Summary:     "List model sessions and their load status",
		Tags:        []string{"models"},
	}, h.handleList)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Report whether inference is available",
		Tags:        []string{"health"},
	}, h.handleHealth)

	return h
}

func (h *ModelsHandler) handleList(ctx context.Context, _ *struct{}) (*ListModelsOutput, error) {
	out := &ListModelsOutput{}
	out.Body.Models = []model.InstanceInfo{}
	for _, instance := range h.registry.List() {
		out.Body.Models = append(out.Body.Models, instance.Info())
	}
	return out, nil
}

func (h *ModelsHandler) handleHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "ok"
	if h.health != nil {
		if err := h.health(); err != nil {
			out.Body.Status = "unavailable"
			out.Body.Error = err.Error()
		}
	}
	return out, nil
}
