// Package backendtest provides testify mocks for the backend interfaces.
package backendtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ekisa-team/emovec/internal/backend"
	"github.com/ekisa-team/emovec/internal/tensor"
)

// Backend is a mock backend.Backend.
type Backend struct {
	mock.Mock
}

func (m *Backend) Provider() backend.BackendProvider {
	args := m.Called()
	return args.Get(0).(backend.BackendProvider)
}

func (m *Backend) Load(ctx context.Context, path string) (backend.Handle, error) {
	args := m.Called(ctx, path)
	if h, ok := args.Get(0).(backend.Handle); ok {
		return h, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Backend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Handle is a mock backend.Handle.
type Handle struct {
	mock.Mock
}

func (m *Handle) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *Handle) Inputs() []tensor.Info {
	args := m.Called()
	infos, _ := args.Get(0).([]tensor.Info)
	return infos
}

func (m *Handle) Outputs() []tensor.Info {
	args := m.Called()
	infos, _ := args.Get(0).([]tensor.Info)
	return infos
}

func (m *Handle) Run(ctx context.Context, inputs map[string]*tensor.Tensor, outputs []string) (map[string]*tensor.Tensor, error) {
	args := m.Called(ctx, inputs, outputs)
	if out, ok := args.Get(0).(map[string]*tensor.Tensor); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Handle) Close() error {
	args := m.Called()
	return args.Error(0)
}
