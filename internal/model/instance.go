package model

import (
	"sync"
	"time"

	"github.com/ekisa-team/emovec/internal/backend"
)

// Status is the current loading status of a model session.
type Status string

const (
	// StatusUnloaded indicates that the model has not been requested yet.
	StatusUnloaded Status = "unloaded"

	// StatusLoading indicates that the model is being loaded.
	StatusLoading Status = "loading"

	// StatusLoaded indicates that the model is loaded.
	StatusLoaded Status = "loaded"

	// StatusFailed indicates that the model failed to load. Failed sessions
	// are never retried.
	StatusFailed Status = "failed"
)

// Instance tracks the lifecycle of one model artifact.
type Instance struct {
	ID       string
	Path     string
	Provider backend.BackendProvider

	mu       sync.RWMutex
	status   Status
	loadedAt *time.Time
	err      string
}

// InstanceInfo is a point-in-time copy of an Instance.
type InstanceInfo struct {
	ID       string     `json:"id"`
	Path     string     `json:"path"`
	Provider string     `json:"provider"`
	Status   Status     `json:"status"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// NewInstance creates a new instance in the unloaded state.
func NewInstance(id, path string, provider backend.BackendProvider) *Instance {
	return &Instance{
		ID:       id,
		Path:     path,
		Provider: provider,
		status:   StatusUnloaded,
	}
}

// SetStatus sets the status of the instance.
func (i *Instance) SetStatus(status Status) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = status
	if status == StatusLoaded {
		now := time.Now()
		i.loadedAt = &now
	}
}

// SetError marks the instance as failed with err.
func (i *Instance) SetError(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = StatusFailed
	i.err = err.Error()
}

// Status returns the current status.
func (i *Instance) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.status
}

// Info returns a snapshot of the instance.
func (i *Instance) Info() InstanceInfo {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return InstanceInfo{
		ID:       i.ID,
		Path:     i.Path,
		Provider: string(i.Provider),
		Status:   i.status,
		LoadedAt: i.loadedAt,
		Error:    i.err,
	}
}
