package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ekisa-team/emovec/internal/backend"
)

// Validator inspects a freshly loaded handle. A non-nil error poisons the
// session exactly like a load failure.
type Validator func(backend.Handle) error

// AcquireOption configures the first acquisition of an artifact.
type AcquireOption func(*acquireOptions)

type acquireOptions struct {
	validators []Validator
}

// WithValidator registers a validator that runs once, right after the
// artifact is loaded. Options passed to later Acquire calls for the same
// artifact are ignored.
func WithValidator(v Validator) AcquireOption {
	return func(o *acquireOptions) {
		o.validators = append(o.validators, v)
	}
}

// session memoizes the outcome of loading one artifact.
type session struct {
	once     sync.Once
	handle   backend.Handle
	err      error
	instance *Instance
}

// Manager lazily loads model artifacts through a backend and caches the
// resulting handles for the lifetime of the manager. Each artifact is loaded
// at most once, even under concurrent first use, and a failed load is never
// retried.
type Manager struct {
	backend  backend.Backend
	registry *Registry
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewManager creates a new Manager that loads artifacts with b.
func NewManager(b backend.Backend, registry *Registry, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend:  b,
		registry: registry,
		log:      logger.With("component", "model.manager"),
		sessions: make(map[string]*session),
	}
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Verify checks that the artifact at path exists without loading it.
func (m *Manager) Verify(path string) error {
	return checkArtifact(filepath.Clean(path))
}

// Acquire returns the handle for the artifact at path, loading it on first
// use. The load is not bound to ctx: a caller giving up must not poison the
// session for everyone else.
func (m *Manager) Acquire(ctx context.Context, path string, opts ...AcquireOption) (backend.Handle, error) {
	key := filepath.Clean(path)

	s, err := m.session(key)
	if err != nil {
		return nil, err
	}
	return m.acquire(ctx, key, s, opts)
}

func (m *Manager) acquire(ctx context.Context, key string, s *session, opts []AcquireOption) (backend.Handle, error) {
	s.once.Do(func() {
		var o acquireOptions
		for _, opt := range opts {
			opt(&o)
		}
		s.handle, s.err = m.load(context.WithoutCancel(ctx), key, s.instance, o.validators)
	})

	// Close completed the once before this caller could load.
	if s.handle == nil && s.err == nil {
		return nil, ErrManagerClosed
	}
	return s.handle, s.err
}

func (m *Manager) session(key string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	s, ok := m.sessions[key]
	if !ok {
		s = &session{instance: NewInstance(key, key, m.backend.Provider())}
		m.sessions[key] = s
		m.registry.Set(s.instance)
	}
	return s, nil
}

func (m *Manager) load(ctx context.Context, path string, instance *Instance, validators []Validator) (backend.Handle, error) {
	fail := func(err error) (backend.Handle, error) {
		instance.SetError(err)
		m.log.Error("Model load failed", "path", path, "error", err)
		return nil, err
	}

	if err := checkArtifact(path); err != nil {
		return fail(err)
	}

	instance.SetStatus(StatusLoading)
	m.log.Info("Loading model", "path", path, "provider", m.backend.Provider())
	start := time.Now()

	handle, err := m.backend.Load(ctx, path)
	if err != nil {
		if errors.Is(err, backend.ErrArtifactNotFound) {
			return fail(&MissingArtifactError{Path: path})
		}
		return fail(fmt.Errorf("model: load %s: %w", path, err))
	}

	for _, validate := range validators {
		if err := validate(handle); err != nil {
			if cerr := handle.Close(); cerr != nil {
				m.log.Warn("Failed to close rejected model", "path", path, "error", cerr)
			}
			return fail(err)
		}
	}

	instance.SetStatus(StatusLoaded)
	m.log.Info("Model loaded", "path", path, "duration", time.Since(start))
	return handle, nil
}

// Close releases every loaded handle. Subsequent Acquire calls fail with
// ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for key, s := range m.sessions {
		// Complete any pending once so a concurrent loader cannot race Close.
		s.once.Do(func() {})
		if s.handle == nil {
			continue
		}
		if err := s.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
		s.instance.SetStatus(StatusUnloaded)
	}
	return errors.Join(errs...)
}

func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MissingArtifactError{Path: path}
		}
		return fmt.Errorf("model: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return &MissingArtifactError{Path: path}
	}
	return nil
}
