package inbox

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ManagedWorker is the contract Manager needs from a background worker,
// matching the donor's internal/worker.Worker interface. Only inbox.Worker
// implements it today, but cmd/server registers it through this interface
// rather than calling Start/Stop directly so a second worker type (a
// future export-retry poller, say) can be registered the same way.
type ManagedWorker interface {
	Start(ctx context.Context) error
	Stop()
	Name() string
}

// Manager owns the lifecycle of every background worker the server runs,
// adapted from the donor's internal/worker.Manager.
type Manager struct {
	mu      sync.RWMutex
	workers []ManagedWorker
	logger  *zap.Logger
}

// NewManager builds an empty Manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register adds a worker to be managed. Call before StartAll.
func (m *Manager) Register(w ManagedWorker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers = append(m.workers, w)
}

// StartAll starts every registered worker in registration order, stopping
// at the first failure.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, w := range m.workers {
		if err := w.Start(ctx); err != nil {
			if m.logger != nil {
				m.logger.Error("failed to start worker", zap.String("name", w.Name()), zap.Error(err))
			}
			return err
		}
		if m.logger != nil {
			m.logger.Info("worker started", zap.String("name", w.Name()))
		}
	}
	return nil
}

// StopAll stops every registered worker in reverse (LIFO) order.
func (m *Manager) StopAll() {
	m.mu.RLock()
	workers := make([]ManagedWorker, len(m.workers))
	copy(workers, m.workers)
	m.mu.RUnlock()

	for i := len(workers) - 1; i >= 0; i-- {
		w := workers[i]
		w.Stop()
		if m.logger != nil {
			m.logger.Info("worker stopped", zap.String("name", w.Name()))
		}
	}
}

// Count returns the number of registered workers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}
