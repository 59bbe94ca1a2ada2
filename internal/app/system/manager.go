package system

import (
	"context"
	"fmt"
	"sync"

	"github.com/openlottery/gamemaster/pkg/logger"
)

// Manager starts registered services in registration order and stops them in
// reverse. A failed start stops the services already running.
type Manager struct {
	mu       sync.Mutex
	services []Service
	started  []Service
	log      *logger.Logger
}

// NewManager creates a Manager. A nil log defaults to a named logger.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("system")
	}
	return &Manager{log: log}
}

// Register adds a service. Registration order determines start order.
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, svc)
}

// Start launches every registered service. On failure it stops whatever
// already started and returns the start error.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, svc := range m.services {
		m.log.Infof("starting service %s", svc.Name())
		if err := svc.Start(ctx); err != nil {
			m.log.WithError(err).Errorf("service %s failed to start", svc.Name())
			m.stopLocked(ctx)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.started = append(m.started, svc)
	}
	return nil
}

// Stop halts running services in reverse start order. The first stop error is
// returned after every service has been asked to stop.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var firstErr error
	for i := len(m.started) - 1; i >= 0; i-- {
		svc := m.started[i]
		m.log.Infof("stopping service %s", svc.Name())
		if err := svc.Stop(ctx); err != nil {
			m.log.WithError(err).Errorf("service %s failed to stop", svc.Name())
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
		}
	}
	m.started = nil
	return firstErr
}
