package appstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streamwise/internal/docstore"
	"streamwise/services/library"
)

// Tuning carries the configurable knobs applied to every controller and
// library the manager creates. Zero values keep the defaults.
type Tuning struct {
	Debounce         time.Duration
	MinTermLength    int
	MaxSourceFetches int
	UsageWindow      time.Duration
}

// Manager hands out one running controller per signed-in user and tears
// them down on sign-out or shutdown.
type Manager struct {
	store  *docstore.Store
	search library.SearchClient
	tuning Tuning

	mu          sync.Mutex
	controllers map[string]*Controller
	closed      bool
}

func NewManager(store *docstore.Store, search library.SearchClient) *Manager {
	return &Manager{
		store:       store,
		search:      search,
		controllers: make(map[string]*Controller),
	}
}

// SetTuning applies configuration to controllers created after the call.
func (m *Manager) SetTuning(t Tuning) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tuning = t
}

// Controller returns the user's controller, creating and starting it on
// first use.
func (m *Manager) Controller(ctx context.Context, userID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("state manager is shut down")
	}
	if ctrl, ok := m.controllers[userID]; ok {
		return ctrl, nil
	}

	lib, err := library.NewService(m.store, m.search, userID)
	if err != nil {
		return nil, fmt.Errorf("create library for %s: %w", userID, err)
	}
	lib.SetMaxSourceFetches(m.tuning.MaxSourceFetches)
	lib.SetUsageWindow(m.tuning.UsageWindow)

	ctrl := NewController(lib)
	ctrl.SetDebounce(m.tuning.Debounce)
	ctrl.SetMinTermLength(m.tuning.MinTermLength)
	if err := ctrl.Start(ctx); err != nil {
		return nil, fmt.Errorf("start controller for %s: %w", userID, err)
	}
	m.controllers[userID] = ctrl
	return ctrl, nil
}

// Release tears down one user's controller, typically on sign-out. Safe to
// call for users that never had one.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	ctrl, ok := m.controllers[userID]
	delete(m.controllers, userID)
	m.mu.Unlock()

	if ok {
		ctrl.Close()
	}
}

// Close tears down every controller.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	controllers := m.controllers
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()

	for _, ctrl := range controllers {
		ctrl.Close()
	}
}
