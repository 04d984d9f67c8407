package settings

import (
	"context"
	"sync"

	"github.com/go-authgate/drive-image-uploader/auth"
)

// Manager owns the live settings and writes every change through to the
// Store. It implements auth.Persister.
type Manager struct {
	mu      sync.Mutex
	store   Store
	current Settings
	overlay func(*Settings)
}

// NewManager loads the current settings from store.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	s, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, current: s}, nil
}

// Get returns a snapshot with the overlay applied.
func (m *Manager) Get() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.current
	if m.overlay != nil {
		m.overlay(&s)
	}
	return s
}

// Saved returns the persisted values without the overlay.
func (m *Manager) Saved() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetOverlay installs fn to adjust every Get result in memory only. Flag and
// environment values use it so they never end up in the settings file.
func (m *Manager) SetOverlay(fn func(*Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlay = fn
}

// Update applies fn to a copy and saves it. The in-memory value only changes
// once the save succeeded.
func (m *Manager) Update(ctx context.Context, fn func(*Settings) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.current
	if err := fn(&next); err != nil {
		return err
	}
	if err := m.store.Save(ctx, next); err != nil {
		return err
	}
	m.current = next
	return nil
}

// SaveCredential persists the token fields together with the rest of the
// settings.
func (m *Manager) SaveCredential(ctx context.Context, c auth.Credential) error {
	return m.Update(ctx, func(s *Settings) error {
		s.SetCredential(c)
		return nil
	})
}
