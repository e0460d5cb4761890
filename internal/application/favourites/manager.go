// Package favourites manages the per-device list of favourite airports.
// The list lives under one of two keys chosen from the session, and the
// capacity is enforced here rather than by callers.
package favourites

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"crewportal/internal/adapters/storage/devicestate"
	domain "crewportal/internal/domain/favourites"
	"crewportal/internal/domain/session"
)

// Meta describes why a save happened. It is only logged.
type Meta struct {
	Trigger string
}

// Manager loads and saves favourites through a device store.
// INVARIANT: every read-modify-write holds mu, so concurrent requests
// from one device cannot lose an update
type Manager struct {
	store devicestate.Store
	mu    sync.Mutex
}

// NewManager creates a Manager over store.
func NewManager(store devicestate.Store) *Manager {
	return &Manager{store: store}
}

// memberOrKnown is true for members and for guests that still carry a user record.
func memberOrKnown(s session.Session) bool {
	return s.IsMember() || s.HasUser()
}

// MaxFavs returns the list capacity for the session.
func MaxFavs(s session.Session) int {
	return domain.MaxFor(memberOrKnown(s))
}

// Key returns the storage key for the session.
func Key(s session.Session) string {
	return domain.KeyFor(memberOrKnown(s))
}

// Load returns the stored list for the session, normalized and capped.
// Any read or decode failure is logged and yields an empty list.
// POST: result is never nil
func (m *Manager) Load(ctx context.Context, deviceID string, s session.Session) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx, deviceID, s)
}

func (m *Manager) load(ctx context.Context, deviceID string, s session.Session) []string {
	key := Key(s)
	raw, ok, err := m.store.Get(ctx, deviceID, key)
	if err != nil {
		slog.Warn("favourites_load_failed", "key", key, "error", err)
		return []string{}
	}
	if !ok || raw == "" {
		return []string{}
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		slog.Warn("favourites_decode_failed", "key", key, "error", err)
		return []string{}
	}
	return domain.Normalize(domain.Coerce(decoded), MaxFavs(s))
}

// Save normalizes list, caps it and writes it. Write failures are logged
// and swallowed; the normalized list is returned either way.
func (m *Manager) Save(ctx context.Context, deviceID string, s session.Session, list []string, meta Meta) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, deviceID, s, list, meta)
}

func (m *Manager) save(ctx context.Context, deviceID string, s session.Session, list []string, meta Meta) []string {
	key := Key(s)
	codes := domain.Normalize(list, MaxFavs(s))
	data, err := json.Marshal(codes)
	if err != nil {
		slog.Warn("favourites_encode_failed", "key", key, "error", err)
		return codes
	}
	if err := m.store.Set(ctx, deviceID, key, string(data)); err != nil {
		slog.Warn("favourites_save_failed", "key", key, "trigger", meta.Trigger, "error", err)
		return codes
	}
	slog.Debug("favourites_saved", "key", key, "trigger", meta.Trigger, "count", len(codes))
	return codes
}

// Add appends code to the list.
// PRE: code normalizes to three letters
// POST: returns ErrInvalidCode or ErrFull without writing; adding a code
// already present is a no-op
func (m *Manager) Add(ctx context.Context, deviceID string, s session.Session, code string) ([]string, error) {
	c := domain.NormalizeCode(code)
	if !domain.IsValidCode(c) {
		return nil, domain.ErrInvalidCode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.load(ctx, deviceID, s)
	for _, existing := range list {
		if existing == c {
			return list, nil
		}
	}
	if len(list) >= MaxFavs(s) {
		return list, domain.ErrFull
	}
	return m.save(ctx, deviceID, s, append(list, c), Meta{Trigger: "add"}), nil
}

// Remove drops code from the list. Removing an absent code is a no-op.
func (m *Manager) Remove(ctx context.Context, deviceID string, s session.Session, code string) []string {
	c := domain.NormalizeCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.load(ctx, deviceID, s)
	kept := make([]string, 0, len(list))
	for _, existing := range list {
		if existing != c {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(list) {
		return list
	}
	return m.save(ctx, deviceID, s, kept, Meta{Trigger: "remove"})
}

// Replace overwrites the whole list, as the airport picker does.
func (m *Manager) Replace(ctx context.Context, deviceID string, s session.Session, list []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, deviceID, s, list, Meta{Trigger: "replace"})
}
