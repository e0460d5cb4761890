// Package crewcache holds the crew profile of one session's member.
package crewcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/session"
)

// ProfileFetcher fetches a crew record; nil means the server has none.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token, psn string) (*crew.Member, error)
}

// Cache is the profile cache of one session.
// INVARIANT: a fetch result replaces the cached record wholesale, and a
// result older than the last applied one is discarded
type Cache struct {
	api ProfileFetcher

	mu        sync.Mutex
	member    *crew.Member
	loadedFor string
	issued    uint64
	applied   uint64
}

// New creates an empty cache.
func New(api ProfileFetcher) *Cache {
	return &Cache{api: api}
}

// Current returns the cached record, or nil.
func (c *Cache) Current() *crew.Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.member
}

// LoadedFor returns the normalized identity the cached record belongs to.
func (c *Cache) LoadedFor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedFor
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	c.member = nil
	c.loadedFor = ""
	c.applied = c.issued
}

// LoadCrew fetches the record for override, or for the session PSN when
// override is empty, and stores it.
// POST: an empty identity logs, clears and returns (nil, nil); a failed
// fetch logs, leaves the cache unchanged and returns the error
func (c *Cache) LoadCrew(ctx context.Context, sess session.Session, override string) (*crew.Member, error) {
	identity := session.NormalizeIdentity(override)
	if identity == "" {
		identity = sess.PSN()
	}
	if identity == "" {
		slog.Error("crew_load_without_identity")
		c.Clear()
		return nil, nil
	}

	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	m, err := c.api.FetchProfile(ctx, sess.AccessToken, identity)
	if err != nil {
		slog.Warn("crew_load_failed", "psn", identity, "error", err)
		return nil, fmt.Errorf("load crew %s: %w", identity, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.applied {
		slog.Debug("crew_load_superseded", "psn", identity)
		return m, nil
	}
	c.member = m
	c.loadedFor = identity
	c.applied = seq
	return m, nil
}

// Sync brings the cache in line with the session: guests and broken
// member sessions are cleared, a member whose record is already cached is
// left alone, anything else is fetched.
func (c *Cache) Sync(ctx context.Context, sess session.Session) (*crew.Member, error) {
	if sess.Mode != session.ModeMember {
		c.Clear()
		return nil, nil
	}
	psn := sess.PSN()
	if psn == "" {
		slog.Error("session_contract_breach", "reason", "member_without_psn")
		c.Clear()
		return nil, nil
	}

	c.mu.Lock()
	if c.member != nil && c.loadedFor == psn {
		m := c.member
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	return c.LoadCrew(ctx, sess, "")
}
