package profile

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/chatsync/internal/model"
)

// Directory looks up user profiles. Implementations return a nil profile
// and nil error when the user does not exist.
type Directory interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// Cache is a write-through profile cache. A profile is fetched once and then
// kept for the lifetime of the cache; there is no expiry.
type Cache struct {
	dir Directory

	mu       sync.RWMutex
	profiles map[string]model.Profile
}

// NewCache creates an empty cache backed by dir.
func NewCache(dir Directory) *Cache {
	return &Cache{
		dir:      dir,
		profiles: make(map[string]model.Profile),
	}
}

// Lookup returns the cached profile of userID without touching the directory.
func (c *Cache) Lookup(userID string) (model.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[userID]
	return p, ok
}

// Ensure returns the profile of userID, fetching it on first use.
func (c *Cache) Ensure(ctx context.Context, userID string) (model.Profile, error) {
	if p, ok := c.Lookup(userID); ok {
		return p, nil
	}

	p, err := c.dir.GetProfile(ctx, userID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("fetch profile %q: %w", userID, err)
	}
	if p == nil {
		return model.Profile{}, fmt.Errorf("profile %q not found", userID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent Ensure may have won; keep the first copy.
	if existing, ok := c.profiles[userID]; ok {
		return existing, nil
	}
	c.profiles[userID] = *p
	return *p, nil
}

// Put stores p directly, e.g. the signed-in user's own profile.
func (c *Cache) Put(p model.Profile) {
	c.mu.Lock()
	c.profiles[p.UserID] = p
	c.mu.Unlock()
}

// Len returns the number of cached profiles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}
