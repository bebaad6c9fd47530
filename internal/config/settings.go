package config

import (
	"sync"
	"time"
)

// Settings is the live, file-backed settings store shared by the daemon.
// Every Set is written through to disk.
type Settings struct {
	path string

	mu  sync.RWMutex
	cfg Config
}

// OpenSettings loads path, or starts from defaults when it does not exist.
func OpenSettings(path string) (*Settings, error) {
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return &Settings{path: path, cfg: *cfg}, nil
}

// Snapshot returns a copy of the current configuration.
func (s *Settings) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Settings) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Get(key)
}

// Set updates key and saves the file. On a save error the change is undone.
func (s *Settings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	if err := next.Set(key, value); err != nil {
		return err
	}
	if err := Save(s.path, &next); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// NotificationsEnabled reports the notification toggle.
func (s *Settings) NotificationsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Notifications
}

// SessionDuration is how long a re-authentication stays valid.
func (s *Settings) SessionDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.SessionDuration.Duration
}
