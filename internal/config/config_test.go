package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Theme = "dark"
	cfg.Notifications = false
	cfg.SessionDuration.Duration = 90 * time.Second
	cfg.Push.KafkaBrokers = []string{"localhost:9092"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Theme != "dark" || loaded.Notifications {
		t.Errorf("theme/notifications = %q/%v", loaded.Theme, loaded.Notifications)
	}
	if loaded.SessionDuration.Duration != 90*time.Second {
		t.Errorf("SessionDuration = %v, want 1m30s", loaded.SessionDuration)
	}
	if len(loaded.Push.KafkaBrokers) != 1 || loaded.Push.KafkaBrokers[0] != "localhost:9092" {
		t.Errorf("KafkaBrokers = %v", loaded.Push.KafkaBrokers)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_profile = \"main\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Notifications {
		t.Error("notifications should default to on")
	}
	if cfg.Backend.Kind != "sqlite" || cfg.Theme != "system" || cfg.Media.MaxDimension != 2048 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil || cfg.Backend.Kind != "sqlite" {
		t.Errorf("LoadOrDefault() = %+v, %v", cfg, err)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend.Kind = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Error("mongo without uri should fail")
	}
	cfg.Backend.MongoURI = "mongodb://localhost:27017"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	cfg.Theme = "neon"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown theme should fail")
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()
	tests := []struct {
		key, value string
	}{
		{"theme", "light"},
		{"notifications", "false"},
		{"session_duration", "10m0s"},
		{"default_profile", "work"},
	}
	for _, tt := range tests {
		if err := cfg.Set(tt.key, tt.value); err != nil {
			t.Fatalf("Set(%q) = %v", tt.key, err)
		}
		got, err := cfg.Get(tt.key)
		if err != nil || got != tt.value {
			t.Errorf("Get(%q) = %q, %v; want %q", tt.key, got, err, tt.value)
		}
	}

	if err := cfg.Set("theme", "neon"); err == nil {
		t.Error("Set(theme, neon) should fail")
	}
	if err := cfg.Set("notifications", "maybe"); err == nil {
		t.Error("Set(notifications, maybe) should fail")
	}
	if _, err := cfg.Get("backend.kind"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(backend.kind) = %v, want ErrUnknownKey", err)
	}
}

func TestSettingsWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	s, err := OpenSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if !s.NotificationsEnabled() {
		t.Error("notifications should start enabled")
	}
	if err := s.Set("notifications", "false"); err != nil {
		t.Fatal(err)
	}
	if s.NotificationsEnabled() {
		t.Error("toggle not applied")
	}

	reopened, err := OpenSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.NotificationsEnabled() {
		t.Error("toggle not persisted")
	}
	if err := s.Set("nope", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set(nope) = %v", err)
	}
}
