package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrUnknownKey is returned by Get and Set for keys that are not settings.
var ErrUnknownKey = errors.New("unknown setting")

var themes = []string{"system", "light", "dark"}

// Duration is a time.Duration written as a string such as "720h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.chatsync/config.toml.
type Config struct {
	DefaultProfile  string   `toml:"default_profile"`
	Theme           string   `toml:"theme"`
	Notifications   bool     `toml:"notifications"`
	SessionDuration Duration `toml:"session_duration"`

	Backend Backend `toml:"backend"`
	Push    Push    `toml:"push"`
	Media   Media   `toml:"media"`
}

// Backend selects the document store.
type Backend struct {
	Kind          string `toml:"kind"` // "sqlite" or "mongo"
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// Push configures background push delivery. Empty brokers disable it.
type Push struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
}

// Media configures image hosting. An empty bucket keeps images on disk.
type Media struct {
	S3Bucket     string `toml:"s3_bucket"`
	S3Region     string `toml:"s3_region"`
	MaxBytes     int64  `toml:"max_bytes"`
	MaxDimension int    `toml:"max_dimension"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{Notifications: true}
	cfg.fill()
	return cfg
}

func (c *Config) fill() {
	if c.Theme == "" {
		c.Theme = "system"
	}
	if c.SessionDuration.Duration == 0 {
		c.SessionDuration.Duration = 5 * time.Minute
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = "sqlite"
	}
	if c.Backend.MongoDatabase == "" {
		c.Backend.MongoDatabase = "chatsync"
	}
	if c.Push.KafkaTopic == "" {
		c.Push.KafkaTopic = "chat.push"
	}
	if c.Media.S3Region == "" {
		c.Media.S3Region = "us-east-1"
	}
	if c.Media.MaxBytes == 0 {
		c.Media.MaxBytes = 10 << 20
	}
	if c.Media.MaxDimension == 0 {
		c.Media.MaxDimension = 2048
	}
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if !slices.Contains(themes, c.Theme) {
		return fmt.Errorf("theme %q: want one of %v", c.Theme, themes)
	}
	switch c.Backend.Kind {
	case "sqlite":
	case "mongo":
		if c.Backend.MongoURI == "" {
			return fmt.Errorf("backend.mongo_uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("backend.kind %q: want sqlite or mongo", c.Backend.Kind)
	}
	if c.SessionDuration.Duration < 0 {
		return fmt.Errorf("session_duration must not be negative")
	}
	return nil
}

// Get returns a primitive setting as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "default_profile":
		return c.DefaultProfile, nil
	case "theme":
		return c.Theme, nil
	case "notifications":
		return strconv.FormatBool(c.Notifications), nil
	case "session_duration":
		return c.SessionDuration.String(), nil
	}
	return "", fmt.Errorf("%q: %w", key, ErrUnknownKey)
}

// Set parses value into a primitive setting.
func (c *Config) Set(key, value string) error {
	switch key {
	case "default_profile":
		c.DefaultProfile = value
	case "theme":
		if !slices.Contains(themes, value) {
			return fmt.Errorf("theme %q: want one of %v", value, themes)
		}
		c.Theme = value
	case "notifications":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("notifications: %w", err)
		}
		c.Notifications = v
	case "session_duration":
		var d Duration
		if err := d.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("session_duration: %w", err)
		}
		c.SessionDuration = d
	default:
		return fmt.Errorf("%q: %w", key, ErrUnknownKey)
	}
	return nil
}

// Load reads config from the given path. Returns zero config and error if file missing.
// Missing fields take their defaults; notifications stay on unless the file
// turns them off.
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	if !md.IsDefined("notifications") {
		cfg.Notifications = true
	}
	cfg.fill()
	return &cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
