package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Watchmode WatchmodeSettings `json:"watchmode"`
	Store     StoreSettings     `json:"store"`
	Search    SearchSettings    `json:"search"`
	Usage     UsageSettings     `json:"usage"`
	Sessions  SessionSettings   `json:"sessions"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// WatchmodeSettings configures the title search upstream.
type WatchmodeSettings struct {
	APIKey string `json:"apiKey"`
}

// StoreSettings defines where the document store and profile data live.
type StoreSettings struct {
	DatabasePath string `json:"databasePath"`
	DataDir      string `json:"dataDir"`
}

// SearchSettings tunes the debounced search pipeline.
type SearchSettings struct {
	DebounceMs       int `json:"debounceMs"`
	MinTermLength    int `json:"minTermLength"`
	MaxSourceFetches int `json:"maxSourceFetches"`
}

// UsageSettings tunes the usage reporting window.
type UsageSettings struct {
	WindowDays int `json:"windowDays"`
}

// SessionSettings tunes session lifetime.
type SessionSettings struct {
	DurationHours int `json:"durationHours"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration used on first run.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8585,
		},
		Watchmode: WatchmodeSettings{},
		Store: StoreSettings{
			DatabasePath: "data/streamwise.db",
			DataDir:      "data",
		},
		Search: SearchSettings{
			DebounceMs:       500,
			MinTermLength:    3,
			MaxSourceFetches: 5,
		},
		Usage: UsageSettings{
			WindowDays: 90,
		},
		Sessions: SessionSettings{
			DurationHours: 720,
		},
		Log: LogConfig{
			File:       "data/streamwise.log",
			MaxSize:    10,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings.json.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing. Fields
// absent from an existing file fall back to their defaults, so upgrades
// never require hand-editing the file.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	settings := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	if settings.Search.DebounceMs <= 0 {
		settings.Search.DebounceMs = DefaultSettings().Search.DebounceMs
	}
	if settings.Search.MinTermLength <= 0 {
		settings.Search.MinTermLength = DefaultSettings().Search.MinTermLength
	}
	if settings.Search.MaxSourceFetches <= 0 {
		settings.Search.MaxSourceFetches = DefaultSettings().Search.MaxSourceFetches
	}
	if settings.Usage.WindowDays <= 0 {
		settings.Usage.WindowDays = DefaultSettings().Usage.WindowDays
	}
	if settings.Sessions.DurationHours <= 0 {
		settings.Sessions.DurationHours = DefaultSettings().Sessions.DurationHours
	}

	return settings, nil
}

// Save writes settings atomically.
func (m *Manager) Save(s Settings) error {
	if err := m.EnsureDir(); err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close settings temp file: %w", err)
	}

	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	return nil
}
