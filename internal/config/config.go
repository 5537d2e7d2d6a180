package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/cipherstudio/internal/util"
)

// FileName is the config file looked up in the studio directory.
const FileName = "studio.json"

type Config struct {
	Storage Storage `json:"storage"`
	Viewer  Viewer  `json:"viewer"`
	Editor  Editor  `json:"editor"`
	Preview Preview `json:"preview"`
	Mirror  Mirror  `json:"mirror"`
	Log     Log     `json:"log"`
	Profile Profile `json:"profile"`
}

type Storage struct {
	// Directory holding the SQLite database. Relative to the studio directory.
	DataDir string `json:"data_dir"`
}

type Viewer struct {
	HTTPAddr string `json:"http_addr"`
	Debug    bool   `json:"debug"`
}

type Editor struct {
	Autosave        bool `json:"autosave"`
	AutosaveDelayMS int  `json:"autosave_delay_ms"`
}

type Preview struct {
	DebounceMS int  `json:"debounce_ms"`
	Minify     bool `json:"minify"`
}

// Mirror keeps one project in sync with a directory while serving.
type Mirror struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
	Project string `json:"project"`

	// Delete records that are missing on disk during the initial import.
	Prune bool `json:"prune"`
}

type Log struct {
	Level      string `json:"level"`
	BufferSize int    `json:"buffer_size"`

	// File, when set, receives a rotated copy of the log. Relative to the
	// studio directory.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

type Profile struct {
	Owner string `json:"owner"` // owner recorded on new projects
	Label string `json:"label"`
}

func Default() Config {
	return Config{
		Storage: Storage{
			DataDir: "data",
		},
		Viewer: Viewer{
			HTTPAddr: "127.0.0.1:8080",
			Debug:    false,
		},
		Editor: Editor{
			Autosave:        false,
			AutosaveDelayMS: 1000,
		},
		Preview: Preview{
			DebounceMS: 150,
			Minify:     false,
		},
		Mirror: Mirror{
			Enabled: false,
			Dir:     "mirror",
		},
		Log: Log{
			Level:      "info",
			BufferSize: 500,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Profile: Profile{
			Owner: "local",
			Label: "CipherStudio",
		},
	}
}

func (c *Config) Validate() error {
	// Storage
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return errors.New("storage.data_dir is required")
	}

	// Viewer
	if _, port, err := net.SplitHostPort(c.Viewer.HTTPAddr); err != nil || port == "" {
		return fmt.Errorf("viewer.http_addr must be host:port, got %q", c.Viewer.HTTPAddr)
	}

	// Editor
	if c.Editor.AutosaveDelayMS < 100 || c.Editor.AutosaveDelayMS > 60000 {
		return errors.New("editor.autosave_delay_ms must be 100..60000")
	}

	// Preview
	if c.Preview.DebounceMS < 0 || c.Preview.DebounceMS > 10000 {
		return errors.New("preview.debounce_ms must be 0..10000")
	}

	// Mirror
	if c.Mirror.Enabled {
		if strings.TrimSpace(c.Mirror.Dir) == "" {
			return errors.New("mirror.dir is required when mirror is enabled")
		}
		if strings.TrimSpace(c.Mirror.Project) == "" {
			return errors.New("mirror.project is required when mirror is enabled")
		}
	}

	// Log
	if _, err := logging.LevelFromString(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.BufferSize < 0 || c.Log.BufferSize > 100000 {
		return errors.New("log.buffer_size must be 0..100000")
	}
	if c.Log.File != "" && (c.Log.MaxSizeMB <= 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0) {
		return errors.New("log.max_size_mb must be > 0, max_backups and max_age_days >= 0")
	}

	return nil
}

func (c Config) AutosaveDelay() time.Duration {
	return time.Duration(c.Editor.AutosaveDelayMS) * time.Millisecond
}

func (c Config) PreviewDebounce() time.Duration {
	return time.Duration(c.Preview.DebounceMS) * time.Millisecond
}

func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPartial reads a config file without validation, for commands that
// only need a field or two of a config that may not validate.
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Strip UTF-8 BOM if present (common when editing JSON on Windows).
	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
