package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Tools holds the paths of the external programs driven per file.
type Tools struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	X264    string `yaml:"x264"`
	NeroAAC string `yaml:"nero_aac"`
	MP4Box  string `yaml:"mp4box"`
}

// Update configures the startup release check.
type Update struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// LogFile, when set, receives a copy of every log line (truncated on start)
	LogFile string `yaml:"log_file"`

	// TempDir holds the fixed intermediate files shared by every pipeline run
	TempDir string `yaml:"temp_dir"`

	// ProfilesPath is the encoding profile file (.yaml or legacy .json)
	ProfilesPath string `yaml:"profiles_path"`

	// DatabasePath is the SQLite task history and settings database
	DatabasePath string `yaml:"database_path"`

	// LegacyStorePath is the old JSON key/value store imported once into the database
	LegacyStorePath string `yaml:"legacy_store_path"`

	// BrowseRoot limits the directory browser; empty means the user's home directory
	BrowseRoot string `yaml:"browse_root"`

	Tools Tools `yaml:"tools"`

	// SupportedExtensions lists the input extensions accepted, with leading dot
	SupportedExtensions []string `yaml:"supported_extensions"`

	// PollInterval is how often the presentation layer drains the message bus
	PollInterval time.Duration `yaml:"poll_interval"`

	// ProbeTimeout bounds a single metadata probe
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	Update Update `yaml:"update"`
}

// DefaultExtensions are the container formats the encoder chain accepts.
var DefaultExtensions = []string{".mp4", ".mkv", ".mov", ".avi"}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "info",
		LogFile:         "log.txt",
		TempDir:         ".",
		ProfilesPath:    "config/profiles.yaml",
		DatabasePath:    "config/videoslim.db",
		LegacyStorePath: "store",
		Tools: Tools{
			FFmpeg:  "tools/ffmpeg",
			FFprobe: "tools/ffprobe",
			X264:    "tools/x264_64-8bit",
			NeroAAC: "tools/neroAacEnc",
			MP4Box:  "tools/mp4box",
		},
		SupportedExtensions: append([]string(nil), DefaultExtensions...),
		PollInterval:        time.Second,
		ProbeTimeout:        30 * time.Second,
		Update: Update{
			Enabled: true,
			URL:     "https://github.com/mainite/VideoSlim/releases",
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads config from a YAML file, applying defaults for missing values
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills fields left empty by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.TempDir == "" {
		c.TempDir = def.TempDir
	}
	if c.ProfilesPath == "" {
		c.ProfilesPath = def.ProfilesPath
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = def.Tools.FFmpeg
	}
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = def.Tools.FFprobe
	}
	if c.Tools.X264 == "" {
		c.Tools.X264 = def.Tools.X264
	}
	if c.Tools.NeroAAC == "" {
		c.Tools.NeroAAC = def.Tools.NeroAAC
	}
	if c.Tools.MP4Box == "" {
		c.Tools.MP4Box = def.Tools.MP4Box
	}
	if len(c.SupportedExtensions) == 0 {
		c.SupportedExtensions = def.SupportedExtensions
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.Update.URL == "" {
		c.Update.URL = def.Update.URL
	}
	if c.Update.Timeout <= 0 {
		c.Update.Timeout = def.Update.Timeout
	}
}

// Save writes the config to a YAML file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
