package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	MediaRoots []string `yaml:"media_roots" json:"media_roots"`
	ThumbDir   string   `yaml:"thumb_dir"   json:"thumb_dir"`
	ThumbSize  int      `yaml:"thumb_size"  json:"thumb_size"`
	DBPath     string   `yaml:"db_path"     json:"-"`
	HTTPAddr   string   `yaml:"http_addr"   json:"-"`
	// ScanWorkers bounds the scan worker pool. Scan work is I/O- and
	// decode-bound, so this is a concurrency knob, not a CPU parallelism one.
	ScanWorkers int    `yaml:"scan_workers" json:"scan_workers"`
	BatchSize   int    `yaml:"batch_size"   json:"batch_size"`
	Schedule    string `yaml:"schedule"     json:"schedule"`
	VideoProbe  bool   `yaml:"video_probe"  json:"video_probe"`
	LogLevel    string `yaml:"log_level"    json:"-"`
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.ThumbDir == "" {
		c.ThumbDir = "/data/thumbs"
	}
	if c.ThumbSize == 0 {
		c.ThumbSize = 256
	}
	if c.DBPath == "" {
		c.DBPath = "/data/mediadex.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.ScanWorkers == 0 {
		c.ScanWorkers = 8
	}
	if c.BatchSize == 0 {
		c.BatchSize = 500
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the server
// can start without a mounted config file (useful for bare Docker runs).
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		var cfg Config
		cfg.applyDefaults()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
