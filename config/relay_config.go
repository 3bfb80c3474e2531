package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalLogConfig holds optional global log file settings
type GlobalLogConfig struct {
	Filename   string `yaml:"Filename,omitempty"`
	MaxSize    int    `yaml:"MaxSize,omitempty"` // megabytes
	MaxBackups int    `yaml:"MaxBackups,omitempty"`
	MaxAge     int    `yaml:"MaxAge,omitempty"` // days
	Compress   bool   `yaml:"Compress,omitempty"`
}

// DurationString supports "10s", "5m" (only lowercase s/m)
type DurationString time.Duration

func (d *DurationString) UnmarshalYAML(value *yaml.Node) error {
	s := value.Value
	if value.Tag == "!!int" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*d = DurationString(time.Duration(v) * time.Second)
		return nil
	}
	if !(strings.HasSuffix(s, "s") || strings.HasSuffix(s, "m")) {
		return fmt.Errorf("invalid duration: %s (must end with 's' or 'm')", s)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = DurationString(dur)
	return nil
}

func (d DurationString) Duration() time.Duration {
	return time.Duration(d)
}

// SizeString supports "4KB", "1MB", "1GB" (uppercase only); a plain
// int is taken as bytes.
type SizeString int64

func (s *SizeString) UnmarshalYAML(value *yaml.Node) error {
	raw := value.Value
	if value.Tag == "!!int" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*s = SizeString(v)
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty size string")
	}
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(raw, "KB"):
		multiplier = 1024
		raw = strings.TrimSuffix(raw, "KB")
	case strings.HasSuffix(raw, "MB"):
		multiplier = 1024 * 1024
		raw = strings.TrimSuffix(raw, "MB")
	case strings.HasSuffix(raw, "GB"):
		multiplier = 1024 * 1024 * 1024
		raw = strings.TrimSuffix(raw, "GB")
	default:
		// Only accept plain numbers or an uppercase suffix
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return fmt.Errorf("invalid size string: %s (must end with 'KB','MB','GB')", value.Value)
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*s = SizeString(v * multiplier)
	return nil
}

// RelayConfig holds the full configuration of one relay process. The
// relay endpoint is where clients connect; the upstream endpoint is the
// fixed backend every connection is forwarded to.
type RelayConfig struct {
	ListenHost   string `yaml:"ListenHost,omitempty"` // default "0.0.0.0"
	ListenPort   int    `yaml:"ListenPort"`
	UpstreamHost string `yaml:"UpstreamHost"`
	UpstreamPort int    `yaml:"UpstreamPort"`

	NumThreads     int            `yaml:"NumThreads,omitempty"`     // default 8
	BufferSize     SizeString     `yaml:"BufferSize,omitempty"`     // bytes per copy cycle, default 2048
	DialTimeout    DurationString `yaml:"DialTimeout,omitempty"`    // default "10s"
	BandwidthLimit SizeString     `yaml:"BandwidthLimit,omitempty"` // bytes/sec shared by all sessions, <=0 unlimited

	StatusListenAddr string `yaml:"StatusListenAddr,omitempty"` // optional HTTP status API, e.g. "127.0.0.1:8100"

	GlobalLog *GlobalLogConfig `yaml:"GlobalLog,omitempty"`
}

// SetDefaults sets default values for optional fields
func (c *RelayConfig) SetDefaults() {
	if c.ListenHost == "" {
		c.ListenHost = "0.0.0.0"
	}
	if c.NumThreads == 0 {
		c.NumThreads = 8
	}
	if c.BufferSize == 0 {
		c.BufferSize = 2048
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DurationString(10 * time.Second)
	}
	if c.BandwidthLimit == 0 {
		c.BandwidthLimit = -1
	}
	// Set global log defaults if not provided
	if c.GlobalLog == nil {
		c.GlobalLog = &GlobalLogConfig{
			Filename:   "", // Empty string means log to stdout
			MaxSize:    1,
			MaxBackups: 1,
			MaxAge:     1,
			Compress:   false,
		}
	} else {
		if c.GlobalLog.Filename == "" {
			c.GlobalLog.Filename = "relay.log"
		}
		if c.GlobalLog.MaxSize == 0 {
			c.GlobalLog.MaxSize = 20
		}
		if c.GlobalLog.MaxBackups == 0 {
			c.GlobalLog.MaxBackups = 5
		}
		if c.GlobalLog.MaxAge == 0 {
			c.GlobalLog.MaxAge = 28
		}
		// Compress defaults to false, so no need to set
	}
}

// Validate reports configuration errors that should stop the process
// before it binds any socket.
func (c *RelayConfig) Validate() error {
	if c.UpstreamHost == "" {
		return fmt.Errorf("UpstreamHost must be set")
	}
	if c.UpstreamPort < 1 || c.UpstreamPort > 65535 {
		return fmt.Errorf("UpstreamPort out of range: %d", c.UpstreamPort)
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("ListenPort out of range: %d", c.ListenPort)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("NumThreads must be positive: %d", c.NumThreads)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("BufferSize must be positive: %d", int64(c.BufferSize))
	}
	return nil
}

// LoadConfig loads config from YAML file and parses it
func LoadConfig(path string) (*RelayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg RelayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return &cfg, nil
}
