package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PVList unmarshals from either a single PV name or a YAML sequence.
type PVList []string

func (p *PVList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*p = PVList{s}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*p = PVList(list)
	return nil
}

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Archiver struct {
		Server        string        `yaml:"server"` // LCLS or SSRL
		PVs           PVList        `yaml:"pvs"`
		StartTime     string        `yaml:"start_time"` // MM/DD/YYYY HH:MM:SS
		EndTime       string        `yaml:"end_time"`   // MM/DD/YYYY HH:MM:SS
		DurationHours float64       `yaml:"duration_hours"`
		Timeout       time.Duration `yaml:"timeout"`
		Workers       int           `yaml:"workers"`
	} `yaml:"archiver"`
	Align struct {
		BasePV      string      `yaml:"base_pv"`
		BaseID      int         `yaml:"base_id"`
		ValRanges   [][]float64 `yaml:"val_ranges"`
		BridgeSec   float64     `yaml:"bridge_sec"`
		ResampleSec float64     `yaml:"resample_sec"`
		Trim        *bool       `yaml:"trim"`
	} `yaml:"align"`
	Cache struct {
		Backend string        `yaml:"backend"` // memory or redis
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	ClickHouse struct {
		Host         string        `yaml:"host"` // empty disables persistence
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		Table        string        `yaml:"table"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ARCHIVER_SERVER"); v != "" {
		c.Archiver.Server = v
	}
	if v := os.Getenv("PV_NAMES"); v != "" {
		c.Archiver.PVs = PVList(strings.Split(v, ","))
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Archiver.Server == "" {
		c.Archiver.Server = "LCLS"
	}
	if len(c.Archiver.PVs) == 0 {
		c.Archiver.PVs = PVList{
			"GUN:GUNB:100:FWD:PWR",
			"GUN:GUNB:100:DFACT",
			"GUN:GUNB:100:REV1:PWR",
		}
	}
	if c.Archiver.Timeout == 0 {
		c.Archiver.Timeout = 30 * time.Second
	}
	if c.Archiver.Workers == 0 {
		c.Archiver.Workers = 8
	}
	if c.Align.BasePV == "" && len(c.Archiver.PVs) > 0 {
		c.Align.BasePV = c.Archiver.PVs[0]
	}
	if len(c.Align.ValRanges) == 0 {
		c.Align.ValRanges = [][]float64{{1e3, 1e5}}
	}
	if c.Align.Trim == nil {
		trim := true
		c.Align.Trim = &trim
	}
	if c.Align.BridgeSec == 0 {
		c.Align.BridgeSec = 1
	}
	if c.Align.ResampleSec == 0 {
		c.Align.ResampleSec = 1
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Minute
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "archpull"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "archpull.aligned_samples"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	s := strings.ToUpper(c.Archiver.Server)
	if s != "LCLS" && s != "SSRL" {
		return fmt.Errorf("archiver.server must be 'LCLS' or 'SSRL', got '%s'", c.Archiver.Server)
	}
	if len(c.Archiver.PVs) == 0 {
		return fmt.Errorf("archiver.pvs cannot be empty")
	}
	provided := 0
	if c.Archiver.StartTime != "" {
		provided++
	}
	if c.Archiver.EndTime != "" {
		provided++
	}
	if c.Archiver.DurationHours != 0 {
		provided++
	}
	if provided < 2 {
		return fmt.Errorf("archiver requires two of start_time, end_time, duration_hours")
	}
	for i, r := range c.Align.ValRanges {
		if len(r) != 2 {
			return fmt.Errorf("align.val_ranges[%d] must be a [low, high] pair", i)
		}
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for redis backend")
	}
	return nil
}
