// Package config holds the controller's operating parameters. Values are
// mutated only through clamping setters and can always be re-sent to the
// remote peer as a complete JSON snapshot.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SocketConfig is the remote peer endpoint.
type SocketConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// LightingConfig holds the AUTO lighting parameters.
type LightingConfig struct {
	// Threshold is the ambient brightness percentage at or below which
	// AUTO lighting switches on.
	Threshold int `json:"threshold" yaml:"threshold"`
}

// IrrigationConfig holds the AUTO irrigation cycle timings, in ms.
type IrrigationConfig struct {
	Interval           int `json:"interval" yaml:"interval"`
	Duration           int `json:"duration" yaml:"duration"`
	PreOxygenateLength int `json:"preOxinateDuration" yaml:"pre_oxygenate_duration"`
}

// Config is the full set of operating parameters. JSON tags describe the
// snapshot sent to the remote peer.
type Config struct {
	Socket              SocketConfig     `json:"socket" yaml:"socket"`
	Lighting            LightingConfig   `json:"lighting" yaml:"lighting"`
	Irrigation          IrrigationConfig `json:"irrigation" yaml:"irrigation"`
	AcquisitionInterval int              `json:"acquisitionInterval" yaml:"acquisition_interval"`
	ReadingScale        int              `json:"readingScale" yaml:"reading_scale"`
	LightFadeDuration   int              `json:"lightFadeDuration" yaml:"light_fade_duration"`
	PingInterval        int              `json:"pingInterval" yaml:"ping_interval"`
}

// Default returns the factory configuration.
func Default() Config {
	return Config{
		Socket:   SocketConfig{Host: "127.0.0.1", Port: 8080},
		Lighting: LightingConfig{Threshold: 50},
		Irrigation: IrrigationConfig{
			Interval:           2 * 60 * 1000,
			Duration:           20 * 1000,
			PreOxygenateLength: 5 * 1000,
		},
		AcquisitionInterval: 1000,
		ReadingScale:        1023,
		LightFadeDuration:   1000,
		PingInterval:        1000,
	}
}

// Load reads a YAML file on top of the defaults. Environment variables
// referenced as ${VAR} or $VAR are expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable by the engine.
func (c Config) Validate() error {
	var errs []error
	if c.Socket.Host == "" {
		errs = append(errs, errors.New("config: socket host is required"))
	}
	if c.Socket.Port <= 0 || c.Socket.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: socket port %d out of range", c.Socket.Port))
	}
	if c.Lighting.Threshold < 0 || c.Lighting.Threshold > 100 {
		errs = append(errs, fmt.Errorf("config: lighting threshold %d not in [0,100]", c.Lighting.Threshold))
	}
	for _, v := range []int{c.Irrigation.Interval, c.Irrigation.Duration, c.Irrigation.PreOxygenateLength, c.AcquisitionInterval, c.LightFadeDuration, c.PingInterval} {
		if ClampMillis(v) != v {
			errs = append(errs, fmt.Errorf("config: timing %d ms not in [0,%d]", v, MaxMillis))
		}
	}
	if c.ReadingScale <= 0 {
		errs = append(errs, fmt.Errorf("config: reading scale %d must be positive", c.ReadingScale))
	}
	if c.AcquisitionInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: acquisition interval %d must be positive", c.AcquisitionInterval))
	}
	return errors.Join(errs...)
}

// SetLightingThreshold stores v clamped to [0,100] and returns the stored value.
func (c *Config) SetLightingThreshold(v int) int {
	c.Lighting.Threshold = min(max(v, 0), 100)
	return c.Lighting.Threshold
}

// MaxMillis is the largest millisecond value that fits a time.Duration.
const MaxMillis int64 = math.MaxInt64 / int64(time.Millisecond)

// ClampMillis bounds v to [0, MaxMillis].
func ClampMillis(v int) int {
	if v < 0 {
		return 0
	}
	if int64(v) > MaxMillis {
		limit := MaxMillis
		return int(limit)
	}
	return v
}

// Millis converts v to a Duration, saturating instead of overflowing.
func Millis(v int) time.Duration {
	return time.Duration(ClampMillis(v)) * time.Millisecond
}

// SetIrrigationInterval stores v clamped to [0, MaxMillis] and returns the
// stored value.
func (c *Config) SetIrrigationInterval(v int) int {
	c.Irrigation.Interval = ClampMillis(v)
	return c.Irrigation.Interval
}

// SetIrrigationDuration stores v clamped to [0, MaxMillis] and returns the
// stored value.
func (c *Config) SetIrrigationDuration(v int) int {
	c.Irrigation.Duration = ClampMillis(v)
	return c.Irrigation.Duration
}

// ClampLightLevel bounds a raw reading to [0, ReadingScale].
func (c Config) ClampLightLevel(v int) int {
	return min(max(v, 0), c.ReadingScale)
}

// Snapshot renders the whole configuration as JSON.
func (c Config) Snapshot() string {
	b, err := json.Marshal(c)
	if err != nil {
		// Config only holds strings and ints.
		panic(fmt.Sprintf("config: marshal snapshot: %v", err))
	}
	return string(b)
}

// AcquisitionPeriod is the light-level polling period.
func (c Config) AcquisitionPeriod() time.Duration {
	return Millis(c.AcquisitionInterval)
}

// Endpoint is the remote websocket URL.
func (c Config) Endpoint() string {
	return fmt.Sprintf("ws://%s:%d/", c.Socket.Host, c.Socket.Port)
}
