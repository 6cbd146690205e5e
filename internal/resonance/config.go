package resonance

import (
	"encoding/json"
	"fmt"
)

const (
	DefaultNoiseFloor         = 0.60
	DefaultBroadThreshold     = 0.45
	DefaultStrictThreshold    = 0.82
	DefaultHistoryWindow      = 50
	DefaultTemporalWindowDays = 2
	DefaultNoMatchDays        = 999
)

// Config holds the tunable scoring constants. Keys absent from a decoded
// document keep their defaults; an explicit 0 is kept as 0.
type Config struct {
	NoiseFloor         float64 `json:"noise_floor"`
	BroadThreshold     float64 `json:"broad_threshold"`
	StrictThreshold    float64 `json:"strict_threshold"`
	HistoryWindow      int     `json:"history_window"`
	TemporalWindowDays int     `json:"temporal_window_days"`
	NoMatchDays        int     `json:"no_match_days"`
}

func DefaultConfig() Config {
	return Config{
		NoiseFloor:         DefaultNoiseFloor,
		BroadThreshold:     DefaultBroadThreshold,
		StrictThreshold:    DefaultStrictThreshold,
		HistoryWindow:      DefaultHistoryWindow,
		TemporalWindowDays: DefaultTemporalWindowDays,
		NoMatchDays:        DefaultNoMatchDays,
	}
}

func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	v := plain(DefaultConfig())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Config(v)
	return nil
}

// WithDefaults turns the zero Config into DefaultConfig. Otherwise only the
// fields for which 0 is meaningless are filled.
func (c Config) WithDefaults() Config {
	if c == (Config{}) {
		return DefaultConfig()
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.NoMatchDays == 0 {
		c.NoMatchDays = DefaultNoMatchDays
	}
	return c
}

func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"noise_floor":      c.NoiseFloor,
		"broad_threshold":  c.BroadThreshold,
		"strict_threshold": c.StrictThreshold,
	} {
		if v < 0 || v >= 1 {
			return fmt.Errorf("resonance %s must be within [0,1), got %v", name, v)
		}
	}
	if c.StrictThreshold < c.BroadThreshold {
		return fmt.Errorf("resonance strict_threshold %v is below broad_threshold %v", c.StrictThreshold, c.BroadThreshold)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("resonance history_window must be positive")
	}
	if c.TemporalWindowDays < 0 {
		return fmt.Errorf("resonance temporal_window_days must not be negative")
	}
	if c.NoMatchDays <= c.TemporalWindowDays {
		return fmt.Errorf("resonance no_match_days must exceed temporal_window_days")
	}
	return nil
}
