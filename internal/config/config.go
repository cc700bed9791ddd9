// Package config loads the engine configuration with Viper and manages the
// operator preferences file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Validation errors.
var (
	ErrBadCadence    = errors.New("sample_cadence_s must be positive")
	ErrBadBatchSize  = errors.New("batch_size must be positive")
	ErrBadRootDepth  = errors.New("root_depth_cm must be positive")
	ErrBadThetaBound = errors.New("theta bounds must satisfy 0 <= min < max <= 1")
	ErrBadLambda     = errors.New("fc_update_lambda must be in (0, 1]")
	ErrBadEta        = errors.New("eta_refill must be in (0, 1)")
	ErrBadHysteresis = errors.New("refill_hysteresis must be non-negative")
)

// Config holds every engine knob. Fields map 1:1 onto the config file keys.
type Config struct {
	DatabasePath string `mapstructure:"database_path"`
	ListenAddr   string `mapstructure:"listen_addr"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`

	SampleCadenceS int  `mapstructure:"sample_cadence_s"`
	BatchSize      int  `mapstructure:"batch_size"`
	SimulationMode bool `mapstructure:"simulation_mode"`

	ADCPath  string `mapstructure:"adc_path"`
	TempPath string `mapstructure:"temp_path"`

	RootDepthCm float64 `mapstructure:"root_depth_cm"`
	ThetaMin    float64 `mapstructure:"theta_min"`
	ThetaMax    float64 `mapstructure:"theta_max"`

	RefillHysteresis float64 `mapstructure:"refill_hysteresis"`
	FCUpdateLambda   float64 `mapstructure:"fc_update_lambda"`
	EtaRefill        float64 `mapstructure:"eta_refill"`

	SpikeZThresh float64 `mapstructure:"spike_z_thresh"`
	StuckEps     float64 `mapstructure:"stuck_eps"`

	WetJumpThresh       float64 `mapstructure:"wet_jump_thresh"`
	MinEventSeparationS int     `mapstructure:"min_event_separation_s"`
	PostEventIgnoreS    int     `mapstructure:"post_event_ignore_s"`
	SlopeWindowS        int     `mapstructure:"slope_window_s"`
	SMin                float64 `mapstructure:"s_min"`
	HoldHours           float64 `mapstructure:"hold_hours"`

	RetentionDays int `mapstructure:"retention_days"`
}

// Default returns the engine configuration shipped with the device.
func Default() Config {
	return Config{
		DatabasePath: "agriscan.db",
		ListenAddr:   ":8080",
		LogLevel:     "info",
		LogFormat:    "json",

		SampleCadenceS: 900,
		BatchSize:      6,
		SimulationMode: false,

		RootDepthCm: 30,
		ThetaMin:    0.0,
		ThetaMax:    0.50,

		RefillHysteresis: 0.01,
		FCUpdateLambda:   0.25,
		EtaRefill:        0.5,

		SpikeZThresh: 6.0,
		StuckEps:     0.001,

		WetJumpThresh:       0.02,
		MinEventSeparationS: 43200,
		PostEventIgnoreS:    3600,
		SlopeWindowS:        7200,
		SMin:                5e-4,
		HoldHours:           8,

		RetentionDays: 365,
	}
}

// Load reads the config file at path (YAML) over the defaults. A missing
// file is not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AGRISCAN")
	v.AutomaticEnv()
	setDefaults(v, cfg)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) && !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("sample_cadence_s", cfg.SampleCadenceS)
	v.SetDefault("batch_size", cfg.BatchSize)
	v.SetDefault("simulation_mode", cfg.SimulationMode)
	v.SetDefault("adc_path", cfg.ADCPath)
	v.SetDefault("temp_path", cfg.TempPath)
	v.SetDefault("root_depth_cm", cfg.RootDepthCm)
	v.SetDefault("theta_min", cfg.ThetaMin)
	v.SetDefault("theta_max", cfg.ThetaMax)
	v.SetDefault("refill_hysteresis", cfg.RefillHysteresis)
	v.SetDefault("fc_update_lambda", cfg.FCUpdateLambda)
	v.SetDefault("eta_refill", cfg.EtaRefill)
	v.SetDefault("spike_z_thresh", cfg.SpikeZThresh)
	v.SetDefault("stuck_eps", cfg.StuckEps)
	v.SetDefault("wet_jump_thresh", cfg.WetJumpThresh)
	v.SetDefault("min_event_separation_s", cfg.MinEventSeparationS)
	v.SetDefault("post_event_ignore_s", cfg.PostEventIgnoreS)
	v.SetDefault("slope_window_s", cfg.SlopeWindowS)
	v.SetDefault("s_min", cfg.SMin)
	v.SetDefault("hold_hours", cfg.HoldHours)
	v.SetDefault("retention_days", cfg.RetentionDays)
}

// Validate checks invariants the engine depends on.
func (c Config) Validate() error {
	if c.SampleCadenceS <= 0 {
		return ErrBadCadence
	}
	if c.BatchSize <= 0 {
		return ErrBadBatchSize
	}
	if c.RootDepthCm <= 0 {
		return ErrBadRootDepth
	}
	if c.ThetaMin < 0 || c.ThetaMin >= c.ThetaMax || c.ThetaMax > 1 {
		return ErrBadThetaBound
	}
	if c.FCUpdateLambda <= 0 || c.FCUpdateLambda > 1 {
		return ErrBadLambda
	}
	if c.EtaRefill <= 0 || c.EtaRefill >= 1 {
		return ErrBadEta
	}
	if c.RefillHysteresis < 0 {
		return ErrBadHysteresis
	}
	return nil
}

// SampleCadence returns the cadence as a duration.
func (c Config) SampleCadence() time.Duration {
	return time.Duration(c.SampleCadenceS) * time.Second
}

// Retention returns how long samples are kept before pruning.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
