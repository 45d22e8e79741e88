package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"gotothemoon/internal/core"
)

// Config is the root configuration for a backtest run.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// DataConfig selects and configures the price data provider.
type DataConfig struct {
	Provider string `mapstructure:"provider"` // "csv" or "yahoo"
	CSVPath  string `mapstructure:"csv_path"`
}

// BacktestConfig holds strategy and simulation parameters.
type BacktestConfig struct {
	Strategy       string   `mapstructure:"strategy"`
	ShortWindow    int      `mapstructure:"short_window"`
	LongWindow     int      `mapstructure:"long_window"`
	Tickers        []string `mapstructure:"tickers"`
	InitialCapital float64  `mapstructure:"initial_capital"`
	StartDate      string   `mapstructure:"start_date"` // YYYY-MM-DD
	EndDate        string   `mapstructure:"end_date"`   // YYYY-MM-DD
}

type StorageConfig struct {
	Results ResultsConfig `mapstructure:"results"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// ResultsConfig configures the SQLite run store.
type ResultsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ArchiveConfig configures the report archive backend.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Development: true,
		},
		Data: DataConfig{
			Provider: "csv",
			CSVPath:  "data/prices.csv",
		},
		Backtest: BacktestConfig{
			Strategy:       "ma_crossover",
			ShortWindow:    20,
			LongWindow:     50,
			InitialCapital: 100000,
		},
		Storage: StorageConfig{
			Results: ResultsConfig{
				Path: "data/results.db",
			},
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "data/archive",
			},
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
			Path:   "/metrics",
		},
	}
}

// Validate checks constraints that would otherwise surface mid-run.
func (c *Config) Validate() error {
	if c.Backtest.ShortWindow <= 0 || c.Backtest.ShortWindow >= c.Backtest.LongWindow {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("short_window (%d) must be positive and less than long_window (%d)",
				c.Backtest.ShortWindow, c.Backtest.LongWindow))
	}
	if c.Backtest.StartDate != "" {
		if _, err := core.ParseDate(c.Backtest.StartDate); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	if c.Backtest.EndDate != "" {
		if _, err := core.ParseDate(c.Backtest.EndDate); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	switch c.Data.Provider {
	case "csv", "yahoo":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data provider %q", c.Data.Provider))
	}
	return nil
}
