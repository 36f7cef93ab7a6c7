// Package config loads the pipeline configuration from a YAML file with
// LAB_* environment overrides and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"price-signal-lab/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. LAB_STORAGE_POSTGRES_DSN.
const EnvPrefix = "LAB"

// DateLayout is the ISO date format used in the dates section.
const DateLayout = "2006-01-02"

// Config represents the complete pipeline configuration.
type Config struct {
	Dates    DatesConfig    `yaml:"dates" envconfig:"DATES"`
	Data     DataConfig     `yaml:"data" envconfig:"DATA"`
	Universe UniverseConfig `yaml:"universe" envconfig:"UNIVERSE"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// DatesConfig bounds the price history to download.
type DatesConfig struct {
	Start string `yaml:"start" envconfig:"START" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end" envconfig:"END" validate:"required,datetime=2006-01-02"`
}

// DataConfig selects and tunes the market data source.
type DataConfig struct {
	Source            string        `yaml:"source" envconfig:"SOURCE" validate:"required,oneof=stooq"`
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	Concurrency       int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"gte=1,lte=32"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// UniverseConfig lists symbols per market. At least one list must be non-empty.
type UniverseConfig struct {
	US []string `yaml:"us" envconfig:"US" validate:"dive,ticker"`
	PL []string `yaml:"pl" envconfig:"PL" validate:"dive,ticker"`
}

// PipelineConfig parameterizes the dataset and backtest stages.
type PipelineConfig struct {
	Windows       []int        `yaml:"windows" envconfig:"WINDOWS" validate:"required,min=1,dive,gt=0"`
	Horizon       int          `yaml:"horizon" envconfig:"HORIZON" validate:"gt=0"`
	InitialEquity float64      `yaml:"initial_equity" envconfig:"INITIAL_EQUITY" validate:"gt=0"`
	Signal        SignalConfig `yaml:"signal" envconfig:"SIGNAL"`
}

// SignalConfig mirrors domain.SignalRule.
type SignalConfig struct {
	ShortWindow      int     `yaml:"short_window" envconfig:"SHORT_WINDOW" validate:"gt=0"`
	LongWindow       int     `yaml:"long_window" envconfig:"LONG_WINDOW" validate:"gt=0"`
	LongMomentumMin  float64 `yaml:"long_momentum_min" envconfig:"LONG_MOMENTUM_MIN"`
	ShortMomentumMin float64 `yaml:"short_momentum_min" envconfig:"SHORT_MOMENTUM_MIN"`
	VolTrendRatio    float64 `yaml:"vol_trend_ratio" envconfig:"VOL_TREND_RATIO" validate:"gt=0"`
}

// StorageConfig selects the persistence backends. Empty DSNs disable a backend.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" envconfig:"CLICKHOUSE_DSN"`
	UseMemory     bool   `yaml:"use_memory" envconfig:"USE_MEMORY"`
}

// PathsConfig contains file system output locations.
type PathsConfig struct {
	RawDir       string `yaml:"raw_dir" envconfig:"RAW_DIR" validate:"required"`
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR" validate:"required"`
	ReportsDir   string `yaml:"reports_dir" envconfig:"REPORTS_DIR" validate:"required"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// Default returns the configuration used for every field the file and
// environment leave unset.
func Default() Config {
	rule := domain.DefaultSignalRule
	return Config{
		Data: DataConfig{
			Source:            "stooq",
			BaseURL:           "https://stooq.com/q/d/l/",
			Concurrency:       4,
			RequestsPerSecond: 2,
			Timeout:           30 * time.Second,
		},
		Pipeline: PipelineConfig{
			Windows:       []int{5, 15},
			Horizon:       1,
			InitialEquity: 1,
			Signal: SignalConfig{
				ShortWindow:      rule.ShortWindow,
				LongWindow:       rule.LongWindow,
				LongMomentumMin:  rule.LongMomentumMin,
				ShortMomentumMin: rule.ShortMomentumMin,
				VolTrendRatio:    rule.VolTrendRatio,
			},
		},
		Paths: PathsConfig{
			RawDir:       "data/raw",
			ProcessedDir: "data/processed",
			ReportsDir:   "reports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies LAB_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s config file does not exist: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%s config file is empty or invalid", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates. Values of the wrong type fail with domain.ErrType.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(probe) == 0 {
		return nil, errors.New("config file is empty or invalid")
	}
	for _, section := range []string{"dates", "data", "universe"} {
		if _, ok := probe[section]; !ok {
			return nil, fmt.Errorf("%w: missing required config section: %s", domain.ErrValue, section)
		}
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %s", domain.ErrType, strings.Join(typeErr.Errors, "; "))
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,14}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return tickerPattern.MatchString(fl.Field().String())
	})
	// Use YAML names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the cross-field rules:
// start <= end, a non-empty universe, and signal windows that the
// pipeline computes features for.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatValidationError(fe))
			}
			return fmt.Errorf("%w: invalid config: %s", domain.ErrValue, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("validate config: %w", err)
	}

	start, end := c.StartDate(), c.EndDate()
	if start.After(end) {
		return fmt.Errorf("%w: invalid config: dates.start %s is after dates.end %s",
			domain.ErrValue, c.Dates.Start, c.Dates.End)
	}
	if len(c.Universe.US) == 0 && len(c.Universe.PL) == 0 {
		return fmt.Errorf("%w: invalid config: at least one of universe.us or universe.pl must be non-empty", domain.ErrValue)
	}

	windows := make(map[int]bool, len(c.Pipeline.Windows))
	for _, w := range c.Pipeline.Windows {
		if windows[w] {
			return fmt.Errorf("%w: invalid config: pipeline.windows repeats %d", domain.ErrValue, w)
		}
		windows[w] = true
	}
	for _, w := range []int{c.Pipeline.Signal.ShortWindow, c.Pipeline.Signal.LongWindow} {
		if !windows[w] {
			return fmt.Errorf("%w: invalid config: signal window %d is not in pipeline.windows", domain.ErrValue, w)
		}
	}
	return nil
}

// formatValidationError names the field by its YAML path.
func formatValidationError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "ticker":
		return fmt.Sprintf("%s must be a valid ticker symbol", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// StartDate returns dates.start. Valid only after Validate.
func (c *Config) StartDate() time.Time {
	t, _ := time.Parse(DateLayout, c.Dates.Start)
	return t
}

// EndDate returns dates.end. Valid only after Validate.
func (c *Config) EndDate() time.Time {
	t, _ := time.Parse(DateLayout, c.Dates.End)
	return t
}

// SignalRule converts the signal section to the domain rule.
func (c *Config) SignalRule() domain.SignalRule {
	s := c.Pipeline.Signal
	return domain.SignalRule{
		ShortWindow:      s.ShortWindow,
		LongWindow:       s.LongWindow,
		LongMomentumMin:  s.LongMomentumMin,
		ShortMomentumMin: s.ShortMomentumMin,
		VolTrendRatio:    s.VolTrendRatio,
	}
}
