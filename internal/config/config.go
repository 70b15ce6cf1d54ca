package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/slots"
)

// EnvPrefix prefixes every environment variable read by this package.
const EnvPrefix = "TIMESLOT"

// Setting keys. Flags bound with BindFlags use the same names.
const (
	KeyWorkStartHour     = "work-start-hour"
	KeyWorkEndHour       = "work-end-hour"
	KeyTimeZone          = "timezone"
	KeyMinSlotLength     = "min-slot-length"
	KeyMaxSlotLength     = "max-slot-length"
	KeyMinWeeks          = "min-weeks"
	KeyMaxWeeks          = "max-weeks"
	KeyLookupTimeout     = "lookup-timeout"
	KeyLookupConcurrency = "lookup-concurrency"
	KeyLookupQPS         = "lookup-qps"
	KeyAccount           = "account"
	KeyHTTPAddr          = "http-addr"
	KeyMetricsAddr       = "metrics-addr"
	KeyRateLimit         = "rate-limit"
	KeyCORSOrigins       = "cors-origins"
	KeyLogLevel          = "log-level"
	KeyLogFormat         = "log-format"
)

// Settings is the resolved process configuration.
type Settings struct {
	WorkStartHour int    `mapstructure:"work-start-hour"`
	WorkEndHour   int    `mapstructure:"work-end-hour"`
	TimeZone      string `mapstructure:"timezone"`

	MinSlotLength int `mapstructure:"min-slot-length"`
	MaxSlotLength int `mapstructure:"max-slot-length"`
	MinWeeks      int `mapstructure:"min-weeks"`
	MaxWeeks      int `mapstructure:"max-weeks"`

	LookupTimeout     time.Duration `mapstructure:"lookup-timeout"`
	LookupConcurrency int           `mapstructure:"lookup-concurrency"`
	LookupQPS         float64       `mapstructure:"lookup-qps"`
	Account           string        `mapstructure:"account"`

	HTTPAddr    string   `mapstructure:"http-addr"`
	MetricsAddr string   `mapstructure:"metrics-addr"`
	RateLimit   int      `mapstructure:"rate-limit"`
	CORSOrigins []string `mapstructure:"cors-origins"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		WorkStartHour:     9,
		WorkEndHour:       17,
		TimeZone:          "UTC",
		MinSlotLength:     finder.DefaultMinSlotLengthMinutes,
		MaxSlotLength:     finder.DefaultMaxSlotLengthMinutes,
		MinWeeks:          finder.DefaultMinSpanWeeks,
		MaxWeeks:          finder.DefaultMaxSpanWeeks,
		LookupTimeout:     finder.DefaultLookupTimeout,
		LookupConcurrency: 4,
		LookupQPS:         10,
		Account:           "default",
		HTTPAddr:          ":8080",
		MetricsAddr:       ":9090",
		RateLimit:         60,
		CORSOrigins:       []string{"*"},
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// New returns a viper instance carrying the defaults and reading
// TIMESLOT_* environment variables (TIMESLOT_WORK_START_HOUR, ...).
func New() *viper.Viper {
	v := viper.New()

	d := Defaults()
	v.SetDefault(KeyWorkStartHour, d.WorkStartHour)
	v.SetDefault(KeyWorkEndHour, d.WorkEndHour)
	v.SetDefault(KeyTimeZone, d.TimeZone)
	v.SetDefault(KeyMinSlotLength, d.MinSlotLength)
	v.SetDefault(KeyMaxSlotLength, d.MaxSlotLength)
	v.SetDefault(KeyMinWeeks, d.MinWeeks)
	v.SetDefault(KeyMaxWeeks, d.MaxWeeks)
	v.SetDefault(KeyLookupTimeout, d.LookupTimeout)
	v.SetDefault(KeyLookupConcurrency, d.LookupConcurrency)
	v.SetDefault(KeyLookupQPS, d.LookupQPS)
	v.SetDefault(KeyAccount, d.Account)
	v.SetDefault(KeyHTTPAddr, d.HTTPAddr)
	v.SetDefault(KeyMetricsAddr, d.MetricsAddr)
	v.SetDefault(KeyRateLimit, d.RateLimit)
	v.SetDefault(KeyCORSOrigins, d.CORSOrigins)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ReadFile merges a YAML, JSON or TOML config file into v. An empty path is a
// no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// BindFlags binds every flag in flags whose name is a setting key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if !isKey(f.Name) {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, fmt.Errorf("failed to bind flag --%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

func isKey(name string) bool {
	switch name {
	case KeyWorkStartHour, KeyWorkEndHour, KeyTimeZone,
		KeyMinSlotLength, KeyMaxSlotLength, KeyMinWeeks, KeyMaxWeeks,
		KeyLookupTimeout, KeyLookupConcurrency, KeyLookupQPS, KeyAccount,
		KeyHTTPAddr, KeyMetricsAddr, KeyRateLimit, KeyCORSOrigins,
		KeyLogLevel, KeyLogFormat:
		return true
	}
	return false
}

// Load resolves v into validated Settings.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings for consistency.
func (s Settings) Validate() error {
	if _, err := s.FinderConfig(); err != nil {
		return err
	}
	if s.LookupConcurrency < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyLookupConcurrency, s.LookupConcurrency)
	}
	if s.LookupQPS < 0 {
		return fmt.Errorf("%s must not be negative", KeyLookupQPS)
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("%s must not be negative", KeyRateLimit)
	}
	return nil
}

// Location loads the configured time zone.
func (s Settings) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", KeyTimeZone, s.TimeZone, err)
	}
	return loc, nil
}

// SlotsConfig returns the work-hour regime.
func (s Settings) SlotsConfig() (slots.Config, error) {
	loc, err := s.Location()
	if err != nil {
		return slots.Config{}, err
	}
	cfg := slots.Config{
		WorkStartHour: s.WorkStartHour,
		WorkEndHour:   s.WorkEndHour,
		Location:      loc,
	}
	if err := cfg.Validate(); err != nil {
		return slots.Config{}, err
	}
	return cfg, nil
}

// FinderConfig returns a finder configuration without source, metrics or
// logger; callers fill those in.
func (s Settings) FinderConfig() (finder.Config, error) {
	sc, err := s.SlotsConfig()
	if err != nil {
		return finder.Config{}, err
	}
	cfg := finder.DefaultConfig()
	cfg.Slots = sc
	cfg.MinSlotLengthMinutes = s.MinSlotLength
	cfg.MaxSlotLengthMinutes = s.MaxSlotLength
	cfg.MinSpanWeeks = s.MinWeeks
	cfg.MaxSpanWeeks = s.MaxWeeks
	cfg.LookupTimeout = s.LookupTimeout
	if err := cfg.Validate(); err != nil {
		return finder.Config{}, err
	}
	return cfg, nil
}
