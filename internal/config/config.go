// Package config loads the service configuration from YAML with AURA_*
// environment overrides and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

// Config is the full service configuration.
type Config struct {
	ServiceName   string           `yaml:"service_name" validate:"required"`
	ShutdownGrace time.Duration    `yaml:"shutdown_grace" validate:"gt=0"`
	Log           LogConfig        `yaml:"log"`
	HTTP          HTTPConfig       `yaml:"http"`
	Telemetry     TelemetryConfig  `yaml:"telemetry"`
	Behavior      BehaviorConfig   `yaml:"behavior"`
	Reputation    ReputationConfig `yaml:"reputation"`
	Firewall      FirewallConfig   `yaml:"firewall"`
	Integrity     IntegrityConfig  `yaml:"integrity"`
	Capture       CaptureConfig    `yaml:"capture"`
	GeoIP         GeoIPConfig      `yaml:"geoip"`
	NATS          NATSConfig       `yaml:"nats"`
	Events        EventsConfig     `yaml:"events"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// HTTPConfig controls the presentation API listener.
type HTTPConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	Debug        bool          `yaml:"debug"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" validate:"gt=0"`
}

// TelemetryConfig controls OTLP trace and metric export.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint" validate:"required_if=Enabled true"`
	Insecure       bool          `yaml:"insecure"`
	Probability    float64       `yaml:"probability" validate:"gte=0,lte=1"`
	ExportInterval time.Duration `yaml:"export_interval" validate:"gt=0"`
}

// BehaviorConfig controls the behavioral scorer.
type BehaviorConfig struct {
	LearningWindow time.Duration `yaml:"learning_window" validate:"gt=0"`
	Capacity       int           `yaml:"capacity" validate:"gt=0"`
}

// ReputationConfig controls drop-lists and the external lookup.
// RefreshInterval 0 refreshes only at startup.
type ReputationConfig struct {
	AbuseIPDBKey    string        `yaml:"abuseipdb_key"`
	AbuseIPDBURL    string        `yaml:"abuseipdb_url" validate:"omitempty,url"`
	DropLists       []string      `yaml:"drop_lists" validate:"dive,required"`
	Cooldown        time.Duration `yaml:"cooldown" validate:"gt=0"`
	CacheTTL        time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	CacheSize       int           `yaml:"cache_size" validate:"gt=0"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gte=0"`
	RefreshTimeout  time.Duration `yaml:"refresh_timeout" validate:"gt=0"`
}

// FirewallConfig controls the blocked-address record and enforcement.
type FirewallConfig struct {
	StatePath  string `yaml:"state_path" validate:"required"`
	Backend    string `yaml:"backend" validate:"oneof=auto nftables none"`
	Table      string `yaml:"table" validate:"required"`
	Set        string `yaml:"set" validate:"required"`
	ManageSets bool   `yaml:"manage_sets"`
}

// IntegrityConfig controls the drift detector. MaxFiles 0 means no cap.
type IntegrityConfig struct {
	Roots        []string      `yaml:"roots" validate:"dive,required"`
	BaselinePath string        `yaml:"baseline_path" validate:"required"`
	MaxFiles     int           `yaml:"max_files" validate:"gte=0"`
	Interval     time.Duration `yaml:"interval" validate:"gt=0"`
	InitialDelay time.Duration `yaml:"initial_delay" validate:"gte=0"`
	FoldCase     bool          `yaml:"fold_case"`
}

// CaptureConfig selects where flows come from.
type CaptureConfig struct {
	Source       string        `yaml:"source" validate:"oneof=auto conntrack sockets none"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
}

// GeoIPConfig points at the MaxMind city database.
type GeoIPConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// NATSConfig enables event forwarding when URL is set.
type NATSConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Prefix string `yaml:"prefix"`
}

// EventsConfig sizes the threat and integrity mailboxes.
type EventsConfig struct {
	Capacity int `yaml:"capacity" validate:"gt=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ServiceName:   "aura-radar",
		ShutdownGrace: 5 * time.Second,
		Log:           LogConfig{Level: "info"},
		HTTP: HTTPConfig{
			Addr:         ":5000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  2 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Probability:    0.05,
			ExportInterval: 15 * time.Second,
		},
		Behavior: BehaviorConfig{
			LearningWindow: 15 * time.Second,
			Capacity:       65536,
		},
		Reputation: ReputationConfig{
			DropLists: []string{
				"https://www.spamhaus.org/drop/drop.txt",
				"https://www.spamhaus.org/drop/edrop.txt",
			},
			Cooldown:       5 * time.Second,
			CacheTTL:       30 * time.Minute,
			CacheSize:      8192,
			RefreshTimeout: 15 * time.Second,
		},
		Firewall: FirewallConfig{
			StatePath: "blocked_ips.json",
			Backend:   "auto",
			Table:     "aura_radar",
			Set:       "blocked",
		},
		Integrity: IntegrityConfig{
			Roots:        []string{"/etc"},
			BaselinePath: "integrity_baseline.json",
			MaxFiles:     20000,
			Interval:     30 * time.Second,
			InitialDelay: time.Second,
		},
		Capture: CaptureConfig{
			Source:       "auto",
			PollInterval: time.Second,
		},
		GeoIP:  GeoIPConfig{DatabasePath: "GeoLite2-City.mmdb"},
		NATS:   NATSConfig{Prefix: "aura.radar"},
		Events: EventsConfig{Capacity: 4096},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, errors.Join(threat.ErrTransientIO, err))
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, errors.Join(threat.ErrMalformedInput, err))
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	cfg.ServiceName = getEnv("AURA_SERVICE_NAME", cfg.ServiceName)
	cfg.Log.Level = getEnv("AURA_LOG_LEVEL", cfg.Log.Level)
	cfg.HTTP.Addr = getEnv("AURA_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.CORSOrigins = getListEnv("AURA_HTTP_CORS_ORIGINS", cfg.HTTP.CORSOrigins)
	cfg.HTTP.Debug = getBoolEnv("AURA_HTTP_DEBUG", cfg.HTTP.Debug, &errs)

	cfg.Telemetry.Enabled = getBoolEnv("AURA_OTEL_ENABLED", cfg.Telemetry.Enabled, &errs)
	cfg.Telemetry.Endpoint = getEnv("AURA_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)

	cfg.Behavior.LearningWindow = getDurationEnv("AURA_LEARNING_WINDOW", cfg.Behavior.LearningWindow, &errs)

	cfg.Reputation.AbuseIPDBKey = getEnv("AURA_ABUSEIPDB_KEY", cfg.Reputation.AbuseIPDBKey)
	cfg.Reputation.DropLists = getListEnv("AURA_DROP_LISTS", cfg.Reputation.DropLists)
	cfg.Reputation.RefreshInterval = getDurationEnv("AURA_DROP_LIST_REFRESH", cfg.Reputation.RefreshInterval, &errs)

	cfg.Firewall.StatePath = getEnv("AURA_FIREWALL_STATE", cfg.Firewall.StatePath)
	cfg.Firewall.Backend = getEnv("AURA_FIREWALL_BACKEND", cfg.Firewall.Backend)

	cfg.Integrity.Roots = getListEnv("AURA_INTEGRITY_ROOTS", cfg.Integrity.Roots)
	cfg.Integrity.BaselinePath = getEnv("AURA_INTEGRITY_BASELINE", cfg.Integrity.BaselinePath)
	cfg.Integrity.MaxFiles = getIntEnv("AURA_INTEGRITY_MAX_FILES", cfg.Integrity.MaxFiles, &errs)
	cfg.Integrity.Interval = getDurationEnv("AURA_INTEGRITY_INTERVAL", cfg.Integrity.Interval, &errs)

	cfg.Capture.Source = getEnv("AURA_CAPTURE_SOURCE", cfg.Capture.Source)
	cfg.Capture.PollInterval = getDurationEnv("AURA_CAPTURE_INTERVAL", cfg.Capture.PollInterval, &errs)

	cfg.GeoIP.DatabasePath = getEnv("AURA_GEOIP_DB", cfg.GeoIP.DatabasePath)
	cfg.NATS.URL = getEnv("AURA_NATS_URL", cfg.NATS.URL)

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, errors.Join(threat.ErrMalformedInput, err)))
		return defaultValue
	}
	return n
}

func getBoolEnv(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, errors.Join(threat.ErrMalformedInput, err)))
		return defaultValue
	}
	return b
}

func getDurationEnv(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, errors.Join(threat.ErrMalformedInput, err)))
		return defaultValue
	}
	return d
}

// ValidationError lists every failed constraint with an English message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, m := range e.Fields {
		msgs = append(msgs, m)
	}
	slices.Sort(msgs)
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Unwrap reports configuration problems as a configuration gap.
func (e *ValidationError) Unwrap() error { return threat.ErrConfigurationGap }

// Validate checks cfg against its struct constraints.
func Validate(cfg Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return fmt.Errorf("register translations: %w", err)
	}

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		out.Fields[ns] = fe.Translate(trans)
	}
	return out
}
