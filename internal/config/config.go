// Package config loads service settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fleetglobe/internal/feed"
	"fleetglobe/internal/model"
)

type Config struct {
	Port        string  `yaml:"port"`
	DatabaseURL string  `yaml:"database_url"`
	RedisURL    string  `yaml:"redis_url"`
	Feed        Feed    `yaml:"feed"`
	Poll        Poll    `yaml:"poll"`
	Scene       Scene   `yaml:"scene"`
	Log         Log     `yaml:"log"`
	Webhook     Webhook `yaml:"webhook"`
}

type Feed struct {
	BaseURL   string        `yaml:"base_url"`
	Token     string        `yaml:"token"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Poll struct {
	Interval           time.Duration `yaml:"interval"`
	RetryAfterFailures int           `yaml:"retry_after_failures"`
	Sources            []string      `yaml:"sources"`
}

type Scene struct {
	Home        model.Point `yaml:"home"`
	ShowLabels  bool        `yaml:"show_labels"`
	ShowRegions bool        `yaml:"show_regions"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Webhook struct {
	URL         string `yaml:"url"`
	Secret      string `yaml:"secret"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// Default returns the settings used when nothing is configured: a demo fleet
// over Bengaluru polled every 10s.
func Default() Config {
	return Config{
		Port: "8080",
		Feed: Feed{RateLimit: 8, Burst: 4, Timeout: 10 * time.Second},
		Poll: Poll{
			Interval:           10 * time.Second,
			RetryAfterFailures: 3,
			Sources:            []string{"assets", "orders", "routes", "regions"},
		},
		Scene: Scene{
			Home:        model.Point{Lat: 12.9716, Lng: 77.5946, Altitude: 25000},
			ShowLabels:  true,
			ShowRegions: true,
		},
		Log:     Log{Level: "info", Format: "text"},
		Webhook: Webhook{MaxAttempts: 5},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("FEED_BASE_URL", &c.Feed.BaseURL)
	str("FEED_TOKEN", &c.Feed.Token)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("WEBHOOK_URL", &c.Webhook.URL)
	str("WEBHOOK_SECRET", &c.Webhook.Secret)

	var errs []error
	if v := getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("POLL_INTERVAL: %w", err))
		}
		c.Poll.Interval = d
	}
	if v := getenv("POLL_SOURCES"); v != "" {
		c.Poll.Sources = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Poll.Sources = append(c.Poll.Sources, s)
			}
		}
	}
	if v := getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WEBHOOK_MAX_ATTEMPTS: %w", err))
		}
		c.Webhook.MaxAttempts = n
	}
	for key, dst := range map[string]*bool{"SHOW_LABELS": &c.Scene.ShowLabels, "SHOW_REGIONS": &c.Scene.ShowRegions} {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
			*dst = b
		}
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Poll.Interval < time.Second {
		errs = append(errs, fmt.Errorf("poll.interval %s is below 1s", c.Poll.Interval))
	}
	if c.Poll.RetryAfterFailures < 1 {
		errs = append(errs, errors.New("poll.retry_after_failures must be at least 1"))
	}
	if len(c.Poll.Sources) == 0 {
		errs = append(errs, errors.New("poll.sources must name at least one source"))
	}
	for _, s := range c.Poll.Sources {
		if _, err := feed.ParseKind(s); err != nil {
			errs = append(errs, err)
		}
	}
	h := c.Scene.Home
	if h.Lat < -90 || h.Lat > 90 || h.Lng < -180 || h.Lng > 180 {
		errs = append(errs, fmt.Errorf("scene.home %g,%g is out of range", h.Lat, h.Lng))
	}
	if h.Altitude <= 0 {
		errs = append(errs, errors.New("scene.home.altitude must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if c.Webhook.URL != "" && c.Webhook.MaxAttempts < 1 {
		errs = append(errs, errors.New("webhook.max_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

// Kinds returns the configured poll sources. Call after Validate.
func (c Config) Kinds() []feed.Kind {
	out := make([]feed.Kind, 0, len(c.Poll.Sources))
	for _, s := range c.Poll.Sources {
		if k, err := feed.ParseKind(s); err == nil {
			out = append(out, k)
		}
	}
	return out
}

// Demo reports whether no external source is configured.
func (c Config) Demo() bool { return c.DatabaseURL == "" && c.Feed.BaseURL == "" }
