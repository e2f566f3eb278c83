package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fleetglobe/internal/feed"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !c.Demo() {
		t.Fatal("default config should run the demo fleet")
	}
	if len(c.Kinds()) != len(feed.AllKinds) {
		t.Fatalf("kinds %v", c.Kinds())
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleetglobe.yaml")
	data := `
port: "9000"
poll:
  interval: 5s
  retry_after_failures: 2
  sources: [assets, regions]
scene:
  home: {lat: 51.5, lng: -0.12, altitude: 40000}
  show_labels: false
feed:
  base_url: https://fleet.example.com/api
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9100")
	t.Setenv("LOG_FORMAT", "json")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "9100" || c.Log.Format != "json" {
		t.Fatalf("env overrides not applied: %+v", c)
	}
	if c.Poll.Interval != 5*time.Second || c.Poll.RetryAfterFailures != 2 {
		t.Fatalf("poll %+v", c.Poll)
	}
	if k := c.Kinds(); len(k) != 2 || k[0] != feed.KindAssets || k[1] != feed.KindRegions {
		t.Fatalf("kinds %v", k)
	}
	if c.Scene.Home.Lat != 51.5 || c.Scene.Home.Altitude != 40000 || c.Scene.ShowLabels || !c.Scene.ShowRegions {
		t.Fatalf("scene %+v", c.Scene)
	}
	if c.Demo() {
		t.Fatal("feed base url set, not demo")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.applyEnv(envMap(map[string]string{
		"POLL_INTERVAL":        "12s",
		"POLL_SOURCES":         "assets, orders ,",
		"SHOW_REGIONS":         "false",
		"WEBHOOK_URL":          "http://hook",
		"WEBHOOK_MAX_ATTEMPTS": "2",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if c.Poll.Interval != 12*time.Second || c.Scene.ShowRegions || c.Webhook.MaxAttempts != 2 {
		t.Fatalf("unexpected %+v", c)
	}
	if strings.Join(c.Poll.Sources, ",") != "assets,orders" {
		t.Fatalf("sources %v", c.Poll.Sources)
	}
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	c := Default()
	err := c.applyEnv(envMap(map[string]string{
		"POLL_INTERVAL": "soon",
		"SHOW_LABELS":   "maybe",
	}))
	if err == nil || !strings.Contains(err.Error(), "POLL_INTERVAL") || !strings.Contains(err.Error(), "SHOW_LABELS") {
		t.Fatalf("want both errors, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"interval":  func(c *Config) { c.Poll.Interval = 100 * time.Millisecond },
		"source":    func(c *Config) { c.Poll.Sources = []string{"assets", "ships"} },
		"no source": func(c *Config) { c.Poll.Sources = nil },
		"home lat":  func(c *Config) { c.Scene.Home.Lat = 91 },
		"home lng":  func(c *Config) { c.Scene.Home.Lng = -181 },
		"altitude":  func(c *Config) { c.Scene.Home.Altitude = 0 },
		"format":    func(c *Config) { c.Log.Format = "xml" },
		"retry":     func(c *Config) { c.Poll.RetryAfterFailures = 0 },
		"webhook":   func(c *Config) { c.Webhook.URL = "http://x"; c.Webhook.MaxAttempts = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
