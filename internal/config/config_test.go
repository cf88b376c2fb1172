package config

import (
	"os"
	"testing"
	"time"

	"github.com/dhkang/photocal/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
strategy: manual
poll_interval: 45s
window_past: 72h
window_ahead: 720h
confidence_threshold: 0.8
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.User != "dana" {
		t.Errorf("User = %q, want %q", cfg.User, "dana")
	}
	if cfg.CalendarID != "primary" {
		t.Errorf("CalendarID = %q, want %q", cfg.CalendarID, "primary")
	}
	if cfg.ResolvedStrategy() != model.Manual {
		t.Errorf("strategy = %s, want manual", cfg.ResolvedStrategy())
	}
	if cfg.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", cfg.PollInterval)
	}
	if cfg.WindowPast != 72*time.Hour {
		t.Errorf("WindowPast = %v, want 72h", cfg.WindowPast)
	}
	if cfg.ResolvedThreshold() != 0.8 {
		t.Errorf("threshold = %v, want 0.8", cfg.ResolvedThreshold())
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ResolvedStrategy() != model.NewestWins {
		t.Errorf("default strategy = %s, want newest-wins", cfg.ResolvedStrategy())
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %v, want default 5m", cfg.PollInterval)
	}
	if cfg.WindowPast != 7*24*time.Hour {
		t.Errorf("WindowPast = %v, want default 168h", cfg.WindowPast)
	}
	if cfg.WindowAhead != 90*24*time.Hour {
		t.Errorf("WindowAhead = %v, want default 2160h", cfg.WindowAhead)
	}
	if cfg.ResolvedThreshold() != 0.9 {
		t.Errorf("threshold = %v, want default 0.9", cfg.ResolvedThreshold())
	}
}

func TestLoad_ZeroThresholdIsKept(t *testing.T) {
	path := writeConfig(t, `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
confidence_threshold: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ResolvedThreshold() != 0 {
		t.Errorf("threshold = %v, want explicit 0", cfg.ResolvedThreshold())
	}
}

func TestLoad_RequiredFields(t *testing.T) {
	cases := map[string]string{
		"missing user": `
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"`,
		"missing calendar": `
user: "dana"
credentials_file: "/etc/photocal/token.json"`,
		"missing credentials": `
user: "dana"
calendar_id: "primary"`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_BadValues(t *testing.T) {
	cases := map[string]string{
		"unknown strategy": `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
strategy: coin-flip`,
		"poll too short": `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
poll_interval: 5s`,
		"bad schedule": `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
schedule: "every other tuesday"`,
		"threshold out of range": `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
confidence_threshold: 1.5`,
		"telemetry without endpoint": `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
telemetry:
  insecure: true`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
pol_interval: 45s
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestLoad_ValidSchedule(t *testing.T) {
	path := writeConfig(t, `
user: "dana"
calendar_id: "primary"
credentials_file: "/etc/photocal/token.json"
schedule: "*/15 8-22 * * *"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Schedule != "*/15 8-22 * * *" {
		t.Errorf("Schedule = %q", cfg.Schedule)
	}
}
