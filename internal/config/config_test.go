package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoad_ColonyYAML(t *testing.T) {
	cfg, err := Load("../../configs/colony.yaml")
	if err != nil {
		t.Fatalf("load colony.yaml: %v", err)
	}
	if got := len(cfg.Production.Body); got != 4 {
		t.Fatalf("body parts: got %d want 4", got)
	}
	if cfg.Maintenance.CleanupEveryCycles != 32 || cfg.Maintenance.CleanupOffset != 3 {
		t.Fatalf("cleanup schedule: got %d/%d", cfg.Maintenance.CleanupEveryCycles, cfg.Maintenance.CleanupOffset)
	}
	if cfg.Host.Mode != "local" {
		t.Fatalf("mode: got %q", cfg.Host.Mode)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Production.MaxNameAttempts != 32 {
		t.Fatalf("max_name_attempts: got %d", cfg.Production.MaxNameAttempts)
	}
	if cfg.Agents.ExecuteOnAssign {
		t.Fatalf("execute_on_assign should default to false")
	}
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, "colony.toml", `
[production]
body = ["work", "carry", "move"]

[agents]
execute_on_assign = true

[host]
mode = "remote"
url = "ws://example:9000/v1/ws"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}
	if !cfg.Agents.ExecuteOnAssign {
		t.Fatalf("execute_on_assign should be true")
	}
	if cfg.Host.URL != "ws://example:9000/v1/ws" {
		t.Fatalf("url: got %q", cfg.Host.URL)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("unset sections keep defaults: got level %q", cfg.Log.Level)
	}
}

func TestLoad_SchemaRejectsUnknownKeys(t *testing.T) {
	p := writeFile(t, "bad.yaml", "production:\n  bodyparts: [work]\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected schema error for unknown key")
	}
}

func TestLoad_RejectsUnknownBodyPart(t *testing.T) {
	p := writeFile(t, "bad.yaml", "production:\n  body: [work, wings]\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected body part error")
	}
}

func TestValidate_Remote(t *testing.T) {
	cfg := Defaults()
	cfg.Host.Mode = "remote"
	cfg.Host.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("remote mode without url should fail")
	}
}

func TestValidate_NotifyBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Log.Notify = []string{"slack"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("slack without webhook should fail")
	}
	cfg.Log.SlackWebhook = "https://hooks.slack.invalid/x"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("slack with webhook: %v", err)
	}
	cfg.Log.Notify = []string{"pager"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown backend should fail")
	}
}

func TestValidate_CleanupOffset(t *testing.T) {
	cfg := Defaults()
	cfg.Maintenance.CleanupOffset = 32
	if err := cfg.Validate(); err == nil {
		t.Fatalf("offset >= period should fail")
	}
	cfg.Maintenance.CleanupEveryCycles = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled cleanup ignores offset: %v", err)
	}
}

func TestNormalize_FillsZeroValues(t *testing.T) {
	cfg := Config{Host: HostConfig{Mode: " LOCAL "}}
	cfg.Normalize()
	if cfg.Host.Mode != "local" || cfg.Log.Format != "console" || len(cfg.Production.Body) == 0 {
		t.Fatalf("normalize: %+v", cfg)
	}
}
