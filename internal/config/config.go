package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"colony.ai/internal/env"
)

type Config struct {
	Log         LogConfig         `yaml:"log" toml:"log" json:"log"`
	Production  ProductionConfig  `yaml:"production" toml:"production" json:"production"`
	Agents      AgentsConfig      `yaml:"agents" toml:"agents" json:"agents"`
	Maintenance MaintenanceConfig `yaml:"maintenance" toml:"maintenance" json:"maintenance"`
	Persistence PersistenceConfig `yaml:"persistence" toml:"persistence" json:"persistence"`
	Tracing     TracingConfig     `yaml:"tracing" toml:"tracing" json:"tracing"`
	Host        HostConfig        `yaml:"host" toml:"host" json:"host"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`

	// Events at or above NotifyLevel also go to every Notify backend.
	NotifyLevel     string   `yaml:"notify_level" toml:"notify_level" json:"notify_level"`
	Notify          []string `yaml:"notify" toml:"notify" json:"notify"`
	NotifyPerMinute int      `yaml:"notify_per_minute" toml:"notify_per_minute" json:"notify_per_minute"`

	SlackWebhook        string `yaml:"slack_webhook" toml:"slack_webhook" json:"slack_webhook"`
	DiscordWebhookID    string `yaml:"discord_webhook_id" toml:"discord_webhook_id" json:"discord_webhook_id"`
	DiscordWebhookToken string `yaml:"discord_webhook_token" toml:"discord_webhook_token" json:"discord_webhook_token"`
}

type ProductionConfig struct {
	Body            []string `yaml:"body" toml:"body" json:"body"`
	MaxNameAttempts int      `yaml:"max_name_attempts" toml:"max_name_attempts" json:"max_name_attempts"`
}

type AgentsConfig struct {
	ExecuteOnAssign bool `yaml:"execute_on_assign" toml:"execute_on_assign" json:"execute_on_assign"`
}

type MaintenanceConfig struct {
	CleanupEveryCycles uint64 `yaml:"cleanup_every_cycles" toml:"cleanup_every_cycles" json:"cleanup_every_cycles"`
	CleanupOffset      uint64 `yaml:"cleanup_offset" toml:"cleanup_offset" json:"cleanup_offset"`
}

type PersistenceConfig struct {
	JournalDir            string `yaml:"journal_dir" toml:"journal_dir" json:"journal_dir"`
	DBPath                string `yaml:"db_path" toml:"db_path" json:"db_path"`
	CheckpointEveryCycles uint64 `yaml:"checkpoint_every_cycles" toml:"checkpoint_every_cycles" json:"checkpoint_every_cycles"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Exporter string `yaml:"exporter" toml:"exporter" json:"exporter"`
}

type HostConfig struct {
	// Mode is "local" (in-process reference world) or "remote" (websocket).
	Mode        string  `yaml:"mode" toml:"mode" json:"mode"`
	URL         string  `yaml:"url" toml:"url" json:"url"`
	Player      string  `yaml:"player" toml:"player" json:"player"`
	TickRateHz  int     `yaml:"tick_rate_hz" toml:"tick_rate_hz" json:"tick_rate_hz"`
	MaxTicks    uint64  `yaml:"max_ticks" toml:"max_ticks" json:"max_ticks"`
	WorldConfig string  `yaml:"world_config" toml:"world_config" json:"world_config"`
	CPULimitMs  float64 `yaml:"cpu_limit_ms" toml:"cpu_limit_ms" json:"cpu_limit_ms"`
}

func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:           "info",
			Format:          "console",
			NotifyLevel:     "warn",
			Notify:          []string{"env"},
			NotifyPerMinute: 6,
		},
		Production: ProductionConfig{
			Body:            []string{"move", "move", "carry", "work"},
			MaxNameAttempts: 32,
		},
		Maintenance: MaintenanceConfig{
			CleanupEveryCycles: 32,
			CleanupOffset:      3,
		},
		Persistence: PersistenceConfig{
			CheckpointEveryCycles: 10,
		},
		Tracing: TracingConfig{Exporter: "noop"},
		Host: HostConfig{
			Mode:       "local",
			URL:        "ws://localhost:8080/v1/ws",
			Player:     "colony",
			TickRateHz: 5,
			CPULimitMs: 20,
		},
	}
}

// Load reads a YAML (default) or TOML (.toml) config file on top of the
// defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	name := filepath.Base(path)
	isTOML := strings.EqualFold(filepath.Ext(path), ".toml")

	doc, err := decodeDocument(b, isTOML)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	if err := validateDocument(doc); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	if isTOML {
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", name, err)
		}
	} else if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

// decodeDocument returns the file as plain JSON values for schema validation.
func decodeDocument(b []byte, isTOML bool) (any, error) {
	var raw map[string]any
	if isTOML {
		if err := toml.Unmarshal(b, &raw); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	j, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(j, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

//go:embed config.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func validateDocument(doc any) error {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("mem://config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("mem://config.schema.json")
	})
	if schemaErr != nil {
		return schemaErr
	}
	return schema.Validate(doc)
}

func (c *Config) Normalize() {
	def := Defaults()

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	c.Log.NotifyLevel = strings.ToLower(strings.TrimSpace(c.Log.NotifyLevel))
	if c.Log.NotifyLevel == "" {
		c.Log.NotifyLevel = def.Log.NotifyLevel
	}
	for i, n := range c.Log.Notify {
		c.Log.Notify[i] = strings.ToLower(strings.TrimSpace(n))
	}
	if c.Log.NotifyPerMinute <= 0 {
		c.Log.NotifyPerMinute = def.Log.NotifyPerMinute
	}

	if len(c.Production.Body) == 0 {
		c.Production.Body = def.Production.Body
	}
	if c.Production.MaxNameAttempts <= 0 {
		c.Production.MaxNameAttempts = def.Production.MaxNameAttempts
	}

	c.Tracing.Exporter = strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))

	c.Host.Mode = strings.ToLower(strings.TrimSpace(c.Host.Mode))
	if c.Host.Mode == "" {
		c.Host.Mode = def.Host.Mode
	}
	c.Host.URL = strings.TrimSpace(c.Host.URL)
	if c.Host.Player = strings.TrimSpace(c.Host.Player); c.Host.Player == "" {
		c.Host.Player = def.Host.Player
	}
	if c.Host.TickRateHz < 0 {
		c.Host.TickRateHz = 0
	}
}

func (c Config) Validate() error {
	if _, err := env.ParseBody(c.Production.Body); err != nil {
		return fmt.Errorf("production.body: %w", err)
	}
	if c.Maintenance.CleanupEveryCycles > 0 && c.Maintenance.CleanupOffset >= c.Maintenance.CleanupEveryCycles {
		return fmt.Errorf("maintenance.cleanup_offset must be below cleanup_every_cycles")
	}
	switch c.Host.Mode {
	case "local":
	case "remote":
		if c.Host.URL == "" {
			return fmt.Errorf("host.url required in remote mode")
		}
	default:
		return fmt.Errorf("host.mode: unknown mode %q", c.Host.Mode)
	}
	for _, n := range c.Log.Notify {
		switch n {
		case "env":
		case "slack":
			if strings.TrimSpace(c.Log.SlackWebhook) == "" {
				return fmt.Errorf("log.notify: slack requires log.slack_webhook")
			}
		case "discord":
			if c.Log.DiscordWebhookID == "" || c.Log.DiscordWebhookToken == "" {
				return fmt.Errorf("log.notify: discord requires log.discord_webhook_id and log.discord_webhook_token")
			}
		default:
			return fmt.Errorf("log.notify: unknown backend %q", n)
		}
	}
	return nil
}
