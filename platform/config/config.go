// Package config loads Cortex configuration from built-in defaults, then a
// YAML file, then environment variables (env wins), per spec.md §6/§9.
// Grounded on pkg/config/config.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AgentConfig identifies this process within the cluster tree.
type AgentConfig struct {
	ID                string `yaml:"id" env:"AGENT_ID"`
	Name              string `yaml:"name" env:"AGENT_NAME"`
	Mode              string `yaml:"mode" env:"AGENT_MODE"` // standalone | cluster
	UpstreamMonitorURL string `yaml:"upstream_monitor_url" env:"AGENT_UPSTREAM_MONITOR_URL"`
	APIKey            string `yaml:"api_key" env:"AGENT_API_KEY" json:"-"`
}

// ProbeConfig controls the Probe's scheduler and executor.
type ProbeConfig struct {
	Schedule              string  `yaml:"schedule" env:"PROBE_SCHEDULE"`
	TimeoutSeconds        int     `yaml:"timeout_seconds" env:"PROBE_TIMEOUT_SECONDS"`
	Workspace             string  `yaml:"workspace" env:"PROBE_WORKSPACE"`
	CheckDisk             bool    `yaml:"check_disk" env:"PROBE_CHECK_DISK"`
	CheckMemory           bool    `yaml:"check_memory" env:"PROBE_CHECK_MEMORY"`
	CheckCPU              bool    `yaml:"check_cpu" env:"PROBE_CHECK_CPU"`
	ThresholdCPUPercent   float64 `yaml:"threshold_cpu_percent" env:"PROBE_THRESHOLD_CPU_PERCENT"`
	ThresholdMemoryPercent float64 `yaml:"threshold_memory_percent" env:"PROBE_THRESHOLD_MEMORY_PERCENT"`
	ThresholdDiskPercent  float64 `yaml:"threshold_disk_percent" env:"PROBE_THRESHOLD_DISK_PERCENT"`
	ReportRetentionDays   int     `yaml:"report_retention_days" env:"PROBE_REPORT_RETENTION_DAYS"`
	QueuePath             string  `yaml:"queue_path" env:"PROBE_QUEUE_PATH"`
	MonitorURL            string  `yaml:"monitor_url" env:"PROBE_MONITOR_URL"`
	HistorySize           int     `yaml:"history_size" env:"PROBE_HISTORY_SIZE"`
	Port                  int     `yaml:"port" env:"PROBE_PORT"`
}

// MonitorConfig controls the Monitor's HTTP server and primary store.
type MonitorConfig struct {
	Host               string `yaml:"host" env:"MONITOR_HOST"`
	Port               int    `yaml:"port" env:"MONITOR_PORT"`
	DatabaseURL        string `yaml:"database_url" env:"MONITOR_DATABASE_URL"`
	RegistrationToken  string `yaml:"registration_token" env:"MONITOR_REGISTRATION_TOKEN" json:"-"`
	MigrateOnStart     bool   `yaml:"migrate_on_start" env:"MONITOR_MIGRATE_ON_START"`
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds" env:"MONITOR_HEARTBEAT_TIMEOUT_SECONDS"`
	HeartbeatCheckIntervalSeconds int `yaml:"heartbeat_check_interval_seconds" env:"MONITOR_HEARTBEAT_CHECK_INTERVAL_SECONDS"`
	AlertDedupWindowMinutes int `yaml:"alert_dedup_window_minutes" env:"MONITOR_ALERT_DEDUP_WINDOW_MINUTES"`
	TopologyCacheTTLSeconds int `yaml:"topology_cache_ttl_seconds" env:"MONITOR_TOPOLOGY_CACHE_TTL_SECONDS"`
	RedisURL           string `yaml:"redis_url" env:"MONITOR_REDIS_URL"`
}

// LLMConfig controls the decision engine's LLM calls.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key" env:"LLM_API_KEY" json:"-"`
	Model       string  `yaml:"model" env:"LLM_MODEL"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS"`
	TimeoutSeconds int  `yaml:"timeout" env:"LLM_TIMEOUT_SECONDS"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE"`
}

// NotifierConfig controls the external notification channel.
type NotifierConfig struct {
	Enabled  bool   `yaml:"enabled" env:"NOTIFIER_ENABLED"`
	BotToken string `yaml:"bot_token" env:"NOTIFIER_BOT_TOKEN" json:"-"`
	ChatID   string `yaml:"chat_id" env:"NOTIFIER_CHAT_ID"`
}

// IntentEngineConfig controls the audit log store.
type IntentEngineConfig struct {
	Enabled     bool   `yaml:"enabled" env:"INTENT_ENABLED"`
	DatabaseURL string `yaml:"database_url" env:"INTENT_DATABASE_URL"`
}

// LoggingConfig controls the ambient logger (spec.md §6).
type LoggingConfig struct {
	Level   string            `yaml:"level" env:"LOG_LEVEL"`
	Format  string            `yaml:"format" env:"LOG_FORMAT"`
	Console bool              `yaml:"console" env:"LOG_CONSOLE"`
	File    string            `yaml:"file" env:"LOG_FILE"`
	Modules map[string]string `yaml:"modules"`
}

// AuthConfig controls bearer-token auth on administrative endpoints.
type AuthConfig struct {
	SecretKey               string `yaml:"secret_key" env:"AUTH_SECRET_KEY" json:"-"`
	Algorithm               string `yaml:"algorithm" env:"AUTH_ALGORITHM"`
	AccessTokenExpireMinutes int   `yaml:"access_token_expire_minutes" env:"AUTH_ACCESS_TOKEN_EXPIRE_MINUTES"`
}

// Config is the top-level configuration structure for both Probe and
// Monitor processes; each process reads only the sections it needs.
type Config struct {
	Agent    AgentConfig        `yaml:"agent"`
	Probe    ProbeConfig        `yaml:"probe"`
	Monitor  MonitorConfig      `yaml:"monitor"`
	LLM      LLMConfig          `yaml:"llm"`
	Notifier NotifierConfig     `yaml:"notifier"`
	Intent   IntentEngineConfig `yaml:"intent"`
	Logging  LoggingConfig      `yaml:"logging"`
	Auth     AuthConfig         `yaml:"auth"`
}

// Default returns a configuration populated with sensible built-in defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{Mode: "standalone"},
		Probe: ProbeConfig{
			Schedule:               "*/5 * * * *",
			TimeoutSeconds:         60,
			CheckDisk:              true,
			CheckMemory:            true,
			CheckCPU:               true,
			ThresholdCPUPercent:    90,
			ThresholdMemoryPercent: 90,
			ThresholdDiskPercent:   90,
			ReportRetentionDays:    30,
			QueuePath:              "data/probe-queue.jsonl",
			HistorySize:            100,
			Port:                   8091,
		},
		Monitor: MonitorConfig{
			Host:                          "0.0.0.0",
			Port:                          8090,
			MigrateOnStart:                true,
			HeartbeatTimeoutSeconds:       300,
			HeartbeatCheckIntervalSeconds: 60,
			AlertDedupWindowMinutes:       30,
			TopologyCacheTTLSeconds:       60,
		},
		LLM: LLMConfig{
			Model:          "default",
			MaxTokens:      512,
			TimeoutSeconds: 20,
			Temperature:    0.2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "standard",
		},
		Auth: AuthConfig{
			Algorithm:                "HS256",
			AccessTokenExpireMinutes: 60,
		},
	}
}

// Load loads configuration from file (if present) and environment
// variables, with environment variables taking precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Redacted returns a shallow copy of cfg with every secret field cleared,
// safe to marshal onto the /config endpoint (spec.md §9: "Secrets ... must
// never appear in /config's response").
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Monitor.RegistrationToken = ""
	cp.LLM.APIKey = ""
	cp.Notifier.BotToken = ""
	cp.Auth.SecretKey = ""
	cp.Agent.APIKey = ""
	return &cp
}
