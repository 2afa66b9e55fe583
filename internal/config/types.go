package config

import "time"

// Config is the root configuration structure for codepolice.
// Serialised to ~/.codepolice/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	AI       AIConfig       `mapstructure:"ai"       json:"ai"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	AutoFix  AutoFixConfig  `mapstructure:"autofix"  json:"autofix"`
	Cache    CacheConfig    `mapstructure:"cache"    json:"cache"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  json:"gateway"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
	Rules    RulesConfig    `mapstructure:"rules"    json:"rules"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// AIConfig controls the model used for issue analysis and fix generation.
type AIConfig struct {
	// Provider is "anthropic", "openai" or "none".
	Provider string `mapstructure:"provider" json:"provider"`
	// Fallback lists providers tried in order when the primary fails.
	Fallback     []string `mapstructure:"fallback"          json:"fallback"`
	OpenAIKey    string   `mapstructure:"openai_api_key"    json:"openai_api_key"`
	AnthropicKey string   `mapstructure:"anthropic_api_key" json:"anthropic_api_key"`
	Model        string   `mapstructure:"model"             json:"model"`
	// BaseURL overrides the OpenAI-compatible endpoint (proxies, Azure OpenAI).
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"  json:"timeout"`
}

// GitConfig holds credentials for each supported git hosting platform.
type GitConfig struct {
	GitHub []GitHubConfig `mapstructure:"github" json:"github"`
	GitLab []GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
}

// GitHubConfig holds credentials for a single GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host"  json:"host"`
	// WebhookSecret validates X-Hub-Signature-256 on incoming push events.
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"`
}

// GitLabConfig holds credentials for a single GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
}

// AutoFixConfig controls the fix-generation and pull request pipeline.
type AutoFixConfig struct {
	// SeverityFilter is used when a trigger does not carry its own filter.
	SeverityFilter []string `mapstructure:"severity_filter" json:"severity_filter"`
	// OracleAttempts bounds model calls per file before fallback annotation.
	OracleAttempts int           `mapstructure:"oracle_attempts" json:"oracle_attempts"`
	OracleTimeout  time.Duration `mapstructure:"oracle_timeout"  json:"oracle_timeout"`
	// Concurrency is the batch window width for per-file work.
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`
	// DedupWindow suppresses repeat triggers for the same project and commit.
	DedupWindow  time.Duration `mapstructure:"dedup_window"  json:"dedup_window"`
	BranchPrefix string        `mapstructure:"branch_prefix" json:"branch_prefix"`
	// APITimeout bounds each source-control API attempt.
	APITimeout time.Duration `mapstructure:"api_timeout" json:"api_timeout"`
}

// CacheConfig controls the analysis result cache.
type CacheConfig struct {
	MaxEntries    int           `mapstructure:"max_entries"    json:"max_entries"`
	TTL           time.Duration `mapstructure:"ttl"            json:"ttl"`
	EvictFraction float64       `mapstructure:"evict_fraction" json:"evict_fraction"`
	// Shared enables the database-backed second tier.
	Shared        bool   `mapstructure:"shared"         json:"shared"`
	ModelVersion  string `mapstructure:"model_version"  json:"model_version"`
	PurgeSchedule string `mapstructure:"purge_schedule" json:"purge_schedule"`
}

// GatewayConfig controls the HTTP gateway.
type GatewayConfig struct {
	Host   string `mapstructure:"host"    json:"host"`
	Port   int    `mapstructure:"port"    json:"port"`
	LogDir string `mapstructure:"log_dir" json:"log_dir"`
}

// NotifyConfig controls outbound notifications.
type NotifyConfig struct {
	// Events limits which events are sent; empty means all.
	Events  []string      `mapstructure:"events"  json:"events"`
	Slack   SlackConfig   `mapstructure:"slack"   json:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook" json:"webhook"`
}

// SlackConfig posts to a Slack incoming webhook.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// WebhookConfig posts JSON events to an arbitrary endpoint.
type WebhookConfig struct {
	URL string `mapstructure:"url" json:"url"`
	// Secret signs the body with HMAC-SHA256 when set.
	Secret string `mapstructure:"secret" json:"secret"`
}

// RulesConfig points at a YAML file of custom analysis rules.
type RulesConfig struct {
	Path string `mapstructure:"path" json:"path"`
}
