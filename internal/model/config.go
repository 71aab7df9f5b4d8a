package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AIConfig holds settings for the AI assistant integration.
type AIConfig struct {
	Model             string `mapstructure:"model" yaml:"model"`
	MaxTokens         int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxToolIterations int    `mapstructure:"max_tool_iterations" yaml:"max_tool_iterations"`
}

// MCPConfig points the assistant at the remote tool server.
type MCPConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// AppSlug optionally pins the tool server to a single app.
	AppSlug string `mapstructure:"app_slug" yaml:"app_slug"`
}

// ConnectConfig holds settings for the account-linking flow and the
// connect platform REST API.
type ConnectConfig struct {
	// BaseURL is the hosted connect page opened in the browser. When set,
	// link extraction only accepts URLs with this prefix.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// APIBaseURL is the root of the platform REST API.
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`

	ProjectID   string `mapstructure:"project_id" yaml:"project_id"`
	Environment string `mapstructure:"environment" yaml:"environment"`

	// CallbackAddr is the loopback address the redirect listener binds to.
	CallbackAddr string `mapstructure:"callback_addr" yaml:"callback_addr"`

	ResumeDelay   time.Duration `mapstructure:"resume_delay" yaml:"resume_delay"`
	ResumeMessage string        `mapstructure:"resume_message" yaml:"resume_message"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout" yaml:"lookup_timeout"`
}

// SessionConfig holds deployment-level identity settings.
type SessionConfig struct {
	GuestMode bool   `mapstructure:"guest_mode" yaml:"guest_mode"`
	GuestSeed string `mapstructure:"guest_seed" yaml:"guest_seed"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme    string `mapstructure:"theme" yaml:"theme"`
	WordWrap int    `mapstructure:"word_wrap" yaml:"word_wrap"`
}

// LogConfig controls the file logger. The terminal belongs to the UI, so
// logs never go to stdout.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// StoreConfig locates the account-detail cache. The default is an
// in-memory database, so nothing survives a restart.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	MCP     MCPConfig     `mapstructure:"mcp" yaml:"mcp"`
	Connect ConnectConfig `mapstructure:"connect" yaml:"connect"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// envPrefix scopes environment overrides, e.g. TOOLCHAT_SESSION_GUEST_MODE.
const envPrefix = "TOOLCHAT"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/toolchat/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "toolchat", "config.yaml")
}

// DefaultLogPath returns ~/.local/state/toolchat/toolchat.log.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "toolchat.log")
	}
	return filepath.Join(home, ".local", "state", "toolchat", "toolchat.log")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		AI: AIConfig{
			Model:             "claude-sonnet-4-5-20250929",
			MaxTokens:         4096,
			MaxToolIterations: 5,
		},
		MCP: MCPConfig{
			Endpoint: "https://remote.mcp.pipedream.net",
		},
		Connect: ConnectConfig{
			BaseURL:       "https://pipedream.com/_static/connect.html",
			APIBaseURL:    "https://api.pipedream.com/v1",
			Environment:   "development",
			CallbackAddr:  "127.0.0.1:0",
			ResumeDelay:   time.Second,
			ResumeMessage: "Done",
			LookupTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			GuestSeed: "toolchat-guest",
		},
		Display: DisplayConfig{
			Theme:    "default",
			WordWrap: 80,
		},
		Log: LogConfig{
			Path:  DefaultLogPath(),
			Level: "info",
		},
		Store: StoreConfig{
			Path: ":memory:",
		},
	}
}

// setDefaults mirrors defaultAppConfig on the viper instance so missing keys
// resolve to sensible values and env overrides are picked up for every key.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()

	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	v.SetDefault("ai.max_tool_iterations", d.AI.MaxToolIterations)
	v.SetDefault("mcp.endpoint", d.MCP.Endpoint)
	v.SetDefault("mcp.app_slug", d.MCP.AppSlug)
	v.SetDefault("connect.base_url", d.Connect.BaseURL)
	v.SetDefault("connect.api_base_url", d.Connect.APIBaseURL)
	v.SetDefault("connect.project_id", d.Connect.ProjectID)
	v.SetDefault("connect.environment", d.Connect.Environment)
	v.SetDefault("connect.callback_addr", d.Connect.CallbackAddr)
	v.SetDefault("connect.resume_delay", d.Connect.ResumeDelay)
	v.SetDefault("connect.resume_message", d.Connect.ResumeMessage)
	v.SetDefault("connect.lookup_timeout", d.Connect.LookupTimeout)
	v.SetDefault("session.guest_mode", d.Session.GuestMode)
	v.SetDefault("session.guest_seed", d.Session.GuestSeed)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.word_wrap", d.Display.WordWrap)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("store.path", d.Store.Path)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus environment overrides) are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.AI.MaxToolIterations <= 0 {
		cfg.AI.MaxToolIterations = 5
	}
	if cfg.Connect.ResumeDelay <= 0 {
		cfg.Connect.ResumeDelay = time.Second
	}
	if strings.TrimSpace(cfg.Connect.ResumeMessage) == "" {
		cfg.Connect.ResumeMessage = "Done"
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("ai", cfg.AI)
	v.Set("mcp", cfg.MCP)
	v.Set("connect", cfg.Connect)
	v.Set("session", cfg.Session)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
