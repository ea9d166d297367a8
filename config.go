package bitchat

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	defaults "github.com/Paranoid-AF/bitchat/default"
)

// Config represents the user's bitchat configuration.
type Config struct {
	Version    int              `json:"version"`
	Generation GenerationConfig `json:"generation"`
	Chat       ChatConfig       `json:"chat"`
	Server     ServerConfig     `json:"server"`
}

// GenerationConfig holds settings for the external generation executable.
// Relative paths are resolved against the program's own directory.
type GenerationConfig struct {
	ModelPath      string `json:"model_path"`
	CLIPath        string `json:"cli_path"`
	MaxTokens      int    `json:"max_tokens,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	// WorkDir is where temporary prompt files are written. Empty means the
	// process working directory.
	WorkDir string `json:"work_dir,omitempty"`
}

// ChatConfig holds settings for the terminal chat.
type ChatConfig struct {
	AssistantName string `json:"assistant_name,omitempty"`
	// Greeting is printed once, after the banner, as the assistant's first line.
	Greeting      string `json:"greeting,omitempty"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// StaticDir is served for GET requests. Empty means the server's own directory.
	StaticDir       string `json:"static_dir,omitempty"`
	MaxConcurrent   int    `json:"max_concurrent,omitempty"`
	// CacheTTLSeconds, when positive, makes a repeated prompt return the
	// reply stored for it instead of sampling a new one, until the entry
	// expires. Zero runs generation for every request.
	CacheTTLSeconds int    `json:"cache_ttl_seconds,omitempty"`
}

// ConfigDir returns the config directory path.
// Resolution order: $BITCHAT_CONFIG_DIR > $XDG_CONFIG_HOME/bitchat > ~/.config/bitchat
func ConfigDir() string {
	if dir := os.Getenv("BITCHAT_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "bitchat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "bitchat-config")
	}
	return filepath.Join(home, ".config", "bitchat")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DefaultConfig returns the default configuration from the embedded default_config.json.
func DefaultConfig() *Config {
	var cfg Config
	if err := json.Unmarshal(defaults.DefaultConfigJSON, &cfg); err != nil {
		panic("bitchat: invalid embedded default_config.json: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if cfg.Generation.ModelPath == "" {
		cfg.Generation.ModelPath = defaults.Generation.ModelPath
	}
	if cfg.Generation.CLIPath == "" {
		cfg.Generation.CLIPath = defaults.Generation.CLIPath
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = defaults.Generation.MaxTokens
	}
	if cfg.Chat.AssistantName == "" {
		cfg.Chat.AssistantName = defaults.Chat.AssistantName
	}
	if cfg.Chat.Greeting == "" {
		cfg.Chat.Greeting = defaults.Chat.Greeting
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.MaxConcurrent == 0 {
		cfg.Server.MaxConcurrent = defaults.Server.MaxConcurrent
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
// baseDir is the directory relative paths are resolved against.
func ValidateConfig(cfg *Config, baseDir string) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if path := ResolveModelPath(cfg, baseDir); !fileExists(path) {
		warnings = append(warnings, "model file not found: "+path)
	}
	if path := ResolveCLIPath(cfg, baseDir); !fileExists(path) {
		warnings = append(warnings, "generation executable not found: "+path)
	}
	if cfg.Generation.MaxTokens < 0 {
		warnings = append(warnings, "max_tokens is negative; the executable default will apply")
	}
	if cfg.Server.MaxConcurrent < 1 {
		warnings = append(warnings, "max_concurrent is below 1; requests will be served one at a time")
	}
	return warnings
}

// ExecutableDir returns the directory holding the running binary, or "."
// when it cannot be determined.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// ResolveModelPath returns the absolute model file path.
// Priority: $BITCHAT_MODEL_PATH env > config value.
func ResolveModelPath(cfg *Config, baseDir string) string {
	path := os.Getenv("BITCHAT_MODEL_PATH")
	if path == "" && cfg != nil {
		path = cfg.Generation.ModelPath
	}
	return resolveRelative(baseDir, path)
}

// ResolveCLIPath returns the absolute path of the generation executable.
// Priority: $BITCHAT_CLI_PATH env > config value.
func ResolveCLIPath(cfg *Config, baseDir string) string {
	path := os.Getenv("BITCHAT_CLI_PATH")
	if path == "" && cfg != nil {
		path = cfg.Generation.CLIPath
	}
	return resolveRelative(baseDir, path)
}

// ResolveStaticDir returns the directory the server serves static files from.
func ResolveStaticDir(cfg *Config, baseDir string) string {
	if cfg == nil || cfg.Server.StaticDir == "" {
		return baseDir
	}
	return resolveRelative(baseDir, cfg.Server.StaticDir)
}

// ResolveListenAddr returns the host:port the server listens on.
// Priority: $BITCHAT_HOST / $BITCHAT_PORT env > config value.
func ResolveListenAddr(cfg *Config) string {
	var host string
	var port int
	if cfg != nil {
		host = cfg.Server.Host
		port = cfg.Server.Port
	}
	if h := os.Getenv("BITCHAT_HOST"); h != "" {
		host = h
	}
	if p := os.Getenv("BITCHAT_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			port = n
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// GenerationTimeout returns the per-invocation timeout, zero meaning none.
func GenerationTimeout(cfg *Config) time.Duration {
	if cfg == nil || cfg.Generation.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.Generation.TimeoutSeconds) * time.Second
}

func resolveRelative(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(filepath.Join(baseDir, path))
	if err != nil {
		return filepath.Join(baseDir, path)
	}
	return abs
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
