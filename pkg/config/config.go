package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const ConfigFileName = ".kaidash.json"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KAIDASH_"

const (
	KindKardiaChain = "kardiachain"
	KindMetaMask    = "metamask"
)

// DefaultInstallURLs point at the wallet installation pages.
var DefaultInstallURLs = map[string]string{
	KindMetaMask:    "https://metamask.io/",
	KindKardiaChain: "https://chrome.google.com/webstore/detail/kardiachain-wallet/pdadjkfkgcafgbceimcpbkalnfnepbnk?hl=en",
}

var defaultNames = map[string]string{
	KindKardiaChain: "KardiaChain Wallet",
	KindMetaMask:    "MetaMask",
}

// ProviderConfig describes one wallet provider endpoint. A provider without
// an RPC URL is treated as not installed.
type ProviderConfig struct {
	Kind       string `json:"kind"`
	Name       string `json:"name,omitempty"`
	RPCURL     string `json:"rpc_url,omitempty"`
	Account    string `json:"account,omitempty"`
	InstallURL string `json:"install_url,omitempty"`
	ChainID    int64  `json:"chain_id,omitempty"`
}

// Installed reports whether the provider has an endpoint to talk to.
func (p ProviderConfig) Installed() bool {
	return strings.TrimSpace(p.RPCURL) != ""
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	UnitSymbol            string `json:"unit_symbol"`
	UnitDecimals          int    `json:"unit_decimals"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds"`
	QueryTimeoutSeconds   int    `json:"query_timeout_seconds"`
	PrivacyTimeoutSeconds int    `json:"privacy_timeout_seconds"`
	LogLevel              string `json:"log_level"`
	LogFile               string `json:"log_file,omitempty"`
	ServerPort            int    `json:"server_port"`
}

// ConnectTimeout bounds a connect handshake, including user approval.
func (g GlobalConfig) ConnectTimeout() time.Duration {
	return time.Duration(g.ConnectTimeoutSeconds) * time.Second
}

// QueryTimeout bounds a single provider query.
func (g GlobalConfig) QueryTimeout() time.Duration {
	return time.Duration(g.QueryTimeoutSeconds) * time.Second
}

// Config is the full on-disk configuration.
type Config struct {
	Providers       []ProviderConfig `json:"providers"`
	DefaultProvider string           `json:"default_provider,omitempty"`
	Global          GlobalConfig     `json:"-"`
}

// Provider returns the configuration for kind.
func (c Config) Provider(kind string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Kind == kind {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		UnitSymbol:            "KAI",
		UnitDecimals:          18,
		ConnectTimeoutSeconds: 120,
		QueryTimeoutSeconds:   15,
		PrivacyTimeoutSeconds: 0,
		LogLevel:              "info",
		ServerPort:            8080,
	}
}

// DefaultConfig lists both providers, neither installed.
func DefaultConfig() Config {
	return Config{
		Providers: normalizeProviders(nil),
		Global:    DefaultGlobalConfig(),
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		ApplyEnv(&cfg, os.LookupEnv)
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	cfg, err := LoadConfig(f)
	if err != nil {
		return Config{}, err
	}
	ApplyEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		Providers             []ProviderConfig `json:"providers"`
		DefaultProvider       string           `json:"default_provider"`
		UnitSymbol            *string          `json:"unit_symbol"`
		UnitDecimals          *int             `json:"unit_decimals"`
		ConnectTimeoutSeconds *int             `json:"connect_timeout_seconds"`
		QueryTimeoutSeconds   *int             `json:"query_timeout_seconds"`
		PrivacyTimeoutSeconds *int             `json:"privacy_timeout_seconds"`
		LogLevel              *string          `json:"log_level"`
		LogFile               *string          `json:"log_file"`
		ServerPort            *int             `json:"server_port"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	for _, p := range raw.Providers {
		if p.Kind != KindKardiaChain && p.Kind != KindMetaMask {
			return Config{}, fmt.Errorf("unknown provider kind %q", p.Kind)
		}
	}

	g := DefaultGlobalConfig()
	if raw.UnitSymbol != nil {
		g.UnitSymbol = *raw.UnitSymbol
	}
	if raw.UnitDecimals != nil {
		g.UnitDecimals = *raw.UnitDecimals
	}
	if raw.ConnectTimeoutSeconds != nil {
		g.ConnectTimeoutSeconds = *raw.ConnectTimeoutSeconds
	}
	if raw.QueryTimeoutSeconds != nil {
		g.QueryTimeoutSeconds = *raw.QueryTimeoutSeconds
	}
	if raw.PrivacyTimeoutSeconds != nil {
		g.PrivacyTimeoutSeconds = *raw.PrivacyTimeoutSeconds
	}
	if raw.LogLevel != nil {
		g.LogLevel = *raw.LogLevel
	}
	if raw.LogFile != nil {
		g.LogFile = *raw.LogFile
	}
	if raw.ServerPort != nil {
		g.ServerPort = *raw.ServerPort
	}

	return Config{
		Providers:       normalizeProviders(raw.Providers),
		DefaultProvider: raw.DefaultProvider,
		Global:          g,
	}, nil
}

// normalizeProviders returns exactly one entry per known kind, in a stable
// order, filling in default names and install links.
func normalizeProviders(in []ProviderConfig) []ProviderConfig {
	out := make([]ProviderConfig, 0, 2)
	for _, kind := range []string{KindKardiaChain, KindMetaMask} {
		p := ProviderConfig{Kind: kind}
		for _, c := range in {
			if c.Kind == kind {
				p = c
				break
			}
		}
		p.RPCURL = strings.TrimSpace(p.RPCURL)
		p.Account = strings.TrimSpace(p.Account)
		if p.Name == "" {
			p.Name = defaultNames[kind]
		}
		if p.InstallURL == "" {
			p.InstallURL = DefaultInstallURLs[kind]
		}
		out = append(out, p)
	}
	return out
}

// ApplyEnv overrides configuration from KAIDASH_* variables, e.g.
// KAIDASH_METAMASK_RPC_URL, KAIDASH_KARDIACHAIN_ACCOUNT, KAIDASH_LOG_LEVEL.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	getInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		prefix := strings.ToUpper(p.Kind) + "_"
		if v, ok := get(prefix + "RPC_URL"); ok {
			p.RPCURL = v
		}
		if v, ok := get(prefix + "ACCOUNT"); ok {
			p.Account = v
		}
	}
	if v, ok := get("DEFAULT_PROVIDER"); ok {
		cfg.DefaultProvider = strings.ToLower(v)
	}
	if v, ok := get("UNIT_SYMBOL"); ok {
		cfg.Global.UnitSymbol = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Global.LogLevel = v
	}
	if v, ok := get("LOG_FILE"); ok {
		cfg.Global.LogFile = v
	}
	getInt("UNIT_DECIMALS", &cfg.Global.UnitDecimals)
	getInt("CONNECT_TIMEOUT_SECONDS", &cfg.Global.ConnectTimeoutSeconds)
	getInt("QUERY_TIMEOUT_SECONDS", &cfg.Global.QueryTimeoutSeconds)
	getInt("SERVER_PORT", &cfg.Global.ServerPort)
}

// Validate reports structural problems without touching the network.
func Validate(cfg Config) []string {
	var problems []string
	installed := 0
	for _, p := range cfg.Providers {
		if p.Installed() {
			installed++
		}
	}
	if installed == 0 {
		problems = append(problems, "No provider has an rpc_url configured.")
	}
	if cfg.DefaultProvider != "" {
		if _, ok := cfg.Provider(cfg.DefaultProvider); !ok {
			problems = append(problems, fmt.Sprintf("Default provider %q is unknown.", cfg.DefaultProvider))
		}
	}
	if cfg.Global.UnitDecimals < 0 {
		problems = append(problems, "unit_decimals must not be negative.")
	}
	if cfg.Global.ConnectTimeoutSeconds <= 0 {
		problems = append(problems, "connect_timeout_seconds must be positive.")
	}
	if cfg.Global.QueryTimeoutSeconds <= 0 {
		problems = append(problems, "query_timeout_seconds must be positive.")
	}
	return problems
}

func SaveConfig(cfg Config, path string) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("validation failed: configuration must list providers")
	}
	for i, p := range cfg.Providers {
		if p.Kind != KindKardiaChain && p.Kind != KindMetaMask {
			return fmt.Errorf("validation failed: provider at index %d has unknown kind %q", i, p.Kind)
		}
	}

	g := cfg.Global
	out := struct {
		Providers             []ProviderConfig `json:"providers"`
		DefaultProvider       string           `json:"default_provider,omitempty"`
		UnitSymbol            string           `json:"unit_symbol"`
		UnitDecimals          int              `json:"unit_decimals"`
		ConnectTimeoutSeconds int              `json:"connect_timeout_seconds"`
		QueryTimeoutSeconds   int              `json:"query_timeout_seconds"`
		PrivacyTimeoutSeconds int              `json:"privacy_timeout_seconds"`
		LogLevel              string           `json:"log_level"`
		LogFile               string           `json:"log_file,omitempty"`
		ServerPort            int              `json:"server_port"`
	}{
		Providers:             cfg.Providers,
		DefaultProvider:       cfg.DefaultProvider,
		UnitSymbol:            g.UnitSymbol,
		UnitDecimals:          g.UnitDecimals,
		ConnectTimeoutSeconds: g.ConnectTimeoutSeconds,
		QueryTimeoutSeconds:   g.QueryTimeoutSeconds,
		PrivacyTimeoutSeconds: g.PrivacyTimeoutSeconds,
		LogLevel:              g.LogLevel,
		LogFile:               g.LogFile,
		ServerPort:            g.ServerPort,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	// Keep a timestamped copy of whatever is on disk now.
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}
