package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Malformed(t *testing.T) {
	reader := strings.NewReader(`{ "providers": [`)
	_, err := LoadConfig(reader)
	if err == nil {
		t.Error("Expected error loading malformed config, got nil")
	}
}

func TestLoadConfig_TableDriven(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		jsonContent string
		expectError bool
		validate    func(*testing.T, Config)
	}{
		{
			name: "Both Providers",
			jsonContent: `{
				"providers": [
					{"kind": "metamask", "rpc_url": " http://localhost:8545 "},
					{"kind": "kardiachain", "rpc_url": "https://rpc.kardiachain.io", "account": "0xabc"}
				],
				"default_provider": "metamask",
				"connect_timeout_seconds": 30
			}`,
			validate: func(t *testing.T, c Config) {
				require.Len(t, c.Providers, 2)
				assert.Equal(t, KindKardiaChain, c.Providers[0].Kind)
				assert.Equal(t, KindMetaMask, c.Providers[1].Kind)
				assert.Equal(t, "http://localhost:8545", c.Providers[1].RPCURL)
				assert.Equal(t, "0xabc", c.Providers[0].Account)
				assert.Equal(t, "metamask", c.DefaultProvider)
				assert.Equal(t, 30*time.Second, c.Global.ConnectTimeout())
			},
		},
		{
			name:        "Defaults",
			jsonContent: `{}`,
			validate: func(t *testing.T, c Config) {
				require.Len(t, c.Providers, 2)
				for _, p := range c.Providers {
					assert.False(t, p.Installed())
					assert.Equal(t, DefaultInstallURLs[p.Kind], p.InstallURL)
				}
				assert.Equal(t, "KAI", c.Global.UnitSymbol)
				assert.Equal(t, 18, c.Global.UnitDecimals)
				assert.Equal(t, 15*time.Second, c.Global.QueryTimeout())
				assert.Equal(t, "MetaMask", c.Providers[1].Name)
			},
		},
		{
			name:        "Unknown Kind",
			jsonContent: `{"providers": [{"kind": "phantom", "rpc_url": "http://x"}]}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := LoadConfig(strings.NewReader(tt.jsonContent))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{
		"KAIDASH_METAMASK_RPC_URL":        "http://127.0.0.1:8545",
		"KAIDASH_KARDIACHAIN_ACCOUNT":     "0xdef",
		"KAIDASH_LOG_LEVEL":               "debug",
		"KAIDASH_CONNECT_TIMEOUT_SECONDS": "5",
		"KAIDASH_QUERY_TIMEOUT_SECONDS":   "not-a-number",
	}
	ApplyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	mm, ok := cfg.Provider(KindMetaMask)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:8545", mm.RPCURL)
	kc, _ := cfg.Provider(KindKardiaChain)
	assert.Equal(t, "0xdef", kc.Account)
	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, 5, cfg.Global.ConnectTimeoutSeconds)
	assert.Equal(t, 15, cfg.Global.QueryTimeoutSeconds)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KAIDASH_TEST_ENV_FILE=loaded\n"), 0600))
	t.Setenv("KAIDASH_TEST_ENV_FILE", "")
	require.NoError(t, os.Unsetenv("KAIDASH_TEST_ENV_FILE"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("KAIDASH_TEST_ENV_FILE"))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	problems := Validate(cfg)
	assert.Contains(t, problems, "No provider has an rpc_url configured.")

	cfg.Providers[0].RPCURL = "http://localhost:8545"
	cfg.DefaultProvider = "phantom"
	problems = Validate(cfg)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "phantom")
}

func TestSaveConfig(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.Providers[1].RPCURL = "http://localhost:8545"
	cfg.Providers[1].ChainID = 24
	cfg.DefaultProvider = KindMetaMask
	cfg.Global.PrivacyTimeoutSeconds = 120

	require.NoError(t, SaveConfig(cfg, tmpPath))

	loaded, err := LoadConfigFromFile(tmpPath)
	require.NoError(t, err)
	mm, _ := loaded.Provider(KindMetaMask)
	assert.Equal(t, "http://localhost:8545", mm.RPCURL)
	assert.Equal(t, int64(24), mm.ChainID)
	assert.Equal(t, KindMetaMask, loaded.DefaultProvider)
	assert.Equal(t, 120, loaded.Global.PrivacyTimeoutSeconds)
}

func TestSaveConfig_BackupAndRestore(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "config.json")

	first := DefaultConfig()
	first.Providers[0].RPCURL = "http://first"
	require.NoError(t, SaveConfig(first, tmpPath))

	second := DefaultConfig()
	second.Providers[0].RPCURL = "http://second"
	require.NoError(t, SaveConfig(second, tmpPath))

	matches, err := filepath.Glob(tmpPath + ".*.bak")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	require.NoError(t, RestoreLastBackup(tmpPath))
	restored, err := LoadConfigFromFile(tmpPath)
	require.NoError(t, err)
	kc, _ := restored.Provider(KindKardiaChain)
	assert.Equal(t, "http://first", kc.RPCURL)
}

func TestRestoreLastBackup_None(t *testing.T) {
	err := RestoreLastBackup(filepath.Join(t.TempDir(), "config.json"))
	assert.Error(t, err)
}

func TestSaveConfig_UnknownKind(t *testing.T) {
	cfg := Config{Providers: []ProviderConfig{{Kind: "phantom"}}}
	err := SaveConfig(cfg, filepath.Join(t.TempDir(), "config.json"))
	assert.Error(t, err)
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Len(t, cfg.Providers, 2)
	assert.Equal(t, 120, cfg.Global.ConnectTimeoutSeconds)
}
