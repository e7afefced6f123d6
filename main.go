package main

import (
	"os"

	"kaidash/pkg/config"
	"kaidash/pkg/logging"
	"kaidash/pkg/provider"
	"kaidash/pkg/session"
	"kaidash/pkg/wallet"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version should be set during build
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every command needs once flags are parsed.
type app struct {
	configFlag string
	envFile    string
	withAPI    bool

	configPath string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "kaidash",
		Short:         "Terminal dashboard for a KardiaChain wallet account",
		Version:       Version,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDashboard()
		},
	}
	root.SetVersionTemplate("kaidash version {{.Version}}\n")

	root.PersistentFlags().StringVar(&a.configFlag, "config", "", "path to configuration file (default ~/"+config.ConfigFileName+")")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with KAIDASH_* overrides")
	root.Flags().BoolVar(&a.withAPI, "api", false, "also serve the HTTP API while the dashboard runs")

	root.AddCommand(serveCmd(a), checkCmd(a), restoreCmd(a), formatCmd(a), connectCmd(a))
	return root
}

func (a *app) load() error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}

	path, err := config.GetConfigPath(a.configFlag)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return err
	}
	a.configPath = path
	a.cfg = cfg
	return nil
}

// newSession wires the provider registry, connection manager and session.
// quiet keeps log output off stderr, which the dashboard owns.
func (a *app) newSession(quiet bool) (*session.Session, *zap.Logger, error) {
	logger, err := logging.New(a.cfg.Global.LogLevel, a.cfg.Global.LogFile, quiet)
	if err != nil {
		return nil, nil, err
	}
	registry := provider.NewRegistry(a.cfg.Providers, logger)
	if a.cfg.DefaultProvider == "" {
		if kinds := registry.Detect(); len(kinds) == 1 {
			a.cfg.DefaultProvider = string(kinds[0])
		}
	}
	manager := wallet.NewConnectionManager(registry, logger)
	s := session.New(manager, registry.Providers(), a.cfg.Global, logger)
	return s, logger, nil
}
