package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaidash/pkg/config"
	"kaidash/pkg/logging"
	"kaidash/pkg/provider"
	"kaidash/pkg/server"
	"kaidash/pkg/session"
	"kaidash/pkg/tui"
	"kaidash/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) runDashboard() error {
	s, logger, err := a.newSession(true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer s.Disconnect()

	if problems := config.Validate(a.cfg); len(problems) > 0 {
		for _, p := range problems {
			logger.Warn("configuration problem", zap.String("problem", p), zap.String("path", a.configPath))
		}
	}

	if a.withAPI {
		srv := server.NewServer(s, logger)
		go func() {
			if err := srv.Start(a.cfg.Global.ServerPort); err != nil {
				logger.Error("API server stopped", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	return tui.Start(s, a.cfg.DefaultProvider, Version)
}

func serveCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API without the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Global.ServerPort
			}
			s, logger, err := a.newSession(false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer s.Disconnect()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(s, logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(port) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down API server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "port for the API server (default from config)")
	return cmd
}

func checkCmd(a *app) *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test the configuration against every provider endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := a.cliLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if _, ok := runCheck(cmd.Context(), a.cfg, a.configPath, opts, cmd.OutOrStdout(), logger); !ok {
				return errors.New("configuration is invalid")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "perform a trial run with no changes made")
	return cmd
}

func restoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the most recent configuration backup",
		Args:  cobra.NoArgs,
		// A broken config must not prevent restoring it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(a.configFlag)
			a.configPath = path
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RestoreLastBackup(a.configPath); err != nil {
				return fmt.Errorf("restoring %s: %w", a.configPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration restored from last backup: %s\n", a.configPath)
			return nil
		},
	}
}

func formatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "format <raw>",
		Short: "Format a raw base-unit balance for display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := a.cfg.Global
			out, err := utils.FormatUnits(args[0], int32(g.UnitDecimals), " "+g.UnitSymbol)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func connectCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "connect <kind>",
		Short: "Connect once, print the account snapshot and disconnect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := provider.ParseKind(args[0])
			if err != nil {
				return err
			}
			s, logger, err := a.newSession(false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer s.Disconnect()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := s.Connect(ctx, kind); err != nil {
				return fmt.Errorf("unable to connect (%s): %w", session.Reason(err), err)
			}
			snap := s.Snapshot()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			fmt.Fprintf(out, "Provider:     %s\n", kind.DisplayName())
			fmt.Fprintf(out, "Address:      %s\n", snap.Address)
			fmt.Fprintf(out, "Balance:      %s\n", snap.Balance)
			fmt.Fprintf(out, "Node:         %s\n", snap.NodeInfo)
			fmt.Fprintf(out, "Transactions: %s\n", snap.TransactionCount)
			if snap.Error != "" {
				return errors.New(snap.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the snapshot as JSON")
	return cmd
}

func (a *app) cliLogger() (*zap.Logger, error) {
	return logging.New(a.cfg.Global.LogLevel, a.cfg.Global.LogFile, false)
}
