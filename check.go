package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"kaidash/pkg/config"
	"kaidash/pkg/models"
	"kaidash/pkg/provider"

	"go.uber.org/zap"
)

type checkOptions struct {
	JSON   bool
	DryRun bool
}

// runCheck tests every configured provider and reports what it finds.
// Chain ids observed for providers that have none configured are written
// back to the config file unless DryRun is set. The returned bool is false
// when the configuration is structurally invalid.
func runCheck(ctx context.Context, cfg config.Config, path string, opts checkOptions, out io.Writer, logger *zap.Logger) (models.TestReport, bool) {
	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		DryRun:         opts.DryRun,
	}
	say := func(format string, args ...interface{}) {
		if !opts.JSON {
			fmt.Fprintf(out, format, args...)
		}
	}

	say("Testing configuration at: %s\n", path)

	if problems := config.Validate(cfg); len(problems) > 0 {
		report.ValidStructure = false
		report.StructureErrors = problems
		for _, p := range problems {
			say("Error: %s\n", p)
		}
		return report, false
	}

	observed := make(map[string]int64)
	for _, pc := range cfg.Providers {
		res := models.ProviderResult{
			Kind:          pc.Kind,
			RPCURL:        pc.RPCURL,
			Installed:     pc.Installed(),
			ConfigChainID: pc.ChainID,
		}
		say("Testing provider: %s\n", pc.Name)

		if !pc.Installed() {
			res.Status = "missing"
			say("  not installed (no rpc_url configured)\n")
			report.Providers = append(report.Providers, res)
			continue
		}

		say("  RPC: %s ... ", pc.RPCURL)
		id, version, err := checkProvider(ctx, pc, cfg.Global, logger)
		if err != nil {
			res.Status = "error"
			res.Error = err.Error()
			say("Failed: %v\n", err)
			report.Providers = append(report.Providers, res)
			continue
		}

		res.Status = "ok"
		res.ObservedChainID = id
		res.ClientVersion = version
		say("OK (ChainID: %d, %s)", id, version)

		switch {
		case pc.ChainID == 0:
			observed[pc.Kind] = id
			res.ChainIDUpdated = true
			say(" - UPDATED CONFIG")
			if opts.DryRun {
				say(" (DRY RUN)")
			}
		case pc.ChainID != id:
			res.Error = fmt.Sprintf("Mismatch! Expected %d", pc.ChainID)
			say(" - MISMATCH! Expected %d", pc.ChainID)
		default:
			say(" - Verified")
		}
		say("\n")
		report.Providers = append(report.Providers, res)
	}

	if len(observed) > 0 {
		report.ConfigUpdated = true
		say("\nUpdating configuration with fetched Chain IDs...\n")
		if opts.DryRun {
			say("Dry run enabled: Configuration NOT saved.\n")
		} else if err := saveObservedChainIDs(path, observed); err != nil {
			report.SaveError = err.Error()
			say("Failed to save config: %v\n", err)
		} else {
			say("Configuration saved successfully.\n")
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	return report, true
}

func checkProvider(ctx context.Context, pc config.ProviderConfig, g config.GlobalConfig, logger *zap.Logger) (int64, string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.QueryTimeout())
	defer cancel()

	kind, err := provider.ParseKind(pc.Kind)
	if err != nil {
		return 0, "", err
	}
	p, err := provider.Dial(ctx, kind, pc.RPCURL, pc.Account, logger)
	if err != nil {
		return 0, "", err
	}
	defer p.Close()

	id, err := p.ChainID(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("failed to get ChainID: %w", err)
	}
	version, err := p.NodeInfo(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("failed to get client version: %w", err)
	}
	return id.Int64(), version, nil
}

// saveObservedChainIDs rewrites the file contents only, so values that came
// from the environment are not persisted.
func saveObservedChainIDs(path string, observed map[string]int64) error {
	cfg := config.DefaultConfig()
	f, err := os.Open(path)
	switch {
	case err == nil:
		cfg, err = config.LoadConfig(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	case !os.IsNotExist(err):
		return err
	}

	for i := range cfg.Providers {
		if id, ok := observed[cfg.Providers[i].Kind]; ok && cfg.Providers[i].ChainID == 0 {
			cfg.Providers[i].ChainID = id
		}
	}
	return config.SaveConfig(cfg, path)
}
