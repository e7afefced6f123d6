package provider

import (
	"context"
	"fmt"

	"kaidash/pkg/config"
	"kaidash/pkg/models"

	"go.uber.org/zap"
)

// Registry knows which providers are installed and how to reach them.
type Registry struct {
	providers map[Kind]config.ProviderConfig
	logger    *zap.Logger
}

func NewRegistry(providers []config.ProviderConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		providers: make(map[Kind]config.ProviderConfig),
		logger:    logger,
	}
	for _, p := range providers {
		r.providers[Kind(p.Kind)] = p
	}
	return r
}

// Open dials the provider for kind. A provider without an endpoint yields
// ErrProviderMissing.
func (r *Registry) Open(ctx context.Context, kind Kind) (Provider, error) {
	pc, ok := r.providers[kind]
	if !ok || !pc.Installed() {
		return nil, fmt.Errorf("%s: %w", kind.DisplayName(), ErrProviderMissing)
	}
	p, err := Dial(ctx, kind, pc.RPCURL, pc.Account, r.logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Installed reports whether kind has an endpoint configured.
func (r *Registry) Installed(kind Kind) bool {
	pc, ok := r.providers[kind]
	return ok && pc.Installed()
}

// Detect lists the installed kinds in preference order.
func (r *Registry) Detect() []Kind {
	var out []Kind
	for _, k := range Kinds {
		if r.Installed(k) {
			out = append(out, k)
		}
	}
	return out
}

func (r *Registry) InstallURL(kind Kind) string {
	if pc, ok := r.providers[kind]; ok && pc.InstallURL != "" {
		return pc.InstallURL
	}
	return config.DefaultInstallURLs[string(kind)]
}

// Providers lists every supported provider, installed or not.
func (r *Registry) Providers() []models.ProviderInfo {
	out := make([]models.ProviderInfo, 0, len(Kinds))
	for _, k := range Kinds {
		name := k.DisplayName()
		if pc, ok := r.providers[k]; ok && pc.Name != "" {
			name = pc.Name
		}
		out = append(out, models.ProviderInfo{
			Kind:       string(k),
			Name:       name,
			Installed:  r.Installed(k),
			InstallURL: r.InstallURL(k),
		})
	}
	return out
}
