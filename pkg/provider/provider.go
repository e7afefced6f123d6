// Package provider adapts wallet provider endpoints to the small set of
// calls the dashboard makes.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"kaidash/pkg/config"
)

// Kind identifies one of the two supported wallet providers.
type Kind string

const (
	KardiaChain Kind = config.KindKardiaChain
	MetaMask    Kind = config.KindMetaMask
)

// Kinds lists every supported provider in display order.
var Kinds = []Kind{KardiaChain, MetaMask}

var (
	ErrProviderMissing  = errors.New("provider is not installed")
	ErrProviderRejected = errors.New("permission request rejected")
	ErrNoAccounts       = errors.New("provider returned no accounts")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrUnknownKind      = errors.New("unknown provider")
)

// ParseKind accepts the config name of a provider, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KardiaChain:
		return KardiaChain, nil
	case MetaMask:
		return MetaMask, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// DisplayName is the human readable provider name.
func (k Kind) DisplayName() string {
	switch k {
	case KardiaChain:
		return "KardiaChain"
	case MetaMask:
		return "MetaMask"
	}
	return string(k)
}

// Provider is the capability set a connected wallet grants.
type Provider interface {
	Kind() Kind
	// Enable requests account access. It may block until the user answers.
	Enable(ctx context.Context) error
	Accounts(ctx context.Context) ([]string, error)
	ToChecksumAddress(address string) (string, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	NodeInfo(ctx context.Context) (string, error)
	TransactionCount(ctx context.Context, address string) (uint64, error)
	Close()
}

// Opener locates an installed provider and opens a handle to it.
type Opener interface {
	Open(ctx context.Context, kind Kind) (Provider, error)
}
