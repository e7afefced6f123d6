package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Error codes defined by EIP-1193 and JSON-RPC 2.0.
const (
	codeUserRejected   = 4001
	codeUnsupported    = 4200
	codeMethodNotFound = -32601
)

// RPCProvider talks to a wallet endpoint over JSON-RPC.
type RPCProvider struct {
	kind            Kind
	rpc             *rpc.Client
	eth             *ethclient.Client
	fallbackAccount string
	logger          *zap.Logger
}

// Dial opens a provider handle for rawURL. fallbackAccount is used when the
// endpoint exposes no accounts of its own.
func Dial(ctx context.Context, kind Kind, rawURL, fallbackAccount string, logger *zap.Logger) (*RPCProvider, error) {
	c, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", kind.DisplayName(), err)
	}
	return NewRPCProvider(kind, c, fallbackAccount, logger), nil
}

func NewRPCProvider(kind Kind, c *rpc.Client, fallbackAccount string, logger *zap.Logger) *RPCProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCProvider{
		kind:            kind,
		rpc:             c,
		eth:             ethclient.NewClient(c),
		fallbackAccount: fallbackAccount,
		logger:          logger.With(zap.String("provider", string(kind))),
	}
}

func (p *RPCProvider) Kind() Kind { return p.kind }

// Enable sends eth_requestAccounts. Endpoints that do not implement the
// method grant access implicitly.
func (p *RPCProvider) Enable(ctx context.Context) error {
	var accounts []string
	err := p.rpc.CallContext(ctx, &accounts, "eth_requestAccounts")
	if err == nil {
		return nil
	}
	switch errorCode(err) {
	case codeUserRejected:
		return fmt.Errorf("%s: %w", p.kind.DisplayName(), ErrProviderRejected)
	case codeMethodNotFound, codeUnsupported:
		p.logger.Debug("eth_requestAccounts not supported, assuming access", zap.Error(err))
		return nil
	}
	return fmt.Errorf("permission request failed: %w", err)
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		code := errorCode(err)
		if code != codeMethodNotFound && code != codeUnsupported {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}
		accounts = nil
	}
	if len(accounts) == 0 && p.fallbackAccount != "" {
		p.logger.Debug("no accounts exposed, using configured account")
		accounts = []string{p.fallbackAccount}
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%s: %w", p.kind.DisplayName(), ErrNoAccounts)
	}
	return accounts, nil
}

// ToChecksumAddress returns the EIP-55 mixed-case form of address.
func (p *RPCProvider) ToChecksumAddress(address string) (string, error) {
	return ChecksumAddress(address)
}

func (p *RPCProvider) Balance(ctx context.Context, address string) (*big.Int, error) {
	bal, err := p.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// NodeInfo returns the client version string of the node behind the wallet.
func (p *RPCProvider) NodeInfo(ctx context.Context) (string, error) {
	var version string
	if err := p.rpc.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
		return "", fmt.Errorf("failed to get node info: %w", err)
	}
	return version, nil
}

func (p *RPCProvider) TransactionCount(ctx context.Context, address string) (uint64, error) {
	n, err := p.eth.NonceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction count: %w", err)
	}
	return n, nil
}

// ChainID is used by the config check, not by the dashboard itself.
func (p *RPCProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.eth.ChainID(ctx)
}

func (p *RPCProvider) Close() {
	p.eth.Close()
}

// ChecksumAddress validates a hex address and returns its EIP-55 form.
func ChecksumAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return common.HexToAddress(address).Hex(), nil
}

func errorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}
