// Package wallet tracks the connection to the active wallet provider.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kaidash/pkg/models"
	"kaidash/pkg/provider"

	"go.uber.org/zap"
)

// ErrConnectSuperseded is returned when a disconnect or another connect
// completes while a connect is in flight.
var ErrConnectSuperseded = errors.New("connect superseded")

// State is an immutable snapshot of the connection. Address is non-empty iff
// Provider is set.
type State struct {
	Provider   provider.Provider
	Kind       provider.Kind
	Address    string
	AccountID  string
	Generation uint64
}

func (s State) Connected() bool {
	return s.Provider != nil && s.Address != ""
}

func (s State) Info() models.ConnectionInfo {
	return models.ConnectionInfo{
		Connected: s.Connected(),
		Provider:  string(s.Kind),
		Address:   s.Address,
		AccountID: s.AccountID,
	}
}

// ConnectionManager mediates between the UI and one of the supported
// providers. State is replaced wholesale on every transition.
type ConnectionManager struct {
	opener provider.Opener
	logger *zap.Logger

	mu    sync.Mutex
	state State
	epoch uint64
}

func NewConnectionManager(opener provider.Opener, logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{opener: opener, logger: logger}
}

func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current reports whether generation still identifies the live state.
func (m *ConnectionManager) Current(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Generation == generation
}

// Connect opens kind, requests permission and adopts the first account in
// checksum form. On any failure the previous state is kept. ctx bounds the
// whole handshake, including the wait for user approval.
func (m *ConnectionManager) Connect(ctx context.Context, kind provider.Kind) error {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	log := m.logger.With(zap.String("provider", string(kind)))

	p, err := m.opener.Open(ctx, kind)
	if err != nil {
		if errors.Is(err, provider.ErrProviderMissing) {
			log.Warn(fmt.Sprintf("%s extension is not installed", kind.DisplayName()))
		} else {
			log.Error("failed to open provider", zap.Error(err))
		}
		return err
	}

	next, err := handshake(ctx, kind, p)
	if err != nil {
		p.Close()
		log.Warn("connect failed", zap.Error(err))
		return err
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		p.Close()
		log.Info("discarding superseded connect")
		return ErrConnectSuperseded
	}
	prev := m.state
	next.Generation = prev.Generation + 1
	m.state = next
	m.epoch++
	m.mu.Unlock()

	if prev.Provider != nil {
		prev.Provider.Close()
	}
	log.Info(fmt.Sprintf("%s extension is installed", kind.DisplayName()),
		zap.String("address", next.Address))
	return nil
}

func handshake(ctx context.Context, kind provider.Kind, p provider.Provider) (State, error) {
	if err := p.Enable(ctx); err != nil {
		return State{}, err
	}
	accounts, err := p.Accounts(ctx)
	if err != nil {
		return State{}, err
	}
	if len(accounts) == 0 {
		return State{}, fmt.Errorf("%s: %w", kind.DisplayName(), provider.ErrNoAccounts)
	}
	address, err := p.ToChecksumAddress(accounts[0])
	if err != nil {
		return State{}, err
	}
	return State{
		Provider:  p,
		Kind:      kind,
		Address:   address,
		AccountID: accounts[0],
	}, nil
}

// Disconnect clears the connection and cancels any connect in flight. It
// reports whether a connected state was cleared; calling it again is a no-op.
func (m *ConnectionManager) Disconnect() bool {
	m.mu.Lock()
	m.epoch++
	prev := m.state
	if prev.Provider == nil {
		m.mu.Unlock()
		return false
	}
	m.state = State{Generation: prev.Generation + 1}
	m.mu.Unlock()

	prev.Provider.Close()
	m.logger.Info("disconnected", zap.String("provider", string(prev.Kind)))
	return true
}
