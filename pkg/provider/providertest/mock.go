// Package providertest provides testify mocks for the provider interfaces.
package providertest

import (
	"context"
	"math/big"

	"kaidash/pkg/provider"

	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
	ProviderKind provider.Kind
}

func (m *MockProvider) Kind() provider.Kind { return m.ProviderKind }

func (m *MockProvider) Enable(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) Accounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]string)
	return accounts, args.Error(1)
}

// ToChecksumAddress uses the real EIP-55 normalisation.
func (m *MockProvider) ToChecksumAddress(address string) (string, error) {
	return provider.ChecksumAddress(address)
}

func (m *MockProvider) Balance(ctx context.Context, address string) (*big.Int, error) {
	args := m.Called(ctx, address)
	bal, _ := args.Get(0).(*big.Int)
	return bal, args.Error(1)
}

func (m *MockProvider) NodeInfo(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) TransactionCount(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)
	n, _ := args.Get(0).(uint64)
	return n, args.Error(1)
}

func (m *MockProvider) Close() {
	m.Called()
}

type MockOpener struct {
	mock.Mock
}

func (m *MockOpener) Open(ctx context.Context, kind provider.Kind) (provider.Provider, error) {
	args := m.Called(ctx, kind)
	p, _ := args.Get(0).(provider.Provider)
	return p, args.Error(1)
}
