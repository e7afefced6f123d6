package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kaidash/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lowerAddr    = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	checksumAddr = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// newMockNode serves JSON-RPC. Values in results are returned as the result;
// *rpcError values are returned as the error object.
func newMockNode(t *testing.T, results map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		switch v := results[req.Method].(type) {
		case nil:
			resp["error"] = rpcError{Code: codeMethodNotFound, Message: "the method " + req.Method + " does not exist"}
		case *rpcError:
			resp["error"] = v
		default:
			resp["result"] = v
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func dialMock(t *testing.T, url, fallback string) *RPCProvider {
	t.Helper()
	p, err := Dial(context.Background(), MetaMask, url, fallback, nil)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestRPCProvider_Queries(t *testing.T) {
	server := newMockNode(t, map[string]interface{}{
		"eth_requestAccounts":     []string{lowerAddr},
		"eth_accounts":            []string{lowerAddr},
		"eth_getBalance":          "0x112209c76de80000", // 1.23456 KAI
		"web3_clientVersion":      "Geth/v1.16.7-stable/linux-amd64/go1.24.11",
		"eth_getTransactionCount": "0x2a",
		"eth_chainId":             "0x18",
	})
	p := dialMock(t, server.URL, "")
	ctx := context.Background()

	require.NoError(t, p.Enable(ctx))

	accounts, err := p.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{lowerAddr}, accounts)

	bal, err := p.Balance(ctx, checksumAddr)
	require.NoError(t, err)
	assert.Equal(t, "1234560000000000000", bal.String())

	info, err := p.NodeInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Geth/v1.16.7-stable/linux-amd64/go1.24.11", info)

	n, err := p.TransactionCount(ctx, checksumAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	id, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(24), id.Int64())
	assert.Equal(t, MetaMask, p.Kind())
}

func TestRPCProvider_EnableRejected(t *testing.T) {
	server := newMockNode(t, map[string]interface{}{
		"eth_requestAccounts": &rpcError{Code: codeUserRejected, Message: "User rejected the request."},
	})
	p := dialMock(t, server.URL, "")

	err := p.Enable(context.Background())
	assert.True(t, errors.Is(err, ErrProviderRejected), "got %v", err)
}

func TestRPCProvider_EnableUnsupportedGrantsAccess(t *testing.T) {
	server := newMockNode(t, map[string]interface{}{})
	p := dialMock(t, server.URL, "")

	assert.NoError(t, p.Enable(context.Background()))
}

func TestRPCProvider_EnableOtherError(t *testing.T) {
	server := newMockNode(t, map[string]interface{}{
		"eth_requestAccounts": &rpcError{Code: -32000, Message: "internal"},
	})
	p := dialMock(t, server.URL, "")

	err := p.Enable(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrProviderRejected))
}

func TestRPCProvider_AccountsFallback(t *testing.T) {
	server := newMockNode(t, map[string]interface{}{
		"eth_accounts": []string{},
	})

	p := dialMock(t, server.URL, checksumAddr)
	accounts, err := p.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{checksumAddr}, accounts)

	bare := dialMock(t, server.URL, "")
	_, err = bare.Accounts(context.Background())
	assert.True(t, errors.Is(err, ErrNoAccounts), "got %v", err)
}

func TestRPCProvider_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	p := dialMock(t, server.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Enable(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestChecksumAddress(t *testing.T) {
	got, err := ChecksumAddress(lowerAddr)
	require.NoError(t, err)
	assert.Equal(t, checksumAddr, got)

	got, err = ChecksumAddress(checksumAddr)
	require.NoError(t, err)
	assert.Equal(t, checksumAddr, got)

	_, err = ChecksumAddress("0x1234")
	assert.True(t, errors.Is(err, ErrInvalidAddress))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" MetaMask ")
	require.NoError(t, err)
	assert.Equal(t, MetaMask, k)

	k, err = ParseKind("kardiachain")
	require.NoError(t, err)
	assert.Equal(t, KardiaChain, k)
	assert.Equal(t, "KardiaChain", k.DisplayName())

	_, err = ParseKind("phantom")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestRegistry(t *testing.T) {
	server := newMockNode(t, map[string]interface{}{"web3_clientVersion": "mock"})
	cfg := config.DefaultConfig()
	cfg.Providers[0].RPCURL = server.URL

	r := NewRegistry(cfg.Providers, nil)
	assert.True(t, r.Installed(KardiaChain))
	assert.False(t, r.Installed(MetaMask))
	assert.Equal(t, "https://metamask.io/", r.InstallURL(MetaMask))
	assert.Equal(t, []Kind{KardiaChain}, r.Detect())

	_, err := r.Open(context.Background(), MetaMask)
	assert.True(t, errors.Is(err, ErrProviderMissing), "got %v", err)

	p, err := r.Open(context.Background(), KardiaChain)
	require.NoError(t, err)
	defer p.Close()
	info, err := p.NodeInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock", info)

	list := r.Providers()
	require.Len(t, list, 2)
	assert.Equal(t, "kardiachain", list[0].Kind)
	assert.True(t, list[0].Installed)
	assert.Equal(t, "KardiaChain Wallet", list[0].Name)
	assert.False(t, list[1].Installed)
}
