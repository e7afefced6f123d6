package models

import "time"

// Snapshot holds the dashboard panels for the connected account.
type Snapshot struct {
	Provider         string    `json:"provider,omitempty"`
	Address          string    `json:"address,omitempty"`
	RawBalance       string    `json:"raw_balance,omitempty"`
	Balance          string    `json:"balance,omitempty"`
	NodeInfo         string    `json:"node_info,omitempty"`
	TransactionCount string    `json:"transaction_count,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Empty reports whether no query has populated the snapshot yet.
func (s Snapshot) Empty() bool {
	return s.RawBalance == "" && s.NodeInfo == "" && s.TransactionCount == ""
}

// BalancePoint holds a timestamped balance in display units.
type BalancePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ConnectionInfo is the public view of the connection state.
type ConnectionInfo struct {
	Connected bool   `json:"connected"`
	Provider  string `json:"provider,omitempty"`
	Address   string `json:"address,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

// ProviderInfo describes a configured provider.
type ProviderInfo struct {
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Installed  bool   `json:"installed"`
	InstallURL string `json:"install_url"`
}

// ConnectError describes a failed connect attempt.
type ConnectError struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"` // "missing", "rejected", "no_accounts", "timeout", "cancelled", "superseded" or "error"
	Message  string `json:"message"`
}

// QueryError describes a failed balance, node info or transaction count query.
type QueryError struct {
	Query   string `json:"query"`
	Message string `json:"message"`
}

// ProviderResult holds check results for one provider endpoint.
type ProviderResult struct {
	Kind            string `json:"kind"`
	RPCURL          string `json:"rpc_url,omitempty"`
	Installed       bool   `json:"installed"`
	Status          string `json:"status"` // "ok", "error" or "missing"
	ConfigChainID   int64  `json:"config_chain_id,omitempty"`
	ObservedChainID int64  `json:"observed_chain_id,omitempty"`
	ChainIDUpdated  bool   `json:"chain_id_updated"`
	ClientVersion   string `json:"client_version,omitempty"`
	Error           string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration check.
type TestReport struct {
	ConfigPath      string           `json:"config_path"`
	ValidStructure  bool             `json:"valid_structure"`
	StructureErrors []string         `json:"structure_errors,omitempty"`
	Providers       []ProviderResult `json:"providers,omitempty"`
	ConfigUpdated   bool             `json:"config_updated"`
	SaveError       string           `json:"save_error,omitempty"`
	DryRun          bool             `json:"dry_run"`
}
