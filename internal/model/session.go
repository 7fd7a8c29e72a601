package model

import "strings"

// SessionState 会话状态机: Disconnected -> Connecting -> Connected
type SessionState string

const (
	SessionDisconnected SessionState = "disconnected"
	SessionConnecting   SessionState = "connecting"
	SessionConnected    SessionState = "connected"
)

// SessionInfo is the published, serialisable view of the Session.
type SessionInfo struct {
	State          SessionState `json:"state"`
	Account        string       `json:"account,omitempty"` // lowercase hex
	PendingAccount string       `json:"pending_account,omitempty"`
	NetworkID      int64        `json:"network_id,omitempty"`
	NetworkName    string       `json:"network_name,omitempty"`
	Supported      bool         `json:"supported"`
	IsOwner        bool         `json:"is_owner"`
	Provider       string       `json:"provider,omitempty"`
	Generation     uint64       `json:"generation"`
}

// Snapshot is everything the UI needs to render: the session, the last
// outcome per kind, the balances and the generation counter.
type Snapshot struct {
	Session      SessionInfo          `json:"session"`
	Transactions map[TxKind]TxOutcome `json:"transactions"`
	Projection   *Projection          `json:"projection,omitempty"`
	Generation   uint64               `json:"generation"`
}

// NormalizeAddress lowercases a hex address for comparisons and display.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
