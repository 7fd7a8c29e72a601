package model

import (
	"fmt"
	"time"
)

// TxKind 交易种类
type TxKind string

const (
	TxKindBuy      TxKind = "buy"
	TxKindWithdraw TxKind = "withdraw"
)

// AllTxKinds lists every kind the orchestrator accepts.
var AllTxKinds = []TxKind{TxKindBuy, TxKindWithdraw}

// ParseTxKind validates a kind coming from the outer surface.
func ParseTxKind(s string) (TxKind, error) {
	switch TxKind(s) {
	case TxKindBuy, TxKindWithdraw:
		return TxKind(s), nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// TxState 交易请求状态机。请求以 Idle 创建，受理后立即进入 Preparing
//
//	Idle -> Preparing -> EstimatingGas -> AwaitingConfirmation -> Submitted -> Confirmed
//	any non-terminal state -> Failed
type TxState string

const (
	TxStateIdle                 TxState = "idle"
	TxStatePreparing            TxState = "preparing"
	TxStateEstimatingGas        TxState = "estimating_gas"
	TxStateAwaitingConfirmation TxState = "awaiting_confirmation"
	TxStateSubmitted            TxState = "submitted"
	TxStateConfirmed            TxState = "confirmed"
	TxStateFailed               TxState = "failed"
)

var txTransitions = map[TxState][]TxState{
	TxStateIdle:                 {TxStatePreparing},
	TxStatePreparing:            {TxStateEstimatingGas},
	TxStateEstimatingGas:        {TxStateAwaitingConfirmation},
	TxStateAwaitingConfirmation: {TxStateSubmitted},
	TxStateSubmitted:            {TxStateConfirmed},
}

// IsTerminal reports whether no further transition is possible.
func (s TxState) IsTerminal() bool {
	return s == TxStateConfirmed || s == TxStateFailed
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to TxState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == TxStateFailed {
		return true
	}
	for _, next := range txTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransactionRequest 一个进行中的 buy / withdraw 操作，到达终态后丢弃
type TransactionRequest struct {
	ID          string    `json:"id"`
	Kind        TxKind    `json:"kind"`
	Amount      string    `json:"amount"`     // 用户输入的 ether 十进制字符串
	AmountWei   string    `json:"amount_wei"` // 精确换算后的 wei
	State       TxState   `json:"state"`
	GasEstimate uint64    `json:"gas_estimate,omitempty"`
	GasLimit    uint64    `json:"gas_limit,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	Generation  uint64    `json:"generation"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MessageType 对应 UI 的消息样式
type MessageType string

const (
	MessageInfo    MessageType = "info"
	MessageSuccess MessageType = "success"
	MessageError   MessageType = "error"
)

// TxOutcome is the last terminal result of a kind: the single message shown
// to the user for that operation.
type TxOutcome struct {
	Kind      TxKind      `json:"kind"`
	State     TxState     `json:"state"`
	Message   string      `json:"message"`
	Type      MessageType `json:"type"`
	Code      int         `json:"code"`
	TxHash    string      `json:"tx_hash,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	At        time.Time   `json:"at"`
}

// ShortHash keeps the 0x prefix with the first 8 and last 8 hex digits:
// 0x12345678...9abcdef0. Short inputs are returned unchanged.
func ShortHash(hash string) string {
	if len(hash) <= 18 {
		return hash
	}
	return hash[:10] + "..." + hash[len(hash)-8:]
}

// TxStatus is what the outer surface shows for one kind.
type TxStatus struct {
	Kind    TxKind              `json:"kind"`
	Active  *TransactionRequest `json:"active,omitempty"`
	Outcome *TxOutcome          `json:"outcome,omitempty"`
	Input   string              `json:"input"`
}
