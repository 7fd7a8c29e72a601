package event

import (
	"time"

	"dapp-core/internal/model"
)

// Topics 同时用作 Redis Stream 名和 Kafka Topic，只能用 [a-zA-Z0-9._-]
const (
	TopicSession     = "dapp.events.session"
	TopicTransaction = "dapp.events.transaction"
	TopicProjection  = "dapp.events.projection"
)

// AllTopics lists every topic the client publishes.
var AllTopics = []string{TopicSession, TopicTransaction, TopicProjection}

// SessionChangedEvent 会话变化
// Topic: dapp.events.session
type SessionChangedEvent struct {
	Session model.SessionInfo `json:"session"`
	At      time.Time         `json:"at"`
}

// TransactionEvent 某一类交易的最新状态消息
// Topic: dapp.events.transaction
type TransactionEvent struct {
	Outcome    model.TxOutcome `json:"outcome"`
	Generation uint64          `json:"generation"`
}

// ProjectionEvent 余额刷新；Projection 为空表示已清空
// Topic: dapp.events.projection
type ProjectionEvent struct {
	Projection *model.Projection `json:"projection,omitempty"`
	At         time.Time         `json:"at"`
}
