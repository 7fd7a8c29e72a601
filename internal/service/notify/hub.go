// Package notify assembles the published snapshot and fans it out to
// in-process subscribers and, optionally, a message queue.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dapp-core/internal/event"
	"dapp-core/internal/model"
	"dapp-core/internal/service/mq"
	"dapp-core/pkg/logger"

	"go.uber.org/zap"
)

// mq 发送队列长度，满了直接丢弃 (事件只用于实时展示)
const outboxSize = 256

type outboxMsg struct {
	topic   string
	key     string
	payload []byte
}

// Hub keeps the latest session, outcomes and projection and publishes a
// fresh Snapshot whenever one of them changes. Publish methods never block.
type Hub struct {
	log *zap.Logger

	mu         sync.Mutex
	session    model.SessionInfo
	outcomes   map[model.TxKind]model.TxOutcome
	projection *model.Projection
	subs       map[int]chan model.Snapshot
	nextID     int

	producer mq.Producer
	outbox   chan outboxMsg
	wg       sync.WaitGroup
	once     sync.Once
}

// NewHub creates a hub. producer may be nil.
func NewHub(producer mq.Producer) *Hub {
	h := &Hub{
		log:      logger.Named("notify"),
		session:  model.SessionInfo{State: model.SessionDisconnected},
		outcomes: make(map[model.TxKind]model.TxOutcome),
		subs:     make(map[int]chan model.Snapshot),
		producer: producer,
	}
	if producer != nil {
		h.outbox = make(chan outboxMsg, outboxSize)
		h.wg.Add(1)
		go h.drain(h.outbox)
	}
	return h
}

func (h *Hub) PublishSession(info model.SessionInfo) {
	h.mu.Lock()
	h.session = info
	if info.State != model.SessionConnected {
		h.projection = nil
	}
	h.broadcastLocked()
	h.mu.Unlock()

	h.enqueue(event.TopicSession, info.Account, event.SessionChangedEvent{Session: info, At: time.Now()})
}

func (h *Hub) PublishTransactions(outcomes map[model.TxKind]model.TxOutcome) {
	h.mu.Lock()
	prev := h.outcomes
	h.outcomes = outcomes
	gen := h.session.Generation
	account := h.session.Account
	h.broadcastLocked()
	h.mu.Unlock()

	for kind, o := range outcomes {
		if p, ok := prev[kind]; ok && p.RequestID == o.RequestID && p.State == o.State {
			continue
		}
		h.enqueue(event.TopicTransaction, account, event.TransactionEvent{Outcome: o, Generation: gen})
	}
}

func (h *Hub) PublishProjection(p *model.Projection) {
	h.mu.Lock()
	h.projection = p
	account := h.session.Account
	h.broadcastLocked()
	h.mu.Unlock()

	h.enqueue(event.TopicProjection, account, event.ProjectionEvent{Projection: p, At: time.Now()})
}

// Snapshot returns the current snapshot.
func (h *Hub) Snapshot() model.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() model.Snapshot {
	outcomes := make(map[model.TxKind]model.TxOutcome, len(h.outcomes))
	for k, v := range h.outcomes {
		outcomes[k] = v
	}
	var projection *model.Projection
	if h.projection != nil {
		p := *h.projection
		projection = &p
	}
	return model.Snapshot{
		Session:      h.session,
		Transactions: outcomes,
		Projection:   projection,
		Generation:   h.session.Generation,
	}
}

// Subscribe returns a channel receiving every new snapshot, starting with
// the current one. Slow subscribers only see the latest snapshot.
func (h *Hub) Subscribe(buffer int) (<-chan model.Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan model.Snapshot, buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	ch <- h.snapshotLocked()
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

func (h *Hub) broadcastLocked() {
	snap := h.snapshotLocked()
	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			// 丢掉最旧的一条，保证订阅者拿到最新状态
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (h *Hub) enqueue(topic, key string, v interface{}) {
	if h.outbox == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal event failed", zap.String("topic", topic), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outbox == nil {
		return
	}
	select {
	case h.outbox <- outboxMsg{topic: topic, key: key, payload: payload}:
	default:
		h.log.Warn("event outbox full, dropping", zap.String("topic", topic))
	}
}

func (h *Hub) drain(outbox <-chan outboxMsg) {
	defer h.wg.Done()
	for m := range outbox {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.producer.Publish(ctx, m.topic, m.key, m.payload); err != nil {
			h.log.Warn("publish event failed", zap.String("topic", m.topic), zap.Error(err))
		}
		cancel()
	}
}

// Close flushes pending events, closes the producer and every subscriber.
func (h *Hub) Close() error {
	var err error
	h.once.Do(func() {
		h.mu.Lock()
		outbox := h.outbox
		h.outbox = nil
		for id, ch := range h.subs {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()

		if outbox != nil {
			close(outbox)
			h.wg.Wait()
			err = h.producer.Close()
		}
	})
	return err
}
