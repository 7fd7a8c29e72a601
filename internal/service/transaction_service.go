package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/internal/model"
	"dapp-core/internal/service/session"
	"dapp-core/pkg/errno"
	"dapp-core/pkg/ethunit"
	"dapp-core/pkg/logger"
	"dapp-core/pkg/monitor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDiscarded is the result of a flight whose session was reinitialized,
// or whose binding was replaced by an account switch, while it was running.
// Nothing from it was applied.
var ErrDiscarded = errors.New("transaction discarded after session reset")

// SessionReader 只读访问会话，交易层从不修改会话
type SessionReader interface {
	Current() session.View
}

// Refresher reloads the projection after a confirmed transaction.
type Refresher interface {
	Refresh(ctx context.Context) (*model.Projection, error)
}

// TxPublisher receives the per-kind outcomes after every change. It is
// called with the service lock held and must not block.
type TxPublisher interface {
	PublishTransactions(outcomes map[model.TxKind]model.TxOutcome)
}

type TxOptions struct {
	ConfirmationBlocks uint64
	SuccessMessageTTL  time.Duration
}

// Flight is a submitted request running in the background.
type Flight struct {
	mu     sync.Mutex
	req    model.TransactionRequest
	err    error
	cancel context.CancelFunc
	done   chan struct{}

	// 提交时的合约绑定，账户切换后不再使用
	binding *contracts.Binding
}

// Request returns a copy of the live request.
func (f *Flight) Request() model.TransactionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.req
}

func (f *Flight) Done() <-chan struct{} {
	return f.done
}

// Err is valid after Done: nil on confirmation, the classified errno on
// failure, ErrDiscarded for a stale flight.
func (f *Flight) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Flight) update(fn func(r *model.TransactionRequest)) model.TransactionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.req)
	f.req.UpdatedAt = time.Now()
	return f.req
}

// TransactionService 负责 buy / withdraw 的完整生命周期
type TransactionService struct {
	sessions  SessionReader
	refresher Refresher
	publisher TxPublisher
	opts      TxOptions
	log       *zap.Logger

	baseCtx  context.Context
	shutdown context.CancelFunc

	mu       sync.Mutex
	active   map[model.TxKind]*Flight
	outcomes map[model.TxKind]model.TxOutcome
	inputs   map[model.TxKind]string
	timers   map[model.TxKind]*time.Timer
}

func NewTransactionService(sessions SessionReader, refresher Refresher, publisher TxPublisher, opts TxOptions) *TransactionService {
	if opts.ConfirmationBlocks == 0 {
		opts.ConfirmationBlocks = 1
	}
	if opts.SuccessMessageTTL <= 0 {
		opts.SuccessMessageTTL = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TransactionService{
		sessions:  sessions,
		refresher: refresher,
		publisher: publisher,
		opts:      opts,
		log:       logger.Named("tx"),
		baseCtx:   ctx,
		shutdown:  cancel,
		active:    make(map[model.TxKind]*Flight),
		outcomes:  make(map[model.TxKind]model.TxOutcome),
		inputs:    make(map[model.TxKind]string),
		timers:    make(map[model.TxKind]*time.Timer),
	}
}

// Submit checks the preconditions synchronously, in order: connected,
// authorized, valid amount, nothing of this kind in flight. A rejected
// submit changes nothing. An empty amount falls back to the stored input.
func (s *TransactionService) Submit(ctx context.Context, kind model.TxKind, amount string) (*Flight, error) {
	if _, err := model.ParseTxKind(string(kind)); err != nil {
		return nil, errno.ErrUnknownKind
	}

	v := s.sessions.Current()
	if !v.Ready() {
		return nil, errno.ErrNotConnected
	}
	if kind == model.TxKindWithdraw && !v.Info.IsOwner {
		return nil, errno.ErrNotAuthorized
	}

	if amount == "" {
		amount = s.Input(kind)
	}
	wei, err := ethunit.ParseEther(amount)
	if err != nil {
		return nil, invalidAmount(kind).Wrap(err)
	}

	s.mu.Lock()
	if _, busy := s.active[kind]; busy {
		s.mu.Unlock()
		return nil, errno.ErrAlreadyInFlight
	}

	now := time.Now()
	runCtx, cancel := context.WithCancel(s.baseCtx)
	f := &Flight{
		req: model.TransactionRequest{
			ID:         uuid.NewString(),
			Kind:       kind,
			Amount:     amount,
			AmountWei:  wei.String(),
			State:      model.TxStateIdle,
			Generation: v.Generation,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		cancel:  cancel,
		done:    make(chan struct{}),
		binding: v.Binding,
	}
	s.active[kind] = f
	s.inputs[kind] = amount
	if t, ok := s.timers[kind]; ok {
		t.Stop()
		delete(s.timers, kind)
	}
	// 受理即进入 Preparing
	req := f.update(func(r *model.TransactionRequest) { r.State = model.TxStatePreparing })
	s.setOutcomeLocked(req, model.MessageInfo, preparingMessage(kind), 0)
	s.mu.Unlock()

	monitor.Business.TxSubmitted(string(kind))
	s.log.Info("transaction accepted",
		zap.String("id", f.req.ID),
		zap.String("kind", string(kind)),
		zap.String("amount", amount),
		zap.Uint64("generation", v.Generation))

	go s.run(runCtx, f, wei)
	return f, nil
}

func invalidAmount(kind model.TxKind) errno.Errno {
	if kind == model.TxKindWithdraw {
		return errno.ErrInvalidAmount.WithMessage("Please enter a valid amount of ETH to withdraw.")
	}
	return errno.ErrInvalidAmount.WithMessage("Please enter a valid amount of ETH to pay.")
}

func preparingMessage(kind model.TxKind) string {
	if kind == model.TxKindWithdraw {
		return "Preparing withdrawal..."
	}
	return "Preparing transaction..."
}

func (s *TransactionService) run(ctx context.Context, f *Flight, wei *big.Int) {
	defer close(f.done)
	defer f.cancel()

	kind := f.req.Kind
	b := f.binding

	// 1. Preparing: 构造调用，提现前检查合约余额
	var call contracts.Call
	var err error
	if kind == model.TxKindWithdraw {
		var balance *big.Int
		balance, err = b.Sale.EthBalance(ctx)
		if err != nil {
			s.fail(f, model.TxStatePreparing, err)
			return
		}
		if balance.Cmp(wei) < 0 {
			s.fail(f, model.TxStatePreparing, errno.ErrInsufficientContractBalance)
			return
		}
		call, err = b.Sale.WithdrawEthCall(wei)
	} else {
		call, err = b.Sale.BuyTokensCall(wei)
	}
	if err != nil {
		s.fail(f, model.TxStatePreparing, err)
		return
	}

	// 2. EstimatingGas: 估算结果加 10% 作为 gas limit
	if !s.advance(f, model.TxStateEstimatingGas, "Estimating gas...", nil) {
		return
	}
	estimate, err := b.EstimateGas(ctx, call)
	if err != nil {
		s.fail(f, model.TxStateEstimatingGas, err)
		return
	}
	limit := ethunit.BufferGas(estimate)
	monitor.Business.ObserveGas(string(kind), estimate)

	// 3. AwaitingConfirmation: 等待签名并广播
	if !s.advance(f, model.TxStateAwaitingConfirmation, "Waiting for transaction confirmation...", func(r *model.TransactionRequest) {
		r.GasEstimate = estimate
		r.GasLimit = limit
	}) {
		return
	}
	tx, err := b.Transact(ctx, call, limit)
	if err != nil {
		s.fail(f, model.TxStateAwaitingConfirmation, err)
		return
	}

	// 4. Submitted: 广播后立即记录 hash
	hash := tx.Hash().Hex()
	if !s.advance(f, model.TxStateSubmitted, "Transaction submitted. Waiting for confirmation...", func(r *model.TransactionRequest) {
		r.TxHash = hash
	}) {
		return
	}
	s.log.Info("transaction submitted", zap.String("id", f.req.ID), zap.String("tx_hash", hash), zap.Uint64("gas_limit", limit))

	if _, err := b.WaitConfirmed(ctx, tx.Hash(), s.opts.ConfirmationBlocks); err != nil {
		s.fail(f, model.TxStateSubmitted, err)
		return
	}

	// 5. Confirmed
	if !s.confirm(f, hash) {
		return
	}
	if s.refresher != nil {
		if _, err := s.refresher.Refresh(s.baseCtx); err != nil {
			s.log.Warn("refresh after confirmation failed", zap.Error(err))
		}
	}
}

// currentLocked reports whether f still owns its kind.
func (s *TransactionService) currentLocked(f *Flight) bool {
	return s.active[f.req.Kind] == f
}

// stale reports whether the session moved on since f was submitted: a new
// generation, or a binding replaced by an account switch or cleared by a
// disconnect.
func (s *TransactionService) stale(f *Flight) bool {
	cur := s.sessions.Current()
	return cur.Generation != f.Request().Generation || cur.Binding != f.binding
}

// advance moves f to state. It returns false, and marks f discarded, when
// the session or its binding changed in the meantime.
func (s *TransactionService) advance(f *Flight, state model.TxState, message string, fn func(r *model.TransactionRequest)) bool {
	if s.stale(f) {
		s.discard(f)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(f) {
		s.discardLocked(f)
		return false
	}
	if from := f.Request().State; !model.CanTransition(from, state) {
		s.log.Error("illegal transaction transition", zap.String("from", string(from)), zap.String("to", string(state)))
		delete(s.active, f.req.Kind)
		f.mu.Lock()
		f.err = errno.InternalServerError
		f.mu.Unlock()
		return false
	}
	req := f.update(func(r *model.TransactionRequest) {
		r.State = state
		if fn != nil {
			fn(r)
		}
	})
	s.setOutcomeLocked(req, model.MessageInfo, message, 0)
	return true
}

func (s *TransactionService) confirm(f *Flight, hash string) bool {
	if s.stale(f) {
		s.discard(f)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(f) {
		s.discardLocked(f)
		return false
	}
	req := f.update(func(r *model.TransactionRequest) { r.State = model.TxStateConfirmed })
	delete(s.active, req.Kind)
	delete(s.inputs, req.Kind)

	var msg string
	if req.Kind == model.TxKindWithdraw {
		msg = fmt.Sprintf("Successfully withdrew %s ETH! Tx: %s", req.Amount, model.ShortHash(hash))
	} else {
		msg = fmt.Sprintf("Successfully bought tokens! Tx: %s", model.ShortHash(hash))
	}
	s.setOutcomeLocked(req, model.MessageSuccess, msg, errno.OK.Code)
	s.scheduleClearLocked(req.Kind, req.ID)

	monitor.Business.TxOutcome(string(req.Kind), string(req.State))
	s.log.Info("transaction confirmed", zap.String("id", req.ID), zap.String("tx_hash", hash))
	return true
}

func (s *TransactionService) fail(f *Flight, stage model.TxState, cause error) {
	if s.stale(f) {
		s.discard(f)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(f) {
		s.discardLocked(f)
		return
	}

	e := classifyTxError(f.req.Kind, stage, cause)
	req := f.update(func(r *model.TransactionRequest) { r.State = model.TxStateFailed })
	f.mu.Lock()
	f.err = e.Wrap(cause)
	f.mu.Unlock()
	delete(s.active, req.Kind)
	s.setOutcomeLocked(req, model.MessageError, e.Message, e.Code)

	monitor.Business.TxOutcome(string(req.Kind), string(req.State))
	s.log.Warn("transaction failed",
		zap.String("id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.String("stage", string(stage)),
		zap.Int("code", e.Code),
		zap.Error(cause))
}

func (s *TransactionService) discard(f *Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked(f)
}

// discardLocked 丢弃过期结果：不改状态，只撤下该请求的进度消息
func (s *TransactionService) discardLocked(f *Flight) {
	if s.active[f.req.Kind] == f {
		delete(s.active, f.req.Kind)
	}
	if o, ok := s.outcomes[f.req.Kind]; ok && o.RequestID == f.req.ID {
		delete(s.outcomes, f.req.Kind)
		s.publishLocked()
	}
	f.mu.Lock()
	if f.err == nil {
		f.err = ErrDiscarded
	}
	f.mu.Unlock()
	s.log.Info("discarding stale transaction result", zap.String("id", f.req.ID))
}

func (s *TransactionService) setOutcomeLocked(req model.TransactionRequest, typ model.MessageType, message string, code int) {
	s.outcomes[req.Kind] = model.TxOutcome{
		Kind:      req.Kind,
		State:     req.State,
		Message:   message,
		Type:      typ,
		Code:      code,
		TxHash:    req.TxHash,
		RequestID: req.ID,
		At:        time.Now(),
	}
	s.publishLocked()
}

// scheduleClearLocked 成功消息在 TTL 后自动清除，期间有新请求则保留新请求的消息
func (s *TransactionService) scheduleClearLocked(kind model.TxKind, requestID string) {
	s.timers[kind] = time.AfterFunc(s.opts.SuccessMessageTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if o, ok := s.outcomes[kind]; ok && o.RequestID == requestID {
			delete(s.outcomes, kind)
			delete(s.timers, kind)
			s.publishLocked()
		}
	})
}

func (s *TransactionService) publishLocked() {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishTransactions(s.outcomesLocked())
}

func (s *TransactionService) outcomesLocked() map[model.TxKind]model.TxOutcome {
	out := make(map[model.TxKind]model.TxOutcome, len(s.outcomes))
	for k, v := range s.outcomes {
		out[k] = v
	}
	return out
}

// Reset drops every in-flight request and message. Registered as a session
// reset hook; running flights see their context cancelled and are discarded.
func (s *TransactionService) Reset(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind, f := range s.active {
		f.cancel()
		delete(s.active, kind)
	}
	for kind, t := range s.timers {
		t.Stop()
		delete(s.timers, kind)
	}
	s.outcomes = make(map[model.TxKind]model.TxOutcome)
	s.inputs = make(map[model.TxKind]string)
	s.publishLocked()
	s.log.Info("transactions reset", zap.Uint64("generation", generation))
}

// DropStale cancels the flights whose binding is no longer the session's.
// Registered as a binding-change hook; the cancelled flights are discarded
// at their next step and never sign with the replaced binding.
func (s *TransactionService) DropStale() {
	cur := s.sessions.Current()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.active {
		if f.binding != cur.Binding || f.Request().Generation != cur.Generation {
			f.cancel()
		}
	}
}

// SetInput stores the amount the user typed for kind.
func (s *TransactionService) SetInput(kind model.TxKind, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[kind] = value
}

func (s *TransactionService) Input(kind model.TxKind) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs[kind]
}

// Outcome returns the current message for kind, if any.
func (s *TransactionService) Outcome(kind model.TxKind) (model.TxOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[kind]
	return o, ok
}

// Outcomes returns the current message of every kind.
func (s *TransactionService) Outcomes() map[model.TxKind]model.TxOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomesLocked()
}

func (s *TransactionService) Status(kind model.TxKind) model.TxStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.TxStatus{Kind: kind, Input: s.inputs[kind]}
	if f, ok := s.active[kind]; ok {
		req := f.Request()
		st.Active = &req
	}
	if o, ok := s.outcomes[kind]; ok {
		st.Outcome = &o
	}
	return st
}

// Close cancels every running flight.
func (s *TransactionService) Close() {
	s.shutdown()
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind, t := range s.timers {
		t.Stop()
		delete(s.timers, kind)
	}
}
