package cmd

import (
	"context"
	"fmt"
	"time"

	"dapp-core/internal/contracts"
	"dapp-core/internal/model"
	"dapp-core/internal/service"
	"dapp-core/internal/service/notify"
	"dapp-core/internal/service/session"
	"dapp-core/internal/wallet"
	"dapp-core/pkg/cache"
	"dapp-core/pkg/config"
	"dapp-core/pkg/ethunit"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
)

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.Faint)
)

// cliApp 进程内的完整客户端：会话、交易、余额，事件只在本地分发
type cliApp struct {
	cfg        config.Config
	hub        *notify.Hub
	sessions   *session.Manager
	projection *service.ProjectionService
	txs        *service.TransactionService
}

func newCLIApp() *cliApp {
	cfg := config.Global
	// CLI 每次都是新进程，只用内存缓存
	c := cache.NewMemoryCache(time.Minute, 5*time.Minute)
	hub := notify.NewHub(nil)

	selector, injected := wallet.NewConnectors(cfg.Wallet, c, approveTx)
	sessions := session.NewManager(session.Options{
		Selector: selector,
		Injected: injected,
		Addresses: contracts.Addresses{
			Token: common.HexToAddress(cfg.Contracts.TokenAddress),
			Sale:  common.HexToAddress(cfg.Contracts.SaleAddress),
		},
		Networks:            cfg.Network,
		ConnectionTimeout:   cfg.Wallet.ConnectionTimeout,
		ReceiptPollInterval: cfg.Wallet.PollInterval,
		Publisher:           hub,
	})
	projection := service.NewProjectionService(sessions, sessions, c, cfg.Projection.CacheTTL, hub)
	txs := service.NewTransactionService(sessions, projection, hub, service.TxOptions{
		ConfirmationBlocks: cfg.Wallet.ConfirmationBlocks,
		SuccessMessageTTL:  cfg.UI.SuccessMessageTTL,
	})
	sessions.OnReset(txs.Reset)
	sessions.OnBindingChanged(txs.DropStale)
	sessions.OnReset(projection.Reset)

	return &cliApp{cfg: cfg, hub: hub, sessions: sessions, projection: projection, txs: txs}
}

// connect 连接并确认网络受支持
func (a *cliApp) connect(ctx context.Context) (session.View, error) {
	infoColor.Println("Connecting wallet...")
	if err := a.sessions.Connect(ctx); err != nil {
		return session.View{}, err
	}
	v := a.sessions.Current()
	if !v.Ready() {
		return v, fmt.Errorf("wallet not ready (state %s)", v.Info.State)
	}
	return v, nil
}

func (a *cliApp) close() {
	a.txs.Close()
	a.sessions.Disconnect(context.Background())
	_ = a.hub.Close()
}

// follow 打印 flight 的每一步进度，直到结束
func (a *cliApp) follow(f *service.Flight) error {
	snaps, cancel := a.hub.Subscribe(32)
	defer cancel()

	req := f.Request()
	last := ""
	show := func(o model.TxOutcome, ok bool) {
		if !ok || o.RequestID != req.ID || o.Message == last {
			return
		}
		last = o.Message
		printOutcome(o)
	}
	for {
		select {
		case s, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			o, found := s.Transactions[req.Kind]
			show(o, found)
		case <-f.Done():
			show(a.txs.Outcome(req.Kind))
			return f.Err()
		}
	}
}

func printOutcome(o model.TxOutcome) {
	switch o.Type {
	case model.MessageSuccess:
		successColor.Println(o.Message)
	case model.MessageError:
		errorColor.Println(o.Message)
	default:
		infoColor.Println(o.Message)
	}
}

func printField(label, value string) {
	fmt.Printf("%s %s\n", labelColor.Sprintf("%-20s", label+":"), value)
}

// approveTx 相当于钱包弹窗：展示交易内容并等待用户确认
func approveTx(ctx context.Context, from common.Address, tx *types.Transaction) error {
	if assumeYes {
		return nil
	}
	fmt.Println()
	printField("From", from.Hex())
	if tx.To() != nil {
		printField("To", tx.To().Hex())
	}
	printField("Value", ethunit.FormatEther(tx.Value())+" ETH")
	printField("Gas limit", fmt.Sprintf("%d", tx.Gas()))
	printField("Gas price", ethunit.FormatUnits(tx.GasPrice(), 9)+" gwei")

	prompt := promptui.Prompt{
		Label:     "Sign this transaction",
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		return wallet.ErrUserRejected
	}
	return nil
}
