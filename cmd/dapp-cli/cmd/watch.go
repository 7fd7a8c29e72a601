package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"dapp-core/internal/event"
	"dapp-core/internal/service/mq"
	"dapp-core/pkg/config"

	"github.com/spf13/cobra"
)

// watchCmd 订阅 dapp-server 发布到 MQ 的事件
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "实时打印 dapp-server 发布的会话 / 交易 / 余额事件",
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")

		host, _ := os.Hostname()
		consumer, err := mq.NewConsumer(config.Global, group, fmt.Sprintf("%s-%d", host, os.Getpid()))
		if err != nil {
			return err
		}
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var wg sync.WaitGroup
		var printMu sync.Mutex
		for _, topic := range event.AllTopics {
			wg.Add(1)
			go func(topic string) {
				defer wg.Done()
				err := consumer.Subscribe(ctx, topic, func(msg *mq.Message) error {
					printMu.Lock()
					defer printMu.Unlock()
					printEvent(msg)
					return nil
				})
				if err != nil && ctx.Err() == nil {
					errorColor.Printf("subscribe %s: %v\n", topic, err)
				}
			}(topic)
		}
		infoColor.Println("Watching events, Ctrl+C to stop...")
		wg.Wait()
		return nil
	},
}

func printEvent(msg *mq.Message) {
	switch msg.Topic {
	case event.TopicSession:
		var e event.SessionChangedEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			break
		}
		infoColor.Printf("[session] %s %s %s\n", e.Session.State, e.Session.Account, e.Session.NetworkName)
		return
	case event.TopicTransaction:
		var e event.TransactionEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			break
		}
		printOutcome(e.Outcome)
		return
	case event.TopicProjection:
		var e event.ProjectionEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			break
		}
		if e.Projection == nil {
			infoColor.Println("[projection] cleared")
			return
		}
		infoColor.Printf("[projection] %s ETH, %s %s\n", e.Projection.EthBalance, e.Projection.TokenBalance, e.Projection.TokenSymbol)
		return
	}
	fmt.Printf("[%s] %s\n", msg.Topic, msg.Payload)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("group", "dapp-cli", "消费组")
}
