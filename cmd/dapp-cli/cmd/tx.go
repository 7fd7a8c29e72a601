package cmd

import (
	"context"

	"dapp-core/internal/model"
	"dapp-core/pkg/errno"

	"github.com/spf13/cobra"
)

var buyCmd = &cobra.Command{
	Use:   "buy <eth-amount>",
	Short: "用 ETH 购买代币",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(model.TxKindBuy, args[0])
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <eth-amount>",
	Short: "提取合约中的 ETH (仅 owner)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(model.TxKindWithdraw, args[0])
	},
}

func submit(kind model.TxKind, amount string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app := newCLIApp()
	defer app.close()

	if _, err := app.connect(ctx); err != nil {
		_, msg := errno.Decode(err)
		errorColor.Println(msg)
		return err
	}

	f, err := app.txs.Submit(ctx, kind, amount)
	if err != nil {
		_, msg := errno.Decode(err)
		errorColor.Println(msg)
		return err
	}
	return app.follow(f)
}

func init() {
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(withdrawCmd)
}
