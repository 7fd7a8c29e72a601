package cmd

import (
	"context"
	"fmt"

	"dapp-core/internal/model"
	"dapp-core/pkg/ethunit"

	"github.com/spf13/cobra"
)

// fundCmd 部署后把代币转给 sale 合约，对应部署脚本里的 transfer
var fundCmd = &cobra.Command{
	Use:   "fund",
	Short: "把代币转入 sale 合约 (部署后执行一次)",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, _ := cmd.Flags().GetString("amount")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		app := newCLIApp()
		defer app.close()
		if amount == "" {
			amount = app.cfg.Fund.Amount
		}

		v, err := app.connect(ctx)
		if err != nil {
			return err
		}
		b := v.Binding

		// 1. 按 token 精度换算
		decimals, err := b.Token.Decimals(ctx)
		if err != nil {
			return fmt.Errorf("read decimals: %w", err)
		}
		units, err := ethunit.ParseUnits(amount, int32(decimals))
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", amount, err)
		}

		// 2. 构造 transfer 并估算 gas
		call, err := b.Token.TransferCall(b.Sale.Address(), units)
		if err != nil {
			return err
		}
		estimate, err := b.EstimateGas(ctx, call)
		if err != nil {
			return fmt.Errorf("estimate gas: %w", err)
		}

		// 3. 签名广播并等待确认
		infoColor.Printf("Transferring %s tokens to %s...\n", amount, b.Sale.Address().Hex())
		tx, err := b.Transact(ctx, call, ethunit.BufferGas(estimate))
		if err != nil {
			return err
		}
		infoColor.Printf("Transaction submitted: %s\n", tx.Hash().Hex())
		if _, err := b.WaitConfirmed(ctx, tx.Hash(), app.cfg.Wallet.ConfirmationBlocks); err != nil {
			errorColor.Printf("Transfer failed: %v\n", err)
			return err
		}
		successColor.Printf("Sale funded! Tx: %s\n", model.ShortHash(tx.Hash().Hex()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fundCmd)
	fundCmd.Flags().StringP("amount", "a", "", "转入数量 (默认 fund.amount)")
}
