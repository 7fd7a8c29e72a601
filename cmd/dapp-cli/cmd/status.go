package cmd

import (
	"context"
	"fmt"

	"dapp-core/pkg/errno"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示钱包、网络和合约余额",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		app := newCLIApp()
		defer app.close()

		v, err := app.connect(ctx)
		if err != nil {
			_, msg := errno.Decode(err)
			errorColor.Println(msg)
			return err
		}

		p, err := app.projection.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("load balances: %w", err)
		}

		fmt.Println()
		printField("Wallet", v.Info.Provider)
		printField("Account", v.Info.Account)
		printField("Network", fmt.Sprintf("%s (%d)", v.Info.NetworkName, v.Info.NetworkID))
		printField("ETH balance", p.EthBalance+" ETH")
		printField(p.TokenSymbol+" balance", p.TokenBalance+" "+p.TokenSymbol)
		printField("Token price", p.TokenPrice+" ETH")
		printField("Sale token stock", p.SaleTokenBalance+" "+p.TokenSymbol)
		printField("Sale ETH balance", p.SaleEthBalance+" ETH")
		if p.IsOwner {
			printField("Role", successColor.Sprint("owner"))
		} else {
			printField("Role", "buyer")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
