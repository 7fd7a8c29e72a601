package cmd

import (
	"context"
	"fmt"

	"dapp-core/internal/wallet"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "列出钱包账户，可交互切换当前账户",
	RunE: func(cmd *cobra.Command, args []string) error {
		selectAccount, _ := cmd.Flags().GetBool("select")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		app := newCLIApp()
		defer app.close()

		v, err := app.connect(ctx)
		if err != nil {
			return err
		}

		lister, ok := v.Provider.(wallet.AccountLister)
		if !ok {
			printField("Account", v.Info.Account)
			return nil
		}
		accounts := lister.AllAccounts()
		for i, a := range accounts {
			marker := "  "
			if a == v.Account {
				marker = successColor.Sprint("* ")
			}
			fmt.Printf("%s[%d] %s\n", marker, i, a.Hex())
		}
		if !selectAccount {
			return nil
		}

		items := make([]string, len(accounts))
		for i, a := range accounts {
			items[i] = a.Hex()
		}
		prompt := promptui.Select{
			Label: "Select account",
			Items: items,
			Size:  len(items),
		}
		index, _, err := prompt.Run()
		if err != nil {
			return err
		}
		if err := app.sessions.SwitchAccount(ctx, index); err != nil {
			errorColor.Println(err)
			return err
		}
		successColor.Printf("Active account: %s\n", app.sessions.Current().Info.Account)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.Flags().BoolP("select", "s", false, "交互选择当前账户")
}
