package cmd

import (
	"fmt"
	"os"
	"syscall"

	"dapp-core/internal/wallet"
	"dapp-core/pkg/bip39"
	"dapp-core/pkg/config"
	"dapp-core/pkg/keystore"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "管理 HD 钱包的加密助记词文件",
}

var keystoreNewCmd = &cobra.Command{
	Use:   "new",
	Short: "生成新的助记词并加密保存",
	Long:  `生成新的 BIP-39 助记词，并使用用户输入的密码进行加密，保存为 wallet.keystore_path 指定的文件。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, _ := cmd.Flags().GetString("output")
		words, _ := cmd.Flags().GetInt("words")
		if outputFile == "" {
			outputFile = config.Global.Wallet.KeystorePath
		}
		if _, err := os.Stat(outputFile); err == nil {
			return fmt.Errorf("文件 %s 已存在，请先删除或指定其他文件名", outputFile)
		}

		// 1. 输入密码
		fmt.Print("输入密码: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("读取密码失败: %w", err)
		}
		fmt.Print("确认密码: ")
		confirm, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("读取密码失败: %w", err)
		}
		if string(password) != string(confirm) {
			return fmt.Errorf("两次输入的密码不一致")
		}
		if len(password) < 6 {
			return fmt.Errorf("密码长度至少需要 6 位")
		}

		// 2. 生成助记词 (12 词 = 128 bit 熵)
		if words != 12 && words != 24 {
			return fmt.Errorf("助记词长度只能是 12 或 24")
		}
		mnemonic, err := bip39.NewMnemonicService().GenerateMnemonic(words / 3 * 32)
		if err != nil {
			return fmt.Errorf("生成助记词失败: %w", err)
		}

		// 3. 加密保存
		encrypted, err := keystore.EncryptMnemonic(mnemonic, string(password))
		if err != nil {
			return fmt.Errorf("加密失败: %w", err)
		}
		if err := encrypted.SaveToFile(outputFile); err != nil {
			return fmt.Errorf("保存文件失败: %w", err)
		}

		// 4. 显示派生出的账户
		hd, err := wallet.NewHDKeySource(mnemonic, "", config.Global.Wallet.AccountCount)
		if err != nil {
			return err
		}
		successColor.Println("✅ 钱包已初始化")
		printField("File", outputFile)
		printField("ID", encrypted.Id)
		for i, a := range hd.All() {
			printField(fmt.Sprintf("Account %d", i), a.Hex())
		}
		errorColor.Println("⚠️  请务必记住您的密码！如果丢失密码，您将无法恢复钱包。")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keystoreCmd)
	keystoreCmd.AddCommand(keystoreNewCmd)
	keystoreNewCmd.Flags().StringP("output", "o", "", "输出的 Keystore 文件 (默认 wallet.keystore_path)")
	keystoreNewCmd.Flags().Int("words", 12, "助记词长度 (12 或 24)")
}
