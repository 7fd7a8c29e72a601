package cmd

import (
	"fmt"
	"os"
	"time"

	"dapp-core/pkg/config"
	"dapp-core/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	assumeYes bool
	verbose   bool
	timeout   time.Duration
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "dapp-cli",
	Short: "Token Sale 命令行客户端",
	Long: `连接钱包，查看余额，购买代币，提取合约中的 ETH。
配置与 dapp-server 相同 (config.yaml / 环境变量)。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init()
		if verbose {
			logger.Init(config.Global.App.Env)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "不询问，直接签名")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出日志")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "整个命令的超时时间")
}
