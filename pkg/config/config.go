package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Contracts  ContractsConfig  `mapstructure:"contracts"`
	Network    NetworkConfig    `mapstructure:"network"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	UI         UIConfig         `mapstructure:"ui"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Fund       FundConfig       `mapstructure:"fund"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

// ContractsConfig 两个固定合约地址，改动需要重新部署客户端
type ContractsConfig struct {
	TokenAddress string `mapstructure:"token_address"`
	SaleAddress  string `mapstructure:"sale_address"`
}

type NetworkConfig struct {
	Supported map[int64]string `mapstructure:"supported"` // chain id -> 名称
	DefaultID int64            `mapstructure:"default_id"`
}

// Name returns the configured name for a chain id.
func (n NetworkConfig) Name(id int64) (string, bool) {
	name, ok := n.Supported[id]
	return name, ok
}

type WalletConfig struct {
	RpcUrl     string   `mapstructure:"rpc_url"`
	Connectors []string `mapstructure:"connectors"` // 多钱包选择器的候选顺序: "hd", "keystore"

	KeystorePath string `mapstructure:"keystore_path"` // 加密助记词文件
	Password     string `mapstructure:"password"`      // Keystore 密码 (通常通过环境变量 WALLET_PASSWORD 传入)
	Mnemonic     string `mapstructure:"mnemonic"`      // 开发环境 fallback
	AccountCount int    `mapstructure:"account_count"` // HD 钱包暴露的账户数

	GethKeystore string `mapstructure:"geth_keystore"` // go-ethereum V3 keystore JSON
	PrivateKey   string `mapstructure:"private_key"`   // injected wallet

	ConnectionTimeout  time.Duration `mapstructure:"connection_timeout"`
	ConfirmationBlocks uint64        `mapstructure:"confirmation_blocks"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	AutoConnect        bool          `mapstructure:"auto_connect"`
	AutoReconnect      bool          `mapstructure:"auto_reconnect"`
}

type UIConfig struct {
	SuccessMessageTTL time.Duration `mapstructure:"success_message_ttl"`
}

type ProjectionConfig struct {
	RefreshSpec string        `mapstructure:"refresh_spec"` // cron 表达式，空表示只按需刷新
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "none", "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type FundConfig struct {
	Amount string `mapstructure:"amount"` // 以 token 为单位的十进制字符串
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Default returns a Config populated only from defaults. Used by tests and
// by the CLI before flags are applied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("Unable to decode defaults, %v", err)
	}
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")

	v.SetDefault("contracts.token_address", "0x0D57F96d8d9bDeE635DA05D46bafa39ea64a85b0")
	v.SetDefault("contracts.sale_address", "0xB0C28560DAC0f33E1f3C4a4BDBA54a9B5F0d9dD5")

	v.SetDefault("network.supported", map[int64]string{
		1:        "Ethereum Mainnet",
		5:        "Goerli Testnet",
		11155111: "Sepolia Testnet",
		1337:     "Localhost",
		31337:    "Hardhat Network",
	})
	v.SetDefault("network.default_id", 31337)

	v.SetDefault("wallet.rpc_url", "http://localhost:8545")
	v.SetDefault("wallet.connectors", []string{"hd", "keystore"})
	v.SetDefault("wallet.keystore_path", "wallet.json")
	v.SetDefault("wallet.account_count", 5)
	v.SetDefault("wallet.connection_timeout", 10*time.Second)
	v.SetDefault("wallet.confirmation_blocks", 1)
	v.SetDefault("wallet.poll_interval", 4*time.Second)
	v.SetDefault("wallet.auto_connect", true)
	v.SetDefault("wallet.auto_reconnect", true)

	v.SetDefault("ui.success_message_ttl", 10*time.Second)

	v.SetDefault("projection.refresh_spec", "")
	v.SetDefault("projection.cache_ttl", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.mq_type", "none")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("fund.amount", "500000")
}
