package model

import "time"

// Projection 页面展示用的余额 / 价格 / 权限数据，按需从链上拉取
type Projection struct {
	Account          string    `json:"account"`
	NetworkName      string    `json:"network_name"`
	EthBalance       string    `json:"eth_balance"`        // 4 位小数
	TokenAddress     string    `json:"token_address"`
	TokenSymbol      string    `json:"token_symbol"`
	TokenDecimals    uint8     `json:"token_decimals"`
	TokenBalance     string    `json:"token_balance"`      // 4 位小数
	SaleTokenBalance string    `json:"sale_token_balance"` // 4 位小数
	SaleEthBalance   string    `json:"sale_eth_balance"`
	TokenPrice       string    `json:"token_price"` // ether, 6 位小数
	IsOwner          bool      `json:"is_owner"`
	Generation       uint64    `json:"generation"`
	RefreshedAt      time.Time `json:"refreshed_at"`
}
