package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MyToken: OpenZeppelin ERC-20 + Ownable
//
//	name()              → 0x06fdde03
//	symbol()            → 0x95d89b41
//	decimals()          → 0x313ce567
//	balanceOf(address)  → 0x70a08231
//	transfer(a,u256)    → 0xa9059cbb
const tokenABIJSON = `[
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

// TokenSale
//
//	tokenPriceInWei()   → view uint256
//	owner()             → view address
//	buyTokens()         → payable
//	withdrawEth(u256)   → onlyOwner
const saleABIJSON = `[
  {"type":"function","name":"myToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"tokenPriceInWei","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"buyTokens","stateMutability":"payable","inputs":[],"outputs":[]},
  {"type":"function","name":"withdrawEth","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"TokensPurchased","anonymous":false,"inputs":[{"name":"buyer","type":"address","indexed":false},{"name":"ethAmount","type":"uint256","indexed":false},{"name":"tokenAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"EthWithdrawn","anonymous":false,"inputs":[{"name":"recipient","type":"address","indexed":false},{"name":"amount","type":"uint256","indexed":false}]}
]`

var (
	tokenABI  abi.ABI
	saleABI   abi.ABI
	parseOnce sync.Once
)

func parseABIs() {
	parseOnce.Do(func() {
		tokenABI = mustParse(tokenABIJSON)
		saleABI = mustParse(saleABIJSON)
	})
}

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("contracts: bad embedded ABI: " + err.Error())
	}
	return parsed
}

// TokenABI returns the parsed MyToken ABI.
func TokenABI() abi.ABI {
	parseABIs()
	return tokenABI
}

// SaleABI returns the parsed TokenSale ABI.
func SaleABI() abi.ABI {
	parseABIs()
	return saleABI
}
