package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// boundContract 通过 eth_call 读取合约，并为写操作打包 calldata
type boundContract struct {
	address common.Address
	abi     abi.ABI
	backend Backend
	from    common.Address
}

func (c *boundContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := c.address
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		// 地址上没有合约代码时节点返回空数据
		return nil, fmt.Errorf("call %s: %w", method, ErrNoContractCode)
	}

	res, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return res, nil
}

func (c *boundContract) prepare(method string, value *big.Int, args ...interface{}) (Call, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	return Call{Method: method, To: c.address, Value: value, Data: input}, nil
}

func unpackOne[T any](res []interface{}, method string) (T, error) {
	var zero T
	if len(res) != 1 {
		return zero, fmt.Errorf("%s: expected 1 output, got %d", method, len(res))
	}
	v, ok := res[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected output type %T", method, res[0])
	}
	return v, nil
}
