package service

import (
	"errors"
	"strings"

	"dapp-core/internal/contracts"
	"dapp-core/internal/model"
	"dapp-core/internal/wallet"
	"dapp-core/pkg/errno"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted"

// classifyTxError turns a lifecycle failure into the one message shown for
// the operation. stage is the state the request was in when it failed.
func classifyTxError(kind model.TxKind, stage model.TxState, err error) errno.Errno {
	if e, ok := errno.As(err); ok {
		return e
	}
	if wallet.IsUserRejected(err) {
		return errno.ErrUserRejected.WithMessage("Transaction cancelled by user")
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "insufficient funds") {
		return errno.ErrInsufficientFunds
	}

	reason, reverted := revertReason(err)
	if kind == model.TxKindWithdraw && reverted && isOwnerCheck(reason) {
		return errno.ErrNotAuthorized.WithMessage("Only the contract owner can withdraw funds")
	}
	if stage == model.TxStateEstimatingGas {
		return errno.ErrGasEstimationFailed
	}
	if reverted {
		prefix := "Transaction failed: "
		if kind == model.TxKindWithdraw {
			prefix = "Withdrawal failed: "
		}
		return errno.ErrTransactionReverted.WithMessage(prefix + reason)
	}

	if kind == model.TxKindWithdraw {
		return errno.ErrUnknownFailure.WithMessage("Failed to withdraw ETH")
	}
	return errno.ErrUnknownFailure.WithMessage("Failed to buy tokens")
}

// revertReason 依次尝试: JSON-RPC revert data, 节点错误信息, 回执 status 0
func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if hexData, ok := dataErr.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(hexData); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason, true
				}
			}
		}
	}

	msg := err.Error()
	if i := strings.Index(msg, revertPrefix+": "); i >= 0 {
		return strings.TrimSpace(msg[i+len(revertPrefix)+2:]), true
	}
	if errors.Is(err, contracts.ErrReverted) {
		return "reverted on chain", true
	}
	if strings.Contains(msg, revertPrefix) {
		return revertPrefix, true
	}
	return "", false
}

func isOwnerCheck(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "only owner") || strings.Contains(r, "caller is not the owner")
}
