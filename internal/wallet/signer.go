package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ApproveFunc is asked before every signature. Returning an error (normally
// ErrUserRejected) aborts the signature.
type ApproveFunc func(ctx context.Context, from common.Address, tx *types.Transaction) error

// KeySigner signs with an in-memory private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	approve ApproveFunc
}

func NewKeySigner(key *ecdsa.PrivateKey, approve ApproveFunc) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		approve: approve,
	}
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if s.approve != nil {
		if err := s.approve(ctx, s.address, tx); err != nil {
			return nil, err
		}
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
