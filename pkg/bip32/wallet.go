// Package bip32 derives Ethereum signing keys from a BIP-39 seed along
// BIP-44 paths (m/44'/60'/0'/0/i).
package bip32

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthAccountPathPrefix 以太坊 BIP-44 账户路径前缀
const EthAccountPathPrefix = "m/44'/60'/0'/0"

var (
	ErrInvalidSeed = errors.New("无效的种子")
	ErrInvalidPath = errors.New("无效的派生路径")
)

// Wallet 分层确定性钱包
type Wallet struct {
	master *hdkeychain.ExtendedKey
}

// Key is a derived extended private key.
type Key struct {
	path string
	key  *hdkeychain.ExtendedKey
}

// NewMasterKeyFromSeed 使用 BIP-39 种子生成主密钥
func NewMasterKeyFromSeed(seed []byte) (*Wallet, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, ErrInvalidSeed
	}

	// 版本字节只影响 xprv 序列化，对 ETH 派生没有影响
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %w", err)
	}
	return &Wallet{master: master}, nil
}

// AccountPath returns the BIP-44 path of the i-th Ethereum account.
func AccountPath(index uint32) string {
	return fmt.Sprintf("%s/%d", EthAccountPathPrefix, index)
}

// DerivePath 解析路径并派生密钥
// 支持格式: m/44'/60'/0'/0/0 或 m/44h/60h/0h/0/0
func (w *Wallet) DerivePath(path string) (*Key, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "m" {
		return &Key{path: "m", key: w.master}, nil
	}
	if !strings.HasPrefix(trimmed, "m/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	current := w.master
	for _, segment := range strings.Split(trimmed[2:], "/") {
		hardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			hardened = true
			segment = segment[:len(segment)-1]
		}

		val, err := strconv.ParseUint(segment, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: 段 %q: %v", ErrInvalidPath, segment, err)
		}
		index := uint32(val)
		if hardened {
			index += hdkeychain.HardenedKeyStart
		}

		next, err := current.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("派生子密钥失败: %w", err)
		}
		current = next
	}

	return &Key{path: trimmed, key: current}, nil
}

// Path returns the derivation path of the key.
func (k *Key) Path() string {
	return k.path
}

// ECDSA returns the private key in the form go-ethereum signs with.
func (k *Key) ECDSA() (*ecdsa.PrivateKey, error) {
	var priv *btcec.PrivateKey
	priv, err := k.key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

// Address returns the Ethereum address of the key.
func (k *Key) Address() (common.Address, error) {
	priv, err := k.ECDSA()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(priv.PublicKey), nil
}
