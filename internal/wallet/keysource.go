package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"dapp-core/pkg/bip32"
	"dapp-core/pkg/bip39"
	"dapp-core/pkg/keystore"

	gethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySource holds the private keys behind a provider.
type KeySource interface {
	// Accounts returns the exposed accounts, active first. Empty means the
	// wallet is locked.
	Accounts() []common.Address
	Key(account common.Address) (*ecdsa.PrivateKey, bool)
	// Watch registers fn for account changes and returns a cancel func.
	Watch(fn func(accounts []common.Address)) (cancel func())
}

// HDKeySource 从助记词派生多个账户，模拟 MetaMask 的账户切换
type HDKeySource struct {
	mu       sync.RWMutex
	keys     []*ecdsa.PrivateKey
	addrs    []common.Address
	active   int
	locked   bool
	watchers map[int]func([]common.Address)
	nextID   int
}

// NewHDKeySource derives count accounts along m/44'/60'/0'/0/i.
func NewHDKeySource(mnemonic, passphrase string, count int) (*HDKeySource, error) {
	if count <= 0 {
		count = 1
	}
	seed, err := bip39.NewMnemonicService().MnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	master, err := bip32.NewMasterKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}

	s := &HDKeySource{watchers: make(map[int]func([]common.Address))}
	for i := 0; i < count; i++ {
		k, err := master.DerivePath(bip32.AccountPath(uint32(i)))
		if err != nil {
			return nil, err
		}
		priv, err := k.ECDSA()
		if err != nil {
			return nil, err
		}
		s.keys = append(s.keys, priv)
		s.addrs = append(s.addrs, crypto.PubkeyToAddress(priv.PublicKey))
	}
	return s, nil
}

// LoadHDKeySource 优先解密 keystore 文件，没有文件时退回到明文助记词 (开发环境)
func LoadHDKeySource(keystorePath, password, mnemonic string, count int) (*HDKeySource, error) {
	if keystorePath != "" && password != "" {
		if _, err := os.Stat(keystorePath); err == nil {
			enc, err := keystore.LoadFromFile(keystorePath)
			if err != nil {
				return nil, err
			}
			m, err := keystore.DecryptMnemonic(enc, password)
			if err != nil {
				return nil, fmt.Errorf("decrypt keystore %s: %w", keystorePath, err)
			}
			return NewHDKeySource(m, "", count)
		}
	}
	if strings.TrimSpace(mnemonic) == "" {
		return nil, ErrNoProvider
	}
	return NewHDKeySource(mnemonic, "", count)
}

func (s *HDKeySource) Accounts() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountsLocked()
}

func (s *HDKeySource) accountsLocked() []common.Address {
	if s.locked {
		return nil
	}
	out := make([]common.Address, 0, len(s.addrs))
	out = append(out, s.addrs[s.active])
	for i, a := range s.addrs {
		if i != s.active {
			out = append(out, a)
		}
	}
	return out
}

// All returns every derived address in derivation order.
func (s *HDKeySource) All() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.Address(nil), s.addrs...)
}

func (s *HDKeySource) Key(account common.Address) (*ecdsa.PrivateKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.locked {
		return nil, false
	}
	for i, a := range s.addrs {
		if a == account {
			return s.keys[i], true
		}
	}
	return nil, false
}

// Select makes the index-th derived account the active one and notifies
// watchers. Selecting also unlocks.
func (s *HDKeySource) Select(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.addrs) {
		s.mu.Unlock()
		return fmt.Errorf("account index %d out of range [0,%d)", index, len(s.addrs))
	}
	if s.active == index && !s.locked {
		s.mu.Unlock()
		return nil
	}
	s.active = index
	s.locked = false
	accounts := s.accountsLocked()
	s.mu.Unlock()

	s.notify(accounts)
	return nil
}

// Lock hides all accounts, like locking a browser wallet.
func (s *HDKeySource) Lock() {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return
	}
	s.locked = true
	s.mu.Unlock()

	s.notify(nil)
}

func (s *HDKeySource) Watch(fn func(accounts []common.Address)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *HDKeySource) notify(accounts []common.Address) {
	s.mu.RLock()
	fns := make([]func([]common.Address), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(accounts)
	}
}

// StaticKeySource exposes one fixed key.
type StaticKeySource struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewStaticKeySource(key *ecdsa.PrivateKey) *StaticKeySource {
	return &StaticKeySource{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// LoadStaticKeySource reads a go-ethereum V3 keystore file when given,
// otherwise a hex private key.
func LoadStaticKeySource(privateKeyHex, gethKeystorePath, password string) (*StaticKeySource, error) {
	if gethKeystorePath != "" {
		data, err := os.ReadFile(gethKeystorePath)
		if err != nil {
			return nil, fmt.Errorf("read keystore: %w", err)
		}
		key, err := gethkeystore.DecryptKey(data, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore: %w", err)
		}
		return NewStaticKeySource(key.PrivateKey), nil
	}

	hexKey := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if hexKey == "" {
		return nil, ErrNoProvider
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.New("invalid private key")
	}
	return NewStaticKeySource(key), nil
}

func (s *StaticKeySource) Accounts() []common.Address {
	return []common.Address{s.addr}
}

func (s *StaticKeySource) Key(account common.Address) (*ecdsa.PrivateKey, bool) {
	if account != s.addr {
		return nil, false
	}
	return s.key, true
}

func (s *StaticKeySource) Watch(func([]common.Address)) func() {
	return func() {}
}
