package bip32

import (
	"encoding/hex"
	"testing"

	"dapp-core/pkg/bip39"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hardhat / Anvil 默认助记词
const devMnemonic = "test test test test test test test test test test test junk"

func devWallet(t *testing.T) *Wallet {
	t.Helper()
	seed, err := bip39.NewMnemonicService().MnemonicToSeed(devMnemonic, "")
	require.NoError(t, err)
	w, err := NewMasterKeyFromSeed(seed)
	require.NoError(t, err)
	return w
}

func TestDeriveKnownAccounts(t *testing.T) {
	w := devWallet(t)

	tests := []struct {
		index uint32
		want  string
	}{
		{0, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		{1, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"},
		{2, "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"},
	}
	for _, tt := range tests {
		key, err := w.DerivePath(AccountPath(tt.index))
		require.NoError(t, err)
		addr, err := key.Address()
		require.NoError(t, err)
		assert.Equal(t, tt.want, addr.Hex(), "账户 %d 地址不匹配", tt.index)
	}
}

func TestDerivePathFormats(t *testing.T) {
	w := devWallet(t)

	a, err := w.DerivePath("m/44'/60'/0'/0/0")
	require.NoError(t, err)
	b, err := w.DerivePath("m/44h/60h/0h/0/0")
	require.NoError(t, err)

	addrA, _ := a.Address()
	addrB, _ := b.Address()
	assert.Equal(t, addrA, addrB)

	_, err = w.DerivePath("44'/60'")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = w.DerivePath("m/abc")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestInvalidSeed(t *testing.T) {
	short, _ := hex.DecodeString("fffcf9")
	_, err := NewMasterKeyFromSeed(short)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}
