package bip39

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "test test test test test test test test test test test junk"

func TestGenerateMnemonic(t *testing.T) {
	svc := NewMnemonicService()

	m, err := svc.GenerateMnemonic(128)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 12)
	assert.True(t, svc.ValidateMnemonic(m))

	m, err = svc.GenerateMnemonic(256)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 24)
}

func TestMnemonicToSeed(t *testing.T) {
	svc := NewMnemonicService()

	seed, err := svc.MnemonicToSeed(testMnemonic, "")
	require.NoError(t, err)
	assert.Len(t, seed, 64)

	// 多余空白不影响种子
	again, err := svc.MnemonicToSeed("  test test test test test test test test test test test   junk ", "")
	require.NoError(t, err)
	assert.Equal(t, seed, again)

	_, err = svc.MnemonicToSeed("test test test", "")
	assert.Error(t, err)
}
