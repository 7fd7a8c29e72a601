package bip39

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicService 提供助记词相关的功能
type MnemonicService struct{}

func NewMnemonicService() *MnemonicService {
	return &MnemonicService{}
}

// GenerateMnemonic 生成一个新的随机助记词 (BIP-39)。
// bitSize: 128 (12 个单词) 或 256 (24 个单词)。
func (s *MnemonicService) GenerateMnemonic(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", fmt.Errorf("生成熵失败: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("生成助记词失败: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether the phrase has a valid word list and checksum.
func (s *MnemonicService) ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalize(mnemonic))
}

// MnemonicToSeed 将助记词转换为种子，校验失败时返回错误而不是静默生成种子。
func (s *MnemonicService) MnemonicToSeed(mnemonic string, passphrase string) ([]byte, error) {
	return bip39.NewSeedWithErrorChecking(normalize(mnemonic), passphrase)
}

func normalize(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}
