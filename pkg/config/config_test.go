package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	c := Default()

	assert.Equal(t, "8080", c.App.HttpPort)
	assert.Equal(t, int64(31337), c.Network.DefaultID)
	assert.Equal(t, 10*time.Second, c.Wallet.ConnectionTimeout)
	assert.Equal(t, uint64(1), c.Wallet.ConfirmationBlocks)
	assert.Equal(t, []string{"hd", "keystore"}, c.Wallet.Connectors)
	assert.Equal(t, 10*time.Second, c.UI.SuccessMessageTTL)
	assert.Equal(t, "none", c.Redis.MQType)
	assert.Equal(t, "500000", c.Fund.Amount)
}

func TestSupportedNetworks(t *testing.T) {
	n := Default().Network

	tests := []struct {
		id        int64
		name      string
		supported bool
	}{
		{1, "Ethereum Mainnet", true},
		{5, "Goerli Testnet", true},
		{11155111, "Sepolia Testnet", true},
		{1337, "Localhost", true},
		{31337, "Hardhat Network", true},
		{137, "", false},
	}
	for _, tt := range tests {
		name, ok := n.Name(tt.id)
		assert.Equal(t, tt.supported, ok, "chain %d", tt.id)
		assert.Equal(t, tt.name, name, "chain %d", tt.id)
	}
}
