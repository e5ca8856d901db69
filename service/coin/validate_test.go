package coin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		family  string
		want    bool
	}{
		{"bitcoin p2pkh", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", FamilyBitcoin, true},
		{"bitcoin bech32", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", FamilyBitcoin, true},
		{"bitcoin bad checksum", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", FamilyBitcoin, false},
		{"bitcoin address on litecoin", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", FamilyLitecoin, false},
		{"ethereum lowercase", "0xde709f2102306220921060314715629080e2fb77", FamilyEthereum, true},
		{"ethereum checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", FamilyEthereum, true},
		{"ethereum truncated", "0x123", FamilyEthereum, false},
		{"solana", "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi", FamilySolana, true},
		{"solana bad charset", "not-a-solana-address", FamilySolana, false},
		{"empty address", "", FamilyBitcoin, false},
		{"unknown family", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "dogecoin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAddress(tt.address, tt.family))
		})
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("low")
	assert.NoError(t, err)
	assert.Equal(t, PriorityLow, p)

	p, err = ParsePriority("")
	assert.NoError(t, err)
	assert.Equal(t, PriorityNormal, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}
