package coin

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

const otherMnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestBitcoinDeriveAddressIsDeterministic(t *testing.T) {
	svc := NewBitcoinService("", "", "", testLogger())
	ctx := context.Background()

	first, err := svc.DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)
	second, err := svc.DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "1"))
	assert.True(t, ValidateAddress(first, FamilyBitcoin))
	assert.False(t, ValidateAddress(first, FamilyLitecoin))

	other, err := svc.DeriveAddress(ctx, otherMnemonic)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestLitecoinDeriveAddressUsesLitecoinNetwork(t *testing.T) {
	svc := NewLitecoinService("", "", "", testLogger())
	ctx := context.Background()

	addr, err := svc.DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(addr, "L"))
	assert.True(t, ValidateAddress(addr, FamilyLitecoin))
	assert.False(t, ValidateAddress(addr, FamilyBitcoin))

	// Same seed, different coin type, different key
	btc, err := NewBitcoinService("", "", "", testLogger()).DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)
	assert.NotEqual(t, btc, addr)
}

func TestDeriveAddressRejectsInvalidMnemonic(t *testing.T) {
	ctx := context.Background()
	invalid := "this is not a valid seed phrase at all twelve words here now"

	_, err := NewBitcoinService("", "", "", testLogger()).DeriveAddress(ctx, invalid)
	assert.Error(t, err)

	_, err = NewSolanaService(nil, testLogger()).DeriveAddress(ctx, invalid)
	assert.Error(t, err)
}

func TestEthereumDeriveAddressIsDeterministic(t *testing.T) {
	// Dialing an HTTP endpoint is lazy; derivation is purely local
	svc, err := NewEthereumService("http://localhost:8545", testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)
	second, err := svc.DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, ValidateAddress(first, FamilyEthereum))
}

func TestSolanaDeriveAddressIsDeterministic(t *testing.T) {
	svc := NewSolanaService(nil, testLogger())
	ctx := context.Background()

	first, err := svc.DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)
	second, err := svc.DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, ValidateAddress(first, FamilySolana))

	other, err := svc.DeriveAddress(ctx, otherMnemonic)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestNewMnemonic(t *testing.T) {
	first, err := NewMnemonic()
	require.NoError(t, err)
	assert.Len(t, strings.Fields(first), 12)
	assert.True(t, ValidateMnemonic(first))

	second, err := NewMnemonic()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestValidateMnemonic(t *testing.T) {
	assert.True(t, ValidateMnemonic(testMnemonic))
	assert.False(t, ValidateMnemonic(""))
	assert.False(t, ValidateMnemonic("abandon abandon abandon"))
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	btc := NewMockService(FamilyBitcoin)
	sol := NewMockService(FamilySolana)
	registry.Register(FamilyBitcoin, btc)
	registry.Register(FamilySolana, sol)

	svc, ok := registry.Get(FamilyBitcoin)
	require.True(t, ok)
	assert.Same(t, btc, svc)

	_, ok = registry.Get(FamilyEthereum)
	assert.False(t, ok)

	assert.Equal(t, []string{FamilyBitcoin, FamilySolana}, registry.Families())

	registry.ClearAll()
	assert.Equal(t, 1, btc.ClearCalls)
	assert.Equal(t, 1, sol.ClearCalls)
}
