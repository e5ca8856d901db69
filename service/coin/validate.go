package coin

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"
	solanago "github.com/gagliardetto/solana-go"
)

// LitecoinParams holds the litecoin mainnet address and HD parameters.
// btcd only ships bitcoin networks, so litecoin is registered here with
// its published magic values (P2PKH 0x30, P2SH 0x32, bech32 "ltc").
var LitecoinParams = chaincfg.Params{
	Name:             "litecoin",
	Net:              wire.BitcoinNet(0xdbb6c0fb),
	PubKeyHashAddrID: 0x30,
	ScriptHashAddrID: 0x32,
	PrivateKeyID:     0xb0,
	Bech32HRPSegwit:  "ltc",
	HDPrivateKeyID:   [4]byte{0x04, 0x88, 0xad, 0xe4},
	HDPublicKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e},
	HDCoinType:       2,
}

func init() {
	// Register ignores nothing: a duplicate registration is a programmer
	// error, but tests may re-import this package, so tolerate it.
	if err := chaincfg.Register(&LitecoinParams); err != nil && err != chaincfg.ErrDuplicateNet {
		panic(err)
	}
}

// ValidateAddress reports whether address is syntactically valid for the
// given coin family. This is a pure format check (prefix, charset,
// checksum) with no network or cryptographic verification, so it is safe
// to call from any goroutine and always yields the same answer for the
// same input.
func ValidateAddress(address, family string) bool {
	if address == "" {
		return false
	}
	switch family {
	case FamilyBitcoin:
		return validateBase58Or32(address, &chaincfg.MainNetParams)
	case FamilyLitecoin:
		return validateBase58Or32(address, &LitecoinParams)
	case FamilyEthereum:
		return common.IsHexAddress(address)
	case FamilySolana:
		_, err := solanago.PublicKeyFromBase58(address)
		return err == nil
	default:
		return false
	}
}

// validateBase58Or32 checks a bitcoin-family address (base58check or
// bech32) against the given network parameters.
func validateBase58Or32(address string, params *chaincfg.Params) bool {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return false
	}
	return addr.IsForNet(params)
}
