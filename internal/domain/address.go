package domain

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies an account or contract on the ledger.
type Address = common.Address

// ZeroAddress is the unset address.
var ZeroAddress = Address{}

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// MarketAddress derives the contract address of the market with the given
// id. Addresses are deterministic so a restarted operator finds the same
// contracts.
func MarketAddress(id uint64) Address {
	return common.BytesToAddress(binary.BigEndian.AppendUint64([]byte("market"), id))
}

// VaultAddress is the contract address of the shared vault.
func VaultAddress() Address {
	return common.BytesToAddress([]byte("vault"))
}
