package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// SPL account data sizes.
const (
	MintAccountSize  = 82
	TokenAccountSize = 165
)

// Mint is a decoded SPL token mint account.
// Layout: mintAuthority COption<Pubkey>(4+32) | supply u64 | decimals u8 |
// isInitialized u8 | freezeAuthority COption<Pubkey>(4+32).
type Mint struct {
	MintAuthority   string // empty when revoked
	Supply          uint64
	Decimals        uint8
	Initialized     bool
	FreezeAuthority string // empty when revoked
}

// ParseMint decodes raw SPL mint account data.
func ParseMint(data []byte) (*Mint, error) {
	if len(data) < MintAccountSize {
		return nil, fmt.Errorf("mint data too short: %d", len(data))
	}

	m := &Mint{
		Supply:      binary.LittleEndian.Uint64(data[36:44]),
		Decimals:    data[44],
		Initialized: data[45] == 1,
	}

	if binary.LittleEndian.Uint32(data[0:4]) == 1 {
		m.MintAuthority = base58.Encode(data[4:36])
	}
	if binary.LittleEndian.Uint32(data[46:50]) == 1 {
		m.FreezeAuthority = base58.Encode(data[50:82])
	}

	return m, nil
}

// TokenAccount is a decoded SPL token account.
// Layout: mint(32) | owner(32) | amount u64 | ...
type TokenAccount struct {
	Mint   string
	Owner  string
	Amount uint64
}

// ParseTokenAccount decodes raw SPL token account data.
func ParseTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < 72 {
		return nil, fmt.Errorf("token account data too short: %d", len(data))
	}

	return &TokenAccount{
		Mint:   base58.Encode(data[0:32]),
		Owner:  base58.Encode(data[32:64]),
		Amount: binary.LittleEndian.Uint64(data[64:72]),
	}, nil
}
