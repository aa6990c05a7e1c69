// Package wallet holds the signing keypair and signs serialized
// Solana transactions built elsewhere.
package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// Wallet wraps an ed25519 keypair. The wallet is always the fee payer of
// transactions it signs, so its signature occupies the first slot.
type Wallet struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// NewFromBase58 builds a wallet from a base58-encoded secret key.
// Accepts the 64-byte keypair format or a 32-byte seed.
func NewFromBase58(secret string) (*Wallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("secret key must be %d or %d bytes, got %d",
			ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}

	return &Wallet{
		priv:   priv,
		pubkey: base58.Encode(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// Address returns the base58 public key.
func (w *Wallet) Address() string {
	return w.pubkey
}

// SignTransaction signs a base64-encoded serialized transaction and
// returns the signed payload. Works for both legacy and versioned
// messages: the signature array prefix is shared between the formats.
func (w *Wallet) SignTransaction(txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	numSigs, offset, err := decodeCompactU16(raw)
	if err != nil {
		return "", fmt.Errorf("read signature count: %w", err)
	}
	if numSigs < 1 {
		return "", fmt.Errorf("transaction has no signature slots")
	}

	msgStart := offset + numSigs*ed25519.SignatureSize
	if msgStart >= len(raw) {
		return "", fmt.Errorf("transaction truncated: %d bytes, message at %d", len(raw), msgStart)
	}

	sig := ed25519.Sign(w.priv, raw[msgStart:])
	copy(raw[offset:offset+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// decodeCompactU16 reads a compact-u16 length prefix.
func decodeCompactU16(data []byte) (int, int, error) {
	var value, shift uint
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("unexpected end of data")
		}
		b := uint(data[i])
		value |= (b & 0x7f) << shift
		if b&0x80 == 0 {
			return int(value), i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("compact-u16 too long")
}
