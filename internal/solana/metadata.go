package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// metadataV1Key is the account discriminator for MetadataV1.
const metadataV1Key = 4

// Metadata is a decoded Metaplex token metadata account.
type Metadata struct {
	UpdateAuthority string
	Mint            string
	Name            string
	Symbol          string
	URI             string
}

// ParseMetadata decodes a Metaplex metadata account.
// Layout: key u8 | updateAuthority(32) | mint(32) | name | symbol | uri,
// where the strings are borsh-encoded with a u32 length prefix.
func ParseMetadata(data []byte) (*Metadata, error) {
	if len(data) < 65 {
		return nil, fmt.Errorf("metadata data too short: %d", len(data))
	}
	if data[0] != metadataV1Key {
		return nil, fmt.Errorf("unexpected metadata key: %d", data[0])
	}

	md := &Metadata{
		UpdateAuthority: base58.Encode(data[1:33]),
		Mint:            base58.Encode(data[33:65]),
	}

	offset := 65
	var err error
	if md.Name, offset, err = readBorshString(data, offset); err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	if md.Symbol, offset, err = readBorshString(data, offset); err != nil {
		return nil, fmt.Errorf("read symbol: %w", err)
	}
	if md.URI, _, err = readBorshString(data, offset); err != nil {
		return nil, fmt.Errorf("read uri: %w", err)
	}

	return md, nil
}

// readBorshString reads a u32-length-prefixed string, trimming the NUL
// padding Metaplex pads fixed-size fields with.
func readBorshString(data []byte, offset int) (string, int, error) {
	if offset+4 > len(data) {
		return "", 0, fmt.Errorf("string length out of bounds at %d", offset)
	}
	length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if length < 0 || offset+length > len(data) {
		return "", 0, fmt.Errorf("string body out of bounds at %d len %d", offset, length)
	}

	raw := data[offset : offset+length]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return string(raw[:end]), offset + length, nil
}
