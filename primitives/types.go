// Package primitives defines the fixed-width value types and canonical byte
// encodings shared by every other package in the node: addresses, hashes,
// secrets, the chain identifier, and the canonical identifier that names a
// channel uniquely across the whole universe of token networks.
package primitives

import (
	"encoding/hex"
	"fmt"
)

// AddressLength is the length in bytes of an on-chain account address.
const AddressLength = 20

// HashLength is the length in bytes of a keccak256/sha256 digest used
// throughout the protocol (locksroot, balance hash, secret hash, block
// hash, message hash).
const HashLength = 32

// Address is a 20-byte on-chain account address.
type Address [AddressLength]byte

// String renders the address as a "0x"-prefixed hex string.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Less reports whether a sorts before b under plain byte-wise ordering.
// Used to canonically order the two participants of a channel so that
// tie-breaks (e.g. two withdraws with an identical nonce, see
// SPEC_FULL.md §12) have a deterministic winner.
func (a Address) Less(b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// AddressFromHex parses a "0x"-prefixed or bare hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := decodeHex(s, AddressLength)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// MarshalText renders the address as hex, so it can appear as a JSON object
// key (state_changes/state_events/state_snapshot rows key several maps by
// Address; encoding/json only allows non-string map keys when the key type
// implements encoding.TextMarshaler).
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromHex(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash is a 32-byte digest: a locksroot, a balance hash, a block hash, or a
// message hash, depending on context.
type Hash [HashLength]byte

// String renders the hash as a "0x"-prefixed hex string.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashFromHex parses a "0x"-prefixed or bare hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := decodeHex(s, HashLength)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	copy(h[:], b)
	return h, nil
}

// MarshalText renders the hash as hex, so a SecretHash can appear as a JSON
// object key (ChannelEndState's three lock maps are keyed by SecretHash).
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// SecretHash is sha256(Secret), the HTLC lock's identifying hash.
type SecretHash = Hash

// Secret is the HTLC preimage. It is of variable length on the wire but the
// canonical, locally-generated form is always 32 bytes.
type Secret []byte

// Hash returns the SecretHash of the secret (sha256, per spec §4.A).
func (s Secret) Hash() SecretHash {
	return HashSecret(s)
}

// String renders the secret as a "0x"-prefixed hex string. Secrets are
// sensitive; callers should avoid logging this at anything but debug level.
func (s Secret) String() string {
	return "0x" + hex.EncodeToString(s)
}

// Signature is a 65-byte secp256k1 recoverable signature: 32 bytes r, 32
// bytes s, 1 byte v (recovery id, EIP-155 adjusted when a chain ID is bound
// to the signed payload).
type Signature [65]byte

// IsZero reports whether the signature is the all-zero placeholder used by
// BalanceProofState before it has been locally signed.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

func decodeHex(s string, wantLen int) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("want %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}
