package primitives

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Uint256 is a 256-bit unsigned integer, used for every amount that can
// legitimately overflow a machine word on an EVM chain: nonces, token
// amounts, and locked amounts. It wraps math/big.Int (the representation
// SmartMeshFoundation/SmartRaiden uses throughout its transfer state,
// e.g. mediatedtransfer.ActionInitInitiatorStateChange) rather than a
// fixed-width array, since arithmetic overflow here must be an explicit,
// checked error rather than silent wraparound.
type Uint256 struct {
	v big.Int
}

// ZeroUint256 returns the additive identity.
func ZeroUint256() Uint256 {
	return Uint256{}
}

// NewUint256FromUint64 constructs a Uint256 from a machine-word value.
func NewUint256FromUint64(n uint64) Uint256 {
	var u Uint256
	u.v.SetUint64(n)
	return u
}

// Uint256FromBigEndian decodes a big-endian byte slice (any length up to 32)
// into a Uint256, the inverse of ToBigEndian32.
func Uint256FromBigEndian(b []byte) Uint256 {
	var u Uint256
	u.v.SetBytes(b)
	return u
}

// ToBigEndian32 renders the value as a 32-byte big-endian array, the
// canonical encoding used by balance-hash and withdraw packing (spec §4.A).
func (u Uint256) ToBigEndian32() [32]byte {
	var out [32]byte
	b := u.v.Bytes()
	if len(b) > 32 {
		// Unreachable for values produced by this package's arithmetic,
		// which all originate from on-chain uint256 quantities.
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}

// IsZero reports whether the value is zero.
func (u Uint256) IsZero() bool {
	return u.v.Sign() == 0
}

// Cmp compares u to other: -1, 0, +1.
func (u Uint256) Cmp(other Uint256) int {
	return u.v.Cmp(&other.v)
}

// Add returns u + other.
func (u Uint256) Add(other Uint256) Uint256 {
	var out Uint256
	out.v.Add(&u.v, &other.v)
	return out
}

// Sub returns u - other. Callers on the hot path of a balance computation
// must have already checked other <= u; Sub does not clamp, so an
// unchecked call can produce a negative result that will round-trip
// incorrectly through ToBigEndian32.
func (u Uint256) Sub(other Uint256) Uint256 {
	var out Uint256
	out.v.Sub(&u.v, &other.v)
	return out
}

// SaturatingAdd returns u + other; present for symmetry with the original
// Rust state machine's saturating_add used when folding lock amounts
// (raiden/state-machine/src/machine/channel/views.rs get_amount_locked),
// where overflow of a token amount is a protocol violation rather than a
// value to clamp, so this is equivalent to Add for the amounts this code
// actually manipulates (bounded by on-chain deposits).
func (u Uint256) SaturatingAdd(other Uint256) Uint256 {
	return u.Add(other)
}

// Mul returns u * other.
func (u Uint256) Mul(other Uint256) Uint256 {
	var out Uint256
	out.v.Mul(&u.v, &other.v)
	return out
}

// MulUint64 returns u * n.
func (u Uint256) MulUint64(n uint64) Uint256 {
	return u.Mul(NewUint256FromUint64(n))
}

// DivUint64Floor returns floor(u / n). Division by zero panics, matching
// big.Int's behavior; callers must guard n != 0.
func (u Uint256) DivUint64Floor(n uint64) Uint256 {
	var out Uint256
	out.v.Div(&u.v, big.NewInt(0).SetUint64(n))
	return out
}

// Uint64 returns the value truncated to a machine word. Used only where the
// caller has already bounded the value (e.g. a per-hop fee in parts per
// million applied to a deposit-bounded amount).
func (u Uint256) Uint64() uint64 {
	return u.v.Uint64()
}

// String renders the value in base 10.
func (u Uint256) String() string {
	return u.v.String()
}

// MarshalJSON encodes the value as a JSON string so state_changes/state_events
// rows (spec §6) can carry amounts without precision loss through float64.
func (u Uint256) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.v.String())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (u *Uint256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, ok := u.v.SetString(s, 10); !ok {
		return fmt.Errorf("primitives: invalid Uint256 literal %q", s)
	}
	return nil
}

// TokenAmount is an ERC20-denominated amount: a channel deposit, a transfer
// amount, or a withdraw amount.
type TokenAmount = Uint256

// LockedAmount is the sum of amounts currently locked in pending HTLCs on
// one side of a channel.
type LockedAmount = Uint256

// Nonce is the strictly monotonic balance-proof counter for one end of a
// channel (invariant I2).
type Nonce = Uint256

// BlockNumber is an Ethereum block height.
type BlockNumber uint64

// BlockExpiration is a block height at which a lock or withdraw expires.
type BlockExpiration uint64

// SettleTimeout is, in blocks, the delay between a channel close and the
// earliest block at which the channel may be settled on-chain.
type SettleTimeout uint64

// RevealTimeout is, in blocks, the minimum safety margin between a lock's
// expiration and the block at which it is still safe to reveal the secret
// on-chain.
type RevealTimeout uint64
