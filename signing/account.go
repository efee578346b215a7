// Package signing holds the local signing account: the node's secp256k1
// private key, its monotonic transaction nonce, and the message/transaction
// signing operations built on top of them. The recoverable-signature and
// address-derivation conventions follow lnd's roasbeef/btcd
// (now btcsuite/btcd/btcec/v2) usage in discovery/validation.go and
// lnwallet/channel.go, adapted from Bitcoin's pubkey-hash addressing to
// Ethereum's keccak256(pubkey)[12:] addressing.
package signing

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	ecdsa_btcec "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/go-errors/errors"

	"github.com/raiden-network/raiden-core/primitives"
)

// InsufficientFunds is returned by callers that learn, out of band (from a
// transaction executor's estimate_gas step), that the account cannot cover a
// transaction's value plus gas. It is defined here rather than in
// txexecutor so that callers which only hold a signing.Account can still
// recognize the condition.
var InsufficientFunds = errors.New("signing: insufficient funds for transaction")

// Account holds one secp256k1 keypair and the strictly increasing nonce used
// to order this account's on-chain transactions. All mutation goes through
// the embedded mutex: the single-writer transition driver (spec §4.F) is the
// only component expected to call NextNonce, but Sign is safe to call from
// any goroutine (e.g. the retry queue signing a message for retransmission).
type Account struct {
	mu sync.Mutex

	privKey *btcec.PrivateKey
	address primitives.Address

	nextNonce uint64
}

// NewAccount derives an Account from a raw secp256k1 private key.
func NewAccount(privKey *btcec.PrivateKey) *Account {
	return &Account{
		privKey: privKey,
		address: addressFromPubkey(privKey.PubKey()),
	}
}

// NewAccountFromBytes parses a 32-byte private key, as loaded from an
// encrypted keystore file (spec §6 --keystore-path).
func NewAccountFromBytes(b []byte) (*Account, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("signing: private key must be 32 bytes, got %d", len(b))
	}
	privKey, _ := btcec.PrivKeyFromBytes(b)
	return NewAccount(privKey), nil
}

// Address returns the account's on-chain address.
func (a *Account) Address() primitives.Address {
	return a.address
}

// PeekNextNonce returns the nonce that the next transaction will use,
// without consuming it. Used by the transaction executor's
// validate_preconditions step (spec §4.J) to decide whether a stuck
// transaction needs to be replaced.
func (a *Account) PeekNextNonce() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextNonce
}

// NextNonce atomically consumes and returns the next transaction nonce.
// Every on-chain submission must call this exactly once and in the order
// the transactions are meant to be mined, since Ethereum rejects
// out-of-order nonces outright (spec §4.J, nonce sequencing).
func (a *Account) NextNonce() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.nextNonce
	a.nextNonce++
	return n
}

// SetNonce seeds the nonce counter from the chain's observed transaction
// count at startup, so restarts don't replay already-mined nonces.
func (a *Account) SetNonce(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextNonce = n
}

// Sign produces a 65-byte recoverable secp256k1 signature over hash: 32
// bytes r, 32 bytes s, 1 byte recovery id. When chainID is non-nil, the
// recovery byte is adjusted per EIP-155 (35 + chainID*2 + recid) so the
// signature cannot be replayed against a different chain; when nil, the
// legacy convention of 27+recid is used, which is what off-chain message
// signatures (spec §6) use throughout.
func (a *Account) Sign(hash primitives.Hash, chainID *uint64) (primitives.Signature, error) {
	sig, err := ecdsa_btcec.SignCompact(a.privKey, hash[:], false)
	if err != nil {
		return primitives.Signature{}, errors.Errorf("signing: sign failed: %v", err)
	}

	// btcec's SignCompact returns [recoveryID+27, r..., s...]; Ethereum's
	// convention is [r..., s..., v] with v counted from 27 (or EIP-155
	// adjusted), so the recovery byte moves from the front to the back.
	recID := sig[0] - 27

	var out primitives.Signature
	copy(out[0:32], sig[1:33])
	copy(out[32:64], sig[33:65])
	if chainID == nil {
		out[64] = 27 + recID
	} else {
		out[64] = byte(35 + (*chainID)*2 + uint64(recID))
	}
	return out, nil
}

// Recover recovers the signer's address from a message hash and a 65-byte
// recoverable signature produced by Sign, undoing whichever v convention
// was used (plain 27/28 or EIP-155). Used to authenticate an incoming
// signed message or balance proof against the sender address it claims.
func Recover(hash primitives.Hash, sig primitives.Signature) (primitives.Address, error) {
	v := sig[64]
	var recID byte
	switch {
	case v == 27 || v == 28:
		recID = v - 27
	case v >= 35:
		recID = byte((uint64(v) - 35) % 2)
	default:
		return primitives.Address{}, fmt.Errorf("signing: invalid recovery id %d", v)
	}

	compact := make([]byte, 65)
	compact[0] = 27 + recID
	copy(compact[1:33], sig[0:32])
	copy(compact[33:65], sig[32:64])

	pubKey, _, err := ecdsa_btcec.RecoverCompact(compact, hash[:])
	if err != nil {
		return primitives.Address{}, errors.Errorf("signing: recover failed: %v", err)
	}
	return addressFromPubkey(pubKey), nil
}

// addressFromPubkey derives an Ethereum-style address: the low 20 bytes of
// keccak256 of the uncompressed public key's 64-byte X||Y encoding (the
// leading 0x04 prefix byte is dropped before hashing).
func addressFromPubkey(pubKey *btcec.PublicKey) primitives.Address {
	raw := pubKey.SerializeUncompressed() // 0x04 || X(32) || Y(32)
	digest := primitives.Keccak256(raw[1:])

	var addr primitives.Address
	copy(addr[:], digest[12:])
	return addr
}
