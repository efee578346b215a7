package primitives

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes data with Keccak-256, the digest used throughout the
// on-chain contracts and therefore for locksroot and balance-hash
// computation (spec §4.A). golang.org/x/crypto is a direct teacher
// dependency (go.mod); sha3.NewLegacyKeccak256 gives the pre-NIST-finalized
// Keccak the Ethereum contracts use, as opposed to sha3.New256's
// standardized SHA3-256.
func Keccak256(data ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// HashSecret computes SecretHash = sha256(secret), per spec §4.A. This is
// deliberately sha256, not Keccak256: the secret-registry contract records
// sha256 hashes, not Keccak256 ones, and the spec is normative on this
// choice ("SecretHash: sha256(secret)").
func HashSecret(secret Secret) SecretHash {
	return Hash(sha256.Sum256(secret))
}

// LocksrootOfNoLocks is the locksroot of an end-state with no pending
// locks: keccak256 of the empty byte string. The original Rust node pins
// this as a named constant rather than treating an empty-locks channel as
// the all-zero hash (raiden/primitives/src/constants.rs); only the
// *balance hash* collapses to the zero hash, and only when transferred,
// locked and locksroot are all simultaneously at their zero values (spec
// invariant I4 / P5). See SPEC_FULL.md §12.
var LocksrootOfNoLocks = Keccak256()

// ComputeLocksroot returns the locksroot for a sequence of pending locks, in
// insertion order: keccak256 of the concatenation of each lock's canonical
// encoding (invariant I3). An empty slice returns LocksrootOfNoLocks.
func ComputeLocksroot(encodedLocks [][]byte) Hash {
	if len(encodedLocks) == 0 {
		return LocksrootOfNoLocks
	}
	return Keccak256(encodedLocks...)
}

// HashBalanceData computes balance_hash = keccak256(transferred_amount ||
// locked_amount || locksroot), each amount as a big-endian 32-byte word
// (invariant I4). The special case of "no locks, zero transferred, zero
// locked" returns the all-zero hash, matching
// raiden/primitives/src/hashing.rs::hash_balance_data exactly.
func HashBalanceData(transferredAmount, lockedAmount TokenAmount, locksroot Hash) Hash {
	if transferredAmount.IsZero() && lockedAmount.IsZero() && locksroot == LocksrootOfNoLocks {
		return Hash{}
	}
	ta := transferredAmount.ToBigEndian32()
	la := lockedAmount.ToBigEndian32()
	return Keccak256(ta[:], la[:], locksroot[:])
}
