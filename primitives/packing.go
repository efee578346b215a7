package primitives

// This file implements the normative byte layouts of spec §4.A. The layouts
// are fixed by the on-chain contracts' abi.encode conventions: a uint256 is
// a 32-byte big-endian word and an address is left-padded to 32 bytes when
// it appears inside an abi.encode(...) tuple, but packed as a bare 20 bytes
// when it is the leading field of a signed message (as token_network_address
// is in pack_balance_proof). This mirrors raiden/primitives/src/packing.rs
// in the original node, translated from web3's ethabi encoder to explicit
// byte-slice construction.

// MessageTypeID is the single-byte discriminator prefixed into a balance
// proof's signed payload (spec §6).
type MessageTypeID uint8

// Normative message type ids (spec §6).
const (
	MessageTypeBalanceProof       MessageTypeID = 1
	MessageTypeBalanceProofUpdate MessageTypeID = 2
	MessageTypeWithdraw           MessageTypeID = 3
	MessageTypeCooperativeSettle  MessageTypeID = 4
	MessageTypeIOU                MessageTypeID = 5
	MessageTypeMSReward           MessageTypeID = 6
)

// abiUint256 returns the 32-byte big-endian abi.encode representation of a
// uint256.
func abiUint256(v Uint256) []byte {
	b := v.ToBigEndian32()
	return b[:]
}

// abiAddress returns the 32-byte, left-zero-padded abi.encode representation
// of an address (used when an address is a field inside an encoded tuple,
// as opposed to the bare 20-byte form used for the leading field of a
// message's signed payload).
func abiAddress(a Address) []byte {
	var out [32]byte
	copy(out[12:], a[:])
	return out[:]
}

// PackBalanceProof builds the byte sequence that is signed (after appending
// a 65-byte signature for PackBalanceProofMessage, or hashed directly for
// on-chain verification) to authenticate a balance proof:
//
//	token_network_address (20B) || abi_encode(chain_id as u256) ||
//	abi_encode(msg_type as u256) || abi_encode(channel_identifier as u256) ||
//	balance_hash (32B) || abi_encode(nonce as u256) || additional_hash (32B)
func PackBalanceProof(
	nonce Nonce,
	balanceHash Hash,
	additionalHash Hash,
	canonicalIdentifier CanonicalIdentifier,
	msgType MessageTypeID,
) []byte {
	var b []byte
	b = append(b, canonicalIdentifier.TokenNetworkAddress[:]...)
	b = append(b, abiUint256(NewUint256FromUint64(canonicalIdentifier.ChainID.Uint64()))...)
	b = append(b, abiUint256(NewUint256FromUint64(uint64(msgType)))...)
	b = append(b, abiUint256(canonicalIdentifier.ChannelID)...)
	b = append(b, balanceHash[:]...)
	b = append(b, abiUint256(nonce)...)
	b = append(b, additionalHash[:]...)
	return b
}

// PackBalanceProofMessage is PackBalanceProof with the partner's (i.e. the
// message recipient's) signature appended, used to authenticate messages
// that echo back a balance proof already signed by the other side (e.g.
// BalanceProofUpdate submitted on-chain by us on their behalf).
func PackBalanceProofMessage(
	nonce Nonce,
	balanceHash Hash,
	additionalHash Hash,
	canonicalIdentifier CanonicalIdentifier,
	msgType MessageTypeID,
	partnerSignature Signature,
) []byte {
	b := PackBalanceProof(nonce, balanceHash, additionalHash, canonicalIdentifier, msgType)
	return append(b, partnerSignature[:]...)
}

// PackWithdraw builds the byte sequence signed to authenticate a withdraw:
// abi_encode(tuple(token_network_address, chain_id, channel_identifier,
// participant, total_withdraw, expiration)).
func PackWithdraw(
	canonicalIdentifier CanonicalIdentifier,
	participant Address,
	totalWithdraw TokenAmount,
	expiration BlockExpiration,
) []byte {
	var b []byte
	b = append(b, abiAddress(canonicalIdentifier.TokenNetworkAddress)...)
	b = append(b, abiUint256(NewUint256FromUint64(canonicalIdentifier.ChainID.Uint64()))...)
	b = append(b, abiUint256(canonicalIdentifier.ChannelID)...)
	b = append(b, abiAddress(participant)...)
	b = append(b, abiUint256(totalWithdraw)...)
	b = append(b, abiUint256(NewUint256FromUint64(uint64(expiration)))...)
	return b
}

// EncodeLock returns the canonical encoding of a single HTLC lock, the unit
// that ComputeLocksroot concatenates: expiration (32B) || amount (32B) ||
// secrethash (32B). Insertion order of these 96-byte blocks into
// ComputeLocksroot is what invariant I3 requires.
func EncodeLock(expiration BlockExpiration, amount TokenAmount, secrethash SecretHash) []byte {
	out := make([]byte, 0, 96)
	out = append(out, abiUint256(NewUint256FromUint64(uint64(expiration)))...)
	out = append(out, abiUint256(amount)...)
	out = append(out, secrethash[:]...)
	return out
}
