// Package wire defines the node's peer-to-peer message set (spec §6): JSON,
// authenticated messages exchanged over the transport adapter (package
// transport). The message catalogue and cmd-id numbering are normative
// (spec §6); the Message interface and the CmdID-keyed dispatch table below
// are modeled directly on the teacher's lnwire.Message / MessageType /
// makeEmptyMessage pattern (lnwire/message.go), adapted from lnd's
// binary-framed wire format to this protocol's JSON-over-Matrix one: CmdID
// plays the role of lnwire.MessageType, and Marshal/Unmarshal play the role
// of Encode/Decode.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/raiden-network/raiden-core/primitives"
)

// CmdID is the single-byte discriminator prefixed onto every peer-to-peer
// message (spec §6).
type CmdID uint8

// Normative cmd ids (spec §6).
const (
	CmdProcessed             CmdID = 0
	CmdPing                  CmdID = 1
	CmdPong                  CmdID = 2
	CmdSecretRequest         CmdID = 3
	CmdUnlock                CmdID = 4
	CmdLockedTransfer        CmdID = 7
	CmdRefundTransfer        CmdID = 8
	CmdRevealSecret          CmdID = 11
	CmdDelivered             CmdID = 12
	CmdLockExpired           CmdID = 13
	CmdWithdrawRequest       CmdID = 15
	CmdWithdrawConfirmation  CmdID = 16
	CmdWithdrawExpired       CmdID = 17
)

// Message is implemented by every concrete wire message. SignedBytes
// returns the canonical byte sequence the sender's signature covers, built
// per the packing rules of spec §4.A; Cmd identifies which concrete type
// Unmarshal should construct.
type Message interface {
	Cmd() CmdID
	SignedBytes() []byte
}

// Lock carries one HTLC's terms, embedded in LockedTransfer (spec §6).
type Lock struct {
	Amount     primitives.TokenAmount    `json:"amount"`
	Expiration primitives.BlockExpiration `json:"expiration"`
	SecretHash primitives.SecretHash      `json:"secrethash"`
}

// RouteMetadata carries one candidate hop plus whatever address metadata
// the pathfinding service attached to it, embedded in LockedTransfer's
// Metadata field (spec §6).
type RouteMetadata struct {
	Route          []primitives.Address `json:"route"`
	AddressMetadata map[string]string   `json:"address_metadata,omitempty"`
}

// Metadata carries LockedTransfer's route list and, once known, the secret
// a later resend might echo back (spec §6).
type Metadata struct {
	Routes []RouteMetadata  `json:"routes"`
	Secret primitives.Secret `json:"secret,omitempty"`
}

// LockedTransfer is the HTLC offer forwarded hop by hop along a payment's
// route (spec §6).
type LockedTransfer struct {
	ChainID             primitives.ChainID  `json:"chain_id"`
	MessageIdentifier   uint32              `json:"message_identifier"`
	Nonce               primitives.Nonce    `json:"nonce"`
	TokenNetworkAddress primitives.Address  `json:"token_network_address"`
	ChannelIdentifier   primitives.ChannelID `json:"channel_identifier"`
	Recipient           primitives.Address  `json:"recipient"`
	Target              primitives.Address  `json:"target"`
	Initiator           primitives.Address  `json:"initiator"`
	Locksroot           primitives.Hash     `json:"locksroot"`
	LockedAmount        primitives.LockedAmount `json:"locked_amount"`
	TransferredAmount   primitives.TokenAmount  `json:"transferred_amount"`
	PaymentIdentifier   uint64              `json:"payment_identifier"`
	Token               primitives.Address  `json:"token"`
	Lock                Lock                `json:"lock"`
	Metadata            Metadata            `json:"metadata"`
	Signature           primitives.Signature `json:"signature"`
}

func (m *LockedTransfer) Cmd() CmdID { return CmdLockedTransfer }

// SignedBytes is the canonical balance-proof packing of spec §4.A, with
// the LockedTransfer-specific fields (lock + metadata) folded into the
// additional_hash the balance proof binds to, matching the original
// node's message_identifier_and_hash-based additional_hash construction
// (raiden/primitives/src/packing.rs pack_balance_proof /
// pack_additional_hash).
func (m *LockedTransfer) SignedBytes() []byte {
	additionalHash := primitives.Keccak256(m.Lock.SecretHash[:])
	canonical := primitives.CanonicalIdentifier{
		ChainID:             m.ChainID,
		TokenNetworkAddress: m.TokenNetworkAddress,
		ChannelID:           m.ChannelIdentifier,
	}
	balanceHash := primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot)
	return primitives.PackBalanceProof(m.Nonce, balanceHash, additionalHash, canonical, primitives.MessageTypeBalanceProof)
}

// Unlock redeems a previously offered lock, carrying the updated balance
// proof with the lock removed and its amount credited (spec §6).
type Unlock struct {
	ChainID             primitives.ChainID   `json:"chain_id"`
	MessageIdentifier   uint32               `json:"message_identifier"`
	Nonce               primitives.Nonce     `json:"nonce"`
	TokenNetworkAddress primitives.Address   `json:"token_network_address"`
	ChannelIdentifier   primitives.ChannelID `json:"channel_identifier"`
	PaymentIdentifier   uint64               `json:"payment_identifier"`
	Secret              primitives.Secret    `json:"secret"`
	Locksroot           primitives.Hash      `json:"locksroot"`
	LockedAmount        primitives.LockedAmount `json:"locked_amount"`
	TransferredAmount   primitives.TokenAmount  `json:"transferred_amount"`
	Signature           primitives.Signature `json:"signature"`
}

func (m *Unlock) Cmd() CmdID { return CmdUnlock }

func (m *Unlock) SignedBytes() []byte {
	additionalHash := primitives.Keccak256(m.Secret)
	canonical := primitives.CanonicalIdentifier{
		ChainID:             m.ChainID,
		TokenNetworkAddress: m.TokenNetworkAddress,
		ChannelID:           m.ChannelIdentifier,
	}
	balanceHash := primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot)
	return primitives.PackBalanceProof(m.Nonce, balanceHash, additionalHash, canonical, primitives.MessageTypeBalanceProof)
}

// SecretRequest asks the transfer's initiator to reveal the preimage once
// the target has received a matching lock (spec §6).
type SecretRequest struct {
	MessageIdentifier uint32              `json:"message_identifier"`
	PaymentIdentifier uint64              `json:"payment_identifier"`
	SecretHash        primitives.SecretHash `json:"secrethash"`
	Amount            primitives.TokenAmount `json:"amount"`
	Expiration        primitives.BlockExpiration `json:"expiration"`
	Signature         primitives.Signature `json:"signature"`
}

func (m *SecretRequest) Cmd() CmdID { return CmdSecretRequest }

func (m *SecretRequest) SignedBytes() []byte {
	var b []byte
	b = append(b, byte(CmdSecretRequest))
	b = appendUint32(b, m.MessageIdentifier)
	b = appendUint64(b, m.PaymentIdentifier)
	b = append(b, m.SecretHash[:]...)
	amt := m.Amount.ToBigEndian32()
	b = append(b, amt[:]...)
	b = appendUint64(b, uint64(m.Expiration))
	return b
}

// SecretReveal discloses the preimage, either forward (target to initiator
// along the route upstream) or backward (mediator to payer) (spec §6).
type SecretReveal struct {
	MessageIdentifier uint32            `json:"message_identifier"`
	Secret            primitives.Secret `json:"secret"`
	Signature         primitives.Signature `json:"signature"`
}

func (m *SecretReveal) Cmd() CmdID { return CmdRevealSecret }

func (m *SecretReveal) SignedBytes() []byte {
	var b []byte
	b = append(b, byte(CmdRevealSecret))
	b = appendUint32(b, m.MessageIdentifier)
	b = append(b, m.Secret...)
	return b
}

// LockExpired confirms a sender-side lock has been dropped after its
// expiration passed unredeemed, carrying the balance proof with the lock
// removed from locked_amount/locksroot but not credited to
// transferred_amount (spec §6, distinguishing it from Unlock).
type LockExpired struct {
	ChainID             primitives.ChainID   `json:"chain_id"`
	MessageIdentifier   uint32               `json:"message_identifier"`
	Nonce               primitives.Nonce     `json:"nonce"`
	TokenNetworkAddress primitives.Address   `json:"token_network_address"`
	ChannelIdentifier   primitives.ChannelID `json:"channel_identifier"`
	SecretHash          primitives.SecretHash `json:"secrethash"`
	Locksroot           primitives.Hash      `json:"locksroot"`
	LockedAmount        primitives.LockedAmount `json:"locked_amount"`
	TransferredAmount   primitives.TokenAmount  `json:"transferred_amount"`
	Signature           primitives.Signature `json:"signature"`
}

func (m *LockExpired) Cmd() CmdID { return CmdLockExpired }

func (m *LockExpired) SignedBytes() []byte {
	additionalHash := primitives.Keccak256(m.SecretHash[:])
	canonical := primitives.CanonicalIdentifier{
		ChainID:             m.ChainID,
		TokenNetworkAddress: m.TokenNetworkAddress,
		ChannelID:           m.ChannelIdentifier,
	}
	balanceHash := primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot)
	return primitives.PackBalanceProof(m.Nonce, balanceHash, additionalHash, canonical, primitives.MessageTypeBalanceProof)
}

// WithdrawRequest is the first leg of the 3-leg withdraw protocol (spec
// §6, §4.D).
type WithdrawRequest struct {
	ChainID             primitives.ChainID   `json:"chain_id"`
	MessageIdentifier   uint32               `json:"message_identifier"`
	TokenNetworkAddress primitives.Address   `json:"token_network_address"`
	ChannelIdentifier   primitives.ChannelID `json:"channel_identifier"`
	Participant         primitives.Address  `json:"participant"`
	TotalWithdraw       primitives.TokenAmount `json:"total_withdraw"`
	Nonce               primitives.Nonce     `json:"nonce"`
	Expiration          primitives.BlockExpiration `json:"expiration"`
	Signature           primitives.Signature `json:"signature"`
}

func (m *WithdrawRequest) Cmd() CmdID { return CmdWithdrawRequest }

func (m *WithdrawRequest) SignedBytes() []byte {
	canonical := primitives.CanonicalIdentifier{
		ChainID:             m.ChainID,
		TokenNetworkAddress: m.TokenNetworkAddress,
		ChannelID:           m.ChannelIdentifier,
	}
	return primitives.PackWithdraw(canonical, m.Participant, m.TotalWithdraw, m.Expiration)
}

// WithdrawConfirmation is the second leg, counter-signing the same
// withdraw terms (spec §6, §4.D).
type WithdrawConfirmation struct {
	ChainID             primitives.ChainID   `json:"chain_id"`
	MessageIdentifier   uint32               `json:"message_identifier"`
	TokenNetworkAddress primitives.Address   `json:"token_network_address"`
	ChannelIdentifier   primitives.ChannelID `json:"channel_identifier"`
	Participant         primitives.Address  `json:"participant"`
	TotalWithdraw       primitives.TokenAmount `json:"total_withdraw"`
	Nonce               primitives.Nonce     `json:"nonce"`
	Expiration          primitives.BlockExpiration `json:"expiration"`
	Signature           primitives.Signature `json:"signature"`
}

func (m *WithdrawConfirmation) Cmd() CmdID { return CmdWithdrawConfirmation }

func (m *WithdrawConfirmation) SignedBytes() []byte {
	canonical := primitives.CanonicalIdentifier{
		ChainID:             m.ChainID,
		TokenNetworkAddress: m.TokenNetworkAddress,
		ChannelID:           m.ChannelIdentifier,
	}
	return primitives.PackWithdraw(canonical, m.Participant, m.TotalWithdraw, m.Expiration)
}

// WithdrawExpired confirms a proposed withdraw's expiration has passed
// without being confirmed on-chain (spec §6, §4.D).
type WithdrawExpired struct {
	ChainID             primitives.ChainID   `json:"chain_id"`
	MessageIdentifier   uint32               `json:"message_identifier"`
	TokenNetworkAddress primitives.Address   `json:"token_network_address"`
	ChannelIdentifier   primitives.ChannelID `json:"channel_identifier"`
	Participant         primitives.Address  `json:"participant"`
	TotalWithdraw       primitives.TokenAmount `json:"total_withdraw"`
	Nonce               primitives.Nonce     `json:"nonce"`
	Expiration          primitives.BlockExpiration `json:"expiration"`
	Signature           primitives.Signature `json:"signature"`
}

func (m *WithdrawExpired) Cmd() CmdID { return CmdWithdrawExpired }

func (m *WithdrawExpired) SignedBytes() []byte {
	canonical := primitives.CanonicalIdentifier{
		ChainID:             m.ChainID,
		TokenNetworkAddress: m.TokenNetworkAddress,
		ChannelID:           m.ChannelIdentifier,
	}
	return primitives.PackWithdraw(canonical, m.Participant, m.TotalWithdraw, m.Expiration)
}

// Processed acknowledges a received message was applied to the receiver's
// state machine: the sender may retire it from its retry queue (spec §6,
// §4.H).
type Processed struct {
	MessageIdentifier uint32 `json:"message_identifier"`
	Signature         primitives.Signature `json:"signature"`
}

func (m *Processed) Cmd() CmdID { return CmdProcessed }

func (m *Processed) SignedBytes() []byte {
	var b []byte
	b = append(b, byte(CmdProcessed))
	return appendUint32(b, m.MessageIdentifier)
}

// Delivered acknowledges transport-level receipt only; unlike Processed it
// does not retire the message from the retry queue (spec §6, §4.H).
type Delivered struct {
	DeliveredMessageIdentifier uint32 `json:"delivered_message_identifier"`
	Signature                  primitives.Signature `json:"signature"`
}

func (m *Delivered) Cmd() CmdID { return CmdDelivered }

func (m *Delivered) SignedBytes() []byte {
	var b []byte
	b = append(b, byte(CmdDelivered))
	return appendUint32(b, m.DeliveredMessageIdentifier)
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Marshal renders msg as its wire JSON form: the cmd id folded into the
// message's own object rather than a nested envelope, matching how the
// original node's messages self-describe via a "type" field alongside
// their other fields.
func Marshal(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	cmdJSON, _ := json.Marshal(msg.Cmd())
	fields["type"] = cmdJSON
	return json.Marshal(fields)
}

// Unmarshal is the inverse of Marshal, dispatching on the embedded "type"
// field the way lnwire.makeEmptyMessage dispatches on MessageType.
func Unmarshal(data []byte) (Message, error) {
	var probe struct {
		Cmd CmdID `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	var msg Message
	switch probe.Cmd {
	case CmdLockedTransfer:
		msg = &LockedTransfer{}
	case CmdUnlock:
		msg = &Unlock{}
	case CmdSecretRequest:
		msg = &SecretRequest{}
	case CmdRevealSecret:
		msg = &SecretReveal{}
	case CmdLockExpired:
		msg = &LockExpired{}
	case CmdWithdrawRequest:
		msg = &WithdrawRequest{}
	case CmdWithdrawConfirmation:
		msg = &WithdrawConfirmation{}
	case CmdWithdrawExpired:
		msg = &WithdrawExpired{}
	case CmdProcessed:
		msg = &Processed{}
	case CmdDelivered:
		msg = &Delivered{}
	default:
		return nil, fmt.Errorf("wire: unknown cmd id %d", probe.Cmd)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
