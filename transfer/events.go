package transfer

import "github.com/raiden-network/raiden-core/primitives"

// Event is the union of everything a state transition can ask the event
// handler (spec §4.G) to do: send a signed message to a peer, submit an
// on-chain transaction, surface a payment outcome to the API layer, or
// report an error. Grounded on the original node's state_machine::types::Event
// enum; Go models the sum type as a marker-method interface rather than an
// algebraic enum, matching lnd's own event/message style of one exported
// struct per concrete case.
type Event interface {
	isEvent()
}

// SendMessageEvent is the common envelope every outgoing wire message
// carries: who to send it to, which channel it concerns, and the message
// identifier used to correlate a Processed/Delivered reply (spec §4.H).
type SendMessageEvent struct {
	Recipient           primitives.Address
	CanonicalIdentifier primitives.CanonicalIdentifier
	MessageIdentifier   uint32
}

// QueueIdentifier is the retry-queue this event's message belongs on.
func (e SendMessageEvent) QueueIdentifier() primitives.QueueIdentifier {
	return primitives.QueueIdentifier{Recipient: e.Recipient, CanonicalIdentifier: e.CanonicalIdentifier}
}

// SendLockedTransfer asks the event handler to sign and send a
// LockedTransfer message (spec §5.B/C, §6).
type SendLockedTransfer struct {
	SendMessageEvent
	Transfer LockedTransferState
}

func (SendLockedTransfer) isEvent() {}

// SendSecretRequest asks the event handler to sign and send a
// SecretRequest message (spec §5.D).
type SendSecretRequest struct {
	SendMessageEvent
	SecretHash primitives.SecretHash
	Amount     primitives.TokenAmount
	PaymentIdentifier uint64
}

func (SendSecretRequest) isEvent() {}

// SendSecretReveal asks the event handler to sign and send a SecretReveal
// message (spec §5.A/D).
type SendSecretReveal struct {
	SendMessageEvent
	Secret primitives.Secret
}

func (SendSecretReveal) isEvent() {}

// SendUnlock asks the event handler to sign and send an Unlock message,
// carrying the updated balance proof that removes the now-redeemed lock
// (spec §5.A).
type SendUnlock struct {
	SendMessageEvent
	PaymentIdentifier uint64
	Secret            primitives.Secret
	BalanceProof      BalanceProofState
}

func (SendUnlock) isEvent() {}

// SendLockExpired asks the event handler to sign and send a LockExpired
// message once a lock's expiration has passed unredeemed (spec §5.A).
type SendLockExpired struct {
	SendMessageEvent
	SecretHash   primitives.SecretHash
	BalanceProof BalanceProofState
}

func (SendLockExpired) isEvent() {}

// SendWithdrawRequest asks the event handler to sign and send a
// WithdrawRequest message, the first leg of the 3-leg withdraw protocol
// (spec §5.E).
type SendWithdrawRequest struct {
	SendMessageEvent
	Participant   primitives.Address
	TotalWithdraw primitives.TokenAmount
	Nonce         primitives.Nonce
	Expiration    primitives.BlockExpiration
}

func (SendWithdrawRequest) isEvent() {}

// SendWithdrawConfirmation asks the event handler to sign and send a
// WithdrawConfirmation message, the second leg (spec §5.E).
type SendWithdrawConfirmation struct {
	SendMessageEvent
	Participant   primitives.Address
	TotalWithdraw primitives.TokenAmount
	Nonce         primitives.Nonce
	Expiration    primitives.BlockExpiration
}

func (SendWithdrawConfirmation) isEvent() {}

// SendWithdrawExpired asks the event handler to sign and send a
// WithdrawExpired message once an agreed withdraw's expiration passes
// without being confirmed on-chain (spec §5.E).
type SendWithdrawExpired struct {
	SendMessageEvent
	Participant primitives.Address
	Nonce       primitives.Nonce
	Expiration  primitives.BlockExpiration
}

func (SendWithdrawExpired) isEvent() {}

// SendProcessed asks the event handler to sign and send a Processed
// acknowledgement for a received message (spec §6).
type SendProcessed struct {
	SendMessageEvent
}

func (SendProcessed) isEvent() {}

// ContractSendEvent is the common envelope for events that ask the
// transaction executor (spec §4.J) to submit an on-chain transaction.
type ContractSendEvent struct {
	TriggeredByBlockHash primitives.Hash
}

// ContractSendChannelOpen asks the transaction executor to open a channel.
type ContractSendChannelOpen struct {
	ContractSendEvent
	CanonicalIdentifier primitives.CanonicalIdentifier
	Partner             primitives.Address
	SettleTimeout       primitives.SettleTimeout
}

func (ContractSendChannelOpen) isEvent() {}

// ContractSendChannelClose asks the transaction executor to close a
// channel using our latest received balance proof (spec §5.E).
type ContractSendChannelClose struct {
	ContractSendEvent
	CanonicalIdentifier primitives.CanonicalIdentifier
	BalanceProof        *BalanceProofState
}

func (ContractSendChannelClose) isEvent() {}

// ContractSendChannelUpdateTransfer asks the transaction executor to
// submit the partner's balance proof on our behalf during the dispute
// window (spec §5.E).
type ContractSendChannelUpdateTransfer struct {
	ContractSendEvent
	Expiration   primitives.BlockExpiration
	BalanceProof BalanceProofState
}

func (ContractSendChannelUpdateTransfer) isEvent() {}

// ContractSendChannelSettle asks the transaction executor to settle a
// channel once both sides' dispute windows have elapsed (spec §5.E).
type ContractSendChannelSettle struct {
	ContractSendEvent
	CanonicalIdentifier primitives.CanonicalIdentifier
}

func (ContractSendChannelSettle) isEvent() {}

// ContractSendChannelBatchUnlock asks the transaction executor to unlock,
// on-chain, every lock still unredeemed after settlement (spec §5.A).
type ContractSendChannelBatchUnlock struct {
	ContractSendEvent
	CanonicalIdentifier primitives.CanonicalIdentifier
	Sender              primitives.Address
}

func (ContractSendChannelBatchUnlock) isEvent() {}

// ContractSendChannelWithdraw asks the transaction executor to submit a
// total_withdraw call once the 3-leg off-chain withdraw protocol has
// collected both signatures (spec §5.E).
type ContractSendChannelWithdraw struct {
	ContractSendEvent
	CanonicalIdentifier primitives.CanonicalIdentifier
	TotalWithdraw       primitives.TokenAmount
	Expiration          primitives.BlockExpiration
	PartnerSignature    primitives.Signature
}

func (ContractSendChannelWithdraw) isEvent() {}

// ContractSendSecretReveal asks the transaction executor to register a
// secret on-chain as a fallback when the off-chain unlock race is lost
// (spec §5.A).
type ContractSendSecretReveal struct {
	ContractSendEvent
	Secret primitives.Secret
}

func (ContractSendSecretReveal) isEvent() {}

// EventPaymentSentSuccess reports a completed outgoing payment to the API
// layer (spec §6).
type EventPaymentSentSuccess struct {
	TokenNetworkRegistryAddress primitives.Address
	TokenNetworkAddress         primitives.Address
	Identifier                  uint64
	Amount                      primitives.TokenAmount
	Target                      primitives.Address
}

func (EventPaymentSentSuccess) isEvent() {}

// EventPaymentSentFailed reports a failed outgoing payment to the API
// layer (spec §6).
type EventPaymentSentFailed struct {
	TokenNetworkRegistryAddress primitives.Address
	TokenNetworkAddress         primitives.Address
	Identifier                  uint64
	Reason                      string
}

func (EventPaymentSentFailed) isEvent() {}

// EventPaymentReceivedSuccess reports a completed incoming payment to the
// API layer (spec §6).
type EventPaymentReceivedSuccess struct {
	TokenNetworkRegistryAddress primitives.Address
	TokenNetworkAddress         primitives.Address
	Identifier                  uint64
	Amount                      primitives.TokenAmount
	Initiator                   primitives.Address
}

func (EventPaymentReceivedSuccess) isEvent() {}

// EventInvalidReceivedLockedTransfer reports that an incoming LockedTransfer
// failed validation (spec §5.D, invariant checks).
type EventInvalidReceivedLockedTransfer struct {
	PaymentIdentifier uint64
	Reason            string
}

func (EventInvalidReceivedLockedTransfer) isEvent() {}

// EventInvalidActionWithdraw reports that a locally requested withdraw was
// rejected before any message was sent (spec §5.E).
type EventInvalidActionWithdraw struct {
	AttemptedWithdraw primitives.TokenAmount
	Reason            string
}

func (EventInvalidActionWithdraw) isEvent() {}

// EventInvalidActionCoopSettle reports that a locally requested channel
// close/settle action was rejected (spec §5.E).
type EventInvalidActionChannelClose struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Reason              string
}

func (EventInvalidActionChannelClose) isEvent() {}

// UpdatedServicesAddresses reports a refreshed monitoring/pathfinding
// service address list to whatever component tracks them for on-chain
// registration (spec §12 supplement).
type UpdatedServicesAddresses struct {
	MonitoringServiceAddresses  []primitives.Address
	PathfindingServiceAddresses []primitives.Address
}

func (UpdatedServicesAddresses) isEvent() {}
