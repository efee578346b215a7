package transfer

import "github.com/raiden-network/raiden-core/primitives"

// StateChange is the union of every event the outside world can feed into
// state_transition (spec §4.B-E): a new block, a locally requested action,
// a message received from a peer, or a decoded on-chain log. Every
// StateChange that is ever applied is durably appended to the
// state_changes log (spec §6) before being replayed, which is what makes
// the whole node's state reconstructible from scratch.
type StateChange interface {
	isStateChange()
}

// Block is emitted once per new block observed by chain sync (spec §4.I).
// It is the node's only source of wall-clock-adjacent information, driving
// every timeout check (lock expiration, withdraw expiration, retry
// backoff ticks).
type Block struct {
	BlockNumber primitives.BlockNumber
	BlockHash   primitives.Hash
}

func (Block) isStateChange() {}

// ActionInitChain seeds a brand new ChainState (spec §4.B).
type ActionInitChain struct {
	ChainID     primitives.ChainID
	OurAddress  primitives.Address
	BlockNumber primitives.BlockNumber
}

func (ActionInitChain) isStateChange() {}

// ActionInitInitiator starts a new outgoing payment (spec §4.B, §5.B).
type ActionInitInitiator struct {
	TransferDescription TransferDescriptionState
	Routes               []RouteState
}

func (ActionInitInitiator) isStateChange() {}

// ActionInitMediator hands a mediator its first payer-side LockedTransfer
// plus the candidate payee routes (spec §5.C).
type ActionInitMediator struct {
	Routes        []RouteState
	FromHop       primitives.Address
	FromTransfer  LockedTransferState
}

func (ActionInitMediator) isStateChange() {}

// ActionInitTarget hands a target node the LockedTransfer addressed to it
// (spec §5.D).
type ActionInitTarget struct {
	FromHop      primitives.Address
	FromTransfer LockedTransferState
}

func (ActionInitTarget) isStateChange() {}

// ActionChannelClose is a local request to close a channel (spec §4.B,
// §5.E).
type ActionChannelClose struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
}

func (ActionChannelClose) isStateChange() {}

// ActionChannelWithdraw is a local request to withdraw funds from a
// channel, starting the 3-leg withdraw protocol (spec §4.B, §5.E).
type ActionChannelWithdraw struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	TotalWithdraw       primitives.TokenAmount
}

func (ActionChannelWithdraw) isStateChange() {}

// ActionChannelSetRevealTimeout updates a channel's locally configured
// reveal timeout (spec §4.B).
type ActionChannelSetRevealTimeout struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	RevealTimeout       primitives.RevealTimeout
}

func (ActionChannelSetRevealTimeout) isStateChange() {}

// ActionCancelPayment cancels a locally initiated, not-yet-completed
// payment (spec §4.B, §5.B).
type ActionCancelPayment struct {
	PaymentIdentifier uint64
}

func (ActionCancelPayment) isStateChange() {}

// ActionTransferReroute asks the initiator/mediator sub-machine to retry a
// failed transfer over a different route (spec §4.B, §5.B/C).
type ActionTransferReroute struct {
	TransferIdentifier primitives.Hash
	Routes             []RouteState
}

func (ActionTransferReroute) isStateChange() {}

// UpdateServicesAddresses refreshes ChainState.Services from a newly
// observed on-chain registration event (spec §12 supplement).
type UpdateServicesAddresses struct {
	MonitoringServiceAddresses  []primitives.Address
	PathfindingServiceAddresses []primitives.Address
}

func (UpdateServicesAddresses) isStateChange() {}

// ContractReceiveChannelOpened records a confirmed ChannelOpened log (spec
// §4.I, §4.D).
type ContractReceiveChannelOpened struct {
	TransactionHash     primitives.Hash
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant1        primitives.Address
	Participant2        primitives.Address
	SettleTimeout       primitives.SettleTimeout
}

func (ContractReceiveChannelOpened) isStateChange() {}

// ContractReceiveChannelNewDeposit records a confirmed ChannelNewDeposit
// log (spec §4.I, §4.D).
type ContractReceiveChannelNewDeposit struct {
	TransactionHash     primitives.Hash
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant         primitives.Address
	TotalDeposit         primitives.TokenAmount
}

func (ContractReceiveChannelNewDeposit) isStateChange() {}

// ContractReceiveChannelWithdraw records a confirmed ChannelWithdraw log
// (spec §4.I, §5.E).
type ContractReceiveChannelWithdraw struct {
	TransactionHash     primitives.Hash
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant         primitives.Address
	TotalWithdraw        primitives.TokenAmount
}

func (ContractReceiveChannelWithdraw) isStateChange() {}

// ContractReceiveChannelClosed records a confirmed ChannelClosed log (spec
// §4.I, §5.E).
type ContractReceiveChannelClosed struct {
	TransactionHash     primitives.Hash
	CanonicalIdentifier primitives.CanonicalIdentifier
	Closer              primitives.Address
}

func (ContractReceiveChannelClosed) isStateChange() {}

// ContractReceiveChannelSettled records a confirmed ChannelSettled log
// (spec §4.I, §5.E).
type ContractReceiveChannelSettled struct {
	TransactionHash     primitives.Hash
	CanonicalIdentifier primitives.CanonicalIdentifier
}

func (ContractReceiveChannelSettled) isStateChange() {}

// ContractReceiveChannelBatchUnlock records a confirmed ChannelBatchUnlock
// log (spec §4.I, §5.A).
type ContractReceiveChannelBatchUnlock struct {
	TransactionHash     primitives.Hash
	CanonicalIdentifier primitives.CanonicalIdentifier
	Sender              primitives.Address
}

func (ContractReceiveChannelBatchUnlock) isStateChange() {}

// ContractReceiveSecretReveal records a confirmed on-chain SecretRegistry
// reveal log (spec §4.I, §5.A).
type ContractReceiveSecretReveal struct {
	TransactionHash primitives.Hash
	SecretHash      primitives.SecretHash
	Secret          primitives.Secret
	BlockNumber     primitives.BlockNumber
}

func (ContractReceiveSecretReveal) isStateChange() {}

// ContractReceiveRouteNew records a confirmed new TokenNetwork registration
// (spec §4.I, §4.D).
type ContractReceiveRouteNew struct {
	TransactionHash     primitives.Hash
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant1        primitives.Address
	Participant2        primitives.Address
}

func (ContractReceiveRouteNew) isStateChange() {}

// ReceiveLockedTransfer is a decoded, signature-verified LockedTransfer
// message received from a peer (spec §4.C, §5.B/C/D).
type ReceiveLockedTransfer struct {
	FromHop  primitives.Address
	Transfer LockedTransferState
}

func (ReceiveLockedTransfer) isStateChange() {}

// ReceiveSecretRequest is a decoded SecretRequest message (spec §4.C,
// §5.B).
type ReceiveSecretRequest struct {
	PaymentIdentifier uint64
	Amount            primitives.TokenAmount
	SecretHash        primitives.SecretHash
	Sender            primitives.Address
}

func (ReceiveSecretRequest) isStateChange() {}

// ReceiveSecretReveal is a decoded, off-chain SecretReveal message (spec
// §4.C, §5.A).
type ReceiveSecretReveal struct {
	SecretHash primitives.SecretHash
	Secret     primitives.Secret
	Sender     primitives.Address
}

func (ReceiveSecretReveal) isStateChange() {}

// ReceiveUnlock is a decoded Unlock message (spec §4.C, §5.A).
type ReceiveUnlock struct {
	MessageIdentifier   uint32
	Secret              primitives.Secret
	BalanceProof        BalanceProofState
	Sender              primitives.Address
}

func (ReceiveUnlock) isStateChange() {}

// ReceiveLockExpired is a decoded LockExpired message (spec §4.C, §5.A).
type ReceiveLockExpired struct {
	SecretHash   primitives.SecretHash
	BalanceProof BalanceProofState
	Sender       primitives.Address
}

func (ReceiveLockExpired) isStateChange() {}

// ReceiveWithdrawRequest is a decoded WithdrawRequest message, the first
// leg of the 3-leg withdraw protocol (spec §4.C, §5.E).
type ReceiveWithdrawRequest struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	TotalWithdraw       primitives.TokenAmount
	Nonce               primitives.Nonce
	Expiration          primitives.BlockExpiration
	Sender              primitives.Address
	Signature           primitives.Signature
}

func (ReceiveWithdrawRequest) isStateChange() {}

// ReceiveWithdrawConfirmation is a decoded WithdrawConfirmation message,
// the second leg (spec §4.C, §5.E).
type ReceiveWithdrawConfirmation struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	TotalWithdraw       primitives.TokenAmount
	Nonce               primitives.Nonce
	Expiration          primitives.BlockExpiration
	Sender              primitives.Address
	Signature           primitives.Signature
}

func (ReceiveWithdrawConfirmation) isStateChange() {}

// ReceiveWithdrawExpired is a decoded WithdrawExpired message (spec §4.C,
// §5.E).
type ReceiveWithdrawExpired struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Nonce               primitives.Nonce
	Expiration          primitives.BlockExpiration
	Sender              primitives.Address
}

func (ReceiveWithdrawExpired) isStateChange() {}

// ReceiveProcessed is a decoded Processed acknowledgement, which removes
// the acknowledged message from its retry queue (spec §4.C, §4.H).
type ReceiveProcessed struct {
	MessageIdentifier uint32
	Sender            primitives.Address
}

func (ReceiveProcessed) isStateChange() {}

// ReceiveDelivered is a decoded Delivered acknowledgement (spec §4.C,
// §4.H). Unlike Processed, Delivered only confirms transport-level
// receipt; it does not remove the message from the retry queue.
type ReceiveDelivered struct {
	MessageIdentifier uint32
	Sender            primitives.Address
}

func (ReceiveDelivered) isStateChange() {}
