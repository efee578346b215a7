package transfer

import "github.com/raiden-network/raiden-core/primitives"

// TransferTask is the union of the three roles a node can play in one
// mediated transfer, keyed by secrethash in ChainState.PayeeToPayerTasks
// (spec §5.B/C/D). The original node represents this as an enum over
// Option<InitiatorTransferState|MediatorTransferState|TargetTransferState>;
// Go models the same union as an interface with a private marker method.
type TransferTask interface {
	isTransferTask()
}

// InitiatorTransferTask is held by the node that originates a payment
// (spec §5.B).
type InitiatorTransferTask struct {
	TransferState *InitiatorTransferState
}

func (InitiatorTransferTask) isTransferTask() {}

// MediatorTransferTask is held by a node forwarding a transfer between two
// channels (spec §5.C).
type MediatorTransferTask struct {
	TransferState *MediatorTransferState
}

func (MediatorTransferTask) isTransferTask() {}

// TargetTransferTask is held by the node a payment is addressed to (spec
// §5.D).
type TargetTransferTask struct {
	TransferState *TargetTransferState
}

func (TargetTransferTask) isTransferTask() {}

// InitiatorTransferState tracks one outgoing payment from its owner's
// point of view: the route chosen, the lock placed on the first-hop
// channel, and whether the secret has been revealed yet.
type InitiatorTransferState struct {
	TransferDescription TransferDescriptionState
	Route                RouteState
	CanonicalIdentifier primitives.CanonicalIdentifier
	TransferID          primitives.Hash
	RevealSecret        bool
}

// TransferDescriptionState is the immutable intent behind a payment: who to
// pay, how much, using which secret (spec §5.B, ActionInitInitiator).
type TransferDescriptionState struct {
	PaymentIdentifier uint64
	Amount            primitives.TokenAmount
	TokenNetworkAddress primitives.Address
	Initiator         primitives.Address
	Target            primitives.Address
	Secret            primitives.Secret
	SecretHash        primitives.SecretHash
}

// MediatorTransferState tracks every payer/payee channel pair a mediator
// has committed to for one secrethash, since a mediator may, over the
// lifetime of one transfer, retry across more than one payee channel if
// the first attempt is refused or expires (spec §5.C).
type MediatorTransferState struct {
	SecretHash primitives.SecretHash
	Secret     primitives.Secret
	Routes     []RouteState
	Transfers  []MediationPairState
	WaitingTransfer *MediationPairState
}

// MediationPairState is one (payer-channel, payee-channel) hop a mediator
// has bridged for a single transfer.
type MediationPairState struct {
	PayerTransfer  LockedTransferState
	PayeeTransfer  LockedTransferState
	PayerState     string
	PayeeState     string
}

// TargetTransferState tracks a payment this node is the final recipient
// of: the incoming lock, and whether the secret has been revealed to the
// payer yet (spec §5.D).
type TargetTransferState struct {
	Transfer     LockedTransferState
	Secret       primitives.Secret
	SecretHash   primitives.SecretHash
	State        string
}

// LockedTransferState is the data carried by a LockedTransfer message:
// enough to identify the channel, the lock, and the payment it belongs to
// (spec §6).
type LockedTransferState struct {
	PaymentIdentifier   uint64
	Amount              primitives.TokenAmount
	Initiator           primitives.Address
	Target              primitives.Address
	Lock                HashTimeLockState
	CanonicalIdentifier primitives.CanonicalIdentifier
	BalanceProof        BalanceProofState
}
