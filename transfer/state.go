// Package transfer holds the node's entire off-chain state: the
// ChainState tree, the StateChange/Event type unions that drive it, and the
// pure state_transition function the single-writer driver (spec §4.F)
// replays against. Everything here is a plain value type: no goroutines, no
// I/O, no wall-clock reads, so that a recorded sequence of StateChanges
// reproduces byte-identical ChainState no matter how many times it is
// replayed (spec §2, §7).
package transfer

import (
	"encoding/json"
	"math/rand"

	"github.com/raiden-network/raiden-core/primitives"
)

// ChainState is the root of the node's entire off-chain view of the world:
// every token network, every channel, every in-flight transfer, keyed by
// the chain the node is connected to. lnwallet.LightningChannel bundled an
// entire channel's state behind one struct in the teacher; ChainState
// generalizes that one level up to "every channel the node has, across
// every token network."
type ChainState struct {
	ChainID     primitives.ChainID
	OurAddress  primitives.Address
	BlockNumber primitives.BlockNumber
	BlockHash   primitives.Hash

	// PseudoRandomGenerator is seeded once at chain-state creation and
	// persisted/restored with the rest of ChainState so that any
	// randomized decision the state machine makes (e.g. route shuffling)
	// replays identically (spec §7, determinism). Seed is the value it
	// was constructed from, kept alongside it purely so JSON
	// snapshotting (package storage) can reseed an equivalent generator
	// on restore; math/rand.Rand itself carries unexported state and
	// cannot be marshaled directly.
	PseudoRandomGenerator *rand.Rand
	Seed                  int64

	TokenNetworkRegistries map[primitives.Address]*TokenNetworkRegistryState

	// PendingTransactions holds ContractSend events that have been
	// emitted but not yet confirmed mined, so a restart can re-attempt
	// them rather than silently drop them.
	PendingTransactions []Event

	// PayeeToPayerTasks and PayerToPayeeTasks index in-flight mediated
	// transfers by secrethash for the mediator/initiator/target
	// sub-machines (spec §5.B/C/D).
	PayeeToPayerTasks map[primitives.SecretHash]TransferTask

	Services ServicesState
}

// NewChainState constructs an empty ChainState for a freshly initialized
// node (spec §4.F, ActionInitChain).
func NewChainState(chainID primitives.ChainID, ourAddress primitives.Address, blockNumber primitives.BlockNumber, seed int64) *ChainState {
	return &ChainState{
		ChainID:                chainID,
		OurAddress:             ourAddress,
		BlockNumber:            blockNumber,
		PseudoRandomGenerator:  rand.New(rand.NewSource(seed)),
		Seed:                   seed,
		TokenNetworkRegistries: make(map[primitives.Address]*TokenNetworkRegistryState),
		PayeeToPayerTasks:      make(map[primitives.SecretHash]TransferTask),
	}
}

// chainStateJSON is the on-disk shape of ChainState: identical to the
// in-memory struct except PseudoRandomGenerator (unexported internals,
// reconstructed from Seed) and PayeeToPayerTasks (a TransferTask union,
// routed through MarshalTransferTask/UnmarshalTransferTask).
type chainStateJSON struct {
	ChainID                primitives.ChainID
	OurAddress             primitives.Address
	BlockNumber            primitives.BlockNumber
	BlockHash              primitives.Hash
	Seed                   int64
	TokenNetworkRegistries map[primitives.Address]*TokenNetworkRegistryState
	PendingTransactions    []taggedEvent
	PayeeToPayerTasks      map[primitives.SecretHash]json.RawMessage
	Services               ServicesState
}

// taggedEvent is the on-disk envelope for one Event, pairing the type name
// EncodeEvent returns with its JSON data so DecodeEvent can reconstruct the
// concrete type later.
type taggedEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON implements the snapshot encoding used by package storage
// (spec §4.E, §6).
func (c *ChainState) MarshalJSON() ([]byte, error) {
	tasks := make(map[primitives.SecretHash]json.RawMessage, len(c.PayeeToPayerTasks))
	for h, t := range c.PayeeToPayerTasks {
		raw, err := MarshalTransferTask(t)
		if err != nil {
			return nil, err
		}
		tasks[h] = raw
	}
	pending := make([]taggedEvent, 0, len(c.PendingTransactions))
	for _, ev := range c.PendingTransactions {
		typeName, data, err := EncodeEvent(ev)
		if err != nil {
			return nil, err
		}
		pending = append(pending, taggedEvent{Type: typeName, Data: data})
	}
	return json.Marshal(chainStateJSON{
		ChainID:                c.ChainID,
		OurAddress:             c.OurAddress,
		BlockNumber:            c.BlockNumber,
		BlockHash:              c.BlockHash,
		Seed:                   c.Seed,
		TokenNetworkRegistries: c.TokenNetworkRegistries,
		PendingTransactions:    pending,
		PayeeToPayerTasks:      tasks,
		Services:               c.Services,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *ChainState) UnmarshalJSON(data []byte) error {
	var dto chainStateJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}

	tasks := make(map[primitives.SecretHash]TransferTask, len(dto.PayeeToPayerTasks))
	for h, raw := range dto.PayeeToPayerTasks {
		t, err := UnmarshalTransferTask(raw)
		if err != nil {
			return err
		}
		tasks[h] = t
	}

	pending := make([]Event, 0, len(dto.PendingTransactions))
	for _, te := range dto.PendingTransactions {
		ev, err := DecodeEvent(te.Type, te.Data)
		if err != nil {
			return err
		}
		pending = append(pending, ev)
	}
	c.PendingTransactions = pending

	c.ChainID = dto.ChainID
	c.OurAddress = dto.OurAddress
	c.BlockNumber = dto.BlockNumber
	c.BlockHash = dto.BlockHash
	c.Seed = dto.Seed
	c.PseudoRandomGenerator = rand.New(rand.NewSource(dto.Seed))
	c.TokenNetworkRegistries = dto.TokenNetworkRegistries
	c.PayeeToPayerTasks = tasks
	c.Services = dto.Services
	if c.TokenNetworkRegistries == nil {
		c.TokenNetworkRegistries = make(map[primitives.Address]*TokenNetworkRegistryState)
	}
	if c.PayeeToPayerTasks == nil {
		c.PayeeToPayerTasks = make(map[primitives.SecretHash]TransferTask)
	}
	return nil
}

// ServicesState tracks the most recently known addresses of the monitoring
// and pathfinding services the node relies on (spec §12 supplement,
// UpdatedServicesAddresses event).
type ServicesState struct {
	MonitoringServiceAddresses  []primitives.Address
	PathfindingServiceAddresses []primitives.Address
}

// TokenNetworkRegistryState tracks the token networks deployed against one
// TokenNetworkRegistry contract.
type TokenNetworkRegistryState struct {
	Address       primitives.Address
	TokenNetworks map[primitives.Address]*TokenNetworkState
}

// TokenNetworkState tracks every channel opened against one token (spec
// §3).
type TokenNetworkState struct {
	Address             primitives.Address
	TokenAddress        primitives.Address
	Channels            map[string]*ChannelState // keyed by CanonicalIdentifier.Key()
	PartnerAddressToChannel map[primitives.Address][]string
}

// FindChannelByID returns the channel with the given id, if any.
func (t *TokenNetworkState) FindChannelByID(id primitives.ChannelID) *ChannelState {
	for _, ch := range t.Channels {
		if ch.CanonicalIdentifier.ChannelID.Cmp(id) == 0 {
			return ch
		}
	}
	return nil
}

// ChannelStatus enumerates a channel's lifecycle stage (spec §3).
type ChannelStatus int

const (
	ChannelStateOpened ChannelStatus = iota
	ChannelStateClosing
	ChannelStateClosed
	ChannelStateSettling
	ChannelStateSettled
	ChannelStateUnusable
)

func (s ChannelStatus) String() string {
	switch s {
	case ChannelStateOpened:
		return "opened"
	case ChannelStateClosing:
		return "closing"
	case ChannelStateClosed:
		return "closed"
	case ChannelStateSettling:
		return "settling"
	case ChannelStateSettled:
		return "settled"
	case ChannelStateUnusable:
		return "unusable"
	default:
		return "unknown"
	}
}

// ChannelState is one payment channel between OurState and PartnerState
// (spec §3). It is the direct generalization of lnwallet's
// LightningChannel/channeldb.OpenChannel pairing onto the two-sided
// ChannelEndState model of the original node's state machine.
type ChannelState struct {
	CanonicalIdentifier primitives.CanonicalIdentifier

	TokenAddress primitives.Address

	RevealTimeout primitives.RevealTimeout
	SettleTimeout primitives.SettleTimeout

	OurState      *ChannelEndState
	PartnerState  *ChannelEndState

	OpenTransaction    *TransactionExecutionStatus
	CloseTransaction   *TransactionExecutionStatus
	SettleTransaction  *TransactionExecutionStatus
	UpdateTransaction  *TransactionExecutionStatus

	Status ChannelStatus

	// FeeSchedule is nil until an operator explicitly opts this channel
	// into mediation fees (spec §5.C); a nil schedule mediates for free.
	FeeSchedule *FeeScheduleState
}

// TransactionExecutionStatus records whether an on-chain transaction
// associated with this channel's lifecycle (open/close/settle) has been
// started, and with what result, mirroring channeldb's confirmation
// bookkeeping for funding/closing transactions.
type TransactionExecutionStatus struct {
	StartedBlockNumber  primitives.BlockNumber
	FinishedBlockNumber primitives.BlockNumber
	Result              TransactionResult
}

// TransactionResult is the outcome of a channel-lifecycle transaction once
// mined.
type TransactionResult int

const (
	TransactionResultUnknown TransactionResult = iota
	TransactionResultSuccess
	TransactionResultFailure
)

// ChannelEndState is one participant's side of a channel: their deposit,
// their signed balance proof, and every HTLC lock currently attributed to
// them (spec §3).
type ChannelEndState struct {
	Address primitives.Address

	ContractBalance       primitives.TokenAmount
	OnchainTotalWithdraw  primitives.TokenAmount

	// WithdrawsPending holds withdraw requests that have been agreed
	// off-chain but not yet confirmed on-chain (spec §5.E).
	WithdrawsPending map[string]*PendingWithdrawState

	Nonce         primitives.Nonce
	BalanceProof  *BalanceProofState

	SecretHashesToLockedLocks           map[primitives.SecretHash]*HashTimeLockState
	SecretHashesToUnlockedLocks         map[primitives.SecretHash]*UnlockPartialProofState
	SecretHashesToOnchainUnlockedLocks  map[primitives.SecretHash]*UnlockPartialProofState
}

// NewChannelEndState returns an empty end state for a freshly opened
// channel side.
func NewChannelEndState(address primitives.Address) *ChannelEndState {
	return &ChannelEndState{
		Address:                            address,
		ContractBalance:                    primitives.ZeroUint256(),
		OnchainTotalWithdraw:               primitives.ZeroUint256(),
		WithdrawsPending:                   make(map[string]*PendingWithdrawState),
		Nonce:                              primitives.ZeroUint256(),
		SecretHashesToLockedLocks:          make(map[primitives.SecretHash]*HashTimeLockState),
		SecretHashesToUnlockedLocks:        make(map[primitives.SecretHash]*UnlockPartialProofState),
		SecretHashesToOnchainUnlockedLocks: make(map[primitives.SecretHash]*UnlockPartialProofState),
	}
}

// OffchainTotalWithdraw returns the highest total_withdraw agreed in any
// still-pending withdraw for this end state.
func (e *ChannelEndState) OffchainTotalWithdraw() primitives.TokenAmount {
	max := primitives.ZeroUint256()
	for _, w := range e.WithdrawsPending {
		if w.TotalWithdraw.Cmp(max) > 0 {
			max = w.TotalWithdraw
		}
	}
	return max
}

// PendingWithdrawState is an off-chain agreed, not-yet-mined withdraw (spec
// §5.E).
type PendingWithdrawState struct {
	TotalWithdraw primitives.TokenAmount
	Expiration    primitives.BlockExpiration
	Nonce         primitives.Nonce
}

// HashTimeLockState is one HTLC lock: the amount it locks, its expiration,
// and the secrethash it is keyed by (spec §3, §4.A).
type HashTimeLockState struct {
	Amount     primitives.TokenAmount
	Expiration primitives.BlockExpiration
	SecretHash primitives.SecretHash

	// EncodedLock caches EncodeLock(Expiration, Amount, SecretHash), the
	// unit ComputeLocksroot concatenates, so repeated locksroot
	// recomputation after many small channel updates isn't O(n) hashing
	// per lock every time.
	EncodedLock []byte
}

// UnlockPartialProofState is a lock whose secret has been learned (offchain
// unlock) or revealed on-chain, kept around so the locksroot/balance
// recompute accounting in views.go still finds it (spec §5.A, Non-goals
// still require unlocks to unwind correctly even though full settlement
// machinery is out of scope for a from-scratch contract implementation).
type UnlockPartialProofState struct {
	Lock   *HashTimeLockState
	Secret primitives.Secret
}

// BalanceProofState is a signed balance proof, ready to pack via
// primitives.PackBalanceProof (spec §4.A).
type BalanceProofState struct {
	Nonce              primitives.Nonce
	TransferredAmount  primitives.TokenAmount
	LockedAmount        primitives.TokenAmount
	Locksroot          primitives.Hash
	CanonicalIdentifier primitives.CanonicalIdentifier
	BalanceHash        primitives.Hash
	MessageHash        primitives.Hash
	Signature          primitives.Signature
	SenderAddress      primitives.Address
}

// RouteState is one candidate path for a mediated transfer (spec §5.C).
type RouteState struct {
	RouteHops    []primitives.Address
	ForwardFee   primitives.TokenAmount
	EstimatedFee primitives.TokenAmount
}

// FeeScheduleState is the fee policy this node advertises for mediating
// through one channel (spec §5.C, fee computation). Flat and proportional
// are combined, then floor-rounded to an integer token amount, per the
// Open Question decision recorded in DESIGN.md.
type FeeScheduleState struct {
	Flat           primitives.TokenAmount
	ProportionalPPM uint32 // parts per million of the mediated amount
}

// Fee returns flat + floor(amount * ProportionalPPM / 1_000_000).
func (f FeeScheduleState) Fee(amount primitives.TokenAmount) primitives.TokenAmount {
	proportional := amount.MulUint64(uint64(f.ProportionalPPM)).DivUint64Floor(1_000_000)
	return f.Flat.Add(proportional)
}
