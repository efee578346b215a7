package eventhandler

import (
	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/transfer"
	"github.com/raiden-network/raiden-core/wire"
)

// Inbound turns a decoded wire.Message, authenticated and attributed to
// sender, into the matching transfer.StateChange, implementing
// transport.Inbound. Decoding lives here rather than in package wire
// itself because it needs transfer's state-change vocabulary, and here
// rather than package transfer because it is wire-format translation, not
// state-machine logic — the same separation the teacher keeps between
// lnwire.Message decoding and htlcswitch's interpretation of it.
type Inbound struct {
	driver StateChangeSubmitter
}

// StateChangeSubmitter is the subset of *driver.Driver this adapter needs.
type StateChangeSubmitter interface {
	Transition(batch []transfer.StateChange) error
}

// NewInbound constructs an Inbound, optionally bound to driver (nil until
// SetDriver backfills it, since *driver.Driver's own construction depends
// on an eventhandler.Handler, not on this adapter).
func NewInbound(driver StateChangeSubmitter) *Inbound {
	return &Inbound{driver: driver}
}

// SetDriver backfills the driver dependency once it exists.
func (in *Inbound) SetDriver(driver StateChangeSubmitter) {
	in.driver = driver
}

// Receive implements transport.Inbound.
func (in *Inbound) Receive(sender primitives.Address, msg wire.Message) {
	change, ok := decode(sender, msg)
	if !ok {
		return
	}
	if err := in.driver.Transition([]transfer.StateChange{change}); err != nil {
		log.Errorf("eventhandler: failed to submit %T from %s: %v", msg, sender, err)
	}
}

func decode(sender primitives.Address, msg wire.Message) (transfer.StateChange, bool) {
	switch m := msg.(type) {
	case *wire.LockedTransfer:
		return transfer.ReceiveLockedTransfer{
			FromHop: sender,
			Transfer: transfer.LockedTransferState{
				PaymentIdentifier: m.PaymentIdentifier,
				Amount:            m.Lock.Amount,
				Initiator:         m.Initiator,
				Target:            m.Target,
				Lock: transfer.HashTimeLockState{
					Amount:     m.Lock.Amount,
					Expiration: m.Lock.Expiration,
					SecretHash: m.Lock.SecretHash,
				},
				CanonicalIdentifier: primitives.CanonicalIdentifier{
					ChainID:             primitives.ChainIDFromUint64(m.ChainID),
					TokenNetworkAddress: m.TokenNetworkAddress,
					ChannelID:           m.ChannelIdentifier,
				},
				BalanceProof: transfer.BalanceProofState{
					Nonce:             m.Nonce,
					TransferredAmount: m.TransferredAmount,
					LockedAmount:      m.LockedAmount,
					Locksroot:         m.Locksroot,
					CanonicalIdentifier: primitives.CanonicalIdentifier{
						ChainID:             primitives.ChainIDFromUint64(m.ChainID),
						TokenNetworkAddress: m.TokenNetworkAddress,
						ChannelID:           m.ChannelIdentifier,
					},
					BalanceHash:   primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot),
					Signature:     m.Signature,
					SenderAddress: sender,
				},
			},
		}, true

	case *wire.SecretRequest:
		return transfer.ReceiveSecretRequest{
			PaymentIdentifier: m.PaymentIdentifier,
			Amount:            m.Amount,
			SecretHash:        m.SecretHash,
			Sender:            sender,
		}, true

	case *wire.SecretReveal:
		return transfer.ReceiveSecretReveal{
			SecretHash: primitives.Keccak256(m.Secret),
			Secret:     m.Secret,
			Sender:     sender,
		}, true

	case *wire.Unlock:
		return transfer.ReceiveUnlock{
			MessageIdentifier: m.MessageIdentifier,
			Secret:            m.Secret,
			BalanceProof: transfer.BalanceProofState{
				Nonce:             m.Nonce,
				TransferredAmount: m.TransferredAmount,
				LockedAmount:      m.LockedAmount,
				Locksroot:         m.Locksroot,
				CanonicalIdentifier: primitives.CanonicalIdentifier{
					ChainID:             primitives.ChainIDFromUint64(m.ChainID),
					TokenNetworkAddress: m.TokenNetworkAddress,
					ChannelID:           m.ChannelIdentifier,
				},
				BalanceHash:   primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot),
				Signature:     m.Signature,
				SenderAddress: sender,
			},
			Sender: sender,
		}, true

	case *wire.LockExpired:
		return transfer.ReceiveLockExpired{
			SecretHash: m.SecretHash,
			BalanceProof: transfer.BalanceProofState{
				Nonce:             m.Nonce,
				TransferredAmount: m.TransferredAmount,
				LockedAmount:      m.LockedAmount,
				Locksroot:         m.Locksroot,
				CanonicalIdentifier: primitives.CanonicalIdentifier{
					ChainID:             primitives.ChainIDFromUint64(m.ChainID),
					TokenNetworkAddress: m.TokenNetworkAddress,
					ChannelID:           m.ChannelIdentifier,
				},
				BalanceHash:   primitives.HashBalanceData(m.TransferredAmount, m.LockedAmount, m.Locksroot),
				Signature:     m.Signature,
				SenderAddress: sender,
			},
			Sender: sender,
		}, true

	case *wire.WithdrawRequest:
		return transfer.ReceiveWithdrawRequest{
			CanonicalIdentifier: primitives.CanonicalIdentifier{
				ChainID:             primitives.ChainIDFromUint64(m.ChainID),
				TokenNetworkAddress: m.TokenNetworkAddress,
				ChannelID:           m.ChannelIdentifier,
			},
			TotalWithdraw: m.TotalWithdraw,
			Nonce:         m.Nonce,
			Expiration:    m.Expiration,
			Sender:        sender,
			Signature:     m.Signature,
		}, true

	case *wire.WithdrawConfirmation:
		return transfer.ReceiveWithdrawConfirmation{
			CanonicalIdentifier: primitives.CanonicalIdentifier{
				ChainID:             primitives.ChainIDFromUint64(m.ChainID),
				TokenNetworkAddress: m.TokenNetworkAddress,
				ChannelID:           m.ChannelIdentifier,
			},
			TotalWithdraw: m.TotalWithdraw,
			Nonce:         m.Nonce,
			Expiration:    m.Expiration,
			Sender:        sender,
			Signature:     m.Signature,
		}, true

	case *wire.WithdrawExpired:
		return transfer.ReceiveWithdrawExpired{
			CanonicalIdentifier: primitives.CanonicalIdentifier{
				ChainID:             primitives.ChainIDFromUint64(m.ChainID),
				TokenNetworkAddress: m.TokenNetworkAddress,
				ChannelID:           m.ChannelIdentifier,
			},
			Nonce:      m.Nonce,
			Expiration: m.Expiration,
			Sender:     sender,
		}, true

	case *wire.Processed:
		return transfer.ReceiveProcessed{
			MessageIdentifier: m.MessageIdentifier,
			Sender:            sender,
		}, true

	case *wire.Delivered:
		return transfer.ReceiveDelivered{
			MessageIdentifier: m.DeliveredMessageIdentifier,
			Sender:            sender,
		}, true

	default:
		log.Warnf("eventhandler: no state-change mapping for inbound %T", msg)
		return nil, false
	}
}
