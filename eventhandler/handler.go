// Package eventhandler implements the node's event handler (spec §4.G): it
// turns each transfer.Event the driver emits into a side effect outside the
// state machine, either a signed wire.Message handed to the transport's
// retry queue, an on-chain call handed to the transaction executor, or a
// payment outcome surfaced to whatever's watching the node's API. This is
// the same role htlcswitch.Switch's forward/settle/fail goroutines play for
// lnd: the state machine decides what should happen, a separate component
// turns that decision into network and chain I/O.
package eventhandler

import (
	"fmt"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/signing"
	"github.com/raiden-network/raiden-core/transfer"
	"github.com/raiden-network/raiden-core/wire"
)

// Transport is the outbound half of package transport's retry queue: every
// SendMessageEvent ends up here, addressed by the queue its message
// belongs on (spec §4.H).
type Transport interface {
	Send(queue primitives.QueueIdentifier, messageID uint32, msg wire.Message)
}

// TxExecutor is package txexecutor's inbound half: every ContractSend*
// event ends up here (spec §4.J).
type TxExecutor interface {
	Submit(event transfer.Event)
}

// PaymentNotifier receives the three payment-outcome events the API layer
// surfaces to callers (spec §4.G, §6).
type PaymentNotifier interface {
	NotifySentSuccess(transfer.EventPaymentSentSuccess)
	NotifySentFailed(transfer.EventPaymentSentFailed)
	NotifyReceivedSuccess(transfer.EventPaymentReceivedSuccess)
}

// Handler implements driver.EventDispatcher, translating every event a
// batch of state transitions produced into the corresponding signed
// message, transaction submission, or API notification.
type Handler struct {
	account  *signing.Account
	chainID  uint64
	transport Transport
	executor  TxExecutor
	notifier  PaymentNotifier
}

// New constructs a Handler. chainID is folded into every signature per
// EIP-155 (spec §4.A); transport, executor and notifier may be nil in
// tests that only care about a subset of event kinds, in which case events
// routed to a nil collaborator are logged and dropped.
func New(account *signing.Account, chainID uint64, transport Transport, executor TxExecutor, notifier PaymentNotifier) *Handler {
	return &Handler{account: account, chainID: chainID, transport: transport, executor: executor, notifier: notifier}
}

// Dispatch implements driver.EventDispatcher.
func (h *Handler) Dispatch(events []transfer.Event) {
	for _, ev := range events {
		h.dispatchOne(ev)
	}
}

func (h *Handler) dispatchOne(ev transfer.Event) {
	switch e := ev.(type) {
	case transfer.SendLockedTransfer:
		h.sendSigned(e.SendMessageEvent, h.lockedTransferMessage(e))
	case transfer.SendSecretRequest:
		h.sendSigned(e.SendMessageEvent, &wire.SecretRequest{
			MessageIdentifier: e.MessageIdentifier,
			PaymentIdentifier: e.PaymentIdentifier,
			SecretHash:        e.SecretHash,
			Amount:            e.Amount,
		})
	case transfer.SendSecretReveal:
		h.sendSigned(e.SendMessageEvent, &wire.SecretReveal{
			MessageIdentifier: e.MessageIdentifier,
			Secret:            e.Secret,
		})
	case transfer.SendUnlock:
		h.sendSigned(e.SendMessageEvent, &wire.Unlock{
			ChainID:             primitives.ChainIDFromUint64(h.chainID),
			MessageIdentifier:   e.MessageIdentifier,
			Nonce:               e.BalanceProof.Nonce,
			TokenNetworkAddress: e.CanonicalIdentifier.TokenNetworkAddress,
			ChannelIdentifier:   e.CanonicalIdentifier.ChannelID,
			PaymentIdentifier:   e.PaymentIdentifier,
			Secret:              e.Secret,
			Locksroot:           e.BalanceProof.Locksroot,
			LockedAmount:        e.BalanceProof.LockedAmount,
			TransferredAmount:   e.BalanceProof.TransferredAmount,
		})
	case transfer.SendLockExpired:
		h.sendSigned(e.SendMessageEvent, &wire.LockExpired{
			ChainID:             primitives.ChainIDFromUint64(h.chainID),
			MessageIdentifier:   e.MessageIdentifier,
			Nonce:               e.BalanceProof.Nonce,
			TokenNetworkAddress: e.CanonicalIdentifier.TokenNetworkAddress,
			ChannelIdentifier:   e.CanonicalIdentifier.ChannelID,
			SecretHash:          e.SecretHash,
			Locksroot:           e.BalanceProof.Locksroot,
			LockedAmount:        e.BalanceProof.LockedAmount,
			TransferredAmount:   e.BalanceProof.TransferredAmount,
		})
	case transfer.SendWithdrawRequest:
		h.sendSigned(e.SendMessageEvent, &wire.WithdrawRequest{
			ChainID:             primitives.ChainIDFromUint64(h.chainID),
			MessageIdentifier:   e.MessageIdentifier,
			TokenNetworkAddress: e.CanonicalIdentifier.TokenNetworkAddress,
			ChannelIdentifier:   e.CanonicalIdentifier.ChannelID,
			Participant:         e.Participant,
			TotalWithdraw:       e.TotalWithdraw,
			Nonce:               e.Nonce,
			Expiration:          e.Expiration,
		})
	case transfer.SendWithdrawConfirmation:
		h.sendSigned(e.SendMessageEvent, &wire.WithdrawConfirmation{
			ChainID:             primitives.ChainIDFromUint64(h.chainID),
			MessageIdentifier:   e.MessageIdentifier,
			TokenNetworkAddress: e.CanonicalIdentifier.TokenNetworkAddress,
			ChannelIdentifier:   e.CanonicalIdentifier.ChannelID,
			Participant:         e.Participant,
			TotalWithdraw:       e.TotalWithdraw,
			Nonce:               e.Nonce,
			Expiration:          e.Expiration,
		})
	case transfer.SendWithdrawExpired:
		h.sendSigned(e.SendMessageEvent, &wire.WithdrawExpired{
			ChainID:             primitives.ChainIDFromUint64(h.chainID),
			MessageIdentifier:   e.MessageIdentifier,
			TokenNetworkAddress: e.CanonicalIdentifier.TokenNetworkAddress,
			ChannelIdentifier:   e.CanonicalIdentifier.ChannelID,
			Participant:         e.Participant,
			Nonce:               e.Nonce,
			Expiration:          e.Expiration,
		})
	case transfer.SendProcessed:
		h.sendSigned(e.SendMessageEvent, &wire.Processed{
			MessageIdentifier: e.MessageIdentifier,
		})

	case transfer.ContractSendChannelOpen, transfer.ContractSendChannelClose,
		transfer.ContractSendChannelUpdateTransfer, transfer.ContractSendChannelSettle,
		transfer.ContractSendChannelBatchUnlock, transfer.ContractSendChannelWithdraw,
		transfer.ContractSendSecretReveal:
		h.submit(ev)

	case transfer.EventPaymentSentSuccess:
		if h.notifier != nil {
			h.notifier.NotifySentSuccess(e)
		}
	case transfer.EventPaymentSentFailed:
		if h.notifier != nil {
			h.notifier.NotifySentFailed(e)
		}
	case transfer.EventPaymentReceivedSuccess:
		if h.notifier != nil {
			h.notifier.NotifyReceivedSuccess(e)
		}

	case transfer.EventInvalidReceivedLockedTransfer:
		log.Warnf("eventhandler: rejected locked transfer payment_id=%d: %s", e.PaymentIdentifier, e.Reason)
	case transfer.EventInvalidActionWithdraw:
		log.Warnf("eventhandler: rejected withdraw action amount=%s: %s", e.AttemptedWithdraw, e.Reason)
	case transfer.EventInvalidActionChannelClose:
		log.Warnf("eventhandler: rejected close action %s: %s", e.CanonicalIdentifier, e.Reason)

	case transfer.UpdatedServicesAddresses:
		log.Debugf("eventhandler: updated service addresses: %d monitoring, %d pathfinding",
			len(e.MonitoringServiceAddresses), len(e.PathfindingServiceAddresses))

	default:
		log.Warnf("eventhandler: unhandled event type %T", ev)
	}
}

func (h *Handler) lockedTransferMessage(e transfer.SendLockedTransfer) *wire.LockedTransfer {
	t := e.Transfer
	return &wire.LockedTransfer{
		ChainID:             primitives.ChainIDFromUint64(h.chainID),
		MessageIdentifier:   e.MessageIdentifier,
		Nonce:               t.BalanceProof.Nonce,
		TokenNetworkAddress: t.CanonicalIdentifier.TokenNetworkAddress,
		ChannelIdentifier:   t.CanonicalIdentifier.ChannelID,
		Recipient:           e.Recipient,
		Target:              t.Target,
		Initiator:           t.Initiator,
		Locksroot:           t.BalanceProof.Locksroot,
		LockedAmount:        t.BalanceProof.LockedAmount,
		TransferredAmount:   t.BalanceProof.TransferredAmount,
		PaymentIdentifier:   t.PaymentIdentifier,
		Lock: wire.Lock{
			Amount:     t.Lock.Amount,
			Expiration: t.Lock.Expiration,
			SecretHash: t.Lock.SecretHash,
		},
	}
}

// sendSigned signs msg with this node's account and hands it to the
// transport, addressed by env's queue identifier (spec §4.G: "every
// outgoing message is signed before being queued").
func (h *Handler) sendSigned(env transfer.SendMessageEvent, msg wire.Message) {
	if err := h.sign(msg); err != nil {
		log.Errorf("eventhandler: failed to sign %T: %v", msg, err)
		return
	}
	if h.transport == nil {
		log.Warnf("eventhandler: dropping %T, no transport wired", msg)
		return
	}
	h.transport.Send(env.QueueIdentifier(), env.MessageIdentifier, msg)
}

func (h *Handler) sign(msg wire.Message) error {
	digest := primitives.Keccak256(msg.SignedBytes())
	sig, err := h.account.Sign(digest, &h.chainID)
	if err != nil {
		return fmt.Errorf("sign %T: %w", msg, err)
	}

	switch m := msg.(type) {
	case *wire.LockedTransfer:
		m.Signature = sig
	case *wire.Unlock:
		m.Signature = sig
	case *wire.SecretRequest:
		m.Signature = sig
	case *wire.SecretReveal:
		m.Signature = sig
	case *wire.LockExpired:
		m.Signature = sig
	case *wire.WithdrawRequest:
		m.Signature = sig
	case *wire.WithdrawConfirmation:
		m.Signature = sig
	case *wire.WithdrawExpired:
		m.Signature = sig
	case *wire.Processed:
		m.Signature = sig
	case *wire.Delivered:
		m.Signature = sig
	default:
		return fmt.Errorf("sign: unrecognized message type %T", msg)
	}
	return nil
}

func (h *Handler) submit(ev transfer.Event) {
	if h.executor == nil {
		log.Warnf("eventhandler: dropping %T, no transaction executor wired", ev)
		return
	}
	h.executor.Submit(ev)
}
