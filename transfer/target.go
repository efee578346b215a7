package transfer

import "github.com/raiden-network/raiden-core/primitives"

// handleActionInitTarget records a newly arrived LockedTransfer addressed
// to this node and asks the initiator, by way of a SecretRequest, to
// reveal the secret (spec §5.D).
func handleActionInitTarget(chainState *ChainState, a ActionInitTarget) []Event {
	secretHash := a.FromTransfer.Lock.SecretHash

	chainState.PayeeToPayerTasks[secretHash] = &TargetTransferTask{TransferState: &TargetTransferState{
		Transfer:   a.FromTransfer,
		SecretHash: secretHash,
		State:      "secret_request",
	}}

	ch := findChannel(chainState, a.FromTransfer.CanonicalIdentifier)
	if ch == nil {
		return []Event{EventInvalidReceivedLockedTransfer{
			PaymentIdentifier: a.FromTransfer.PaymentIdentifier,
			Reason:            "locked transfer references an unknown channel",
		}}
	}

	return []Event{SendSecretRequest{
		SendMessageEvent: SendMessageEvent{
			Recipient:           a.FromTransfer.Initiator,
			CanonicalIdentifier: ch.CanonicalIdentifier,
		},
		SecretHash:        secretHash,
		Amount:            a.FromTransfer.Amount,
		PaymentIdentifier: a.FromTransfer.PaymentIdentifier,
	}}
}

// handleReceiveLockedTransfer is the common entry point for a LockedTransfer
// arriving at a node that is neither its initiator nor (necessarily) its
// final target: a bare ReceiveLockedTransfer StateChange is translated into
// ActionInitMediator or ActionInitTarget depending on whether this node is
// the transfer's Target (spec §5.C/D dispatch).
func handleReceiveLockedTransfer(chainState *ChainState, r ReceiveLockedTransfer) []Event {
	if r.Transfer.Target == chainState.OurAddress {
		return handleActionInitTarget(chainState, ActionInitTarget{
			FromHop:      r.FromHop,
			FromTransfer: r.Transfer,
		})
	}
	return handleActionInitMediator(chainState, ActionInitMediator{
		FromHop:      r.FromHop,
		FromTransfer: r.Transfer,
	})
}

// handleReceiveSecretRequest is handled by the transfer's initiator: once
// the target proves it holds the lock by naming the right secrethash and
// amount, the initiator reveals the secret back along the route (spec
// §5.B).
func handleReceiveSecretRequest(chainState *ChainState, r ReceiveSecretRequest) []Event {
	task, ok := chainState.PayeeToPayerTasks[r.SecretHash].(*InitiatorTransferTask)
	if !ok {
		return nil
	}
	if task.TransferState.TransferDescription.Amount.Cmp(r.Amount) != 0 {
		return nil
	}

	task.TransferState.RevealSecret = true
	return []Event{SendSecretReveal{
		SendMessageEvent: SendMessageEvent{
			Recipient:           r.Sender,
			CanonicalIdentifier: task.TransferState.CanonicalIdentifier,
		},
		Secret: task.TransferState.TransferDescription.Secret,
	}}
}

// handleReceiveSecretReveal applies a secret learned off-chain, whichever
// role this node plays for it: a mediator forwards the reveal to its payer
// hop and unlocks its payee channel; a target unlocks its payer channel and
// reports the payment as received (spec §5.A/C/D).
func handleReceiveSecretReveal(chainState *ChainState, r ReceiveSecretReveal) []Event {
	task, ok := chainState.PayeeToPayerTasks[r.SecretHash]
	if !ok {
		return nil
	}

	switch t := task.(type) {
	case *TargetTransferTask:
		t.Secret = r.Secret
		t.State = "secret_revealed"

		ch := findChannel(chainState, t.Transfer.CanonicalIdentifier)
		if ch == nil {
			return nil
		}
		unlockEvent := unlockPayerLock(ch, r.SecretHash, r.Secret, chainState.OurAddress, t.Transfer.PaymentIdentifier)
		return []Event{unlockEvent, EventPaymentReceivedSuccess{
			Identifier: t.Transfer.PaymentIdentifier,
			Amount:     t.Transfer.Amount,
			Initiator:  t.Transfer.Initiator,
		}}

	case *MediatorTransferTask:
		t.Secret = r.Secret
		var events []Event
		for i := range t.Transfers {
			pair := &t.Transfers[i]
			if pair.PayerTransfer.Lock.SecretHash != r.SecretHash {
				continue
			}
			pair.PayerState = "secret_revealed"
			events = append(events, SendSecretReveal{
				SendMessageEvent: SendMessageEvent{
					Recipient:           pair.PayerTransfer.BalanceProof.SenderAddress,
					CanonicalIdentifier: pair.PayerTransfer.CanonicalIdentifier,
				},
				Secret: r.Secret,
			})
		}
		return events
	}
	return nil
}

// forwardMediatedUnlock looks for a mediation pair whose payee-side channel
// is the one that just sent us Unlock and, if found, redeems this node's
// own lock on the matching payer-side channel in turn: this is the
// backward unlock propagation spec §5.C requires ("on ReceiveUnlock from
// the payee, emit SendUnlock to the payer").
func forwardMediatedUnlock(chainState *ChainState, payeeCanonical primitives.CanonicalIdentifier, secretHash primitives.SecretHash, secret primitives.Secret) []Event {
	task, ok := chainState.PayeeToPayerTasks[secretHash].(*MediatorTransferTask)
	if !ok {
		return nil
	}

	for i := range task.Transfers {
		pair := &task.Transfers[i]
		if pair.PayeeTransfer.CanonicalIdentifier != payeeCanonical {
			continue
		}
		if pair.PayeeTransfer.Lock.SecretHash != secretHash {
			continue
		}
		if pair.PayeeState == "unlocked" {
			return nil
		}
		pair.PayeeState = "unlocked"

		payerChannel := findChannel(chainState, pair.PayerTransfer.CanonicalIdentifier)
		if payerChannel == nil {
			return nil
		}
		unlockEvent := unlockPayerLock(payerChannel, secretHash, secret, chainState.OurAddress, pair.PayerTransfer.PaymentIdentifier)
		return []Event{unlockEvent}
	}
	return nil
}

// unlockPayerLock removes secretHash's lock from the payer side of ch (our
// partner, who funded the incoming transfer) and returns the SendUnlock
// event that proves redemption to them.
func unlockPayerLock(ch *ChannelState, secretHash primitives.SecretHash, secret primitives.Secret, ourAddress primitives.Address, paymentID uint64) Event {
	lock, ok := ch.PartnerState.SecretHashesToLockedLocks[secretHash]
	if !ok {
		return SendProcessed{}
	}
	delete(ch.PartnerState.SecretHashesToLockedLocks, secretHash)
	ch.PartnerState.SecretHashesToUnlockedLocks[secretHash] = &UnlockPartialProofState{Lock: lock, Secret: secret}

	locksroot := ComputeEndStateLocksroot(ch.PartnerState)
	transferred := primitives.ZeroUint256()
	if ch.PartnerState.BalanceProof != nil {
		transferred = ch.PartnerState.BalanceProof.TransferredAmount
	}
	transferred = transferred.Add(lock.Amount)
	locked := getAmountLocked(ch.PartnerState)
	nonce := nextNonce(ch.PartnerState)
	balanceHash := primitives.HashBalanceData(transferred, locked, locksroot)

	bp := BalanceProofState{
		Nonce:               nonce,
		TransferredAmount:   transferred,
		LockedAmount:        locked,
		Locksroot:           locksroot,
		CanonicalIdentifier: ch.CanonicalIdentifier,
		BalanceHash:         balanceHash,
		SenderAddress:       ourAddress,
	}

	return SendUnlock{
		SendMessageEvent: SendMessageEvent{
			Recipient:           ch.PartnerState.Address,
			CanonicalIdentifier: ch.CanonicalIdentifier,
		},
		PaymentIdentifier: paymentID,
		Secret:            secret,
		BalanceProof:      bp,
	}
}

// handleReceiveUnlock applies an Unlock message from our partner: it is
// the payer side's balance proof update, proving the lock this node placed
// on them has been redeemed. Spec invariant I2 (strictly increasing nonce)
// is assumed already checked by the caller before this StateChange is
// dispatched, per the normative "validate before apply" ordering (spec
// §4.C).
func handleReceiveUnlock(chainState *ChainState, r ReceiveUnlock) []Event {
	ch := findChannel(chainState, r.BalanceProof.CanonicalIdentifier)
	if ch == nil {
		return nil
	}
	secretHash := r.Secret.Hash()
	delete(ch.OurState.SecretHashesToLockedLocks, secretHash)
	ch.PartnerState.BalanceProof = &r.BalanceProof
	ch.PartnerState.Nonce = r.BalanceProof.Nonce

	return forwardMediatedUnlock(chainState, ch.CanonicalIdentifier, secretHash, r.Secret)
}

// handleReceiveLockExpired removes an unredeemed lock once its sender has
// confirmed, via LockExpired, that it is safe to drop (spec §5.A).
func handleReceiveLockExpired(chainState *ChainState, r ReceiveLockExpired) []Event {
	ch := findChannel(chainState, r.BalanceProof.CanonicalIdentifier)
	if ch == nil {
		return nil
	}
	delete(ch.PartnerState.SecretHashesToLockedLocks, r.SecretHash)
	ch.PartnerState.BalanceProof = &r.BalanceProof
	ch.PartnerState.Nonce = r.BalanceProof.Nonce
	return nil
}

// handleContractReceiveSecretReveal applies a secret registered on-chain, the
// fallback path used when the off-chain unlock race is lost (spec §5.A).
// It is handled identically to an off-chain ReceiveSecretReveal from the
// perspective of task bookkeeping, since both carry the same authenticated
// secret.
func handleContractReceiveSecretReveal(chainState *ChainState, c ContractReceiveSecretReveal) []Event {
	return handleReceiveSecretReveal(chainState, ReceiveSecretReveal{
		SecretHash: c.SecretHash,
		Secret:     c.Secret,
	})
}

// chainHandleTasksBlock gives every in-flight transfer task a chance to
// react to a new block: expiring locks it is waiting on and reporting
// failure for payments that can no longer complete (spec §5.A-D).
func chainHandleTasksBlock(chainState *ChainState, b Block) []Event {
	var events []Event
	for secretHash, task := range chainState.PayeeToPayerTasks {
		switch t := task.(type) {
		case *InitiatorTransferTask:
			ch := findChannel(chainState, t.TransferState.CanonicalIdentifier)
			if ch == nil {
				continue
			}
			lock := getLock(ch.OurState, secretHash)
			if lock != nil && IsLockExpired(lock, b.BlockNumber) {
				delete(chainState.PayeeToPayerTasks, secretHash)
				events = append(events, EventPaymentSentFailed{
					Identifier: t.TransferState.TransferDescription.PaymentIdentifier,
					Reason:     "lock expired before the secret was revealed",
				})
			}
		case *TargetTransferTask:
			if IsLockExpired(&t.Transfer.Lock, b.BlockNumber) && t.Secret == nil {
				delete(chainState.PayeeToPayerTasks, secretHash)
			}

		case *MediatorTransferTask:
			events = append(events, mediatorHandleBlock(chainState, secretHash, t, b)...)
			if mediatorTaskDone(chainState, t) {
				delete(chainState.PayeeToPayerTasks, secretHash)
			}
		}
	}
	return events
}

// mediatorHandleBlock registers a known secret on-chain once the payer
// lock's expiration is close enough that the off-chain unlock race could
// be lost (spec §5.C's on-chain fallback): if this node has learned the
// secret for a pair but has not yet forwarded SendUnlock to the payer,
// and the payer lock's expiration minus the payer channel's reveal
// timeout has arrived, it falls back to ContractSendSecretReveal so the
// lock can still be redeemed on-chain even if the payer stops responding.
func mediatorHandleBlock(chainState *ChainState, secretHash primitives.SecretHash, task *MediatorTransferTask, b Block) []Event {
	if task.Secret == nil {
		return nil
	}

	var events []Event
	for i := range task.Transfers {
		pair := &task.Transfers[i]
		if pair.PayerState != "secret_revealed" || pair.PayeeState == "unlocked" {
			continue
		}

		payerChannel := findChannel(chainState, pair.PayerTransfer.CanonicalIdentifier)
		if payerChannel == nil {
			continue
		}
		safetyMargin := primitives.BlockExpiration(payerChannel.RevealTimeout)
		if pair.PayerTransfer.Lock.Expiration < safetyMargin {
			continue
		}
		fallbackBlock := pair.PayerTransfer.Lock.Expiration - safetyMargin
		if primitives.BlockExpiration(b.BlockNumber) < fallbackBlock {
			continue
		}

		pair.PayeeState = "unlocked"
		events = append(events, ContractSendSecretReveal{
			ContractSendEvent: ContractSendEvent{TriggeredByBlockHash: b.BlockHash},
			Secret:            task.Secret,
		})
	}
	return events
}

// mediatorTaskDone reports whether every mediation pair in task has
// reached a terminal state (redeemed or expired on both legs), so its
// bookkeeping entry can be dropped.
func mediatorTaskDone(chainState *ChainState, task *MediatorTransferTask) bool {
	for i := range task.Transfers {
		pair := &task.Transfers[i]
		payerDone := pair.PayeeState == "unlocked"
		if !payerDone {
			payerChannel := findChannel(chainState, pair.PayerTransfer.CanonicalIdentifier)
			if payerChannel != nil {
				lock := getLock(payerChannel.PartnerState, pair.PayerTransfer.Lock.SecretHash)
				payerDone = lock == nil || IsLockExpired(lock, chainState.BlockNumber)
			}
		}
		if !payerDone {
			return false
		}
	}
	return true
}
