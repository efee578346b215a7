package transfer

import "github.com/raiden-network/raiden-core/primitives"

// handleActionInitMediator sets up a new mediation: it records the
// incoming (payer) LockedTransfer and forwards an equivalent lock, minus
// this node's mediation fee, onto the best payee route (spec §5.C). If no
// payee route has enough capacity the mediator refuses the transfer
// immediately rather than accepting a payer lock it cannot forward, since
// an accepted-but-unforwardable lock would force it to either violate the
// payer's expiration or absorb the amount itself.
func handleActionInitMediator(chainState *ChainState, a ActionInitMediator) []Event {
	secretHash := a.FromTransfer.Lock.SecretHash

	payerChannel := findChannel(chainState, a.FromTransfer.CanonicalIdentifier)
	if payerChannel == nil {
		return []Event{EventInvalidReceivedLockedTransfer{
			PaymentIdentifier: a.FromTransfer.PaymentIdentifier,
			Reason:            "locked transfer references an unknown payer channel",
		}}
	}

	route, ok := selectRoute(a.Routes, a.FromTransfer.Amount)
	if !ok {
		return []Event{SendLockExpired{
			SendMessageEvent: SendMessageEvent{
				Recipient:           a.FromTransfer.BalanceProof.SenderAddress,
				CanonicalIdentifier: a.FromTransfer.CanonicalIdentifier,
			},
			SecretHash: secretHash,
		}}
	}

	payeeHop := route.RouteHops[0]
	payeeChannel := findChannelWithPartner(chainState, payerChannel.TokenAddress, payeeHop)
	if payeeChannel == nil {
		return []Event{EventInvalidReceivedLockedTransfer{
			PaymentIdentifier: a.FromTransfer.PaymentIdentifier,
			Reason:            "no open channel with the next hop on the selected route",
		}}
	}

	fee := payeeChannel.mediationFee(a.FromTransfer.Amount)
	forwardAmount := a.FromTransfer.Amount.Sub(fee)

	expiration := a.FromTransfer.Lock.Expiration
	lock := newHashTimeLock(forwardAmount, expiration, secretHash)
	_, sendEvent := lockAndSign(payeeChannel, lock, a.FromTransfer.Initiator, a.FromTransfer.PaymentIdentifier, payeeHop)

	mediatorTask := &MediatorTransferTask{TransferState: &MediatorTransferState{
		SecretHash: secretHash,
		Routes:     a.Routes,
		Transfers: []MediationPairState{{
			PayerTransfer: a.FromTransfer,
			PayeeTransfer: sendEvent.(SendLockedTransfer).Transfer,
			PayerState:    "pending",
			PayeeState:    "pending",
		}},
	}}
	chainState.PayeeToPayerTasks[secretHash] = mediatorTask

	return []Event{sendEvent}
}

// mediationFee is a placeholder fee policy until a channel carries an
// explicit FeeScheduleState (spec §5.C fee computation; a channel that has
// not been given an explicit schedule charges nothing, matching the
// original node's behavior of only charging fees a node operator has
// opted into).
func (ch *ChannelState) mediationFee(amount primitives.TokenAmount) primitives.TokenAmount {
	if ch.FeeSchedule == nil {
		return primitives.ZeroUint256()
	}
	return ch.FeeSchedule.Fee(amount)
}
