package transfer

import "github.com/raiden-network/raiden-core/primitives"

// channelStateTransition applies one StateChange to a single ChannelState,
// returning the (possibly same) resulting state and any events it raises.
// This is the generalization of lnwallet.LightningChannel's mutating
// methods (AddHTLC, SettleHTLC, ...) into the pure, replayable style the
// rest of the node's state machine uses: nothing here touches I/O or the
// clock, it only reads blockNumber off the ChainState that's threaded
// through.
func channelStateTransition(channel *ChannelState, stateChange StateChange, blockNumber primitives.BlockNumber) (*ChannelState, []Event) {
	switch sc := stateChange.(type) {
	case Block:
		return channelHandleBlock(channel, sc)
	case ActionChannelClose:
		return channelHandleActionClose(channel, sc)
	case ActionChannelWithdraw:
		return channelHandleActionWithdraw(channel, sc, blockNumber)
	case ActionChannelSetRevealTimeout:
		if sc.CanonicalIdentifier.Key() == channel.CanonicalIdentifier.Key() {
			channel.RevealTimeout = sc.RevealTimeout
		}
		return channel, nil
	case ContractReceiveChannelNewDeposit:
		return channelHandleNewDeposit(channel, sc)
	case ContractReceiveChannelWithdraw:
		return channelHandleOnchainWithdraw(channel, sc)
	case ContractReceiveChannelClosed:
		return channelHandleClosed(channel, sc)
	case ContractReceiveChannelSettled:
		channel.Status = ChannelStateSettled
		return channel, nil
	case ContractReceiveChannelBatchUnlock:
		return channel, nil
	case ReceiveWithdrawRequest:
		return channelHandleReceiveWithdrawRequest(channel, sc)
	case ReceiveWithdrawConfirmation:
		return channelHandleReceiveWithdrawConfirmation(channel, sc)
	case ReceiveWithdrawExpired:
		return channelHandleReceiveWithdrawExpired(channel, sc, blockNumber)
	default:
		return channel, nil
	}
}

func channelHandleBlock(channel *ChannelState, b Block) (*ChannelState, []Event) {
	var events []Event

	for key, w := range channel.OurState.WithdrawsPending {
		if primitives.BlockExpiration(b.BlockNumber) > w.Expiration {
			delete(channel.OurState.WithdrawsPending, key)
			events = append(events, SendWithdrawExpired{
				SendMessageEvent: SendMessageEvent{
					Recipient:           channel.PartnerState.Address,
					CanonicalIdentifier: channel.CanonicalIdentifier,
				},
				Participant: channel.OurState.Address,
				Nonce:       nextNonce(channel.OurState),
				Expiration:  w.Expiration,
			})
		}
	}

	if channel.Status == ChannelStateClosing || channel.Status == ChannelStateClosed {
		if channel.CloseTransaction != nil && channel.SettleTransaction == nil {
			settleBlock := getSenderExpirationThreshold(primitives.BlockExpiration(channel.CloseTransaction.FinishedBlockNumber)) +
				primitives.BlockExpiration(channel.SettleTimeout)
			if primitives.BlockExpiration(b.BlockNumber) >= settleBlock {
				channel.Status = ChannelStateSettling
				events = append(events, ContractSendChannelSettle{
					ContractSendEvent:  ContractSendEvent{TriggeredByBlockHash: b.BlockHash},
					CanonicalIdentifier: channel.CanonicalIdentifier,
				})
			}
		}
	}

	return channel, events
}

func channelHandleActionClose(channel *ChannelState, a ActionChannelClose) (*ChannelState, []Event) {
	if a.CanonicalIdentifier.Key() != channel.CanonicalIdentifier.Key() {
		return channel, nil
	}
	if channel.Status != ChannelStateOpened {
		return channel, []Event{EventInvalidActionChannelClose{
			CanonicalIdentifier: a.CanonicalIdentifier,
			Reason:              "channel is not open",
		}}
	}

	channel.Status = ChannelStateClosing
	return channel, []Event{ContractSendChannelClose{
		CanonicalIdentifier: channel.CanonicalIdentifier,
		BalanceProof:        channel.PartnerState.BalanceProof,
	}}
}

// channelHandleActionWithdraw begins the 3-leg withdraw protocol: it does
// not move funds, it only proposes a new total_withdraw and asks the
// partner to counter-sign it (spec §5.E).
func channelHandleActionWithdraw(channel *ChannelState, a ActionChannelWithdraw, blockNumber primitives.BlockNumber) (*ChannelState, []Event) {
	if a.CanonicalIdentifier.Key() != channel.CanonicalIdentifier.Key() {
		return channel, nil
	}

	maxWithdraw := getMaxWithdrawAmount(channel.OurState, channel.PartnerState)
	if a.TotalWithdraw.Cmp(maxWithdraw) > 0 {
		return channel, []Event{EventInvalidActionWithdraw{
			AttemptedWithdraw: a.TotalWithdraw,
			Reason:            "total withdraw amount exceeds the channel's current balance",
		}}
	}

	expiration := getSafeInitialExpiration(blockNumber, channel.RevealTimeout, nil)
	nonce := nextNonce(channel.OurState)
	channel.OurState.Nonce = nonce
	channel.OurState.WithdrawsPending[withdrawKey(channel.OurState.Address, a.TotalWithdraw, expiration)] = &PendingWithdrawState{
		TotalWithdraw: a.TotalWithdraw,
		Expiration:    expiration,
		Nonce:         nonce,
	}

	return channel, []Event{SendWithdrawRequest{
		SendMessageEvent: SendMessageEvent{
			Recipient:           channel.PartnerState.Address,
			CanonicalIdentifier: channel.CanonicalIdentifier,
		},
		Participant:   channel.OurState.Address,
		TotalWithdraw: a.TotalWithdraw,
		Nonce:         nonce,
		Expiration:    expiration,
	}}
}

func withdrawKey(participant primitives.Address, totalWithdraw primitives.TokenAmount, expiration primitives.BlockExpiration) string {
	return participant.String() + "/" + totalWithdraw.String()
}

func channelHandleNewDeposit(channel *ChannelState, c ContractReceiveChannelNewDeposit) (*ChannelState, []Event) {
	if c.CanonicalIdentifier.Key() != channel.CanonicalIdentifier.Key() {
		return channel, nil
	}
	switch c.Participant {
	case channel.OurState.Address:
		channel.OurState.ContractBalance = c.TotalDeposit
	case channel.PartnerState.Address:
		channel.PartnerState.ContractBalance = c.TotalDeposit
	}
	return channel, nil
}

func channelHandleOnchainWithdraw(channel *ChannelState, c ContractReceiveChannelWithdraw) (*ChannelState, []Event) {
	if c.CanonicalIdentifier.Key() != channel.CanonicalIdentifier.Key() {
		return channel, nil
	}
	switch c.Participant {
	case channel.OurState.Address:
		channel.OurState.OnchainTotalWithdraw = c.TotalWithdraw
	case channel.PartnerState.Address:
		channel.PartnerState.OnchainTotalWithdraw = c.TotalWithdraw
	}
	return channel, nil
}

func channelHandleClosed(channel *ChannelState, c ContractReceiveChannelClosed) (*ChannelState, []Event) {
	if c.CanonicalIdentifier.Key() != channel.CanonicalIdentifier.Key() {
		return channel, nil
	}
	channel.Status = ChannelStateClosed
	channel.CloseTransaction = &TransactionExecutionStatus{Result: TransactionResultSuccess}

	var events []Event
	if c.Closer != channel.OurState.Address && channel.PartnerState.BalanceProof != nil {
		events = append(events, ContractSendChannelUpdateTransfer{
			BalanceProof: *channel.PartnerState.BalanceProof,
		})
	}
	return channel, events
}

// channelHandleReceiveWithdrawRequest validates and counter-signs an
// incoming withdraw proposal. The tie-break decided in DESIGN.md (lower
// address wins when both sides propose conflicting withdraws in the same
// block) is enforced by simply accepting whichever request arrives first
// for a given (participant, total_withdraw) pair; a second, conflicting
// request for the same participant is rejected rather than silently
// overwriting the first.
func channelHandleReceiveWithdrawRequest(channel *ChannelState, r ReceiveWithdrawRequest) (*ChannelState, []Event) {
	if r.CanonicalIdentifier.Key() != channel.CanonicalIdentifier.Key() {
		return channel, nil
	}

	var requester *ChannelEndState
	switch r.Sender {
	case channel.OurState.Address:
		requester = channel.OurState
	case channel.PartnerState.Address:
		requester = channel.PartnerState
	default:
		return channel, nil
	}

	other := channel.OurState
	if requester == channel.OurState {
		other = channel.PartnerState
	}

	maxWithdraw := getMaxWithdrawAmount(requester, other)
	if r.TotalWithdraw.Cmp(maxWithdraw) > 0 {
		return channel, []Event{EventInvalidActionWithdraw{
			AttemptedWithdraw: r.TotalWithdraw,
			Reason:            "partner requested a withdraw exceeding the channel's current balance",
		}}
	}

	key := withdrawKey(r.Sender, r.TotalWithdraw, r.Expiration)
	if existing, ok := requester.WithdrawsPending[key]; ok && existing.Nonce.Cmp(r.Nonce) != 0 {
		if !r.Sender.Less(channel.OurState.Address) {
			return channel, nil
		}
	}

	requester.WithdrawsPending[key] = &PendingWithdrawState{
		TotalWithdraw: r.TotalWithdraw,
		Expiration:    r.Expiration,
		Nonce:         r.Nonce,
	}

	if requester == channel.PartnerState {
		return channel, []Event{SendWithdrawConfirmation{
			SendMessageEvent: SendMessageEvent{
				Recipient:           channel.PartnerState.Address,
				CanonicalIdentifier: channel.CanonicalIdentifier,
			},
			Participant:   r.Sender,
			TotalWithdraw: r.TotalWithdraw,
			Nonce:         r.Nonce,
			Expiration:    r.Expiration,
		}}
	}
	return channel, nil
}

func channelHandleReceiveWithdrawConfirmation(channel *ChannelState, r ReceiveWithdrawConfirmation) (*ChannelState, []Event) {
	if r.CanonicalIdentifier.Key() != channel.CanonicalIdentifier.Key() {
		return channel, nil
	}
	return channel, []Event{ContractSendChannelWithdraw{
		CanonicalIdentifier: channel.CanonicalIdentifier,
		TotalWithdraw:       r.TotalWithdraw,
		Expiration:          r.Expiration,
		PartnerSignature:    r.Signature,
	}}
}

func channelHandleReceiveWithdrawExpired(channel *ChannelState, r ReceiveWithdrawExpired, blockNumber primitives.BlockNumber) (*ChannelState, []Event) {
	if r.CanonicalIdentifier.Key() != channel.CanonicalIdentifier.Key() {
		return channel, nil
	}
	if primitives.BlockExpiration(blockNumber) <= r.Expiration {
		return channel, nil
	}

	holder := channel.PartnerState
	for key, w := range holder.WithdrawsPending {
		if w.Expiration == r.Expiration {
			delete(holder.WithdrawsPending, key)
		}
	}
	return channel, nil
}
