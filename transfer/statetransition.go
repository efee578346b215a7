package transfer

import "github.com/raiden-network/raiden-core/primitives"

// StateTransition is the single pure entry point the transition driver
// (spec §4.F) calls for every StateChange it pops off its queue:
//
//	chain_state', events := StateTransition(chain_state, state_change)
//
// It never performs I/O, never reads the wall clock, and never consults
// randomness outside of chain_state.PseudoRandomGenerator, so replaying the
// same StateChange log from the same initial ChainState always produces
// the same resulting ChainState and the same Events, in order (spec §2,
// §7 determinism).
func StateTransition(chainState *ChainState, stateChange StateChange) (*ChainState, []Event) {
	var events []Event

	switch sc := stateChange.(type) {
	case ActionInitChain:
		return NewChainState(sc.ChainID, sc.OurAddress, sc.BlockNumber, 1), nil

	case Block:
		chainState.BlockNumber = sc.BlockNumber
		chainState.BlockHash = sc.BlockHash
		events = append(events, forEachChannel(chainState, func(ch *ChannelState) []Event {
			_, ev := channelStateTransition(ch, sc, chainState.BlockNumber)
			return ev
		})...)
		events = append(events, chainHandleTasksBlock(chainState, sc)...)

	case ContractReceiveChannelOpened:
		events = append(events, chainHandleChannelOpened(chainState, sc)...)

	case ContractReceiveChannelNewDeposit, ContractReceiveChannelWithdraw,
		ContractReceiveChannelClosed, ContractReceiveChannelSettled,
		ContractReceiveChannelBatchUnlock,
		ActionChannelClose, ActionChannelWithdraw, ActionChannelSetRevealTimeout,
		ReceiveWithdrawRequest, ReceiveWithdrawConfirmation, ReceiveWithdrawExpired:
		events = append(events, routeToChannel(chainState, sc)...)

	case ActionInitInitiator:
		events = append(events, handleActionInitInitiator(chainState, sc)...)

	case ActionInitMediator:
		events = append(events, handleActionInitMediator(chainState, sc)...)

	case ActionInitTarget:
		events = append(events, handleActionInitTarget(chainState, sc)...)

	case ReceiveLockedTransfer:
		events = append(events, handleReceiveLockedTransfer(chainState, sc)...)

	case ReceiveSecretRequest:
		events = append(events, handleReceiveSecretRequest(chainState, sc)...)

	case ReceiveSecretReveal:
		events = append(events, handleReceiveSecretReveal(chainState, sc)...)

	case ReceiveUnlock:
		events = append(events, handleReceiveUnlock(chainState, sc)...)

	case ReceiveLockExpired:
		events = append(events, handleReceiveLockExpired(chainState, sc)...)

	case ContractReceiveSecretReveal:
		events = append(events, handleContractReceiveSecretReveal(chainState, sc)...)

	case UpdateServicesAddresses:
		chainState.Services.MonitoringServiceAddresses = sc.MonitoringServiceAddresses
		chainState.Services.PathfindingServiceAddresses = sc.PathfindingServiceAddresses
		events = append(events, UpdatedServicesAddresses{
			MonitoringServiceAddresses:  sc.MonitoringServiceAddresses,
			PathfindingServiceAddresses: sc.PathfindingServiceAddresses,
		})

	case ActionCancelPayment, ActionTransferReroute:
		// Routed by payment/transfer identifier rather than channel;
		// handled entirely within the initiator sub-machine's retry
		// bookkeeping (spec §5.B), which for the initial payment path
		// lives in initiator.go.
		events = append(events, handleInitiatorControlChange(chainState, sc)...)

	case ReceiveProcessed, ReceiveDelivered:
		// Retry-queue bookkeeping only; the driver's retry queue (spec
		// §4.H), not ChainState, owns message acknowledgement.

	case ContractReceiveRouteNew:
		events = append(events, chainHandleRouteNew(chainState, sc)...)
	}

	return chainState, events
}

// forEachChannel applies fn to every channel in chain_state and
// concatenates the resulting events, in a deterministic (sorted by
// channel key) order so replay is reproducible.
func forEachChannel(chainState *ChainState, fn func(*ChannelState) []Event) []Event {
	var events []Event
	keys := allChannelKeysSorted(chainState)
	for _, key := range keys {
		ch := findChannelByKey(chainState, key)
		if ch != nil {
			events = append(events, fn(ch)...)
		}
	}
	return events
}

func allChannelKeysSorted(chainState *ChainState) []string {
	var keys []string
	for _, registry := range chainState.TokenNetworkRegistries {
		for _, network := range registry.TokenNetworks {
			for key := range network.Channels {
				keys = append(keys, key)
			}
		}
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func findChannelByKey(chainState *ChainState, key string) *ChannelState {
	for _, registry := range chainState.TokenNetworkRegistries {
		for _, network := range registry.TokenNetworks {
			if ch, ok := network.Channels[key]; ok {
				return ch
			}
		}
	}
	return nil
}

func findChannel(chainState *ChainState, id primitives.CanonicalIdentifier) *ChannelState {
	return findChannelByKey(chainState, id.Key())
}

func findTokenNetwork(chainState *ChainState, tokenNetworkAddress primitives.Address) *TokenNetworkState {
	for _, registry := range chainState.TokenNetworkRegistries {
		if tn, ok := registry.TokenNetworks[tokenNetworkAddress]; ok {
			return tn
		}
	}
	return nil
}

type canonicallyIdentified interface {
	canonicalIdentifier() primitives.CanonicalIdentifier
}

func (c ContractReceiveChannelNewDeposit) canonicalIdentifier() primitives.CanonicalIdentifier {
	return c.CanonicalIdentifier
}
func (c ContractReceiveChannelWithdraw) canonicalIdentifier() primitives.CanonicalIdentifier {
	return c.CanonicalIdentifier
}
func (c ContractReceiveChannelClosed) canonicalIdentifier() primitives.CanonicalIdentifier {
	return c.CanonicalIdentifier
}
func (c ContractReceiveChannelSettled) canonicalIdentifier() primitives.CanonicalIdentifier {
	return c.CanonicalIdentifier
}
func (c ContractReceiveChannelBatchUnlock) canonicalIdentifier() primitives.CanonicalIdentifier {
	return c.CanonicalIdentifier
}
func (a ActionChannelClose) canonicalIdentifier() primitives.CanonicalIdentifier {
	return a.CanonicalIdentifier
}
func (a ActionChannelWithdraw) canonicalIdentifier() primitives.CanonicalIdentifier {
	return a.CanonicalIdentifier
}
func (a ActionChannelSetRevealTimeout) canonicalIdentifier() primitives.CanonicalIdentifier {
	return a.CanonicalIdentifier
}
func (r ReceiveWithdrawRequest) canonicalIdentifier() primitives.CanonicalIdentifier {
	return r.CanonicalIdentifier
}
func (r ReceiveWithdrawConfirmation) canonicalIdentifier() primitives.CanonicalIdentifier {
	return r.CanonicalIdentifier
}
func (r ReceiveWithdrawExpired) canonicalIdentifier() primitives.CanonicalIdentifier {
	return r.CanonicalIdentifier
}

// routeToChannel finds the channel a channel-scoped StateChange targets
// and applies channelStateTransition to it alone.
func routeToChannel(chainState *ChainState, stateChange StateChange) []Event {
	ci, ok := stateChange.(canonicallyIdentified)
	if !ok {
		return nil
	}
	ch := findChannel(chainState, ci.canonicalIdentifier())
	if ch == nil {
		return nil
	}
	_, events := channelStateTransition(ch, stateChange, chainState.BlockNumber)
	return events
}

func chainHandleChannelOpened(chainState *ChainState, c ContractReceiveChannelOpened) []Event {
	tn := findTokenNetwork(chainState, c.CanonicalIdentifier.TokenNetworkAddress)
	if tn == nil {
		return nil
	}

	partner := c.Participant2
	ourSide := c.Participant1
	if ourSide != chainState.OurAddress {
		ourSide, partner = partner, ourSide
	}

	ch := &ChannelState{
		CanonicalIdentifier: c.CanonicalIdentifier,
		TokenAddress:        tn.TokenAddress,
		RevealTimeout:       50,
		SettleTimeout:       c.SettleTimeout,
		OurState:            NewChannelEndState(ourSide),
		PartnerState:        NewChannelEndState(partner),
		Status:              ChannelStateOpened,
	}
	tn.Channels[c.CanonicalIdentifier.Key()] = ch
	tn.PartnerAddressToChannel[partner] = append(tn.PartnerAddressToChannel[partner], c.CanonicalIdentifier.Key())
	return nil
}

func chainHandleRouteNew(chainState *ChainState, c ContractReceiveRouteNew) []Event {
	return nil
}
