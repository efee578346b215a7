package transfer

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// stateChangeTypes and eventTypes register every concrete StateChange/Event
// case by its Go type name, so the persistent log (spec §4.E, §6) can store
// each state_changes/state_events row as a small JSON envelope
// ({"type": "...", "data": {...}}) and reconstruct the original tagged union
// member on replay. The original node's Rust implementation gets this for
// free from serde's internally-tagged enum derive; Go has no such macro, so
// the registry plays the same role explicitly, grounded on the same
// "replay must reproduce the exact StateChange sequence" requirement (spec
// §4.E, P1).
var stateChangeTypes = map[string]func() StateChange{
	"Block":                             func() StateChange { return &Block{} },
	"ActionInitChain":                   func() StateChange { return &ActionInitChain{} },
	"ActionInitInitiator":               func() StateChange { return &ActionInitInitiator{} },
	"ActionInitMediator":                func() StateChange { return &ActionInitMediator{} },
	"ActionInitTarget":                  func() StateChange { return &ActionInitTarget{} },
	"ActionChannelClose":                func() StateChange { return &ActionChannelClose{} },
	"ActionChannelWithdraw":             func() StateChange { return &ActionChannelWithdraw{} },
	"ActionChannelSetRevealTimeout":     func() StateChange { return &ActionChannelSetRevealTimeout{} },
	"ActionCancelPayment":               func() StateChange { return &ActionCancelPayment{} },
	"ActionTransferReroute":             func() StateChange { return &ActionTransferReroute{} },
	"UpdateServicesAddresses":          func() StateChange { return &UpdateServicesAddresses{} },
	"ContractReceiveChannelOpened":      func() StateChange { return &ContractReceiveChannelOpened{} },
	"ContractReceiveChannelNewDeposit":  func() StateChange { return &ContractReceiveChannelNewDeposit{} },
	"ContractReceiveChannelWithdraw":    func() StateChange { return &ContractReceiveChannelWithdraw{} },
	"ContractReceiveChannelClosed":      func() StateChange { return &ContractReceiveChannelClosed{} },
	"ContractReceiveChannelSettled":     func() StateChange { return &ContractReceiveChannelSettled{} },
	"ContractReceiveChannelBatchUnlock": func() StateChange { return &ContractReceiveChannelBatchUnlock{} },
	"ContractReceiveSecretReveal":       func() StateChange { return &ContractReceiveSecretReveal{} },
	"ContractReceiveRouteNew":           func() StateChange { return &ContractReceiveRouteNew{} },
	"ReceiveLockedTransfer":             func() StateChange { return &ReceiveLockedTransfer{} },
	"ReceiveSecretRequest":              func() StateChange { return &ReceiveSecretRequest{} },
	"ReceiveSecretReveal":               func() StateChange { return &ReceiveSecretReveal{} },
	"ReceiveUnlock":                     func() StateChange { return &ReceiveUnlock{} },
	"ReceiveLockExpired":                func() StateChange { return &ReceiveLockExpired{} },
	"ReceiveWithdrawRequest":            func() StateChange { return &ReceiveWithdrawRequest{} },
	"ReceiveWithdrawConfirmation":       func() StateChange { return &ReceiveWithdrawConfirmation{} },
	"ReceiveWithdrawExpired":            func() StateChange { return &ReceiveWithdrawExpired{} },
	"ReceiveProcessed":                  func() StateChange { return &ReceiveProcessed{} },
	"ReceiveDelivered":                  func() StateChange { return &ReceiveDelivered{} },
}

// TypeName returns the registry key for a concrete StateChange value, using
// the underlying struct's Go type name regardless of whether sc holds a
// pointer or a value receiver (both forms occur: the state machine produces
// values, the registry constructs pointers).
func stateChangeTypeName(sc StateChange) string {
	t := reflect.TypeOf(sc)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EncodeStateChange renders sc as a (type name, JSON data) pair suitable for
// a state_changes row (spec §6).
func EncodeStateChange(sc StateChange) (string, []byte, error) {
	name := stateChangeTypeName(sc)
	if _, ok := stateChangeTypes[name]; !ok {
		return "", nil, fmt.Errorf("transfer: unregistered StateChange type %q", name)
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return "", nil, fmt.Errorf("transfer: encode %s: %w", name, err)
	}
	return name, data, nil
}

// DecodeStateChange is the inverse of EncodeStateChange, used when the
// persistent log (spec §4.E) replays state_changes rows after a restart.
func DecodeStateChange(typeName string, data []byte) (StateChange, error) {
	ctor, ok := stateChangeTypes[typeName]
	if !ok {
		return nil, fmt.Errorf("transfer: unregistered StateChange type %q", typeName)
	}
	ptr := ctor()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("transfer: decode %s: %w", typeName, err)
	}
	return reflect.ValueOf(ptr).Elem().Interface().(StateChange), nil
}

var eventTypes = map[string]func() Event{
	"SendLockedTransfer":                 func() Event { return &SendLockedTransfer{} },
	"SendSecretRequest":                  func() Event { return &SendSecretRequest{} },
	"SendSecretReveal":                   func() Event { return &SendSecretReveal{} },
	"SendUnlock":                         func() Event { return &SendUnlock{} },
	"SendLockExpired":                    func() Event { return &SendLockExpired{} },
	"SendWithdrawRequest":                func() Event { return &SendWithdrawRequest{} },
	"SendWithdrawConfirmation":           func() Event { return &SendWithdrawConfirmation{} },
	"SendWithdrawExpired":                func() Event { return &SendWithdrawExpired{} },
	"SendProcessed":                      func() Event { return &SendProcessed{} },
	"ContractSendChannelOpen":            func() Event { return &ContractSendChannelOpen{} },
	"ContractSendChannelClose":           func() Event { return &ContractSendChannelClose{} },
	"ContractSendChannelUpdateTransfer":  func() Event { return &ContractSendChannelUpdateTransfer{} },
	"ContractSendChannelSettle":          func() Event { return &ContractSendChannelSettle{} },
	"ContractSendChannelBatchUnlock":     func() Event { return &ContractSendChannelBatchUnlock{} },
	"ContractSendChannelWithdraw":        func() Event { return &ContractSendChannelWithdraw{} },
	"ContractSendSecretReveal":           func() Event { return &ContractSendSecretReveal{} },
	"EventPaymentSentSuccess":            func() Event { return &EventPaymentSentSuccess{} },
	"EventPaymentSentFailed":             func() Event { return &EventPaymentSentFailed{} },
	"EventPaymentReceivedSuccess":        func() Event { return &EventPaymentReceivedSuccess{} },
	"EventInvalidReceivedLockedTransfer": func() Event { return &EventInvalidReceivedLockedTransfer{} },
	"EventInvalidActionWithdraw":         func() Event { return &EventInvalidActionWithdraw{} },
	"EventInvalidActionChannelClose":     func() Event { return &EventInvalidActionChannelClose{} },
	"UpdatedServicesAddresses":           func() Event { return &UpdatedServicesAddresses{} },
}

func eventTypeName(e Event) string {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EncodeEvent renders e as a (type name, JSON data) pair for a state_events
// row (spec §6).
func EncodeEvent(e Event) (string, []byte, error) {
	name := eventTypeName(e)
	if _, ok := eventTypes[name]; !ok {
		return "", nil, fmt.Errorf("transfer: unregistered Event type %q", name)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("transfer: encode %s: %w", name, err)
	}
	return name, data, nil
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(typeName string, data []byte) (Event, error) {
	ctor, ok := eventTypes[typeName]
	if !ok {
		return nil, fmt.Errorf("transfer: unregistered Event type %q", typeName)
	}
	ptr := ctor()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("transfer: decode %s: %w", typeName, err)
	}
	return reflect.ValueOf(ptr).Elem().Interface().(Event), nil
}

// taggedTask is the on-disk envelope for one TransferTask, tagged by its
// concrete role so ChainState snapshots (package storage) can round-trip
// the PayeeToPayerTasks union the same way state_changes/state_events round
// trip StateChange/Event.
type taggedTask struct {
	Role string          `json:"role"`
	Data json.RawMessage `json:"data"`
}

// MarshalTransferTask renders t as a (role, JSON data) envelope.
func MarshalTransferTask(t TransferTask) (json.RawMessage, error) {
	var role string
	switch t.(type) {
	case *InitiatorTransferTask:
		role = "initiator"
	case *MediatorTransferTask:
		role = "mediator"
	case *TargetTransferTask:
		role = "target"
	default:
		return nil, fmt.Errorf("transfer: unregistered TransferTask role %T", t)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedTask{Role: role, Data: data})
}

// UnmarshalTransferTask is the inverse of MarshalTransferTask.
func UnmarshalTransferTask(raw json.RawMessage) (TransferTask, error) {
	var tagged taggedTask
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}
	switch tagged.Role {
	case "initiator":
		var t InitiatorTransferTask
		if err := json.Unmarshal(tagged.Data, &t); err != nil {
			return nil, err
		}
		return &t, nil
	case "mediator":
		var t MediatorTransferTask
		if err := json.Unmarshal(tagged.Data, &t); err != nil {
			return nil, err
		}
		return &t, nil
	case "target":
		var t TargetTransferTask
		if err := json.Unmarshal(tagged.Data, &t); err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("transfer: unknown TransferTask role %q", tagged.Role)
	}
}
