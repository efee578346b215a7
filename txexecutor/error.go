package txexecutor

import "errors"

// ErrBrokenPrecondition is returned by validatePreconditions when the
// on-chain state no longer matches what the state machine believed when
// it queued the transaction (spec §4.J, §7 ProxyError.BrokenPrecondition):
// the transaction must not be submitted, and the triggering event is
// dropped rather than retried.
var ErrBrokenPrecondition = errors.New("txexecutor: onchain state no longer matches precondition")

// Kind classifies a submission failure the way spec §7's ProxyError
// taxonomy requires, so the driver knows whether to retry a failed
// transaction (Recoverable), give up on it (Unrecoverable), or treat it
// as evidence the account itself cannot pay gas (InsufficientEth).
type Kind int

const (
	// KindBrokenPrecondition means the on-chain world moved out from
	// under the queued transaction; drop it.
	KindBrokenPrecondition Kind = iota
	// KindInsufficientEth means the account cannot cover gas.
	KindInsufficientEth
	// KindRecoverable means the failure might clear on retry (a nonce
	// race, a dropped mempool entry, a transient RPC error).
	KindRecoverable
	// KindUnrecoverable means postcondition validation, after the
	// transaction failed on-chain, shows the action genuinely cannot
	// succeed (e.g. the channel was already closed by the time our
	// close transaction landed).
	KindUnrecoverable
	// KindWeb3 means the RPC endpoint itself is unreachable or
	// malfunctioning, independent of the transaction's merits.
	KindWeb3
	// KindChainError means the chain returned a well-formed but
	// unexpected result (e.g. a revert reason this node does not
	// recognize).
	KindChainError
)

func (k Kind) String() string {
	switch k {
	case KindBrokenPrecondition:
		return "broken_precondition"
	case KindInsufficientEth:
		return "insufficient_eth"
	case KindRecoverable:
		return "recoverable"
	case KindUnrecoverable:
		return "unrecoverable"
	case KindWeb3:
		return "web3"
	case KindChainError:
		return "chain_error"
	default:
		return "unknown"
	}
}

// ProxyError is the tagged error family spec §7 defines for contract
// proxy failures, mirroring storage.StorageError's Op/Err/Unwrap shape.
type ProxyError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *ProxyError) Error() string {
	return "txexecutor: " + e.Op + " (" + e.Kind.String() + "): " + e.Err.Error()
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

func newProxyError(kind Kind, op string, err error) *ProxyError {
	return &ProxyError{Kind: kind, Op: op, Err: err}
}
