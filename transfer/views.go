package transfer

import "github.com/raiden-network/raiden-core/primitives"

// DefaultNumberOfBlockConfirmations is the number of blocks a node waits
// before treating an on-chain event as final, per SPEC_FULL.md §12
// (supplemented from raiden/state-machine/src/constants.rs, which the
// original node does not expose as a spec-level constant but which the
// sender/receiver expiration thresholds below depend on).
const DefaultNumberOfBlockConfirmations primitives.BlockNumber = 5

// nextNonce returns the nonce end_state's next signed balance proof must
// use (spec invariant I2: strictly increasing by exactly 1).
func nextNonce(endState *ChannelEndState) primitives.Nonce {
	return endState.Nonce.Add(primitives.NewUint256FromUint64(1))
}

// balance returns sender's total balance in the channel as seen from
// sender's own deposit plus whatever receiver has transferred to them,
// minus whatever sender has transferred away and (optionally) minus
// sender's total withdraw. Ported line for line from
// raiden/state-machine/src/machine/channel/views.rs::balance.
func balance(sender, receiver *ChannelEndState, subtractWithdraw bool) primitives.TokenAmount {
	senderTransferred := primitives.ZeroUint256()
	if sender.BalanceProof != nil {
		senderTransferred = sender.BalanceProof.TransferredAmount
	}
	receiverTransferred := primitives.ZeroUint256()
	if receiver.BalanceProof != nil {
		receiverTransferred = receiver.BalanceProof.TransferredAmount
	}

	maxWithdraw := sender.OffchainTotalWithdraw()
	if sender.OnchainTotalWithdraw.Cmp(maxWithdraw) > 0 {
		maxWithdraw = sender.OnchainTotalWithdraw
	}
	withdraw := primitives.ZeroUint256()
	if subtractWithdraw {
		withdraw = maxWithdraw
	}

	return sender.ContractBalance.Add(receiverTransferred).Sub(withdraw).Sub(senderTransferred)
}

// Balance is the exported form of balance, used by the API layer and by
// other packages computing a channel's spendable capacity.
func Balance(sender, receiver *ChannelEndState, subtractWithdraw bool) primitives.TokenAmount {
	return balance(sender, receiver, subtractWithdraw)
}

// getMaxWithdrawAmount is the highest total_withdraw sender could agree to
// without going negative, i.e. balance without subtracting any pending
// withdraw.
func getMaxWithdrawAmount(sender, receiver *ChannelEndState) primitives.TokenAmount {
	return balance(sender, receiver, false)
}

// getSafeInitialExpiration returns the block at which it is still safe to
// place a new outgoing lock, given an optional caller-requested lock
// timeout, or twice the reveal timeout as a conservative default (spec
// §5.B/C, ported from views.rs::get_safe_initial_expiration).
func getSafeInitialExpiration(blockNumber primitives.BlockNumber, revealTimeout primitives.RevealTimeout, lockTimeout *primitives.BlockNumber) primitives.BlockExpiration {
	if lockTimeout != nil {
		return primitives.BlockExpiration(blockNumber + *lockTimeout)
	}
	return primitives.BlockExpiration(blockNumber + primitives.BlockNumber(revealTimeout)*2)
}

// getAmountLocked sums every lock currently attributed to end_state,
// whether still pending, unlocked off-chain, or unlocked on-chain (spec
// invariant I4, ported from views.rs::get_amount_locked).
func getAmountLocked(endState *ChannelEndState) primitives.LockedAmount {
	total := primitives.ZeroUint256()
	for _, l := range endState.SecretHashesToLockedLocks {
		total = total.SaturatingAdd(l.Amount)
	}
	for _, u := range endState.SecretHashesToUnlockedLocks {
		total = total.SaturatingAdd(u.Lock.Amount)
	}
	for _, u := range endState.SecretHashesToOnchainUnlockedLocks {
		total = total.SaturatingAdd(u.Lock.Amount)
	}
	return total
}

// GetAmountLocked is the exported form of getAmountLocked.
func GetAmountLocked(endState *ChannelEndState) primitives.LockedAmount {
	return getAmountLocked(endState)
}

// currentBalanceProofData returns the (locksroot, nonce, transferred,
// locked) tuple describing end_state's latest balance proof, or the
// empty-channel defaults if none has been set yet (ported from
// views.rs::get_current_balance_proof).
func currentBalanceProofData(endState *ChannelEndState) (primitives.Hash, primitives.Nonce, primitives.TokenAmount, primitives.LockedAmount) {
	if endState.BalanceProof != nil {
		return endState.BalanceProof.Locksroot, endState.Nonce, endState.BalanceProof.TransferredAmount, getAmountLocked(endState)
	}
	return primitives.LocksrootOfNoLocks, primitives.ZeroUint256(), primitives.ZeroUint256(), primitives.ZeroUint256()
}

// getSenderExpirationThreshold returns the block at which a dispute
// started against a lock with the given expiration is considered final
// from the lock sender's point of view (ported from
// views.rs::get_sender_expiration_threshold).
func getSenderExpirationThreshold(expiration primitives.BlockExpiration) primitives.BlockExpiration {
	return expiration + primitives.BlockExpiration(DefaultNumberOfBlockConfirmations)*2
}

// getReceiverExpirationThreshold returns the block at which a lock with
// the given expiration is final from the lock receiver's point of view
// (ported from views.rs::get_receiver_expiration_threshold).
func getReceiverExpirationThreshold(expiration primitives.BlockExpiration) primitives.BlockExpiration {
	return expiration + primitives.BlockExpiration(DefaultNumberOfBlockConfirmations)
}

// getLock looks up a lock by secrethash across all three of end_state's
// lock maps (ported from views.rs::get_lock).
func getLock(endState *ChannelEndState, secretHash primitives.SecretHash) *HashTimeLockState {
	if l, ok := endState.SecretHashesToLockedLocks[secretHash]; ok {
		return l
	}
	if u, ok := endState.SecretHashesToUnlockedLocks[secretHash]; ok {
		return u.Lock
	}
	if u, ok := endState.SecretHashesToOnchainUnlockedLocks[secretHash]; ok {
		return u.Lock
	}
	return nil
}

// GetLock is the exported form of getLock.
func GetLock(endState *ChannelEndState, secretHash primitives.SecretHash) *HashTimeLockState {
	return getLock(endState, secretHash)
}

// pendingLocksEncoded returns every still-locked (not yet unlocked) lock's
// canonical encoding, in a deterministic order (sorted by secrethash),
// ready for ComputeLocksroot. Deterministic ordering here is required for
// the node to compute the same locksroot twice given the same end_state
// (spec invariant I3 depends on a canonical insertion order existing at
// all).
func pendingLocksEncoded(endState *ChannelEndState) [][]byte {
	hashes := make([]primitives.SecretHash, 0, len(endState.SecretHashesToLockedLocks))
	for h := range endState.SecretHashesToLockedLocks {
		hashes = append(hashes, h)
	}
	sortSecretHashes(hashes)

	out := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, endState.SecretHashesToLockedLocks[h].EncodedLock)
	}
	return out
}

func sortSecretHashes(hashes []primitives.SecretHash) {
	for i := 1; i < len(hashes); i++ {
		for j := i; j > 0 && lessHash(hashes[j], hashes[j-1]); j-- {
			hashes[j], hashes[j-1] = hashes[j-1], hashes[j]
		}
	}
}

func lessHash(a, b primitives.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ComputeEndStateLocksroot recomputes end_state's locksroot from its
// currently pending locks.
func ComputeEndStateLocksroot(endState *ChannelEndState) primitives.Hash {
	return primitives.ComputeLocksroot(pendingLocksEncoded(endState))
}

// IsLockExpired reports whether a lock has passed its receiver expiration
// threshold as of blockNumber, and is therefore safe to drop (spec §5.A,
// LockExpired handling).
func IsLockExpired(lock *HashTimeLockState, blockNumber primitives.BlockNumber) bool {
	threshold := getReceiverExpirationThreshold(lock.Expiration)
	return primitives.BlockExpiration(blockNumber) > threshold
}
