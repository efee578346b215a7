// Package contracts defines the node's external collaborator interfaces
// for on-chain reads and writes (spec §6): token_network, token,
// secret_registry, user_deposit, service_registry, and
// token_network_registry. A concrete implementation lives outside this
// module (an Ethereum JSON-RPC/ABI client); this package only names the
// contract the rest of the node programs against, the same role
// chainntfs.ChainNotifier plays for lnd's block/spend notification
// surface — general enough to support more than one backend, with this
// repository providing only the interface and the decoding glue, not an
// RPC implementation.
package contracts

import (
	"context"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/transfer"
)

// ChannelParticipant is the on-chain view of one side of a channel,
// returned by TokenNetwork.ParticipantDetails — the onchain_data step of
// spec §4.J's four-step transaction protocol.
type ChannelParticipant struct {
	Deposit         primitives.TokenAmount
	WithdrawnAmount primitives.TokenAmount
	IsTheOneToClose bool
	BalanceHash     primitives.Hash
	Nonce           primitives.Nonce
}

// TokenNetwork is the proxy for one deployed TokenNetwork contract: the
// channel lifecycle operations spec §4.J's ContractSendChannel* events
// resolve to.
type TokenNetwork interface {
	Address() primitives.Address

	// ParticipantDetails is the onchain_data query backing every
	// ContractSendChannel* precondition check.
	ParticipantDetails(ctx context.Context, atBlockHash primitives.Hash, channelID primitives.ChannelID, participant, partner primitives.Address) (ChannelParticipant, error)
	ChannelSettleTimeout(ctx context.Context, atBlockHash primitives.Hash, channelID primitives.ChannelID) (primitives.SettleTimeout, error)

	OpenChannel(ctx context.Context, partner primitives.Address, settleTimeout primitives.SettleTimeout) (primitives.Hash, error)
	SetTotalDeposit(ctx context.Context, channelID primitives.ChannelID, totalDeposit primitives.TokenAmount, partner primitives.Address) (primitives.Hash, error)
	CloseChannel(ctx context.Context, channelID primitives.ChannelID, partner primitives.Address, balanceProof *transfer.BalanceProofState) (primitives.Hash, error)
	UpdateNonClosingBalanceProof(ctx context.Context, channelID primitives.ChannelID, closer primitives.Address, balanceProof transfer.BalanceProofState, nonClosingSignature primitives.Signature) (primitives.Hash, error)
	SettleChannel(ctx context.Context, channelID primitives.ChannelID) (primitives.Hash, error)
	Unlock(ctx context.Context, channelID primitives.ChannelID, sender, receiver primitives.Address, encodedLocks [][]byte) (primitives.Hash, error)
	SetTotalWithdraw(ctx context.Context, channelID primitives.ChannelID, totalWithdraw primitives.TokenAmount, expiration primitives.BlockExpiration, partnerSignature, ourSignature primitives.Signature) (primitives.Hash, error)
}

// Token is the proxy for the ERC20-shaped token contract a TokenNetwork
// wraps.
type Token interface {
	Address() primitives.Address
	BalanceOf(ctx context.Context, atBlockHash primitives.Hash, owner primitives.Address) (primitives.TokenAmount, error)
	Allowance(ctx context.Context, atBlockHash primitives.Hash, owner, spender primitives.Address) (primitives.TokenAmount, error)
	Approve(ctx context.Context, spender primitives.Address, amount primitives.TokenAmount) (primitives.Hash, error)
}

// SecretRegistry is the proxy for the on-chain secret registry, the
// fallback path ContractSendSecretReveal resolves to (spec §5.A).
type SecretRegistry interface {
	Address() primitives.Address
	RegisterSecret(ctx context.Context, secret primitives.Secret) (primitives.Hash, error)
	// SecretRevealBlockHeight returns the block a secret was registered
	// at, and ok=false if it has never been registered. Spec §9's open
	// question on is_secret_registered's inverted sense is resolved by
	// treating "never registered" (ok=false) uniformly as "not
	// registered", rather than trusting a possibly-inverted boolean
	// return from the underlying RPC call.
	SecretRevealBlockHeight(ctx context.Context, atBlockHash primitives.Hash, secretHash primitives.SecretHash) (height primitives.BlockNumber, ok bool, err error)
}

// UserDeposit is the proxy for the monitoring-service/pathfinding-service
// reward deposit contract.
type UserDeposit interface {
	Address() primitives.Address
	EffectiveBalance(ctx context.Context, atBlockHash primitives.Hash, owner primitives.Address) (primitives.TokenAmount, error)
	Withdraw(ctx context.Context, amount primitives.TokenAmount) (primitives.Hash, error)
}

// ServiceRegistry is the proxy for the monitoring/pathfinding service
// address registry (spec §12 supplement: UpdatedServicesAddresses).
type ServiceRegistry interface {
	Address() primitives.Address
	HasValidRegistration(ctx context.Context, atBlockHash primitives.Hash, service primitives.Address) (bool, error)
	Addresses(ctx context.Context, atBlockHash primitives.Hash) ([]primitives.Address, error)
}

// TokenNetworkRegistry is the proxy for the registry contract chain sync
// watches to learn about new token networks (spec §4.I).
type TokenNetworkRegistry interface {
	Address() primitives.Address
	GetTokenNetwork(ctx context.Context, atBlockHash primitives.Hash, token primitives.Address) (primitives.Address, bool, error)
	CreateTokenNetwork(ctx context.Context, token primitives.Address) (primitives.Hash, error)
}

// Log is a raw, undecoded on-chain event as delivered by an RPC client:
// the input to Manager.DecodeLog (spec §4.I: "decodes each through the
// contracts manager, which parses ABI, extracts indexed and non-indexed
// parameters").
type Log struct {
	BlockHash   primitives.Hash
	BlockNumber primitives.BlockNumber
	Address     primitives.Address
	Topics      []primitives.Hash
	Data        []byte
}

// Manager aggregates every contract proxy plus the ABI decoding step
// chain sync needs, so package chainsync depends on one collaborator
// rather than six.
type Manager interface {
	TokenNetwork(address primitives.Address) TokenNetwork
	Token(address primitives.Address) Token
	SecretRegistry() SecretRegistry
	UserDeposit() UserDeposit
	ServiceRegistry() ServiceRegistry
	TokenNetworkRegistry() TokenNetworkRegistry

	// DecodeLog classifies log into the matching ContractReceive*
	// transfer.StateChange, or ok=false for a log this node does not
	// recognize (spec §4.I: "or drops unknown logs").
	DecodeLog(log Log) (change transfer.StateChange, ok bool, err error)

	// Topics returns every event signature hash this manager can
	// decode, used by chain sync to build the address+topic filter for
	// eth_getLogs (spec §4.I).
	Topics() []primitives.Hash
}
