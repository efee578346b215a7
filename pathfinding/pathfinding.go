// Package pathfinding is the external collaborator spec §6 names for
// route discovery: "paths(token_network, from, to, amount, max_paths) ->
// ordered RouteState sequence", plus the IOU fee-reward bookkeeping a real
// pathfinding-service integration attaches a signing hook to. Grounded on
// raiden/pathfinding/src/iou.rs's constants and IOU shape, carried over
// unconverted since they are this node's side of a deposit-account
// contract rather than anything the teacher's routing graph computes.
package pathfinding

import (
	"context"
	"time"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/transfer"
)

// Normative pathfinding-service constants (spec §12 supplement).
const (
	// MonitoringReward is the flat reward, in the channel's token, a
	// monitoring service is paid for successfully submitting an update
	// transfer on this node's behalf after it has gone offline.
	MonitoringReward = 5 * 1_000_000_000_000_000_000 // 5 tokens at 18 decimals

	// PFSDefaultMaxPaths bounds how many candidate routes a pathfinding
	// service query asks for.
	PFSDefaultMaxPaths = 3

	// PFSDefaultMaxFee bounds the total fee, in the target token, this
	// node is willing to pay a pathfinding service for one query.
	PFSDefaultMaxFee = 100_000_000_000_000_000 // 0.1 token at 18 decimals

	// PFSDefaultIOUTimeout is how many blocks in the future an IOU's
	// expiration is set, relative to the block it was issued at.
	PFSDefaultIOUTimeout = 200000
)

// IOU is a signed promise to pay a pathfinding service its fee once its
// accumulated IOUs reach a settlement threshold, carried across repeated
// queries to the same service (spec §12 supplement: "the signing hook
// itself stays an external collaborator").
type IOU struct {
	Sender        primitives.Address
	Receiver      primitives.Address
	AmountOwed    primitives.TokenAmount
	Expiration    primitives.BlockExpiration
	OneToNAddress primitives.Address
	ChainID       primitives.ChainID
	Signature     primitives.Signature
}

// SignedBytes returns the byte sequence an IOU's Signature authenticates:
// abi_encode(sender, receiver, amount, expiration, one_to_n_address,
// chain_id), matching how every other signed artifact in this node packs
// its fields (package primitives, packing.go) rather than JSON-encoding
// the struct and hashing that.
func (i IOU) SignedBytes() []byte {
	var b []byte
	b = append(b, i.Sender[:]...)
	b = append(b, i.Receiver[:]...)
	amt := i.AmountOwed.ToBigEndian32()
	b = append(b, amt[:]...)
	exp := primitives.NewUint256FromUint64(uint64(i.Expiration)).ToBigEndian32()
	b = append(b, exp[:]...)
	b = append(b, i.OneToNAddress[:]...)
	chainID := primitives.NewUint256FromUint64(i.ChainID.Uint64()).ToBigEndian32()
	b = append(b, chainID[:]...)
	return b
}

// IOUSigner produces a fresh signature over an updated IOU each time this
// node owes a pathfinding service more, the signing hook spec §6
// describes.
type IOUSigner interface {
	SignIOU(iou IOU) (primitives.Signature, error)
}

// Client queries a pathfinding service for candidate routes (spec §6:
// "paths(token_network, from, to, amount, max_paths) -> ordered
// RouteState sequence").
type Client interface {
	Paths(ctx context.Context, tokenNetwork, from, to primitives.Address, amount primitives.TokenAmount, maxPaths int) ([]transfer.RouteState, error)
}

// HTTPConfig configures a production pathfinding-service HTTP client:
// endpoint and budget. The client implementation itself (HTTP request
// construction, IOU negotiation handshake) is not part of this module's
// scope; HTTPConfig exists so cmd/raidennode has somewhere concrete to
// read these values from the CLI/config file into.
type HTTPConfig struct {
	Endpoint   string
	MaxPaths   int
	MaxFee     primitives.TokenAmount
	IOUTimeout time.Duration
}

// DefaultHTTPConfig applies the PFS_DEFAULT_* constants above.
func DefaultHTTPConfig(endpoint string) HTTPConfig {
	return HTTPConfig{
		Endpoint: endpoint,
		MaxPaths: PFSDefaultMaxPaths,
		MaxFee:   primitives.NewUint256FromUint64(PFSDefaultMaxFee),
	}
}
