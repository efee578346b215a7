package primitives

import "fmt"

// ChannelID identifies a channel within a single token network.
type ChannelID = Uint256

// CanonicalIdentifier is the triple (chain_id, token_network_address,
// channel_identifier) that names a channel uniquely across the whole
// universe of chains and token networks (spec §3).
type CanonicalIdentifier struct {
	ChainID             ChainID
	TokenNetworkAddress Address
	ChannelID           ChannelID
}

// String renders a human-readable identifier, convenient for log lines and
// map keys in tests.
func (c CanonicalIdentifier) String() string {
	return fmt.Sprintf("%s/%s/%s", c.ChainID, c.TokenNetworkAddress, c.ChannelID)
}

// Key returns a value usable as a Go map key, since CanonicalIdentifier
// itself contains a Uint256 (which embeds a big.Int, and so is not
// comparable with ==).
func (c CanonicalIdentifier) Key() string {
	return c.String()
}

// QueueIdentifier names an outbound retry queue: the recipient plus the
// channel the message concerns (spec §4.G, §4.H).
type QueueIdentifier struct {
	Recipient           Address
	CanonicalIdentifier CanonicalIdentifier
}

// Key returns a value usable as a Go map key for QueueIdentifier.
func (q QueueIdentifier) Key() string {
	return q.Recipient.String() + "|" + q.CanonicalIdentifier.Key()
}
