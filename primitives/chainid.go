package primitives

import (
	"encoding/json"
	"strconv"
)

// ChainID tags the Ethereum chain a node is operating against. The well
// known public networks get named constants; anything else is carried as
// Private(n), mirroring the original Rust node's ChainID enum
// (raiden/primitives/src/types/chain_id.rs).
type ChainID struct {
	// name is Mainnet/Ropsten/Rinkeby/Goerli/Private; numeric is the
	// chain's EIP-155 id. Both are kept so String() can print the
	// friendly name while packing (§4.A) always uses the numeric form.
	name    string
	numeric uint64
}

// Well-known chain IDs, matching the EIP-155 assignments the original
// node special-cased.
var (
	Mainnet = ChainID{name: "mainnet", numeric: 1}
	Ropsten = ChainID{name: "ropsten", numeric: 3}
	Rinkeby = ChainID{name: "rinkeby", numeric: 4}
	Goerli  = ChainID{name: "goerli", numeric: 5}
)

// ChainIDFromUint64 maps a raw EIP-155 chain id onto the tagged ChainID,
// returning Private(n) for anything not in the well-known set.
func ChainIDFromUint64(n uint64) ChainID {
	switch n {
	case 1:
		return Mainnet
	case 3:
		return Ropsten
	case 4:
		return Rinkeby
	case 5:
		return Goerli
	default:
		return ChainID{name: "private", numeric: n}
	}
}

// Uint64 returns the EIP-155 numeric chain id, the normative form for
// signature and packing purposes (spec §4.A).
func (c ChainID) Uint64() uint64 {
	return c.numeric
}

// IsPrivate reports whether this is a non-well-known (Private) chain id.
func (c ChainID) IsPrivate() bool {
	return c.name == "private"
}

// String renders the chain id as "<name>(<id>)".
func (c ChainID) String() string {
	return c.name + "(" + strconv.FormatUint(c.numeric, 10) + ")"
}

// MarshalJSON encodes the chain id by its numeric EIP-155 value alone: the
// friendly name is a derived display value, not part of the identity
// (ChainIDFromUint64 always recomputes it).
func (c ChainID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.numeric)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *ChainID) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = ChainIDFromUint64(n)
	return nil
}
