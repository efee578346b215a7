package signing_test

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/signing"
)

func randomAccount(t *testing.T) *signing.Account {
	t.Helper()
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return signing.NewAccount(privKey)
}

func TestSignRecoverRoundTrip(t *testing.T) {
	acc := randomAccount(t)

	var hash primitives.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)

	sig, err := acc.Sign(hash, nil)
	require.NoError(t, err)
	require.False(t, sig.IsZero())

	recovered, err := signing.Recover(hash, sig)
	require.NoError(t, err)
	require.Equal(t, acc.Address(), recovered)
}

func TestSignRecoverRoundTripEIP155(t *testing.T) {
	acc := randomAccount(t)

	var hash primitives.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)

	chainID := uint64(1)
	sig, err := acc.Sign(hash, &chainID)
	require.NoError(t, err)
	require.True(t, sig[64] >= 35)

	recovered, err := signing.Recover(hash, sig)
	require.NoError(t, err)
	require.Equal(t, acc.Address(), recovered)
}

func TestNonceIsMonotonic(t *testing.T) {
	acc := randomAccount(t)

	require.EqualValues(t, 0, acc.PeekNextNonce())
	require.EqualValues(t, 0, acc.NextNonce())
	require.EqualValues(t, 1, acc.NextNonce())
	require.EqualValues(t, 2, acc.PeekNextNonce())

	acc.SetNonce(10)
	require.EqualValues(t, 10, acc.NextNonce())
}

func TestNewAccountFromBytesRejectsWrongLength(t *testing.T) {
	_, err := signing.NewAccountFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
