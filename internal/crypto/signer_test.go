package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known throwaway key, never funded.
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestNewSigner(t *testing.T) {
	s, err := NewSigner(testKeyHex, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ChainID())
	assert.NotEqual(t, common.Address{}, s.Address())

	// 0x prefix is accepted and yields the same address.
	prefixed, err := NewSigner("0x"+testKeyHex, 1)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), prefixed.Address())
}

func TestNewSigner_InvalidKey(t *testing.T) {
	_, err := NewSigner("not-hex", 1)
	assert.Error(t, err)

	_, err = NewSigner("", 1)
	assert.Error(t, err)
}

func TestSignHash_RoundTrip(t *testing.T) {
	s, err := NewSigner(testKeyHex, 1)
	require.NoError(t, err)

	hash := common.BytesToHash(ethcrypto.Keccak256([]byte("payload")))
	sig, err := s.SignHash(hash)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	// Recovery byte follows the Ethereum convention.
	assert.GreaterOrEqual(t, sig[64], byte(27))

	assert.True(t, Verify(s.Address(), hash, sig))

	// A different signer must not verify.
	other, err := NewSigner("0000000000000000000000000000000000000000000000000000000000000001", 1)
	require.NoError(t, err)
	assert.False(t, Verify(other.Address(), hash, sig))

	// A tampered digest must not verify.
	tampered := common.BytesToHash(ethcrypto.Keccak256([]byte("payload!")))
	assert.False(t, Verify(s.Address(), tampered, sig))
}

func TestVerify_MalformedSignature(t *testing.T) {
	hash := common.BytesToHash(ethcrypto.Keccak256([]byte("payload")))
	assert.False(t, Verify(common.Address{}, hash, nil))
	assert.False(t, Verify(common.Address{}, hash, make([]byte, 10)))
}
