package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer signs submission payload digests with a secp256k1 key. The bundler
// verifies the signature against the sender account, so the signer's address
// doubles as the smart-account owner address.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int64
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// the target chain ID.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
	}, nil
}

// Address returns the Ethereum address derived from the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain this signer targets.
func (s *Signer) ChainID() int64 {
	return s.chainID
}

// SignHash signs a 32-byte digest and returns the 65-byte [R || S || V]
// signature with the recovery byte adjusted to the Ethereum convention
// (V = 27/28).
func (s *Signer) SignHash(hash common.Hash) ([]byte, error) {
	sig, err := ethcrypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sign hash: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// Verify reports whether sig is a valid signature of hash by addr. Used by
// tests and the dry-run submission channel.
func Verify(addr common.Address, hash common.Hash, sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	cp := make([]byte, 65)
	copy(cp, sig)
	if cp[64] >= 27 {
		cp[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(hash.Bytes(), cp)
	if err != nil {
		return false
	}
	return ethcrypto.PubkeyToAddress(*pub) == addr
}
