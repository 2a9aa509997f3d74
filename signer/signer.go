// Package signer handles the signing credentials the gateway receives: its own
// operating key at startup and a voter key on every vote request.
package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidKey is returned for any credential that is not a valid secp256k1
// private key. It never carries the offending input.
var ErrInvalidKey = errors.New("invalid private key")

// ParsePrivateKey decodes a hex encoded private key, with or without 0x prefix.
func ParsePrivateKey(keyStr string) (*ecdsa.PrivateKey, error) {
	keyStr = strings.TrimPrefix(strings.TrimSpace(keyStr), "0x")

	keyBytes, err := hex.DecodeString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("%w: not a hex string", ErrInvalidKey)
	}
	defer wipe(keyBytes)

	privateKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return privateKey, nil
}

// Address returns the ledger address controlled by the key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Fingerprint is a short Keccak-256 digest of the private key, safe to log.
func Fingerprint(key *ecdsa.PrivateKey) string {
	if key == nil {
		return ""
	}
	d := sha3.NewLegacyKeccak256()
	raw := crypto.FromECDSA(key)
	d.Write(raw)
	wipe(raw)
	return hex.EncodeToString(d.Sum(nil)[:8])
}

// Credential is a voter key scoped to a single request.
type Credential struct {
	key *ecdsa.PrivateKey
}

// NewCredential parses a caller supplied key into a request scoped credential.
// The caller must Destroy it once the request is done.
func NewCredential(keyStr string) (*Credential, error) {
	key, err := ParsePrivateKey(keyStr)
	if err != nil {
		return nil, err
	}
	return &Credential{key: key}, nil
}

// Key returns the underlying key, or nil once destroyed.
func (c *Credential) Key() *ecdsa.PrivateKey {
	return c.key
}

// Address returns the zero address once the credential is destroyed.
func (c *Credential) Address() common.Address {
	if c == nil || c.key == nil {
		return common.Address{}
	}
	return Address(c.key)
}

func (c *Credential) Fingerprint() string {
	if c == nil {
		return ""
	}
	return Fingerprint(c.key)
}

// Destroy zeroes the secret scalar and drops the key.
func (c *Credential) Destroy() {
	if c == nil || c.key == nil {
		return
	}
	if c.key.D != nil {
		words := c.key.D.Bits()
		words = words[:cap(words)]
		for i := range words {
			words[i] = 0
		}
		c.key.D.SetInt64(0)
	}
	c.key = nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
