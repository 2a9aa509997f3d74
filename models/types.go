package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Uint is a non-negative integer of arbitrary size. It decodes from a JSON
// number or a decimal string and always encodes as a decimal string so that
// ledger values above 2^53 survive JavaScript clients.
//
// A JSON value that is not a valid Uint does not fail decoding of the
// enclosing request. It is kept as Err so the caller can report fields in its
// own order.
type Uint struct {
	big.Int
	err error
}

// MaxUintBits is the width of the ledger's integer type.
const MaxUintBits = 256

// NewUint wraps n. A nil n is treated as zero.
func NewUint(n *big.Int) *Uint {
	u := new(Uint)
	if n != nil {
		u.Set(n)
	}
	return u
}

// ParseUint parses decimal text.
func ParseUint(s string) (*Uint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty value")
	}

	u := new(Uint)
	if _, ok := u.SetString(s, 10); !ok {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	if u.Sign() < 0 {
		return nil, fmt.Errorf("%q is negative", s)
	}
	if u.BitLen() > MaxUintBits {
		return nil, fmt.Errorf("%q exceeds %d bits", s, MaxUintBits)
	}
	return u, nil
}

// Big returns the value as *big.Int, or nil for a nil receiver.
func (u *Uint) Big() *big.Int {
	if u == nil {
		return nil
	}
	return new(big.Int).Set(&u.Int)
}

func (u *Uint) String() string {
	if u == nil {
		return ""
	}
	return u.Int.String()
}

func (u *Uint) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Int.String())
}

func (u *Uint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var text string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	} else {
		text = string(data)
	}

	parsed, err := ParseUint(text)
	if err != nil {
		u.SetInt64(0)
		u.err = err
		return nil
	}
	u.Set(&parsed.Int)
	u.err = nil
	return nil
}

// Err reports why the decoded JSON value was rejected, or nil.
func (u *Uint) Err() error {
	if u == nil {
		return nil
	}
	return u.err
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error           string `json:"error"`
	Kind            string `json:"kind,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Details         string `json:"details,omitempty"`
}
