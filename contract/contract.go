// Package contract describes the voting contract as the gateway sees it and
// provides a go-ethereum backed implementation.
//
// The gateway only ever talks to a Client. A Client submits transactions as
// the gateway's operating identity; votes go through a Voter obtained from
// Client.Voter, which signs as the caller supplied key and must not outlive
// the request that created it.
package contract

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event names the gateway relies on.
const (
	EventElectionCreated = "ElectionCreated"
	EventCandidateAdded  = "CandidateAdded"
	EventVoted           = "Voted"
)

// Client is the set of contract operations the gateway requires.
type Client interface {
	CreateElection(ctx context.Context, name string, start, end *big.Int) (PendingTx, error)
	ElectionCount(ctx context.Context) (*big.Int, error)
	Election(ctx context.Context, id *big.Int) (*Election, error)
	AddCandidate(ctx context.Context, electionID *big.Int, name string) (PendingTx, error)
	Candidate(ctx context.Context, electionID, candidateID *big.Int) (*Candidate, error)

	// Voter returns a short lived handle that signs votes with key.
	Voter(key *ecdsa.PrivateKey) (Voter, error)
}

// Voter submits votes under one signing identity.
type Voter interface {
	Vote(ctx context.Context, electionID, candidateID *big.Int) (PendingTx, error)
}

// PendingTx is a submitted transaction that has not necessarily reached
// finality yet.
type PendingTx interface {
	Hash() common.Hash
	// Wait blocks until the transaction is mined or ctx is done.
	Wait(ctx context.Context) (*Receipt, error)
}

// Receipt is the finalized outcome of a transaction.
type Receipt struct {
	TxHash      common.Hash
	Succeeded   bool
	BlockNumber *big.Int
	Events      []Event
}

// FindEvent returns the first event with the given name.
func (r *Receipt) FindEvent(name string) (Event, bool) {
	if r == nil {
		return Event{}, false
	}
	for _, ev := range r.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}

// Event is a decoded contract log. Args holds both indexed and non-indexed
// arguments keyed by their ABI names.
type Event struct {
	Name string
	Args map[string]interface{}
}

// BigArg returns the named argument as an integer.
func (e Event) BigArg(name string) (*big.Int, bool) {
	v, ok := e.Args[name]
	if !ok {
		return nil, false
	}
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return nil, false
	}
	return n, true
}

// StringArg returns the named argument as a string.
func (e Event) StringArg(name string) (string, bool) {
	v, ok := e.Args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Election is the record returned by elections(id).
type Election struct {
	ID             *big.Int
	Name           string
	StartTime      *big.Int
	EndTime        *big.Int
	IsActive       bool
	CandidateCount *big.Int
}

// Exists reports whether the record looks like a created election. Reading an
// unknown id from a mapping yields a zero valued struct, and creation always
// sets a non-empty name and future times.
func (e *Election) Exists() bool {
	if e == nil {
		return false
	}
	return e.Name != "" || !isZero(e.StartTime) || !isZero(e.EndTime)
}

// Candidate is the record returned by getCandidate(electionId, candidateId).
type Candidate struct {
	Name      string
	VoteCount *big.Int
}

// Exists reports whether the record looks like an added candidate.
func (c *Candidate) Exists() bool {
	return c != nil && c.Name != ""
}

func isZero(n *big.Int) bool {
	return n == nil || n.Sign() == 0
}
