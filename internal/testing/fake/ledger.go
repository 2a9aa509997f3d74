// Package fake provides an in-memory voting contract for tests.
package fake

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"election-gateway/contract"
)

// ErrLedger is the default failure injected by the fake.
var ErrLedger = errors.New("ledger unavailable")

type election struct {
	name       string
	start, end *big.Int
	candidates []*candidate
	voters     map[common.Address]bool
}

type candidate struct {
	name  string
	votes *big.Int
}

// Ledger mimics the voting contract: elections and candidates are numbered in
// creation order and each address votes once per election. Transactions are
// applied when Wait is called, so a test can observe the gap between
// submission and finality.
//
// The exported fields inject faults; set them before use.
type Ledger struct {
	// SubmitErr fails every submission.
	SubmitErr error
	// WaitErr fails every finality wait.
	WaitErr error
	// RevertVotes makes invalid votes fail at submission with ErrReverted
	// instead of being mined with a failed status.
	RevertVotes bool
	// OmitCandidateEvent drops CandidateAdded from receipts.
	OmitCandidateEvent bool
	// EmitElectionEvent adds ElectionCreated to receipts.
	EmitElectionEvent bool
	// ReadErr fails every contract read.
	ReadErr error
	// InactiveElections creates elections with isActive unset.
	InactiveElections bool

	mu        sync.Mutex
	elections []*election
	block     int64
	nonce     int64
	submitted int
	reads     int
	voterKeys []*ecdsa.PrivateKey
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Submitted returns how many transactions were accepted for submission.
func (l *Ledger) Submitted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submitted
}

// Reads returns how many contract reads were served.
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

// VoterKeys returns the keys handed to Voter.
func (l *Ledger) VoterKeys() []*ecdsa.PrivateKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ecdsa.PrivateKey(nil), l.voterKeys...)
}

// SeedElection creates an election directly, bypassing transactions, and
// returns its id.
func (l *Ledger) SeedElection(name string, start, end int64, candidates ...string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := &election{
		name:   name,
		start:  big.NewInt(start),
		end:    big.NewInt(end),
		voters: make(map[common.Address]bool),
	}
	for _, c := range candidates {
		e.candidates = append(e.candidates, &candidate{name: c, votes: new(big.Int)})
	}
	l.elections = append(l.elections, e)
	return int64(len(l.elections) - 1)
}

func (l *Ledger) CreateElection(ctx context.Context, name string, start, end *big.Int) (contract.PendingTx, error) {
	return l.submit(func() (bool, []contract.Event) {
		e := &election{
			name:   name,
			start:  new(big.Int).Set(start),
			end:    new(big.Int).Set(end),
			voters: make(map[common.Address]bool),
		}
		l.elections = append(l.elections, e)
		id := big.NewInt(int64(len(l.elections) - 1))

		if !l.EmitElectionEvent {
			return true, nil
		}
		return true, []contract.Event{{
			Name: contract.EventElectionCreated,
			Args: map[string]interface{}{
				"electionId":   id,
				"electionName": name,
				"startTime":    new(big.Int).Set(start),
				"endTime":      new(big.Int).Set(end),
			},
		}}
	})
}

func (l *Ledger) ElectionCount(ctx context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.read(); err != nil {
		return nil, err
	}
	return big.NewInt(int64(len(l.elections))), nil
}

// Election returns a zero valued record for unknown ids, like a Solidity
// mapping getter.
func (l *Ledger) Election(ctx context.Context, id *big.Int) (*contract.Election, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.read(); err != nil {
		return nil, err
	}

	e := l.election(id)
	if e == nil {
		return &contract.Election{
			ID:             new(big.Int),
			StartTime:      new(big.Int),
			EndTime:        new(big.Int),
			CandidateCount: new(big.Int),
		}, nil
	}

	return &contract.Election{
		ID:             new(big.Int).Set(id),
		Name:           e.name,
		StartTime:      new(big.Int).Set(e.start),
		EndTime:        new(big.Int).Set(e.end),
		IsActive:       !l.InactiveElections,
		CandidateCount: big.NewInt(int64(len(e.candidates))),
	}, nil
}

// AddCandidate is mined with a failed status when the election is unknown.
func (l *Ledger) AddCandidate(ctx context.Context, electionID *big.Int, name string) (contract.PendingTx, error) {
	id := new(big.Int).Set(electionID)

	return l.submit(func() (bool, []contract.Event) {
		e := l.election(id)
		if e == nil {
			return false, nil
		}

		e.candidates = append(e.candidates, &candidate{name: name, votes: new(big.Int)})
		candidateID := big.NewInt(int64(len(e.candidates) - 1))

		if l.OmitCandidateEvent {
			return true, nil
		}
		return true, []contract.Event{{
			Name: contract.EventCandidateAdded,
			Args: map[string]interface{}{
				"electionId":  id,
				"candidateId": candidateID,
				"name":        name,
			},
		}}
	})
}

// Candidate returns an empty record for unknown ids.
func (l *Ledger) Candidate(ctx context.Context, electionID, candidateID *big.Int) (*contract.Candidate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.read(); err != nil {
		return nil, err
	}

	c := l.candidate(electionID, candidateID)
	if c == nil {
		return &contract.Candidate{VoteCount: new(big.Int)}, nil
	}
	return &contract.Candidate{Name: c.name, VoteCount: new(big.Int).Set(c.votes)}, nil
}

func (l *Ledger) Voter(key *ecdsa.PrivateKey) (contract.Voter, error) {
	if key == nil {
		return nil, errors.New("voter key is required")
	}

	l.mu.Lock()
	l.voterKeys = append(l.voterKeys, key)
	l.mu.Unlock()

	return &voter{ledger: l, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

type voter struct {
	ledger  *Ledger
	address common.Address
}

func (v *voter) Vote(ctx context.Context, electionID, candidateID *big.Int) (contract.PendingTx, error) {
	l := v.ledger
	eid := new(big.Int).Set(electionID)
	cid := new(big.Int).Set(candidateID)

	if l.RevertVotes {
		l.mu.Lock()
		err := l.checkVote(v.address, eid, cid)
		l.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("vote: %w: %v", contract.ErrReverted, err)
		}
	}

	return l.submit(func() (bool, []contract.Event) {
		if l.checkVote(v.address, eid, cid) != nil {
			return false, nil
		}

		e := l.election(eid)
		e.voters[v.address] = true
		c := e.candidates[cid.Int64()]
		c.votes.Add(c.votes, big.NewInt(1))

		return true, []contract.Event{{
			Name: contract.EventVoted,
			Args: map[string]interface{}{
				"electionId":  eid,
				"candidateId": cid,
				"voter":       v.address,
			},
		}}
	})
}

// checkVote must be called with the lock held.
func (l *Ledger) checkVote(addr common.Address, electionID, candidateID *big.Int) error {
	e := l.election(electionID)
	if e == nil {
		return errors.New("election does not exist")
	}
	if l.candidate(electionID, candidateID) == nil {
		return errors.New("candidate does not exist")
	}
	if e.voters[addr] {
		return errors.New("already voted")
	}
	return nil
}

// submit registers a transaction whose effect is applied on Wait.
func (l *Ledger) submit(apply func() (bool, []contract.Event)) (contract.PendingTx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.SubmitErr != nil {
		return nil, l.SubmitErr
	}

	l.nonce++
	l.submitted++

	return &pendingTx{
		ledger: l,
		hash:   crypto.Keccak256Hash(big.NewInt(l.nonce).Bytes()),
		apply:  apply,
	}, nil
}

func (l *Ledger) read() error {
	if l.ReadErr != nil {
		return l.ReadErr
	}
	l.reads++
	return nil
}

func (l *Ledger) election(id *big.Int) *election {
	if id == nil || !id.IsInt64() || id.Int64() < 0 || id.Int64() >= int64(len(l.elections)) {
		return nil
	}
	return l.elections[id.Int64()]
}

func (l *Ledger) candidate(electionID, candidateID *big.Int) *candidate {
	e := l.election(electionID)
	if e == nil || candidateID == nil || !candidateID.IsInt64() {
		return nil
	}
	idx := candidateID.Int64()
	if idx < 0 || idx >= int64(len(e.candidates)) {
		return nil
	}
	return e.candidates[idx]
}

type pendingTx struct {
	ledger *Ledger
	hash   common.Hash
	apply  func() (bool, []contract.Event)

	once    sync.Once
	receipt *contract.Receipt
}

func (p *pendingTx) Hash() common.Hash {
	return p.hash
}

func (p *pendingTx) Wait(ctx context.Context) (*contract.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := p.ledger

	l.mu.Lock()
	waitErr := l.WaitErr
	l.mu.Unlock()
	if waitErr != nil {
		return nil, waitErr
	}

	p.once.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		ok, events := p.apply()
		l.block++
		p.receipt = &contract.Receipt{
			TxHash:      p.hash,
			Succeeded:   ok,
			BlockNumber: big.NewInt(l.block),
			Events:      events,
		}
	})

	return p.receipt, nil
}
