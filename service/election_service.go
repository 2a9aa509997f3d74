package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"election-gateway/contract"
	"election-gateway/models"
	"election-gateway/signer"
)

// Gateway turns election requests into contract calls. It keeps no entity
// state between requests: every read goes to the ledger.
type Gateway struct {
	ledger   contract.Client
	schedule Schedule
	metrics  *MetricsCollector
	now      func() time.Time
}

func NewGateway(ledger contract.Client, schedule Schedule, metrics *MetricsCollector) *Gateway {
	return &Gateway{
		ledger:   ledger,
		schedule: schedule,
		metrics:  metrics,
		now:      time.Now,
	}
}

// CreateElection validates the window, submits createElection and waits for
// finality. The new id comes from an ElectionCreated event when the contract
// emits one, otherwise from electionCount()-1.
func (g *Gateway) CreateElection(ctx context.Context, req *models.CreateElectionRequest) (resp *models.CreateElectionResponse, err error) {
	defer func() { g.metrics.RecordOperation(OpCreateElection, err) }()

	name := req.ResolvedName()
	if strings.TrimSpace(name) == "" {
		return nil, missingField("name")
	}
	if ferr := optionalUint("start_time", req.StartTime); ferr != nil {
		return nil, ferr
	}
	if ferr := optionalUint("end_time", req.EndTime); ferr != nil {
		return nil, ferr
	}

	now := g.now()
	start, end := g.schedule.Window(now, req.StartTime.Big(), req.EndTime.Big())
	if werr := validateWindow(now, start, end); werr != nil {
		return nil, werr
	}

	tx, err := g.ledger.CreateElection(ctx, name, start, end)
	if err != nil {
		return nil, txFailed("failed to create election", nil, err)
	}

	hash := tx.Hash()
	logger := log.WithFields(log.Fields{"operation": OpCreateElection, "tx": hash.Hex()})
	logger.WithFields(log.Fields{"start": start.String(), "end": end.String()}).Info("Election transaction submitted")

	receipt, err := g.waitFinality(ctx, OpCreateElection, tx)
	if err != nil {
		return nil, txFailed("election transaction did not reach finality", &hash, err)
	}
	if !receipt.Succeeded {
		return nil, txFailed("election transaction was rejected by the contract", &hash, nil)
	}

	electionID, err := g.createdElectionID(ctx, receipt, logger)
	if err != nil {
		if gwErr, ok := AsError(err); ok {
			gwErr.TxHash = &hash
			return nil, gwErr
		}
		return nil, txFailed("failed to read created election id", &hash, err)
	}

	logger.WithFields(log.Fields{
		"election_id": electionID.String(),
		"block":       decimal(receipt.BlockNumber),
	}).Info("Election created")

	return &models.CreateElectionResponse{
		Message:           "Election created successfully",
		TransactionHash:   hash.Hex(),
		CreatedElectionID: electionID.String(),
	}, nil
}

func (g *Gateway) createdElectionID(ctx context.Context, receipt *contract.Receipt, logger *log.Entry) (*big.Int, error) {
	if ev, ok := receipt.FindEvent(contract.EventElectionCreated); ok {
		if id, ok := ev.BigArg("electionId"); ok {
			return id, nil
		}
		return nil, protocolMismatch("ElectionCreated event has no electionId", nil)
	}

	// Best effort: only correct while no other creation lands between the
	// receipt and this read.
	count, err := g.ledger.ElectionCount(ctx)
	if err != nil {
		return nil, err
	}
	if count.Sign() <= 0 {
		return nil, protocolMismatch("election count is zero after a successful creation", nil)
	}

	logger.WithField("derivation", "count").Info("Derived election id from election count")

	return new(big.Int).Sub(count, big.NewInt(1)), nil
}

// GetElection reads one election by id.
func (g *Gateway) GetElection(ctx context.Context, id *models.Uint) (resp *models.ElectionResponse, err error) {
	defer func() { g.metrics.RecordOperation(OpGetElection, err) }()

	if ferr := requiredUint("election_id", id); ferr != nil {
		return nil, ferr
	}

	election, err := g.ledger.Election(ctx, id.Big())
	if err != nil {
		return nil, fetchFailed("failed to fetch election", err)
	}
	if !election.Exists() {
		return nil, notFound(fmt.Sprintf("election %s not found", id))
	}

	return &models.ElectionResponse{
		ElectionID:   decimal(election.ID),
		ElectionName: election.Name,
		StartTime:    decimal(election.StartTime),
		EndTime:      decimal(election.EndTime),
		IsActive:     election.IsActive,
	}, nil
}

// AddCandidate submits addCandidate and reads the new candidate id from the
// CandidateAdded event of the receipt.
func (g *Gateway) AddCandidate(ctx context.Context, req *models.AddCandidateRequest) (resp *models.AddCandidateResponse, err error) {
	defer func() { g.metrics.RecordOperation(OpAddCandidate, err) }()

	if ferr := requiredUint("election_id", req.ElectionID); ferr != nil {
		return nil, ferr
	}
	if strings.TrimSpace(req.CandidateName) == "" {
		return nil, missingField("candidate_name")
	}

	electionID := req.ElectionID.Big()

	tx, err := g.ledger.AddCandidate(ctx, electionID, req.CandidateName)
	if err != nil {
		return nil, txFailed("failed to add candidate", nil, err)
	}

	hash := tx.Hash()
	logger := log.WithFields(log.Fields{
		"operation":   OpAddCandidate,
		"tx":          hash.Hex(),
		"election_id": electionID.String(),
	})
	logger.Info("Candidate transaction submitted")

	receipt, err := g.waitFinality(ctx, OpAddCandidate, tx)
	if err != nil {
		return nil, txFailed("candidate transaction did not reach finality", &hash, err)
	}
	if !receipt.Succeeded {
		return nil, txFailed("candidate transaction was rejected by the contract", &hash, nil)
	}

	ev, ok := receipt.FindEvent(contract.EventCandidateAdded)
	if !ok {
		return nil, protocolMismatch("receipt carries no CandidateAdded event", &hash)
	}

	candidateID, ok := ev.BigArg("candidateId")
	if !ok {
		return nil, protocolMismatch("CandidateAdded event has no candidateId", &hash)
	}

	if evElection, ok := ev.BigArg("electionId"); ok && evElection.Cmp(electionID) != 0 {
		return nil, protocolMismatch(
			fmt.Sprintf("CandidateAdded event is for election %s, expected %s", evElection, electionID), &hash)
	}

	logger.WithFields(log.Fields{
		"candidate_id": candidateID.String(),
		"block":        decimal(receipt.BlockNumber),
	}).Info("Candidate added")

	return &models.AddCandidateResponse{
		Message:            "Candidate added successfully",
		TransactionHash:    hash.Hex(),
		ElectionID:         electionID.String(),
		CreatedCandidateID: candidateID.String(),
		CandidateName:      req.CandidateName,
	}, nil
}

// GetCandidate reads a candidate and its current tally.
func (g *Gateway) GetCandidate(ctx context.Context, req *models.GetCandidateRequest) (resp *models.CandidateResponse, err error) {
	defer func() { g.metrics.RecordOperation(OpGetCandidate, err) }()

	if ferr := requiredUint("election_id", req.ElectionID); ferr != nil {
		return nil, ferr
	}
	if ferr := requiredUint("candidate_id", req.CandidateID); ferr != nil {
		return nil, ferr
	}

	candidate, err := g.ledger.Candidate(ctx, req.ElectionID.Big(), req.CandidateID.Big())
	if err != nil {
		return nil, fetchFailed("failed to fetch candidate", err)
	}
	if !candidate.Exists() {
		return nil, notFound(fmt.Sprintf("candidate %s not found in election %s", req.CandidateID, req.ElectionID))
	}

	return &models.CandidateResponse{
		CandidateID:   req.CandidateID.String(),
		CandidateName: candidate.Name,
		VoteCount:     decimal(candidate.VoteCount),
	}, nil
}

// CastVote signs and submits a vote as the voter. The credential lives only
// for the duration of this call.
func (g *Gateway) CastVote(ctx context.Context, req *models.VoteRequest) (resp *models.VoteResponse, err error) {
	defer func() { g.metrics.RecordOperation(OpVote, err) }()

	if ferr := requiredUint("election_id", req.ElectionID); ferr != nil {
		return nil, ferr
	}
	if ferr := requiredUint("candidate_id", req.CandidateID); ferr != nil {
		return nil, ferr
	}
	if strings.TrimSpace(req.VoterIdentity) == "" {
		return nil, missingField("voter_identity")
	}

	cred, err := signer.NewCredential(req.VoterIdentity)
	req.VoterIdentity = ""
	if err != nil {
		return nil, invalidField("voter_identity", err)
	}
	defer cred.Destroy()

	voter, err := g.ledger.Voter(cred.Key())
	if err != nil {
		return nil, txFailed("failed to prepare voter signer", nil, err)
	}

	logger := log.WithFields(log.Fields{
		"operation":    OpVote,
		"election_id":  req.ElectionID.String(),
		"candidate_id": req.CandidateID.String(),
		"voter":        cred.Fingerprint(),
	})

	tx, err := voter.Vote(ctx, req.ElectionID.Big(), req.CandidateID.Big())
	if err != nil {
		if errors.Is(err, contract.ErrReverted) {
			return nil, txRejected("vote rejected by the contract", nil, err)
		}
		return nil, txFailed("failed to submit vote", nil, err)
	}

	hash := tx.Hash()
	logger = logger.WithField("tx", hash.Hex())
	logger.Info("Vote submitted")

	receipt, err := g.waitFinality(ctx, OpVote, tx)
	if err != nil {
		return nil, txFailed("vote did not reach finality", &hash, err)
	}
	if !receipt.Succeeded {
		return nil, txRejected("vote was mined but rejected by the contract", &hash, nil)
	}

	logger.WithField("block", decimal(receipt.BlockNumber)).Info("Vote confirmed")

	return &models.VoteResponse{
		TransactionHash: hash.Hex(),
		Message:         "Vote cast successfully",
		BlockNumber:     decimal(receipt.BlockNumber),
	}, nil
}

func (g *Gateway) waitFinality(ctx context.Context, operation string, tx contract.PendingTx) (*contract.Receipt, error) {
	done := g.metrics.StartFinalityWait(operation)
	defer done()

	receipt, err := tx.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, errors.New("no receipt returned")
	}
	return receipt, nil
}

// requiredUint reports an absent or undecodable numeric field.
func requiredUint(field string, u *models.Uint) *Error {
	if u == nil {
		return missingField(field)
	}
	return optionalUint(field, u)
}

func optionalUint(field string, u *models.Uint) *Error {
	if err := u.Err(); err != nil {
		return invalidField(field, err)
	}
	return nil
}

func decimal(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
