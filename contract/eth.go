package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"
)

// ErrReverted marks a submission the node refused because the call reverted
// during gas estimation. Nothing was broadcast and there is no tx hash.
var ErrReverted = errors.New("execution reverted")

// JSON-RPC error code used by geth style nodes for reverts.
const revertErrorCode = 3

// Backend is what EthClient needs from a node connection. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// EthClient is a Client bound to one deployed voting contract.
type EthClient struct {
	address  common.Address
	abi      abi.ABI
	backend  Backend
	bound    *bind.BoundContract
	chainID  *big.Int
	operator *bind.TransactOpts
	closer   func()
}

// Dial connects to rpcURL and binds the contract at address.
func Dial(ctx context.Context, rpcURL string, address common.Address, parsed abi.ABI, operator *ecdsa.PrivateKey) (*EthClient, error) {
	conn, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}

	client, err := NewEthClient(ctx, conn, address, parsed, operator)
	if err != nil {
		conn.Close()
		return nil, err
	}
	client.closer = conn.Close

	return client, nil
}

// NewEthClient binds the contract at address over an existing backend. The
// operator key signs every non-vote transaction.
func NewEthClient(ctx context.Context, backend Backend, address common.Address, parsed abi.ABI, operator *ecdsa.PrivateKey) (*EthClient, error) {
	if operator == nil {
		return nil, errors.New("operator key is required")
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}

	code, err := backend.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contract code: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("no contract deployed at %s", address.Hex())
	}

	opts, err := bind.NewKeyedTransactorWithChainID(operator, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create operator transactor: %w", err)
	}

	client := newEthClient(backend, address, parsed)
	client.chainID = chainID
	client.operator = opts

	log.WithFields(log.Fields{
		"contract": address.Hex(),
		"chain_id": chainID.String(),
		"operator": opts.From.Hex(),
	}).Info("Bound voting contract")

	return client, nil
}

func newEthClient(backend Backend, address common.Address, parsed abi.ABI) *EthClient {
	return &EthClient{
		address: address,
		abi:     parsed,
		backend: backend,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}
}

// Close releases the node connection if the client owns it.
func (c *EthClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *EthClient) CreateElection(ctx context.Context, name string, start, end *big.Int) (PendingTx, error) {
	return c.transact(ctx, c.operator, "createElection", name, start, end)
}

func (c *EthClient) ElectionCount(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "electionCount")
	if err != nil {
		return nil, err
	}
	return bigOut(out, "0"), nil
}

func (c *EthClient) Election(ctx context.Context, id *big.Int) (*Election, error) {
	out, err := c.call(ctx, "elections", id)
	if err != nil {
		return nil, err
	}

	return &Election{
		ID:             bigOut(out, "id"),
		Name:           stringOut(out, "electionName"),
		StartTime:      bigOut(out, "startTime"),
		EndTime:        bigOut(out, "endTime"),
		IsActive:       boolOut(out, "isActive"),
		CandidateCount: bigOut(out, "candidateCount"),
	}, nil
}

func (c *EthClient) AddCandidate(ctx context.Context, electionID *big.Int, name string) (PendingTx, error) {
	return c.transact(ctx, c.operator, "addCandidate", electionID, name)
}

func (c *EthClient) Candidate(ctx context.Context, electionID, candidateID *big.Int) (*Candidate, error) {
	out, err := c.call(ctx, "getCandidate", electionID, candidateID)
	if err != nil {
		return nil, err
	}

	return &Candidate{
		Name:      stringOut(out, "name"),
		VoteCount: bigOut(out, "voteCount"),
	}, nil
}

// Voter builds a transactor for key. The returned Voter holds the key only as
// long as the caller holds the Voter.
func (c *EthClient) Voter(key *ecdsa.PrivateKey) (Voter, error) {
	if key == nil {
		return nil, errors.New("voter key is required")
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create voter transactor: %w", err)
	}

	return &ethVoter{client: c, opts: opts}, nil
}

type ethVoter struct {
	client *EthClient
	opts   *bind.TransactOpts
}

func (v *ethVoter) Vote(ctx context.Context, electionID, candidateID *big.Int) (PendingTx, error) {
	return v.client.transact(ctx, v.opts, "vote", electionID, candidateID)
}

func (c *EthClient) transact(ctx context.Context, opts *bind.TransactOpts, method string, params ...interface{}) (PendingTx, error) {
	// Copy so concurrent requests never share a context.
	txOpts := *opts
	txOpts.Context = ctx

	tx, err := c.bound.Transact(&txOpts, method, params...)
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%s: %w: %v", method, ErrReverted, err)
		}
		return nil, fmt.Errorf("%s: failed to submit transaction: %w", method, err)
	}

	log.WithFields(log.Fields{
		"method": method,
		"tx":     tx.Hash().Hex(),
		"from":   opts.From.Hex(),
	}).Debug("Transaction submitted")

	return &ethPendingTx{client: c, tx: tx}, nil
}

func (c *EthClient) call(ctx context.Context, method string, params ...interface{}) (map[string]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: call failed: %w", method, err)
	}
	return namedOutputs(c.abi.Methods[method].Outputs, out), nil
}

type ethPendingTx struct {
	client *EthClient
	tx     *types.Transaction
}

func (p *ethPendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

func (p *ethPendingTx) Wait(ctx context.Context) (*Receipt, error) {
	receipt, err := bind.WaitMined(ctx, p.client.backend, p.tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", p.tx.Hash().Hex(), err)
	}
	return p.client.toReceipt(receipt), nil
}

func (c *EthClient) toReceipt(r *types.Receipt) *Receipt {
	return &Receipt{
		TxHash:      r.TxHash,
		Succeeded:   r.Status == types.ReceiptStatusSuccessful,
		BlockNumber: r.BlockNumber,
		Events:      c.decodeEvents(r.Logs),
	}
}

// decodeEvents keeps the logs emitted by the bound contract that match an
// ABI event. Logs that fail to decode are skipped.
func (c *EthClient) decodeEvents(logs []*types.Log) []Event {
	var events []Event
	for _, l := range logs {
		if l == nil || l.Address != c.address || len(l.Topics) == 0 {
			continue
		}

		ev, err := c.abi.EventByID(l.Topics[0])
		if err != nil {
			continue
		}

		args := make(map[string]interface{})
		if err := c.bound.UnpackLogIntoMap(args, ev.Name, *l); err != nil {
			log.WithError(err).WithField("event", ev.Name).Warn("Failed to decode contract event")
			continue
		}

		events = append(events, Event{Name: ev.Name, Args: args})
	}
	return events
}

func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "vm exception while processing transaction")
}

func namedOutputs(args abi.Arguments, out []interface{}) map[string]interface{} {
	named := make(map[string]interface{}, len(out))
	for i, v := range out {
		name := strconv.Itoa(i)
		if i < len(args) && args[i].Name != "" {
			name = args[i].Name
		}
		named[name] = v
	}
	return named
}

func bigOut(out map[string]interface{}, name string) *big.Int {
	if v, ok := out[name].(*big.Int); ok && v != nil {
		return v
	}
	return new(big.Int)
}

func stringOut(out map[string]interface{}, name string) string {
	s, _ := out[name].(string)
	return s
}

func boolOut(out map[string]interface{}, name string) bool {
	b, _ := out[name].(bool)
	return b
}
