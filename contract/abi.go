package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// VotingABI is the interface of the voting contract the gateway was built
// against. It is used when no ABI file is configured.
const VotingABI = `[
  {"type":"function","name":"createElection","stateMutability":"nonpayable",
   "inputs":[{"name":"_name","type":"string"},{"name":"_startTime","type":"uint256"},{"name":"_endTime","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"electionCount","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"elections","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[{"name":"id","type":"uint256"},{"name":"electionName","type":"string"},
              {"name":"startTime","type":"uint256"},{"name":"endTime","type":"uint256"},
              {"name":"isActive","type":"bool"},{"name":"candidateCount","type":"uint256"}]},
  {"type":"function","name":"addCandidate","stateMutability":"nonpayable",
   "inputs":[{"name":"_electionId","type":"uint256"},{"name":"_name","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"getCandidate","stateMutability":"view",
   "inputs":[{"name":"_electionId","type":"uint256"},{"name":"_candidateId","type":"uint256"}],
   "outputs":[{"name":"name","type":"string"},{"name":"voteCount","type":"uint256"}]},
  {"type":"function","name":"vote","stateMutability":"nonpayable",
   "inputs":[{"name":"_electionId","type":"uint256"},{"name":"_candidateId","type":"uint256"}],
   "outputs":[]},
  {"type":"event","name":"ElectionCreated","anonymous":false,
   "inputs":[{"name":"electionId","type":"uint256","indexed":true},{"name":"electionName","type":"string","indexed":false},
             {"name":"startTime","type":"uint256","indexed":false},{"name":"endTime","type":"uint256","indexed":false}]},
  {"type":"event","name":"CandidateAdded","anonymous":false,
   "inputs":[{"name":"electionId","type":"uint256","indexed":true},{"name":"candidateId","type":"uint256","indexed":false},
             {"name":"name","type":"string","indexed":false}]},
  {"type":"event","name":"Voted","anonymous":false,
   "inputs":[{"name":"electionId","type":"uint256","indexed":true},{"name":"candidateId","type":"uint256","indexed":true},
             {"name":"voter","type":"address","indexed":true}]}
]`

// Methods every ABI must provide.
var requiredMethods = []string{
	"createElection", "electionCount", "elections", "addCandidate", "getCandidate", "vote",
}

// LoadABI reads the contract ABI from path, or returns VotingABI when path is
// empty. The file may hold a bare ABI array or a compiler artifact with an
// "abi" field.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return ParseABI([]byte(VotingABI))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read ABI file: %w", err)
	}

	return ParseABI(data)
}

// ParseABI parses raw ABI JSON and checks it exposes the methods the gateway
// calls.
func ParseABI(data []byte) (abi.ABI, error) {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(data, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("ABI artifact has no abi field")
		}
		data = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}

	var missing []string
	for _, name := range requiredMethods {
		if _, ok := parsed.Methods[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return abi.ABI{}, fmt.Errorf("ABI is missing methods: %s", strings.Join(missing, ", "))
	}

	return parsed, nil
}
