package models

// VoteRequest is the body of POST /vote. VoterIdentity is the voter's hex
// encoded private key; it is used to sign this one vote and then discarded.
type VoteRequest struct {
	ElectionID    *Uint  `json:"election_id"`
	CandidateID   *Uint  `json:"candidate_id"`
	VoterIdentity string `json:"voter_identity"`
}

type VoteResponse struct {
	TransactionHash string `json:"transaction_hash"`
	Message         string `json:"message"`
	BlockNumber     string `json:"block_number"`
}
