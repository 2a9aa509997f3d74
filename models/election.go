package models

// CreateElectionRequest is the body of POST /create_election. ElectionName is
// accepted as an alias of Name. Omitted times are scheduled by the gateway.
type CreateElectionRequest struct {
	Name         string `json:"name"`
	ElectionName string `json:"election_name,omitempty"`
	StartTime    *Uint  `json:"start_time,omitempty"`
	EndTime      *Uint  `json:"end_time,omitempty"`
}

// ResolvedName returns Name, falling back to ElectionName.
func (r *CreateElectionRequest) ResolvedName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ElectionName
}

type CreateElectionResponse struct {
	Message           string `json:"message"`
	TransactionHash   string `json:"transaction_hash"`
	CreatedElectionID string `json:"created_election_id"`
}

type ElectionResponse struct {
	ElectionID   string `json:"election_id"`
	ElectionName string `json:"election_name"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	IsActive     bool   `json:"is_active"`
}

type AddCandidateRequest struct {
	ElectionID    *Uint  `json:"election_id"`
	CandidateName string `json:"candidate_name"`
}

type AddCandidateResponse struct {
	Message            string `json:"message"`
	TransactionHash    string `json:"transaction_hash"`
	ElectionID         string `json:"election_id"`
	CreatedCandidateID string `json:"created_candidate_id"`
	CandidateName      string `json:"candidate_name"`
}

// GetCandidateRequest may be filled from the query string, the JSON body and
// path variables.
type GetCandidateRequest struct {
	ElectionID  *Uint `json:"election_id"`
	CandidateID *Uint `json:"candidate_id"`
}

type CandidateResponse struct {
	CandidateID   string `json:"candidate_id"`
	CandidateName string `json:"candidate_name"`
	VoteCount     string `json:"vote_count"`
}
