// Package api exposes the election gateway over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"election-gateway/models"
	"election-gateway/service"
)

const maxBodyBytes = 1 << 20

// Gateway is the set of election operations served over HTTP.
type Gateway interface {
	CreateElection(ctx context.Context, req *models.CreateElectionRequest) (*models.CreateElectionResponse, error)
	GetElection(ctx context.Context, id *models.Uint) (*models.ElectionResponse, error)
	AddCandidate(ctx context.Context, req *models.AddCandidateRequest) (*models.AddCandidateResponse, error)
	GetCandidate(ctx context.Context, req *models.GetCandidateRequest) (*models.CandidateResponse, error)
	CastVote(ctx context.Context, req *models.VoteRequest) (*models.VoteResponse, error)
}

type Server struct {
	gateway  Gateway
	gatherer prometheus.Gatherer
	router   *mux.Router
}

// NewServer builds the router. /metrics is served only when gatherer is not
// nil.
func NewServer(gateway Gateway, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		gateway:  gateway,
		gatherer: gatherer,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(withRequestLogging, withRecovery)

	r.Path("/create_election").Methods(http.MethodPost).HandlerFunc(s.handleCreateElection)
	r.Path("/election/{election_id}").Methods(http.MethodGet).HandlerFunc(s.handleGetElection)
	r.Path("/add_candidate").Methods(http.MethodPost).HandlerFunc(s.handleAddCandidate)
	r.Path("/get_candidate").Methods(http.MethodGet, http.MethodPost).HandlerFunc(s.handleGetCandidate)
	r.Path("/election/{election_id}/candidate/{candidate_id}").Methods(http.MethodGet).HandlerFunc(s.handleGetCandidate)
	r.Path("/vote").Methods(http.MethodPost).HandlerFunc(s.handleCastVote)
	r.Path("/health").Methods(http.MethodGet).HandlerFunc(s.handleHealth)

	if s.gatherer != nil {
		r.Path("/metrics").Methods(http.MethodGet).Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFoundHandler = withRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, errorBody("route not found", "", nil, ""))
	}))
	r.MethodNotAllowedHandler = withRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusMethodNotAllowed, errorBody("method not allowed", "", nil, ""))
	}))
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateElectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.gateway.CreateElection(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	var id *models.Uint
	if err := parseUintParam(mux.Vars(r)["election_id"], "election_id", &id); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.gateway.GetElection(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.AddCandidateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.gateway.AddCandidate(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleGetCandidate merges the JSON body, the query string and path
// variables, in increasing precedence. Missing fields are reported by the
// gateway once all sources are read.
func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.GetCandidateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	vars := mux.Vars(r)

	for _, source := range []func(string) string{query.Get, func(k string) string { return vars[k] }} {
		if err := parseUintParam(source("election_id"), "election_id", &req.ElectionID); err != nil {
			writeError(w, r, err)
			return
		}
		if err := parseUintParam(source("candidate_id"), "candidate_id", &req.CandidateID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	resp, err := s.gateway.GetCandidate(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req models.VoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.gateway.CastVote(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// errTrailingData rejects a body holding more than one JSON value.
var errTrailingData = errors.New("unexpected data after JSON body")

// decodeBody reads a single JSON value into v. An empty body leaves v
// untouched so the gateway reports the missing fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return invalidBody(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return invalidBody(errTrailingData)
	}
	return nil
}

func invalidBody(err error) *service.Error {
	return &service.Error{Kind: service.KindInvalidField, Message: "invalid request body", Err: err}
}

// parseUintParam sets *dst from text when text is not empty.
func parseUintParam(text, field string, dst **models.Uint) error {
	if text == "" {
		return nil
	}
	u, err := models.ParseUint(text)
	if err != nil {
		return &service.Error{Kind: service.KindInvalidField, Message: "invalid field: " + field, Err: err}
	}
	*dst = u
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := requestLogger(r)

	gwErr, ok := service.AsError(err)
	if !ok {
		logger.WithError(err).Error("Unclassified gateway failure")
		writeJSON(w, r, http.StatusInternalServerError, errorBody("internal server error", "", nil, ""))
		return
	}

	status := gwErr.HTTPStatus()
	entry := logger.WithFields(log.Fields{
		"kind":   gwErr.Kind,
		"status": status,
	})
	if gwErr.TxHash != nil {
		entry = entry.WithField("tx", gwErr.TxHash.Hex())
	}
	if gwErr.Err != nil {
		entry = entry.WithError(gwErr.Err)
	}

	if status >= http.StatusInternalServerError {
		entry.Error(gwErr.Message)
	} else {
		entry.Info(gwErr.Message)
	}

	var details string
	if gwErr.Err != nil {
		details = gwErr.Err.Error()
	}
	writeJSON(w, r, status, errorBody(gwErr.Message, string(gwErr.Kind), gwErr.TxHash, details))
}

func errorBody(message, kind string, hash *common.Hash, details string) models.ErrorResponse {
	resp := models.ErrorResponse{Error: message, Kind: kind, Details: details}
	if hash != nil {
		resp.TransactionHash = hash.Hex()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		requestLogger(r).WithError(err).Error("Failed to encode response")
	}
}
