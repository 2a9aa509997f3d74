package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// Kind classifies gateway failures.
type Kind string

const (
	KindMissingField      Kind = "MissingField"
	KindInvalidField      Kind = "InvalidField"
	KindInvalidWindow     Kind = "InvalidWindow"
	KindTransactionFailed Kind = "TransactionFailed"
	KindProtocolMismatch  Kind = "ProtocolMismatch"
	KindNotFound          Kind = "NotFound"
	KindFetchFailed       Kind = "FetchFailed"
)

// Error is returned by every Gateway operation that fails.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	// TxHash is set once a transaction has been broadcast.
	TxHash *common.Hash
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status for the error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindMissingField, KindInvalidField, KindInvalidWindow:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// AsError extracts a gateway error from err.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

func missingField(field string) *Error {
	return &Error{Kind: KindMissingField, Message: fmt.Sprintf("missing required field: %s", field)}
}

func invalidField(field string, err error) *Error {
	return &Error{Kind: KindInvalidField, Message: fmt.Sprintf("invalid field: %s", field), Err: err}
}

func invalidWindow(reason string) *Error {
	return &Error{Kind: KindInvalidWindow, Message: reason}
}

func txFailed(message string, hash *common.Hash, err error) *Error {
	return &Error{Kind: KindTransactionFailed, Message: message, TxHash: hash, Err: err}
}

// txRejected is a transaction the contract refused because of the caller's
// input.
func txRejected(message string, hash *common.Hash, err error) *Error {
	return &Error{Kind: KindTransactionFailed, Message: message, Status: http.StatusBadRequest, TxHash: hash, Err: err}
}

func protocolMismatch(message string, hash *common.Hash) *Error {
	return &Error{Kind: KindProtocolMismatch, Message: message, TxHash: hash}
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func fetchFailed(message string, err error) *Error {
	return &Error{Kind: KindFetchFailed, Message: message, Err: err}
}
