// Package apperr declares the error taxonomy shared by every ledger and the
// mapping of those errors onto the HTTP surface.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotRegistered     = errors.New("user not registered")
	ErrAlreadyRegistered = errors.New("user already registered")
	ErrDidTaken          = errors.New("did already in use")
	ErrNotVerified       = errors.New("user not verified")
	ErrUnauthorized      = errors.New("caller lacks required role")
	ErrTokenNotSupported = errors.New("token not supported")
	ErrInvalidIndex      = errors.New("invalid collateral index")
	ErrNotActive         = errors.New("collateral not active")
	ErrLoanNotFound      = errors.New("loan not found")
	ErrAlreadyClosed     = errors.New("loan already closed")
	ErrNotYetDue         = errors.New("loan not yet due")
	ErrNoScoreCalculated = errors.New("no credit score calculated")
	ErrOracleUnavailable = errors.New("oracle price unavailable")
	ErrTransferFailed    = errors.New("token transfer failed")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type entry struct {
	err    error
	status int
	code   string
}

var table = []entry{
	{ErrNotRegistered, http.StatusNotFound, "NOT_REGISTERED"},
	{ErrAlreadyRegistered, http.StatusConflict, "ALREADY_REGISTERED"},
	{ErrDidTaken, http.StatusConflict, "DID_TAKEN"},
	{ErrNotVerified, http.StatusForbidden, "NOT_VERIFIED"},
	{ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
	{ErrTokenNotSupported, http.StatusBadRequest, "TOKEN_NOT_SUPPORTED"},
	{ErrInvalidIndex, http.StatusNotFound, "INVALID_INDEX"},
	{ErrNotActive, http.StatusConflict, "NOT_ACTIVE"},
	{ErrLoanNotFound, http.StatusNotFound, "LOAN_NOT_FOUND"},
	{ErrAlreadyClosed, http.StatusConflict, "ALREADY_CLOSED"},
	{ErrNotYetDue, http.StatusConflict, "NOT_YET_DUE"},
	{ErrNoScoreCalculated, http.StatusNotFound, "NO_SCORE_CALCULATED"},
	{ErrOracleUnavailable, http.StatusServiceUnavailable, "ORACLE_UNAVAILABLE"},
	{ErrTransferFailed, http.StatusUnprocessableEntity, "TRANSFER_FAILED"},
	{ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
}

// HTTPStatus maps err onto a response status. Unknown errors are 500.
func HTTPStatus(err error) int {
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns the machine readable code for err, or INTERNAL_ERROR.
func Code(err error) string {
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "INTERNAL_ERROR"
}
