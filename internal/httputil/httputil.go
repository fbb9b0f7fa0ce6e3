// Package httputil holds the small helpers every handler shares.
package httputil

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/auth"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Error writes err as a JSON error response. Internal errors are logged and
// their message is not exposed.
func Error(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		msg = "Internal server error"
	}
	c.JSON(status, gin.H{"error": msg, "code": apperr.Code(err)})
}

// Caller returns the authenticated caller or writes a 401.
func Caller(c *gin.Context) (common.Address, bool) {
	caller, ok := auth.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
			"code":  "USER_NOT_AUTHENTICATED",
		})
		return common.Address{}, false
	}
	return caller, true
}

// Address parses a hex address.
func Address(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", apperr.ErrInvalidInput, s)
	}
	return common.HexToAddress(s), nil
}

// Amount parses a strictly positive decimal amount.
func Amount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", apperr.ErrInvalidInput, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", apperr.ErrInvalidInput)
	}
	return d, nil
}

// Uint parses an unsigned path or query parameter.
func Uint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", apperr.ErrInvalidInput, s)
	}
	return v, nil
}

// BindJSON decodes the body or writes a 400.
func BindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_INPUT"})
		return false
	}
	return true
}
