package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"domain", fmt.Errorf("deposit: %w", apperr.ErrTokenNotSupported), http.StatusBadRequest, "TOKEN_NOT_SUPPORTED"},
		{"oracle", apperr.ErrOracleUnavailable, http.StatusServiceUnavailable, "oracle price unavailable"},
		{"internal", errors.New("db exploded"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
			assert.NotContains(t, w.Body.String(), "exploded")
		})
	}
}

func TestCaller_Missing(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	_, ok := Caller(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParsers(t *testing.T) {
	_, err := Address("0xnope")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	addr, err := Address("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xaa"), addr)

	_, err = Amount("0")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = Amount("abc")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	d, err := Amount("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1.5", d.String())

	_, err = Uint("-1")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	v, err := Uint("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}
