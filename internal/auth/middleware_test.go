package auth

import (
	"crypto/ecdsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"
)

type AuthMiddlewareTestSuite struct {
	suite.Suite
	clock  *clockwork.FakeClock
	am     *AuthMiddleware
	router *gin.Engine
	key    *ecdsa.PrivateKey
	addr   common.Address
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.key = key
	s.addr = crypto.PubkeyToAddress(key.PublicKey)

	s.clock = clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	s.am = NewAuthMiddleware(s.clock)

	s.router = gin.New()
	s.router.GET("/me", s.am.RequireAuth(), func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, caller.Hex())
	})
}

func (s *AuthMiddlewareTestSuite) do(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareTestSuite) TestValidToken() {
	token, err := SignToken(s.key, "nonce-1", s.clock.Now())
	s.Require().NoError(err)

	w := s.do("Bearer " + token)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(s.addr.Hex(), w.Body.String())
}

func (s *AuthMiddlewareTestSuite) TestMissingHeader() {
	w := s.do("")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "AUTH_HEADER_MISSING")
}

func (s *AuthMiddlewareTestSuite) TestInvalidFormat() {
	w := s.do("Basic abc")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "INVALID_AUTH_FORMAT")

	w = s.do("Bearer only:three:parts")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "AUTH_FAILED")
}

func (s *AuthMiddlewareTestSuite) TestNonceReplay() {
	token, err := SignToken(s.key, "nonce-replay", s.clock.Now())
	s.Require().NoError(err)

	s.Equal(http.StatusOK, s.do("Bearer "+token).Code)
	s.Equal(http.StatusUnauthorized, s.do("Bearer "+token).Code)
}

func (s *AuthMiddlewareTestSuite) TestSameNonceDifferentWallets() {
	other, err := crypto.GenerateKey()
	s.Require().NoError(err)

	mine, err := SignToken(s.key, "nonce-shared", s.clock.Now())
	s.Require().NoError(err)
	theirs, err := SignToken(other, "nonce-shared", s.clock.Now())
	s.Require().NoError(err)

	s.Equal(http.StatusOK, s.do("Bearer "+mine).Code)
	w := s.do("Bearer " + theirs)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(crypto.PubkeyToAddress(other.PublicKey).Hex(), w.Body.String())

	// each wallet still cannot replay its own nonce
	s.Equal(http.StatusUnauthorized, s.do("Bearer "+theirs).Code)
}

func (s *AuthMiddlewareTestSuite) TestExpiredTimestamp() {
	token, err := SignToken(s.key, "nonce-old", s.clock.Now())
	s.Require().NoError(err)

	s.clock.Advance(6 * time.Minute)
	s.Equal(http.StatusUnauthorized, s.do("Bearer "+token).Code)
}

func (s *AuthMiddlewareTestSuite) TestFutureTimestamp() {
	token, err := SignToken(s.key, "nonce-future", s.clock.Now().Add(2*time.Minute))
	s.Require().NoError(err)

	s.Equal(http.StatusUnauthorized, s.do("Bearer "+token).Code)
}

func (s *AuthMiddlewareTestSuite) TestAddressMismatch() {
	token, err := SignToken(s.key, "nonce-spoof", s.clock.Now())
	s.Require().NoError(err)

	parts := strings.Split(token, ":")
	parts[3] = common.HexToAddress("0x1234").Hex()

	s.Equal(http.StatusUnauthorized, s.do("Bearer "+strings.Join(parts, ":")).Code)
}

func (s *AuthMiddlewareTestSuite) TestWalletRecoveryID() {
	ts := s.clock.Now().Unix()
	sig, err := crypto.Sign(signHash(Message("nonce-v", ts)), s.key)
	s.Require().NoError(err)
	sig[crypto.RecoveryIDOffset] += 27

	s.NoError(verifyEthereumSignature(Message("nonce-v", ts), common.Bytes2Hex(sig), s.addr))
}

func (s *AuthMiddlewareTestSuite) TestCORS() {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.Empty(w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}
