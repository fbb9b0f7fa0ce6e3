package server

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/auth"
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/database/dbtest"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type ServerTestSuite struct {
	suite.Suite
	clock  *clockwork.FakeClock
	router *gin.Engine
	nonce  int

	adminKey *ecdsa.PrivateKey
	aliceKey *ecdsa.PrivateKey
	admin    common.Address
	alice    common.Address
}

func (s *ServerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	log := logrus.NewEntry(logrus.New())
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	var err error
	s.adminKey, err = crypto.GenerateKey()
	s.Require().NoError(err)
	s.aliceKey, err = crypto.GenerateKey()
	s.Require().NoError(err)
	s.admin = crypto.PubkeyToAddress(s.adminKey.PublicKey)
	s.alice = crypto.PubkeyToAddress(s.aliceKey.PublicKey)

	deps := Wire(Options{
		DB:        dbtest.New(s.T()),
		Policy:    config.DefaultPolicy(),
		Vault:     common.HexToAddress("0x000000000000000000000000000000000000c011"),
		Publisher: events.Nop{},
		Clock:     s.clock,
		Log:       log,
	})
	s.Require().NoError(deps.Access.Seed(context.Background(), []common.Address{s.admin}))
	deps.Auth = auth.NewAuthMiddleware(s.clock)

	s.router = NewRouter(deps)
}

func (s *ServerTestSuite) do(method, path, body string, key *ecdsa.PrivateKey) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if key != nil {
		s.nonce++
		token, err := auth.SignToken(key, fmt.Sprintf("nonce-%d", s.nonce), s.clock.Now())
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ServerTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))
	s.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal("req-42", w.Header().Get("X-Request-ID"))
}

func (s *ServerTestSuite) TestScoreFlow() {
	w := s.do(http.MethodPost, "/api/v1/identity", `{"did":"did:example:alice"}`, s.aliceKey)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	// unverified users cannot be scored
	w = s.do(http.MethodPost, "/api/v1/scores/"+s.alice.Hex(), "", s.aliceKey)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/roles", `{"account":"`+s.admin.Hex()+`","role":"VERIFIER"}`, s.adminKey)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/identity/"+s.alice.Hex()+"/verify", "", s.adminKey)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/scores/"+s.alice.Hex(), "", s.aliceKey)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var profile struct {
		FinalScore    int64  `json:"final_score"`
		RiskLevel     string `json:"risk_level"`
		MaxLoanAmount string `json:"max_loan_amount"`
		InterestRate  int64  `json:"interest_rate"`
		IsValid       bool   `json:"is_valid"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &profile))
	s.Equal(int64(300), profile.FinalScore)
	s.Equal("Very High", profile.RiskLevel)
	s.Equal("500", profile.MaxLoanAmount)
	s.Equal(int64(2500), profile.InterestRate)
	s.True(profile.IsValid)

	w = s.do(http.MethodGet, "/api/v1/scores/"+s.alice.Hex()+"/summary", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"score":300`)
	s.Contains(w.Body.String(), `"is_valid":true`)

	w = s.do(http.MethodGet, "/api/v1/scores/"+s.alice.Hex()+"/history", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var history []map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &history))
	s.Len(history, 1)
}

func (s *ServerTestSuite) TestErrors() {
	w := s.do(http.MethodPost, "/api/v1/scores/"+s.alice.Hex(), "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/scores/"+s.alice.Hex(), "", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/roles", `{"account":"`+s.alice.Hex()+`","role":"SCORER"}`, s.aliceKey)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/loans/abc", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
