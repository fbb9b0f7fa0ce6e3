package scoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/auth"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CalculateCreditScore(ctx context.Context, caller, user common.Address) (*models.CreditProfile, error) {
	args := m.Called(caller, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditProfile), args.Error(1)
}

func (m *MockService) BatchCalculateScores(ctx context.Context, caller common.Address, users []common.Address) ([]BatchResult, error) {
	args := m.Called(caller, users)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BatchResult), args.Error(1)
}

func (m *MockService) GetCreditScore(ctx context.Context, user common.Address) (*models.CreditProfile, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditProfile), args.Error(1)
}

func (m *MockService) IsScoreValid(ctx context.Context, user common.Address) (bool, error) {
	args := m.Called(user)
	return args.Bool(0), args.Error(1)
}

func (m *MockService) GetCreditSummary(ctx context.Context, user common.Address) (*Summary, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Summary), args.Error(1)
}

func (m *MockService) GetScoreHistory(ctx context.Context, user common.Address, limit int) ([]*models.ScoreSnapshot, error) {
	args := m.Called(user, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ScoreSnapshot), args.Error(1)
}

type MockExplainer struct {
	mock.Mock
}

func (m *MockExplainer) Explain(ctx context.Context, user common.Address) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

var (
	testCaller = common.HexToAddress("0x0000000000000000000000000000000000000a7a")
	testUser   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	otherUser  = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func setupRouter(svc Service, explainer Explainer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(svc, explainer).RegisterRoutes(router.Group("/"), func(c *gin.Context) {
		auth.SetCaller(c, testCaller)
		c.Next()
	})
	return router
}

func TestCalculateHandler(t *testing.T) {
	m := new(MockService)
	m.On("CalculateCreditScore", testCaller, testUser).Return(&models.CreditProfile{
		UserAddress:   testUser.Hex(),
		FinalScore:    337,
		RiskLevel:     models.RiskVeryHigh,
		MaxLoanAmount: decimal.NewFromInt(530),
		InterestRate:  2450,
		IsValid:       true,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/scores/"+testUser.Hex(), nil)
	resp := httptest.NewRecorder()
	setupRouter(m, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"final_score":337`)
	assert.Contains(t, resp.Body.String(), `"risk_level":"Very High"`)
	m.AssertExpectations(t)
}

func TestGetScoreHandler_NoScore(t *testing.T) {
	m := new(MockService)
	m.On("GetCreditScore", testUser).Return(nil, apperr.ErrNoScoreCalculated)

	req := httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex(), nil)
	resp := httptest.NewRecorder()
	setupRouter(m, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestBatchHandler(t *testing.T) {
	m := new(MockService)
	m.On("BatchCalculateScores", testCaller, []common.Address{testUser, otherUser}).Return([]BatchResult{
		{User: testUser, Profile: &models.CreditProfile{UserAddress: testUser.Hex(), FinalScore: 337}},
		{User: otherUser, Err: apperr.ErrNotVerified},
	}, nil)

	body := `{"users":["` + testUser.Hex() + `","` + otherUser.Hex() + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/batch/scores", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	setupRouter(m, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"final_score":337`)
	assert.Contains(t, resp.Body.String(), `"code":"`+apperr.Code(apperr.ErrNotVerified)+`"`)
	m.AssertExpectations(t)
}

func TestBatchHandler_Limits(t *testing.T) {
	m := new(MockService)

	req := httptest.NewRequest(http.MethodPost, "/batch/scores", strings.NewReader(`{"users":[]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	setupRouter(m, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	users := make([]string, maxBatchSize+1)
	for i := range users {
		users[i] = `"` + testUser.Hex() + `"`
	}
	req = httptest.NewRequest(http.MethodPost, "/batch/scores", strings.NewReader(`{"users":[`+strings.Join(users, ",")+`]}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	setupRouter(m, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	m.AssertNotCalled(t, "BatchCalculateScores", mock.Anything, mock.Anything)
}

func TestValidityHandler(t *testing.T) {
	m := new(MockService)
	m.On("IsScoreValid", testUser).Return(false, nil)

	req := httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex()+"/validity", nil)
	resp := httptest.NewRecorder()
	setupRouter(m, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"is_valid":false}`, resp.Body.String())
}

func TestSummaryHandler_Explain(t *testing.T) {
	m := new(MockService)
	m.On("GetCreditSummary", testUser).Return(&Summary{User: testUser.Hex(), Score: 700, RiskLevel: models.RiskLow}, nil)
	e := new(MockExplainer)
	e.On("Explain", testUser).Return("steady repayment history", nil)

	req := httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex()+"/summary?explain=true", nil)
	resp := httptest.NewRecorder()
	setupRouter(m, e).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"explanation":"steady repayment history"`)
	e.AssertExpectations(t)

	// without the flag the explainer is not consulted
	e2 := new(MockExplainer)
	req = httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex()+"/summary", nil)
	resp = httptest.NewRecorder()
	setupRouter(m, e2).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), "explanation")
	e2.AssertNotCalled(t, "Explain", mock.Anything)
}

func TestSummaryHandler_ExplainFailureIgnored(t *testing.T) {
	m := new(MockService)
	m.On("GetCreditSummary", testUser).Return(&Summary{User: testUser.Hex(), Score: 700}, nil)
	e := new(MockExplainer)
	e.On("Explain", testUser).Return("", errors.New("model offline"))

	req := httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex()+"/summary?explain=true", nil)
	resp := httptest.NewRecorder()
	setupRouter(m, e).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"score":700`)
}

func TestHistoryHandler(t *testing.T) {
	m := new(MockService)
	m.On("GetScoreHistory", testUser, 5).Return([]*models.ScoreSnapshot{{ID: 2, FinalScore: 425}, {ID: 1, FinalScore: 337}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex()+"/history?limit=5", nil)
	resp := httptest.NewRecorder()
	setupRouter(m, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"final_score":425`)
	m.AssertExpectations(t)
}

func TestHistoryHandler_Limit(t *testing.T) {
	m := new(MockService)
	m.On("GetScoreHistory", testUser, defaultHistoryLimit).Return([]*models.ScoreSnapshot{}, nil)
	m.On("GetScoreHistory", testUser, maxHistoryLimit).Return([]*models.ScoreSnapshot{}, nil)
	router := setupRouter(m, nil)

	for _, bad := range []string{"abc", "-1", "2.5"} {
		req := httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex()+"/history?limit="+bad, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusBadRequest, resp.Code, "limit %q", bad)
	}
	m.AssertNotCalled(t, "GetScoreHistory", mock.Anything, mock.Anything)

	req := httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex()+"/history", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/scores/"+testUser.Hex()+"/history?limit=18446744073709551615", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	m.AssertExpectations(t)
}
