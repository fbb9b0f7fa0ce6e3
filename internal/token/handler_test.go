package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/auth"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockService is a mock implementation of Service
type MockService struct {
	mock.Mock
}

func (m *MockService) CreateToken(ctx context.Context, caller common.Address, token *models.Token) error {
	return m.Called(caller, token).Error(0)
}

func (m *MockService) SetPrice(ctx context.Context, caller, token common.Address, price decimal.Decimal) error {
	return m.Called(caller, token, price).Error(0)
}

func (m *MockService) Mint(ctx context.Context, caller, token, to common.Address, amount decimal.Decimal) error {
	return m.Called(caller, token, to, amount).Error(0)
}

func (m *MockService) Approve(ctx context.Context, caller, token, spender common.Address, amount decimal.Decimal) error {
	return m.Called(caller, token, spender, amount).Error(0)
}

func (m *MockService) Transfer(ctx context.Context, caller, token, to common.Address, amount decimal.Decimal) error {
	return m.Called(caller, token, to, amount).Error(0)
}

func (m *MockService) GetToken(ctx context.Context, token common.Address) (*models.Token, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *MockService) ListTokens(ctx context.Context, limit, offset int) ([]*models.Token, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]*models.Token), args.Error(1)
}

func (m *MockService) BalanceOf(ctx context.Context, token, account common.Address) (decimal.Decimal, error) {
	args := m.Called(token, account)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockService) Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	args := m.Called(token, owner, spender)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

var (
	testCaller = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	testToken  = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func setupRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/"), func(c *gin.Context) {
		auth.SetCaller(c, testCaller)
		c.Next()
	})
	return router
}

func TestMintHandler(t *testing.T) {
	m := new(MockService)
	to := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	m.On("Mint", testCaller, testToken, to, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(500))
	})).Return(nil)

	body := `{"to":"` + to.Hex() + `","amount":"500"}`
	req := httptest.NewRequest(http.MethodPost, "/tokens/"+testToken.Hex()+"/mint", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	m.AssertExpectations(t)
}

func TestMintHandler_BadAmount(t *testing.T) {
	m := new(MockService)

	body := `{"to":"0x00000000000000000000000000000000000000a1","amount":"-5"}`
	req := httptest.NewRequest(http.MethodPost, "/tokens/"+testToken.Hex()+"/mint", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	m.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetBalanceHandler(t *testing.T) {
	m := new(MockService)
	account := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	m.On("BalanceOf", testToken, account).Return(decimal.NewFromInt(42), nil)

	req := httptest.NewRequest(http.MethodGet, "/tokens/"+testToken.Hex()+"/balances/"+account.Hex(), nil)
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"balance":"42"`)
}

func TestListTokensHandler(t *testing.T) {
	m := new(MockService)
	m.On("ListTokens", 5, 0).Return([]*models.Token{{Address: testToken.Hex(), Symbol: "USDC"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/tokens?limit=5", nil)
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "USDC")
	m.AssertExpectations(t)
}
