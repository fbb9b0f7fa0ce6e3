package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockController is a mock implementation of Controller
type MockController struct {
	mock.Mock
}

func (m *MockController) Require(ctx context.Context, caller common.Address, role Role) error {
	return m.Called(caller, role).Error(0)
}

func (m *MockController) HasRole(ctx context.Context, account common.Address, role Role) (bool, error) {
	args := m.Called(account, role)
	return args.Bool(0), args.Error(1)
}

func (m *MockController) Roles(ctx context.Context, account common.Address) ([]Role, error) {
	args := m.Called(account)
	return args.Get(0).([]Role), args.Error(1)
}

func (m *MockController) Grant(ctx context.Context, caller, account common.Address, role Role) error {
	return m.Called(caller, account, role).Error(0)
}

func (m *MockController) Revoke(ctx context.Context, caller, account common.Address, role Role) error {
	return m.Called(caller, account, role).Error(0)
}

func (m *MockController) Seed(ctx context.Context, admins []common.Address) error {
	return m.Called(admins).Error(0)
}

var testCaller = common.HexToAddress("0x00000000000000000000000000000000000000c1")

func setupRouter(controller Controller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	fakeAuth := func(c *gin.Context) {
		auth.SetCaller(c, testCaller)
		c.Next()
	}
	NewHandler(controller).RegisterRoutes(router.Group("/"), fakeAuth)
	return router
}

func TestGetRolesHandler(t *testing.T) {
	m := new(MockController)
	account := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	m.On("Roles", account).Return([]Role{RoleScorer}, nil)

	req := httptest.NewRequest(http.MethodGet, "/roles/"+account.Hex(), nil)
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "SCORER")
	m.AssertExpectations(t)
}

func TestGrantRoleHandler(t *testing.T) {
	m := new(MockController)
	account := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	m.On("Grant", testCaller, account, RoleVerifier).Return(nil)

	body := `{"account":"` + account.Hex() + `","role":"verifier"}`
	req := httptest.NewRequest(http.MethodPost, "/roles", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	m.AssertExpectations(t)
}

func TestGrantRoleHandler_Forbidden(t *testing.T) {
	m := new(MockController)
	m.On("Grant", testCaller, mock.Anything, RoleAdmin).Return(apperr.ErrUnauthorized)

	body := `{"account":"0x00000000000000000000000000000000000000a1","role":"ADMIN"}`
	req := httptest.NewRequest(http.MethodPost, "/roles", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Contains(t, resp.Body.String(), "UNAUTHORIZED")
}

func TestGrantRoleHandler_BadRole(t *testing.T) {
	m := new(MockController)

	body := `{"account":"0x00000000000000000000000000000000000000a1","role":"wizard"}`
	req := httptest.NewRequest(http.MethodPost, "/roles", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	m.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything)
}

func TestRevokeRoleHandler(t *testing.T) {
	m := new(MockController)
	account := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	m.On("Revoke", testCaller, account, RoleScorer).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/roles/"+account.Hex()+"/SCORER", nil)
	resp := httptest.NewRecorder()
	setupRouter(m).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	m.AssertExpectations(t)
}
