package access

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/httputil"
)

type Handler struct {
	controller Controller
}

func NewHandler(controller Controller) *Handler {
	return &Handler{controller: controller}
}

type roleRequest struct {
	Account string `json:"account" binding:"required"`
	Role    string `json:"role" binding:"required"`
}

func (h *Handler) GetRoles(c *gin.Context) {
	account, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}

	roles, err := h.controller.Roles(c.Request.Context(), account)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account.Hex(), "roles": roles})
}

func (h *Handler) GrantRole(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	var req roleRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	account, role, err := parseRoleRequest(req)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	if err := h.controller.Grant(c.Request.Context(), caller, account, role); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account.Hex(), "role": role})
}

func (h *Handler) RevokeRole(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	account, role, err := parseRoleRequest(roleRequest{Account: c.Param("address"), Role: c.Param("role")})
	if err != nil {
		httputil.Error(c, err)
		return
	}

	if err := h.controller.Revoke(c.Request.Context(), caller, account, role); err != nil {
		httputil.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseRoleRequest(req roleRequest) (common.Address, Role, error) {
	account, err := httputil.Address(req.Account)
	if err != nil {
		return common.Address{}, "", err
	}
	role, err := ParseRole(req.Role)
	return account, role, err
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	roles := router.Group("/roles")
	{
		roles.GET("/:address", h.GetRoles)
		roles.POST("", requireAuth, h.GrantRole)
		roles.DELETE("/:address/:role", requireAuth, h.RevokeRole)
	}
}
