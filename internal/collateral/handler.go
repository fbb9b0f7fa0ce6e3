package collateral

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/httputil"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	Token  string `json:"token" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type supportedTokenRequest struct {
	LiquidationThreshold uint16 `json:"liquidation_threshold"`
}

func (h *Handler) AddSupportedToken(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	tok, err := httputil.Address(c.Param("token"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	var req supportedTokenRequest
	if !httputil.BindJSON(c, &req) {
		return
	}

	if err := h.service.AddSupportedToken(c.Request.Context(), caller, tok, req.LiquidationThreshold); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_address": tok.Hex(), "liquidation_threshold": req.LiquidationThreshold})
}

func (h *Handler) ListSupportedTokens(c *gin.Context) {
	tokens, err := h.service.ListSupportedTokens(c.Request.Context())
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) Deposit(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	var req depositRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	tok, err := httputil.Address(req.Token)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	amount, err := httputil.Amount(req.Amount)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	slot, err := h.service.DepositCollateral(c.Request.Context(), caller, tok, amount)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *Handler) Withdraw(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	index, err := httputil.Uint(c.Param("index"))
	if err != nil {
		httputil.Error(c, err)
		return
	}

	slot, err := h.service.WithdrawCollateral(c.Request.Context(), caller, index)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (h *Handler) ListCollaterals(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	slots, err := h.service.GetUserCollaterals(c.Request.Context(), user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (h *Handler) GetCollateral(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	index, err := httputil.Uint(c.Param("index"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	slot, err := h.service.GetCollateral(c.Request.Context(), user, index)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// GetSummary returns the total active value and the collateral sub-score
func (h *Handler) GetSummary(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	total, err := h.service.GetTotalCollateralValue(ctx, user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	score, err := h.service.CalculateCollateralScore(ctx, user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_value": total, "collateral_score": score})
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	supported := router.Group("/supported-tokens")
	{
		supported.GET("", h.ListSupportedTokens)
		supported.PUT("/:token", requireAuth, h.AddSupportedToken)
	}

	collateral := router.Group("/collateral")
	{
		collateral.POST("", requireAuth, h.Deposit)
		collateral.POST("/:index/withdraw", requireAuth, h.Withdraw)
		collateral.GET("/:address", h.ListCollaterals)
		collateral.GET("/:address/summary", h.GetSummary)
		collateral.GET("/:address/slots/:index", h.GetCollateral)
	}
}
