package token

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/httputil"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount" binding:"required"`
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (h *Handler) CreateToken(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	var token models.Token
	if !httputil.BindJSON(c, &token) {
		return
	}

	if err := h.service.CreateToken(c.Request.Context(), caller, &token); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

func (h *Handler) GetToken(c *gin.Context) {
	address, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	token, err := h.service.GetToken(c.Request.Context(), address)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *Handler) ListTokens(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tokens, err := h.service.ListTokens(c.Request.Context(), limit, offset)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) SetPrice(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	address, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	var req priceRequest
	if !httputil.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetPrice(c.Request.Context(), caller, address, req.Price); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": address.Hex(), "price": req.Price})
}

// transfer-style endpoints share the {to, amount} body
func (h *Handler) withAmount(c *gin.Context, fn func(c *gin.Context, req amountRequest, amount decimal.Decimal) error) {
	var req amountRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	amount, err := httputil.Amount(req.Amount)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	if err := fn(c, req, amount); err != nil {
		httputil.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Mint(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	h.withAmount(c, func(c *gin.Context, req amountRequest, amount decimal.Decimal) error {
		token, err := httputil.Address(c.Param("address"))
		if err != nil {
			return err
		}
		to, err := httputil.Address(req.To)
		if err != nil {
			return err
		}
		return h.service.Mint(c.Request.Context(), caller, token, to, amount)
	})
}

func (h *Handler) Transfer(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	h.withAmount(c, func(c *gin.Context, req amountRequest, amount decimal.Decimal) error {
		token, err := httputil.Address(c.Param("address"))
		if err != nil {
			return err
		}
		to, err := httputil.Address(req.To)
		if err != nil {
			return err
		}
		return h.service.Transfer(c.Request.Context(), caller, token, to, amount)
	})
}

func (h *Handler) Approve(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	h.withAmount(c, func(c *gin.Context, req amountRequest, amount decimal.Decimal) error {
		token, err := httputil.Address(c.Param("address"))
		if err != nil {
			return err
		}
		spender, err := httputil.Address(req.To)
		if err != nil {
			return err
		}
		return h.service.Approve(c.Request.Context(), caller, token, spender, amount)
	})
}

func (h *Handler) GetBalance(c *gin.Context) {
	token, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	account, err := httputil.Address(c.Param("account"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	balance, err := h.service.BalanceOf(c.Request.Context(), token, account)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token.Hex(), "account": account.Hex(), "balance": balance})
}

func (h *Handler) GetAllowance(c *gin.Context) {
	token, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	owner, err := httputil.Address(c.Param("owner"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	spender, err := httputil.Address(c.Param("spender"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	amount, err := h.service.Allowance(c.Request.Context(), token, owner, spender)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token.Hex(), "owner": owner.Hex(), "spender": spender.Hex(), "allowance": amount})
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	tokens := router.Group("/tokens")
	{
		tokens.GET("", h.ListTokens)
		tokens.POST("", requireAuth, h.CreateToken)
		tokens.GET("/:address", h.GetToken)
		tokens.PUT("/:address/price", requireAuth, h.SetPrice)
		tokens.POST("/:address/mint", requireAuth, h.Mint)
		tokens.POST("/:address/transfer", requireAuth, h.Transfer)
		tokens.POST("/:address/approve", requireAuth, h.Approve)
		tokens.GET("/:address/balances/:account", h.GetBalance)
		tokens.GET("/:address/allowances/:owner/:spender", h.GetAllowance)
	}
}
