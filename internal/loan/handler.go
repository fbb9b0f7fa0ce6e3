package loan

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/httputil"
)

// maxDurationSeconds is the longest duration time.Duration can hold.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type recordLoanRequest struct {
	User         string `json:"user" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	InterestRate uint32 `json:"interest_rate"`
	// Duration in seconds
	Duration int64 `json:"duration" binding:"required"`
}

type closeLoanRequest struct {
	User   string `json:"user" binding:"required"`
	Amount string `json:"amount"`
}

func (h *Handler) RecordLoan(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	var req recordLoanRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	user, err := httputil.Address(req.User)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	amount, err := httputil.Amount(req.Amount)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	if req.Duration <= 0 || req.Duration > maxDurationSeconds {
		httputil.Error(c, apperr.ErrInvalidInput)
		return
	}

	id, err := h.service.RecordLoan(c.Request.Context(), caller, user, amount, req.InterestRate, time.Duration(req.Duration)*time.Second)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"loan_id": id})
}

func (h *Handler) RecordRepayment(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	id, err := httputil.Uint(c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	var req closeLoanRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	user, err := httputil.Address(req.User)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	repaid, err := httputil.Amount(req.Amount)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	if err := h.service.RecordRepayment(c.Request.Context(), caller, user, id, repaid); err != nil {
		httputil.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RecordDefault(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	id, err := httputil.Uint(c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	var req closeLoanRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	user, err := httputil.Address(req.User)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	if err := h.service.RecordDefault(c.Request.Context(), caller, user, id); err != nil {
		httputil.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetLoan(c *gin.Context) {
	id, err := httputil.Uint(c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	record, err := h.service.GetLoan(c.Request.Context(), id)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) GetHistory(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	loans, err := h.service.GetUserLoanHistory(c.Request.Context(), user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (h *Handler) GetStats(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	stats, err := h.service.GetUserLoanStats(ctx, user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	score, err := h.service.CalculateHistoricalScore(ctx, user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "historical_score": score})
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	loans := router.Group("/loans")
	{
		loans.POST("", requireAuth, h.RecordLoan)
		loans.GET("/:id", h.GetLoan)
		loans.POST("/:id/repay", requireAuth, h.RecordRepayment)
		loans.POST("/:id/default", requireAuth, h.RecordDefault)
	}

	users := router.Group("/users/:address")
	{
		users.GET("/loans", h.GetHistory)
		users.GET("/loan-stats", h.GetStats)
	}
}
