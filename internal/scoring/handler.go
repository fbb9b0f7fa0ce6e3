package scoring

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/httputil"
	"github.com/sirupsen/logrus"
)

// maxBatchSize bounds a single batch request.
const maxBatchSize = 100

// Explainer adds a human readable explanation to a score summary.
type Explainer interface {
	Explain(ctx context.Context, user common.Address) (string, error)
}

type Handler struct {
	service   Service
	explainer Explainer
}

// NewHandler creates a scoring handler. explainer may be nil.
func NewHandler(service Service, explainer Explainer) *Handler {
	return &Handler{service: service, explainer: explainer}
}

type batchRequest struct {
	Users []string `json:"users" binding:"required"`
}

type batchItem struct {
	User    string      `json:"user"`
	Profile interface{} `json:"profile,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func (h *Handler) Calculate(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}

	profile, err := h.service.CalculateCreditScore(c.Request.Context(), caller, user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) BatchCalculate(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	var req batchRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	if len(req.Users) == 0 || len(req.Users) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "users must hold 1-100 addresses", "code": "INVALID_INPUT"})
		return
	}
	users := make([]common.Address, 0, len(req.Users))
	for _, raw := range req.Users {
		user, err := httputil.Address(raw)
		if err != nil {
			httputil.Error(c, err)
			return
		}
		users = append(users, user)
	}

	results, err := h.service.BatchCalculateScores(c.Request.Context(), caller, users)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	items := make([]batchItem, 0, len(results))
	for _, res := range results {
		item := batchItem{User: res.User.Hex()}
		if res.Err != nil {
			item.Error = res.Err.Error()
			item.Code = apperr.Code(res.Err)
		} else {
			item.Profile = res.Profile
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (h *Handler) GetScore(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	profile, err := h.service.GetCreditScore(c.Request.Context(), user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) GetValidity(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	valid, err := h.service.IsScoreValid(c.Request.Context(), user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_valid": valid})
}

// GetSummary returns the score summary. With ?explain=true the optional
// explanation service is consulted; its failures never fail the request.
func (h *Handler) GetSummary(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	summary, err := h.service.GetCreditSummary(ctx, user)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	if h.explainer != nil && c.Query("explain") == "true" {
		explanation, err := h.explainer.Explain(ctx, user)
		if err != nil {
			logrus.WithError(err).WithField("user", user.Hex()).Warn("Score explanation unavailable")
		} else {
			summary.Explanation = explanation
		}
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetHistory(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	raw, err := httputil.Uint(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	limit := maxHistoryLimit
	if raw < uint64(maxHistoryLimit) {
		limit = int(raw)
	}

	history, err := h.service.GetScoreHistory(c.Request.Context(), user, limit)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	router.POST("/batch/scores", requireAuth, h.BatchCalculate)

	scores := router.Group("/scores")
	{
		scores.POST("/:address", requireAuth, h.Calculate)
		scores.GET("/:address", h.GetScore)
		scores.GET("/:address/validity", h.GetValidity)
		scores.GET("/:address/summary", h.GetSummary)
		scores.GET("/:address/history", h.GetHistory)
	}
}
