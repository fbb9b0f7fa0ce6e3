package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/httputil"
	"github.com/huudong03uet/credit-scoring/internal/models"
)

const defaultFreshnessDays = 30

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) SetOnChain(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	var m models.OnChainMetrics
	if !httputil.BindJSON(c, &m) {
		return
	}

	if err := h.service.SetOnChainMetrics(c.Request.Context(), caller, user, &m); err != nil {
		httputil.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetOffChain(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	var m models.OffChainMetrics
	if !httputil.BindJSON(c, &m) {
		return
	}

	if err := h.service.SetOffChainMetrics(c.Request.Context(), caller, user, &m); err != nil {
		httputil.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetOnChain(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	m, err := h.service.GetOnChainMetrics(c.Request.Context(), user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetOffChain(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	m, err := h.service.GetOffChainMetrics(c.Request.Context(), user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetSubScores(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	onChain, err := h.service.OnChainSubScore(ctx, user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	offChain, err := h.service.OffChainSubScore(ctx, user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"on_chain_score": onChain, "off_chain_score": offChain})
}

func (h *Handler) GetFreshness(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("max_age_days", strconv.Itoa(defaultFreshnessDays)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_age_days", "code": "INVALID_INPUT"})
		return
	}

	fresh, err := h.service.IsDataFresh(c.Request.Context(), user, days)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_fresh": fresh, "max_age_days": days})
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	m := router.Group("/metrics/:address")
	{
		m.PUT("/on-chain", requireAuth, h.SetOnChain)
		m.PUT("/off-chain", requireAuth, h.SetOffChain)
		m.GET("/on-chain", h.GetOnChain)
		m.GET("/off-chain", h.GetOffChain)
		m.GET("/scores", h.GetSubScores)
		m.GET("/freshness", h.GetFreshness)
	}
}
