package identity

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/httputil"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	DID         string `json:"did" binding:"required"`
	ProfileHash string `json:"profile_hash"`
}

type profileHashRequest struct {
	ProfileHash string `json:"profile_hash" binding:"required"`
}

// parseHash accepts an empty string as the zero hash.
func parseHash(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: profile hash must be 32 bytes of hex", apperr.ErrInvalidInput)
	}
	return common.BytesToHash(b), nil
}

func (h *Handler) Register(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	var req registerRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	hash, err := parseHash(req.ProfileHash)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	profile, err := h.service.Register(c.Request.Context(), caller, req.DID, hash)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *Handler) Verify(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}

	if err := h.service.Verify(c.Request.Context(), caller, user); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": user.Hex(), "is_verified": true})
}

func (h *Handler) UpdateProfileHash(c *gin.Context) {
	caller, ok := httputil.Caller(c)
	if !ok {
		return
	}
	var req profileHashRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	hash, err := parseHash(req.ProfileHash)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	if err := h.service.UpdateProfileHash(c.Request.Context(), caller, hash); err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile_hash": hash.Hex()})
}

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := httputil.Address(c.Param("address"))
	if err != nil {
		httputil.Error(c, err)
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), user)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) ResolveDID(c *gin.Context) {
	did := c.Param("did")
	address, err := h.service.ResolveDID(c.Request.Context(), did)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"did": did, "address": address.Hex()})
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	identity := router.Group("/identity")
	{
		identity.POST("", requireAuth, h.Register)
		identity.PUT("/profile-hash", requireAuth, h.UpdateProfileHash)
		identity.POST("/:address/verify", requireAuth, h.Verify)
		identity.GET("/:address", h.GetProfile)
	}
	router.GET("/dids/:did", h.ResolveDID)
}
