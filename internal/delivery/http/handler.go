package http

import (
	"errors"
	"net/http"

	"github.com/dealsheet/backend/internal/domain"
	"github.com/dealsheet/backend/internal/usecase"
	"github.com/dealsheet/backend/logger"
	"github.com/gin-gonic/gin"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	deals *usecase.DealService
	log   *logger.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deals *usecase.DealService) *Handler {
	return &Handler{
		deals: deals,
		log:   logger.ForHTTP(),
	}
}

// observationBody accepts any JSON for both fields: a title that is not a
// string counts as missing and a price that is not a string counts as null.
type observationBody struct {
	ProductTitle interface{} `json:"productTitle"`
	WowDealPrice interface{} `json:"wowDealPrice"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "dealsheet-backend",
		"version": "1.0.0",
	})
}

// RecordPrice handles POST /api/prices
func (h *Handler) RecordPrice(c *gin.Context) {
	var body observationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	title, _ := body.ProductTitle.(string)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing productTitle"})
		return
	}

	request := &domain.ObservationRequest{ProductTitle: title}
	if price, ok := body.WowDealPrice.(string); ok {
		request.WowDealPrice = &price
	}

	if err := h.deals.RecordObservation(c.Request.Context(), request); err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing productTitle"})
			return
		}
		h.log.Error().Err(err).Str("product_title", title).Msg("Failed to record observation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetPrice handles GET /api/prices/:productTitle
func (h *Handler) GetPrice(c *gin.Context) {
	title := c.Param("productTitle")

	comparison, err := h.deals.Compare(c.Request.Context(), title)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		h.log.Error().Err(err).Str("product_title", title).Msg("Failed to compare prices")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, comparison)
}
