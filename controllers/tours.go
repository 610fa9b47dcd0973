package controllers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyahq/voya-agent/memory"
	"github.com/voyahq/voya-agent/viator"
)

type TourController struct {
	viator *viator.Client
	store  *memory.Store
	logger *slog.Logger
}

func NewTourController(client *viator.Client, store *memory.Store) *TourController {
	return &TourController{viator: client, store: store, logger: slog.Default()}
}

type tourSearchRequest struct {
	Query       string `json:"query"`
	Destination string `json:"destination" binding:"required"`
	Date        string `json:"date"`
	Limit       int    `json:"limit"`
}

// Search queries Viator directly and writes results through to the tour
// cache.
func (tc *TourController) Search(c *gin.Context) {
	var req tourSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "destination is required")
		return
	}
	limit := req.Limit
	if limit <= 0 || limit > 20 {
		limit = 5
	}

	ctx := c.Request.Context()
	tours, err := tc.viator.SearchTours(ctx, req.Query, req.Destination, req.Date, limit)
	if err != nil {
		tc.logger.Error("Viator search failed", "destination", req.Destination, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_error", "message": err.Error()})
		return
	}
	if err := tc.store.CacheTours(ctx, tours); err != nil {
		tc.logger.Error("Error caching tours", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Found %d tours", len(tours)),
		"tours":       tours,
		"destination": req.Destination,
	})
}
