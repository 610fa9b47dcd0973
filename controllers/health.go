package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports liveness for hosting platforms.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "Voya Agent API",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}
