// Package controllers holds the gin handlers for the Voya agent API.
package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyahq/voya-agent/memory"
)

// errorKind maps store errors onto the API error taxonomy.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, memory.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, memory.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, memory.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "storage_error"
	}
}

func abortWithError(c *gin.Context, err error) {
	status, kind := errorKind(err)
	c.JSON(status, gin.H{"error": kind, "message": err.Error()})
}

func abortValidation(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": message})
}
