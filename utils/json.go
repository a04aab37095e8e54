package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success writes the plain acknowledgment body.
func Success(c *gin.Context, message string) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	c.JSON(http.StatusOK, body)
}

// Fail writes an error JSON response.
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"error": msg,
	})
}
