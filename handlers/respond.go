package handlers

import (
	"github.com/gin-gonic/gin"

	"sonora/types"
)

// apiError writes the consistent error envelope.
func apiError(c *gin.Context, status int, code, message string) {
	c.JSON(status, types.ErrorResponse{
		Error: types.APIError{Code: code, Message: message},
	})
}
