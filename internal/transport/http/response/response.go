package response

import "github.com/gin-gonic/gin"

// Error writes the uniform error envelope. Internal detail never crosses
// this boundary: callers pass pre-sanitized messages.
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}
