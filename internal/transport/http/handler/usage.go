package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gemmachat/internal/transport/http/middleware"
	"gemmachat/internal/transport/http/response"
	"gemmachat/internal/usage"
)

type UsageHandler struct {
	counter *usage.Counter
}

func NewUsageHandler(counter *usage.Counter) *UsageHandler {
	return &UsageHandler{counter: counter}
}

// Today reports the caller's chat request count for the current day. The
// count is eventually consistent: events flow through the usage queue.
func (h *UsageHandler) Today(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid session context")
		return
	}

	count, err := h.counter.Today(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "read usage failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"today": count})
}
