package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gemmachat/internal/employee"
	"gemmachat/internal/transport/http/middleware"
	"gemmachat/internal/transport/http/response"
)

type EmployeeHandler struct {
	client *employee.Client
}

func NewEmployeeHandler(client *employee.Client) *EmployeeHandler {
	return &EmployeeHandler{client: client}
}

// Search proxies employee directory lookups. The caller's own bearer token
// travels with the upstream request.
func (h *EmployeeHandler) Search(c *gin.Context) {
	searchType := c.DefaultQuery("type", "name")
	if searchType != "name" && searchType != "position" {
		response.Error(c, http.StatusBadRequest, "type must be name or position")
		return
	}
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		response.Error(c, http.StatusBadRequest, "query is required")
		return
	}

	token, _ := middleware.TokenFromContext(c)
	results, err := h.client.Search(c.Request.Context(), searchType, query, token)
	if err != nil {
		if errors.Is(err, employee.ErrUnavailable) {
			response.Error(c, http.StatusServiceUnavailable, "employee search unavailable")
			return
		}
		response.Error(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.Data(http.StatusOK, "application/json", results)
}
