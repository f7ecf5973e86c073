package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supatable-api/internal/models"
	"github.com/noah-isme/supatable-api/internal/service"
	"github.com/noah-isme/supatable-api/pkg/response"
)

type userLister interface {
	List(ctx context.Context, query service.ListUsersQuery) (*models.UserPage, *models.Pagination, error)
}

// UserHandler serves the REST alias of the users query.
type UserHandler struct {
	service userLister
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userLister) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users newest first with search, role filter and offset pagination
// @Tags Users
// @Produce json
// @Param search query string false "Case-insensitive match on email, full name or role"
// @Param role query string false "Role filter (All, Admin, Manager, User)"
// @Param offset query int false "Rows to skip"
// @Param limit query int false "Page size (1-200, default 50)"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /api/v1/users [get]
func (h *UserHandler) List(c *gin.Context) {
	query := service.ListUsersQuery{
		Search: c.Query("search"),
		Role:   c.DefaultQuery("role", string(models.RoleAll)),
		Limit:  models.DefaultUserLimit,
	}

	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		query.Offset = offset
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultUserLimit))); err == nil {
		query.Limit = limit
	}

	page, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, page.Items, pagination)
}
