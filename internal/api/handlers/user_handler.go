package handlers

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"user-api/internal/domain/user"
	"user-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UsersRoute is the base path of the user resource
const UsersRoute = "/api/users"

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService user.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService user.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// userList is the XML form of a user listing
type userList struct {
	XMLName xml.Name        `xml:"users"`
	Users   []user.UserView `xml:"user"`
}

// paginationHeader is serialized into X-Pagination
type paginationHeader struct {
	PreviousPageLink *string `json:"previousPageLink"`
	NextPageLink     *string `json:"nextPageLink"`
	TotalCount       int64   `json:"totalCount"`
	PageSize         int     `json:"pageSize"`
	CurrentPage      int     `json:"currentPage"`
	TotalPages       int     `json:"totalPages"`
}

// GetUser handles GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	u, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	respond(c, http.StatusOK, u.ToView(), nil)
}

// HeadUser handles HEAD /api/users/:id
func (h *UserHandler) HeadUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if _, err := h.userService.GetUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.Status(http.StatusNotFound)
		} else {
			logger.Error("Failed to check user %s: %v", id, err)
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Header("Content-Type", negotiatedContentType(c))
	c.Status(http.StatusOK)
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req user.CreateUserRequest
	if !bindBody(c, &req) {
		respondError(c, http.StatusBadRequest, "Invalid request format", nil)
		return
	}

	created, err := h.userService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.respondCreated(c, created.ID)
}

// UpdateUser handles PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req user.UpdateUserRequest
	if !bindBody(c, &req) {
		respondError(c, http.StatusBadRequest, "Invalid request format", nil)
		return
	}

	u, inserted, err := h.userService.UpsertUser(c.Request.Context(), id, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if inserted {
		h.respondCreated(c, u.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

// PatchUser handles PATCH /api/users/:id
func (h *UserHandler) PatchUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var doc user.PatchDocument
	data, err := c.GetRawData()
	if err != nil || json.Unmarshal(data, &doc) != nil || doc == nil {
		respondError(c, http.StatusBadRequest, "Invalid patch document", nil)
		return
	}

	if err := h.userService.PatchUser(c.Request.Context(), id, doc); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteUser handles DELETE /api/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	req := user.NewPageRequest(
		queryInt(c, "pageNumber", user.DefaultPageNumber),
		queryInt(c, "pageSize", user.DefaultPageSize),
	)

	page, err := h.userService.ListUsers(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	header := paginationHeader{
		TotalCount:  page.TotalCount,
		PageSize:    page.PageSize,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
	}
	if page.HasPrevious() {
		link := h.pageLink(c, page.CurrentPage-1, page.PageSize)
		header.PreviousPageLink = &link
	}
	if page.HasNext() {
		link := h.pageLink(c, page.CurrentPage+1, page.PageSize)
		header.NextPageLink = &link
	}

	encoded, err := json.Marshal(header)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("X-Pagination", string(encoded))

	views := user.ToViews(page.Items)
	respond(c, http.StatusOK, views, userList{Users: views})
}

func (h *UserHandler) pageLink(c *gin.Context, pageNumber, pageSize int) string {
	query := url.Values{}
	query.Set("pageNumber", strconv.Itoa(pageNumber))
	query.Set("pageSize", strconv.Itoa(pageSize))
	return absoluteURL(c, UsersRoute, query)
}

func (h *UserHandler) respondCreated(c *gin.Context, id uuid.UUID) {
	c.Header("Location", absoluteURL(c, UsersRoute+"/"+id.String(), nil))
	respond(c, http.StatusCreated, id, createdID{Value: id.String()})
}

func (h *UserHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

// handleError maps service errors onto HTTP responses
func (h *UserHandler) handleError(c *gin.Context, err error) {
	var verr *user.ValidationError

	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusUnprocessableEntity, "Validation failed", verr.Fields)
	case errors.Is(err, user.ErrUserNotFound):
		respondError(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, user.ErrEmptyRequest), errors.Is(err, user.ErrInvalidUserID):
		respondError(c, http.StatusBadRequest, err.Error(), nil)
	default:
		logger.Error("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}

// queryInt reads an integer query parameter, falling back to def when it is
// absent or malformed
func queryInt(c *gin.Context, key string, def int) int {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
