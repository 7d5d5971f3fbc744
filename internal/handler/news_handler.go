package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-site-api/internal/models"
	"github.com/noah-isme/school-site-api/internal/service"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/response"
)

// NewsHandler wires the news article endpoints.
type NewsHandler struct {
	service *service.NewsService
}

// NewNewsHandler creates a new handler.
func NewNewsHandler(svc *service.NewsService) *NewsHandler {
	return &NewsHandler{service: svc}
}

// List returns articles, optionally restricted to published ones.
func (h *NewsHandler) List(c *gin.Context) {
	publishedOnly := false
	if raw := c.Query("published"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "published must be a boolean"))
			return
		}
		publishedOnly = parsed
	}

	articles, err := h.service.List(c.Request.Context(), publishedOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, articles, nil)
}

// ListPublic returns only published articles.
func (h *NewsHandler) ListPublic(c *gin.Context) {
	articles, err := h.service.List(c.Request.Context(), true)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, articles, nil)
}

// Get returns one article regardless of publish state.
func (h *NewsHandler) Get(c *gin.Context) {
	article, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, article, nil)
}

// GetPublic returns one published article.
func (h *NewsHandler) GetPublic(c *gin.Context) {
	article, err := h.service.GetPublished(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, article, nil)
}

// Create adds an article attributed to the authenticated admin.
func (h *NewsHandler) Create(c *gin.Context) {
	var req service.NewsArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid article payload"))
		return
	}

	var author *models.UserInfo
	if claims := claimsFromContext(c); claims != nil {
		author = &models.UserInfo{ID: claims.UserID, FullName: claims.FullName, Email: claims.Email, Role: claims.Role}
	}

	article, err := h.service.Create(c.Request.Context(), req, author)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, article)
}

// Update rewrites an article.
func (h *NewsHandler) Update(c *gin.Context) {
	var req service.NewsArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid article payload"))
		return
	}

	article, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, article, nil)
}

// Delete removes an article.
func (h *NewsHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
