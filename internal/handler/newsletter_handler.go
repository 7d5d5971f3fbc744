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

// NewsletterHandler wires the parent newsletter endpoints.
type NewsletterHandler struct {
	service *service.NewsletterService
}

// NewNewsletterHandler creates a new handler.
func NewNewsletterHandler(svc *service.NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{service: svc}
}

// Create godoc
// @Summary      Create newsletter draft
// @Tags         newsletters
// @Accept       json
// @Produce      json
// @Param        payload body service.CreateNewsletterRequest true "Newsletter"
// @Success      201 {object} response.Envelope
// @Security     BearerAuth
// @Router       /admin/newsletters [post]
func (h *NewsletterHandler) Create(c *gin.Context) {
	var req service.CreateNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid newsletter payload"))
		return
	}

	newsletter, err := h.service.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, newsletter)
}

// List returns newsletters with pagination and an optional status filter.
func (h *NewsletterHandler) List(c *gin.Context) {
	filter := models.NewsletterFilter{
		Status: models.NewsletterStatus(c.Query("status")),
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page must be an integer"))
			return
		}
		filter.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "page_size must be an integer"))
			return
		}
		filter.PageSize = size
	}

	newsletters, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, newsletters, pagination)
}

// Get returns one newsletter.
func (h *NewsletterHandler) Get(c *gin.Context) {
	newsletter, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, newsletter, nil)
}

// Update rewrites a draft or scheduled newsletter.
func (h *NewsletterHandler) Update(c *gin.Context) {
	var req service.UpdateNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid newsletter payload"))
		return
	}

	newsletter, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, newsletter, nil)
}

// Delete removes a newsletter that is not mid-dispatch.
func (h *NewsletterHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Send godoc
// @Summary      Dispatch a newsletter to its audience
// @Tags         newsletters
// @Produce      json
// @Param        id path string true "Newsletter ID"
// @Success      202 {object} response.Envelope
// @Security     BearerAuth
// @Router       /admin/newsletters/{id}/send [post]
func (h *NewsletterHandler) Send(c *gin.Context) {
	result, err := h.service.Send(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, result, nil)
}

// Recipients lists per-recipient delivery rows plus a status summary.
func (h *NewsletterHandler) Recipients(c *gin.Context) {
	recipients, summary, err := h.service.Recipients(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"recipients": recipients,
		"summary":    summary,
	}, nil)
}
