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

// GalleryHandler wires the photo gallery endpoints.
type GalleryHandler struct {
	service *service.GalleryService
}

// NewGalleryHandler creates a new handler.
func NewGalleryHandler(svc *service.GalleryService) *GalleryHandler {
	return &GalleryHandler{service: svc}
}

// Upload godoc
// @Summary      Upload gallery image
// @Tags         gallery
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Image file"
// @Success      201 {object} response.Envelope
// @Security     BearerAuth
// @Router       /admin/gallery [post]
func (h *GalleryHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	input := service.GalleryUploadInput{
		Title:    c.PostForm("title"),
		Album:    c.PostForm("album"),
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		FileSize: fileHeader.Size,
		File:     file,
	}
	if description := c.PostForm("description"); description != "" {
		input.Description = &description
	}
	if raw := c.PostForm("is_published"); raw != "" {
		published, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "is_published must be a boolean"))
			return
		}
		input.IsPublished = published
	}

	item, err := h.service.Upload(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// List returns gallery items with optional filters.
func (h *GalleryHandler) List(c *gin.Context) {
	filter := models.GalleryFilter{Album: c.Query("album")}
	if raw := c.Query("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "published must be a boolean"))
			return
		}
		filter.Published = &published
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListPublic returns only published gallery items.
func (h *GalleryHandler) ListPublic(c *gin.Context) {
	published := true
	items, err := h.service.List(c.Request.Context(), models.GalleryFilter{
		Album:     c.Query("album"),
		Published: &published,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Albums returns the distinct album names.
func (h *GalleryHandler) Albums(c *gin.Context) {
	albums, err := h.service.Albums(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, albums, nil)
}

// Get returns a single gallery item.
func (h *GalleryHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Update edits gallery item metadata.
func (h *GalleryHandler) Update(c *gin.Context) {
	var req service.GalleryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid gallery payload"))
		return
	}

	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete removes a gallery item and its stored file.
func (h *GalleryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
