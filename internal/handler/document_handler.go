package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-site-api/internal/models"
	"github.com/noah-isme/school-site-api/internal/service"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/response"
)

// DocumentHandler wires the document library endpoints.
type DocumentHandler struct {
	service *service.DocumentService
	metrics *service.MetricsService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc *service.DocumentService, metrics *service.MetricsService) *DocumentHandler {
	return &DocumentHandler{service: svc, metrics: metrics}
}

// Upload godoc
// @Summary Upload a document
// @Description Accepts a multipart file plus metadata fields
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Param title formData string true "Title"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
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

	mimeType, err := sniffContentType(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}

	published, _ := strconv.ParseBool(c.PostForm("is_published"))
	input := service.UploadDocumentInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		Tags:        splitTags(c.PostForm("tags")),
		IsPublished: published,
		FileName:    fileHeader.Filename,
		MimeType:    mimeType,
		FileSize:    fileHeader.Size,
		File:        file,
	}
	if claims := claimsFromContext(c); claims != nil {
		input.AuthorID = &claims.UserID
		input.AuthorName = &claims.FullName
	}

	doc, err := h.service.Upload(c.Request.Context(), input)
	if err != nil {
		h.metrics.RecordUpload(false, 0)
		response.Error(c, err)
		return
	}
	h.metrics.RecordUpload(true, doc.FileSize)
	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param category query string false "Category"
// @Param tag query string false "Tag"
// @Param search query string false "Search"
// @Success 200 {object} response.Envelope
// @Router /admin/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	filter := models.DocumentFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Tag:      c.Query("tag"),
	}
	if raw := c.Query("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "published must be a boolean"))
			return
		}
		filter.Published = &published
	}

	docs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// ListPublic is the anonymous listing: only published documents appear.
func (h *DocumentHandler) ListPublic(c *gin.Context) {
	published := true
	filter := models.DocumentFilter{
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		Tag:       c.Query("tag"),
		Published: &published,
	}

	docs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Get returns one document for the admin console.
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// GetPublic returns one published document.
func (h *DocumentHandler) GetPublic(c *gin.Context) {
	doc, err := h.service.GetPublished(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Update godoc
// @Summary Update document metadata
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	var req struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Category    *string  `json:"category"`
		Tags        []string `json:"tags"`
		IsPublished *bool    `json:"is_published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}

	doc, err := h.service.Update(c.Request.Context(), c.Param("id"), service.UpdateDocumentInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublished: req.IsPublished,
	}, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Publish flips the publish flag.
func (h *DocumentHandler) Publish(c *gin.Context) {
	var req struct {
		IsPublished bool `json:"is_published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid publish payload"))
		return
	}

	doc, err := h.service.SetPublished(c.Request.Context(), c.Param("id"), req.IsPublished, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete removes a document.
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Categories returns the distinct categories in use.
func (h *DocumentHandler) Categories(c *gin.Context) {
	categories, err := h.service.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Stats returns aggregate counts for the admin dashboard.
func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// SignedURL issues a short-lived download token for a published document.
func (h *DocumentHandler) SignedURL(c *gin.Context) {
	signed, err := h.service.SignedDownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed, nil)
}

// Download streams the file referenced by a signed token.
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, file, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.Header("Content-Type", doc.MimeType)
	c.DataFromReader(http.StatusOK, doc.FileSize, doc.MimeType, file, nil)
}

// sniffContentType derives the MIME type from the file's leading bytes
// instead of trusting the client-declared part header.
func sniffContentType(file multipart.File) (string, error) {
	header := make([]byte, 512)
	n, err := file.Read(header)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return "", errors.New("empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
