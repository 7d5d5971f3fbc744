package handler

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-site-api/internal/middleware"
	"github.com/noah-isme/school-site-api/internal/models"
	"github.com/noah-isme/school-site-api/internal/service"
)

type docRepoStub struct {
	created []*models.Document
}

func (s *docRepoStub) Create(ctx context.Context, doc *models.Document) error {
	s.created = append(s.created, doc)
	return nil
}

func (s *docRepoStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	return nil, sql.ErrNoRows
}

func (s *docRepoStub) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	return nil, nil
}

func (s *docRepoStub) Update(ctx context.Context, doc *models.Document) error { return nil }
func (s *docRepoStub) Delete(ctx context.Context, id string) error            { return nil }
func (s *docRepoStub) Categories(ctx context.Context) ([]string, error)       { return nil, nil }
func (s *docRepoStub) Stats(ctx context.Context) (*models.DocumentStats, error) {
	return &models.DocumentStats{}, nil
}

type docStoreStub struct {
	saved []string
}

func (s *docStoreStub) SaveStream(filename string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.saved = append(s.saved, filename)
	return filename, nil
}

func (s *docStoreStub) Open(filename string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (s *docStoreStub) Delete(filename string) error { return nil }

func newDocumentTestHandler(repo *docRepoStub, store *docStoreStub) *DocumentHandler {
	svc := service.NewDocumentService(repo, store, nil, &authRepoStub{}, nil, nil, service.UploadLimits{
		MaxDocumentBytes: 1 << 20,
		MaxImageBytes:    512 << 10,
		DocumentMIMEs:    []string{"application/pdf"},
		ImageMIMEs:       []string{"image/png"},
	})
	return NewDocumentHandler(svc, service.NewMetricsService())
}

func multipartUpload(t *testing.T, filename, mimeType string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, "/admin/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentHandlerUploadMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDocumentTestHandler(&docRepoStub{}, &docStoreStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/admin/documents", nil)

	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerUploadRejectsUnsupportedType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &docRepoStub{}
	store := &docStoreStub{}
	handler := newDocumentTestHandler(repo, store)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartUpload(t, "payload.exe", "application/x-msdownload", []byte("MZ"), map[string]string{
		"title": "Malware",
	})

	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, repo.created)
	assert.Empty(t, store.saved)
}

func TestDocumentHandlerUploadIgnoresDeclaredContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &docRepoStub{}
	store := &docStoreStub{}
	handler := newDocumentTestHandler(repo, store)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	// The part header claims PDF but the bytes are plain text; the sniffed
	// type decides.
	c.Request = multipartUpload(t, "handbook.pdf", "application/pdf", []byte("just some text"), map[string]string{
		"title": "Mislabeled",
	})

	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, repo.created)
	assert.Empty(t, store.saved)
}

func TestDocumentHandlerUploadCreatesDocument(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &docRepoStub{}
	store := &docStoreStub{}
	handler := newDocumentTestHandler(repo, store)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartUpload(t, "handbook.pdf", "application/pdf", []byte("%PDF-1.4"), map[string]string{
		"title":    "Student Handbook",
		"category": "forms",
		"tags":     "handbook, policy",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", FullName: "Admin", Role: models.RoleAdmin})

	handler.Upload(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "forms", repo.created[0].Category)
	assert.Len(t, store.saved, 1)
}

func TestDocumentHandlerListRejectsBadPublishedFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDocumentTestHandler(&docRepoStub{}, &docStoreStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/admin/documents?published=notabool", nil)

	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
