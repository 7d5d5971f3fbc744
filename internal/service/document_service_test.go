package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/storage"
)

type mockDocumentRepo struct {
	docs       map[string]*models.Document
	createErr  error
	listFilter models.DocumentFilter
	deleted    []string
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.docs == nil {
		m.docs = make(map[string]*models.Document)
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if doc, ok := m.docs[id]; ok {
		return doc, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	m.listFilter = filter
	var out []models.Document
	for _, doc := range m.docs {
		if filter.Category != "" && doc.Category != filter.Category {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (m *mockDocumentRepo) Update(ctx context.Context, doc *models.Document) error {
	m.docs[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.docs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDocumentRepo) Categories(ctx context.Context) ([]string, error) {
	return []string{"enrollment", "policies"}, nil
}

func (m *mockDocumentRepo) Stats(ctx context.Context) (*models.DocumentStats, error) {
	return &models.DocumentStats{Total: len(m.docs)}, nil
}

type mockStore struct {
	saved      []string
	deleted    []string
	saveErr    error
	openErr    error
	openedBody string
}

func (m *mockStore) SaveStream(filename string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved = append(m.saved, filename)
	return "/tmp/" + filename, nil
}

func (m *mockStore) Open(filename string) (io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return io.NopCloser(strings.NewReader(m.openedBody)), nil
}

func (m *mockStore) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

type mockAuditor struct {
	logs []*models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func testUploadLimits() UploadLimits {
	return UploadLimits{
		MaxDocumentBytes: 1 << 20,
		MaxImageBytes:    512 << 10,
		DocumentMIMEs:    []string{"application/pdf"},
		ImageMIMEs:       []string{"image/png", "image/jpeg"},
	}
}

func newDocumentService(repo *mockDocumentRepo, store *mockStore, auditor *mockAuditor) *DocumentService {
	signer := storage.NewSignedURLSigner("signing-secret", time.Minute)
	return NewDocumentService(repo, store, signer, auditor, validator.New(), zap.NewNop(), testUploadLimits())
}

func TestDocumentServiceUploadRejectsBeforeAnyWrite(t *testing.T) {
	repo := &mockDocumentRepo{}
	store := &mockStore{}
	svc := newDocumentService(repo, store, &mockAuditor{})

	_, err := svc.Upload(context.Background(), UploadDocumentInput{
		Title:    "Malware",
		FileName: "evil.exe",
		MimeType: "application/x-msdownload",
		FileSize: 100,
		File:     strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
	assert.Empty(t, repo.docs)
}

func TestDocumentServiceUploadRejectsOversizedFile(t *testing.T) {
	repo := &mockDocumentRepo{}
	store := &mockStore{}
	svc := newDocumentService(repo, store, &mockAuditor{})

	_, err := svc.Upload(context.Background(), UploadDocumentInput{
		Title:    "Huge",
		FileName: "huge.pdf",
		MimeType: "application/pdf",
		FileSize: 2 << 20,
		File:     strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.Empty(t, store.saved)
}

func TestDocumentServiceUploadDefaultsCategory(t *testing.T) {
	repo := &mockDocumentRepo{}
	store := &mockStore{}
	auditor := &mockAuditor{}
	svc := newDocumentService(repo, store, auditor)

	doc, err := svc.Upload(context.Background(), UploadDocumentInput{
		Title:    "Handbook",
		FileName: "handbook.pdf",
		MimeType: "application/pdf",
		FileSize: 1024,
		Tags:     []string{"Forms", "forms", " POLICY "},
		File:     strings.NewReader("pdf-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDocumentCategory, doc.Category)
	assert.Contains(t, doc.FileURL, "/uploads/documents/"+models.DefaultDocumentCategory+"/")
	assert.ElementsMatch(t, []string{"forms", "policy"}, []string(doc.Tags))
	require.Len(t, store.saved, 1)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionDocumentUpload, auditor.logs[0].Action)
}

func TestDocumentServiceUploadCleansUpFileOnInsertFailure(t *testing.T) {
	repo := &mockDocumentRepo{createErr: errors.New("db down")}
	store := &mockStore{}
	svc := newDocumentService(repo, store, &mockAuditor{})

	_, err := svc.Upload(context.Background(), UploadDocumentInput{
		Title:    "Handbook",
		FileName: "handbook.pdf",
		MimeType: "application/pdf",
		FileSize: 1024,
		File:     strings.NewReader("pdf-bytes"),
	})
	require.Error(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, store.saved, store.deleted)
}

func TestDocumentServiceUploadConfinesCategoryToStorageRoot(t *testing.T) {
	repo := &mockDocumentRepo{}
	store := &mockStore{}
	svc := newDocumentService(repo, store, &mockAuditor{})

	doc, err := svc.Upload(context.Background(), UploadDocumentInput{
		Title:    "Escape Attempt",
		Category: "../../escaped",
		FileName: "handbook.pdf",
		MimeType: "application/pdf",
		FileSize: 1024,
		File:     strings.NewReader("pdf-bytes"),
	})
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.True(t, strings.HasPrefix(store.saved[0], "documents/escaped/"), "stored under %q", store.saved[0])
	assert.NotContains(t, store.saved[0], "..")
	assert.NotContains(t, *doc.FilePath, "..")
}

func TestDocumentServiceUploadDuplicateTitleConflicts(t *testing.T) {
	repo := &mockDocumentRepo{createErr: &pq.Error{Code: "23505", Constraint: "documents_title_key"}}
	store := &mockStore{}
	svc := newDocumentService(repo, store, &mockAuditor{})

	_, err := svc.Upload(context.Background(), UploadDocumentInput{
		Title:    "Handbook",
		FileName: "handbook.pdf",
		MimeType: "application/pdf",
		FileSize: 1024,
		File:     strings.NewReader("pdf-bytes"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, store.saved, store.deleted)
}

func TestDocumentServiceListKeepsCategoryFilter(t *testing.T) {
	path := "documents/enrollment/d1.pdf"
	repo := &mockDocumentRepo{docs: map[string]*models.Document{
		"d1": {ID: "d1", Category: "enrollment", FilePath: &path},
		"d2": {ID: "d2", Category: "policies"},
	}}
	svc := newDocumentService(repo, &mockStore{}, &mockAuditor{})

	docs, err := svc.List(context.Background(), models.DocumentFilter{Category: "enrollment"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "enrollment", docs[0].Category)
	assert.Equal(t, "enrollment", repo.listFilter.Category)
}

func TestDocumentServiceGetPublishedHidesDrafts(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]*models.Document{
		"d1": {ID: "d1", IsPublished: false},
	}}
	svc := newDocumentService(repo, &mockStore{}, &mockAuditor{})

	_, err := svc.GetPublished(context.Background(), "d1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceDeleteRemovesRowThenFile(t *testing.T) {
	path := "documents/policies/d1.pdf"
	repo := &mockDocumentRepo{docs: map[string]*models.Document{
		"d1": {ID: "d1", Category: "policies", FilePath: &path},
	}}
	store := &mockStore{}
	svc := newDocumentService(repo, store, &mockAuditor{})

	require.NoError(t, svc.Delete(context.Background(), "d1", nil))
	assert.Equal(t, []string{"d1"}, repo.deleted)
	assert.Equal(t, []string{path}, store.deleted)
}

func TestDocumentServiceDeleteMissingIDTouchesNoFile(t *testing.T) {
	repo := &mockDocumentRepo{}
	store := &mockStore{}
	svc := newDocumentService(repo, store, &mockAuditor{})

	err := svc.Delete(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.deleted)
}

func TestDocumentServiceSignedDownloadRoundTrip(t *testing.T) {
	path := "documents/policies/d1.pdf"
	repo := &mockDocumentRepo{docs: map[string]*models.Document{
		"d1": {ID: "d1", IsPublished: true, FilePath: &path, FileName: "handbook.pdf"},
	}}
	store := &mockStore{openedBody: "pdf-bytes"}
	svc := newDocumentService(repo, store, &mockAuditor{})

	signed, err := svc.SignedDownloadURL(context.Background(), "d1")
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Token)
	assert.Contains(t, signed.URL, signed.Token)

	doc, rc, err := svc.ResolveDownload(context.Background(), signed.Token)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(body))
	assert.Equal(t, "d1", doc.ID)
}

func TestDocumentServiceSignedDownloadUnpublished(t *testing.T) {
	path := "documents/policies/d1.pdf"
	repo := &mockDocumentRepo{docs: map[string]*models.Document{
		"d1": {ID: "d1", IsPublished: false, FilePath: &path},
	}}
	svc := newDocumentService(repo, &mockStore{}, &mockAuditor{})

	_, err := svc.SignedDownloadURL(context.Background(), "d1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
