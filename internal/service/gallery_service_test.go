package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
)

type mockGalleryRepo struct {
	items map[string]*models.GalleryItem
}

func (m *mockGalleryRepo) List(ctx context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error) {
	var out []models.GalleryItem
	for _, item := range m.items {
		out = append(out, *item)
	}
	return out, nil
}

func (m *mockGalleryRepo) FindByID(ctx context.Context, id string) (*models.GalleryItem, error) {
	if item, ok := m.items[id]; ok {
		return item, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGalleryRepo) Albums(ctx context.Context) ([]string, error) {
	return []string{"sports-day"}, nil
}

func (m *mockGalleryRepo) Create(ctx context.Context, item *models.GalleryItem) error {
	if m.items == nil {
		m.items = make(map[string]*models.GalleryItem)
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockGalleryRepo) Update(ctx context.Context, item *models.GalleryItem) error {
	m.items[item.ID] = item
	return nil
}

func (m *mockGalleryRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func newGalleryService(repo *mockGalleryRepo, store *mockStore) *GalleryService {
	return NewGalleryService(repo, store, nil, nil, testUploadLimits())
}

func TestGalleryServiceUploadConfinesAlbumToStorageRoot(t *testing.T) {
	repo := &mockGalleryRepo{}
	store := &mockStore{}
	svc := newGalleryService(repo, store)

	item, err := svc.Upload(context.Background(), GalleryUploadInput{
		Title:    "Escape Attempt",
		Album:    "../../escaped",
		FileName: "photo.png",
		MimeType: "image/png",
		FileSize: 1024,
		File:     strings.NewReader("png-bytes"),
	})
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.True(t, strings.HasPrefix(store.saved[0], "gallery/escaped/"), "stored under %q", store.saved[0])
	assert.NotContains(t, *item.FilePath, "..")
}

func TestGalleryServiceUploadRejectsNonImage(t *testing.T) {
	repo := &mockGalleryRepo{}
	store := &mockStore{}
	svc := newGalleryService(repo, store)

	_, err := svc.Upload(context.Background(), GalleryUploadInput{
		Title:    "Not An Image",
		FileName: "report.pdf",
		MimeType: "application/pdf",
		FileSize: 1024,
		File:     strings.NewReader("pdf-bytes"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.saved)
}
