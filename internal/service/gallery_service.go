package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
)

type galleryRepository interface {
	List(ctx context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error)
	FindByID(ctx context.Context, id string) (*models.GalleryItem, error)
	Albums(ctx context.Context) ([]string, error)
	Create(ctx context.Context, item *models.GalleryItem) error
	Update(ctx context.Context, item *models.GalleryItem) error
	Delete(ctx context.Context, id string) error
}

// GalleryUploadInput flattens the multipart payload for a new gallery item.
type GalleryUploadInput struct {
	Title       string `validate:"required"`
	Description *string
	Album       string
	IsPublished bool
	FileName    string `validate:"required"`
	MimeType    string `validate:"required"`
	FileSize    int64  `validate:"gt=0"`
	File        io.Reader
}

// GalleryUpdateRequest mutates item metadata.
type GalleryUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Album       *string `json:"album"`
	IsPublished *bool   `json:"is_published"`
}

// DefaultGalleryAlbum is applied when an item is uploaded without one.
const DefaultGalleryAlbum = "general"

// GalleryService manages the public photo gallery.
type GalleryService struct {
	repo      galleryRepository
	store     documentStore
	validator *validator.Validate
	logger    *zap.Logger
	limits    UploadLimits
}

// NewGalleryService constructs a GalleryService.
func NewGalleryService(repo galleryRepository, store documentStore, validate *validator.Validate, logger *zap.Logger, limits UploadLimits) *GalleryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GalleryService{repo: repo, store: store, validator: validate, logger: logger, limits: limits}
}

// List returns gallery items matching the filter.
func (s *GalleryService) List(ctx context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list gallery items")
	}
	if items == nil {
		items = []models.GalleryItem{}
	}
	return items, nil
}

// Albums returns the distinct album names in use.
func (s *GalleryService) Albums(ctx context.Context) ([]string, error) {
	albums, err := s.repo.Albums(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list albums")
	}
	if albums == nil {
		albums = []string{}
	}
	return albums, nil
}

// Get returns one gallery item.
func (s *GalleryService) Get(ctx context.Context, id string) (*models.GalleryItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "gallery item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gallery item")
	}
	return item, nil
}

// Upload validates and stores an image, then records the item.
func (s *GalleryService) Upload(ctx context.Context, input GalleryUploadInput) (*models.GalleryItem, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid gallery payload")
	}

	mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
	if !containsString(s.limits.ImageMIMEs, mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported image type %q", mimeType))
	}
	if s.limits.MaxImageBytes > 0 && input.FileSize > s.limits.MaxImageBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds the %d byte limit", s.limits.MaxImageBytes))
	}

	album := strings.TrimSpace(input.Album)
	if album == "" {
		album = DefaultGalleryAlbum
	}

	itemID := uuid.NewString()
	relPath := filepath.ToSlash(filepath.Join("gallery", pathSegment(album, DefaultGalleryAlbum), itemID+sanitizedExt(input.FileName)))
	if _, err := s.store.SaveStream(relPath, input.File); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}

	item := &models.GalleryItem{
		ID:          itemID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Album:       album,
		FileURL:     "/uploads/" + relPath,
		FilePath:    &relPath,
		MimeType:    mimeType,
		FileSize:    input.FileSize,
		IsPublished: input.IsPublished,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if cleanupErr := s.store.Delete(relPath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned image", zap.String("path", relPath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save gallery item")
	}
	return item, nil
}

// Update rewrites item metadata; absent fields keep their value.
func (s *GalleryService) Update(ctx context.Context, id string, req GalleryUpdateRequest) (*models.GalleryItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		item.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		item.Description = req.Description
	}
	if req.Album != nil {
		album := strings.TrimSpace(*req.Album)
		if album == "" {
			album = DefaultGalleryAlbum
		}
		item.Album = album
	}
	if req.IsPublished != nil {
		item.IsPublished = *req.IsPublished
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update gallery item")
	}
	return item, nil
}

// Delete removes the item row then unlinks the image best-effort.
func (s *GalleryService) Delete(ctx context.Context, id string) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "gallery item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete gallery item")
	}

	if item.FilePath != nil {
		if err := s.store.Delete(*item.FilePath); err != nil {
			s.logger.Warn("failed to unlink gallery image", zap.String("path", *item.FilePath), zap.Error(err))
		}
	}
	return nil
}
