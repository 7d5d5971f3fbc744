package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	"github.com/noah-isme/school-site-api/pkg/database"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/storage"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*models.DocumentStats, error)
}

type documentStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (file io.ReadCloser, err error)
	Delete(filename string) error
}

type documentAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UploadLimits carries the validation rules applied before anything is
// written to disk or the database.
type UploadLimits struct {
	MaxDocumentBytes int64
	MaxImageBytes    int64
	DocumentMIMEs    []string
	ImageMIMEs       []string
}

// UploadDocumentInput is the multipart payload flattened for the service.
type UploadDocumentInput struct {
	Title       string `validate:"required"`
	Description string
	Category    string
	Tags        []string
	IsPublished bool
	FileName    string `validate:"required"`
	MimeType    string `validate:"required"`
	FileSize    int64  `validate:"gt=0"`
	File        io.Reader
	AuthorID    *string
	AuthorName  *string
}

// UpdateDocumentInput mutates metadata only; the stored file never changes.
type UpdateDocumentInput struct {
	Title       *string
	Description *string
	Category    *string
	Tags        []string
	IsPublished *bool
}

// SignedDownload pairs a one-time download token with its expiry.
type SignedDownload struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentService implements upload, listing, publish control and download
// for the document library.
type DocumentService struct {
	repo      documentRepository
	store     documentStore
	signer    *storage.SignedURLSigner
	auditor   documentAuditor
	validator *validator.Validate
	logger    *zap.Logger
	limits    UploadLimits
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(repo documentRepository, store documentStore, signer *storage.SignedURLSigner, auditor documentAuditor, validate *validator.Validate, logger *zap.Logger, limits UploadLimits) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DocumentService{
		repo:      repo,
		store:     store,
		signer:    signer,
		auditor:   auditor,
		validator: validate,
		logger:    logger,
		limits:    limits,
	}
}

// Upload validates the file, writes it to storage and records the metadata
// row. Validation failures reject the request before any write happens; a
// failed metadata insert removes the already-written file.
func (s *DocumentService) Upload(ctx context.Context, input UploadDocumentInput) (*models.Document, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if err := s.validateFile(input.MimeType, input.FileSize); err != nil {
		return nil, err
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = models.DefaultDocumentCategory
	}

	docID := uuid.NewString()
	relPath := filepath.ToSlash(filepath.Join("documents", pathSegment(category, models.DefaultDocumentCategory), docID+sanitizedExt(input.FileName)))

	if _, err := s.store.SaveStream(relPath, input.File); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
	}

	doc := &models.Document{
		ID:          docID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		FileName:    input.FileName,
		FileURL:     "/uploads/" + relPath,
		FilePath:    &relPath,
		FileSize:    input.FileSize,
		MimeType:    input.MimeType,
		Category:    category,
		Tags:        normalizeTags(input.Tags),
		IsPublished: input.IsPublished,
		AuthorID:    input.AuthorID,
		AuthorName:  input.AuthorName,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if cleanupErr := s.store.Delete(relPath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned upload after insert failure",
				zap.String("path", relPath), zap.Error(cleanupErr))
		}
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a document with this title already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document")
	}

	s.audit(ctx, doc.AuthorID, models.AuditActionDocumentUpload, doc.ID)
	return doc, nil
}

// Get returns one document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// GetPublished returns one document only if it is published. Used by the
// public surface so drafts stay invisible.
func (s *DocumentService) GetPublished(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return doc, nil
}

// List returns documents matching the filter newest-first.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// Update rewrites a document's metadata. Absent fields keep their value.
func (s *DocumentService) Update(ctx context.Context, id string, input UpdateDocumentInput, actorID *string) (*models.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		doc.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		doc.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			category = models.DefaultDocumentCategory
		}
		doc.Category = category
	}
	if input.Tags != nil {
		doc.Tags = normalizeTags(input.Tags)
	}
	if input.IsPublished != nil {
		doc.IsPublished = *input.IsPublished
	}

	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}

	s.audit(ctx, actorID, models.AuditActionContentMutation, doc.ID)
	return doc, nil
}

// SetPublished flips a document's publish flag.
func (s *DocumentService) SetPublished(ctx context.Context, id string, published bool, actorID *string) (*models.Document, error) {
	return s.Update(ctx, id, UpdateDocumentInput{IsPublished: &published}, actorID)
}

// Delete removes the metadata row first, then unlinks the stored file.
// A missing or stubborn file is logged and swallowed: the row is the source
// of truth and the delete already succeeded.
func (s *DocumentService) Delete(ctx context.Context, id string, actorID *string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}

	if doc.FilePath != nil {
		if err := s.store.Delete(*doc.FilePath); err != nil {
			s.logger.Warn("failed to unlink document file",
				zap.String("document_id", id), zap.String("path", *doc.FilePath), zap.Error(err))
		}
	}

	s.audit(ctx, actorID, models.AuditActionDocumentDelete, id)
	return nil
}

// Categories returns the distinct category keys in use.
func (s *DocumentService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// Stats aggregates library-wide counts for the admin dashboard.
func (s *DocumentService) Stats(ctx context.Context) (*models.DocumentStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate document stats")
	}
	return stats, nil
}

// SignedDownloadURL issues a short-lived token for downloading a published
// document without authentication.
func (s *DocumentService) SignedDownloadURL(ctx context.Context, id string) (*SignedDownload, error) {
	doc, err := s.GetPublished(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document has no stored file")
	}

	token, expiresAt, err := s.signer.Generate(doc.ID, *doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &SignedDownload{
		Token:     token,
		URL:       fmt.Sprintf("/api/v1/documents/download/%s", token),
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveDownload validates a download token and opens the referenced file.
func (s *DocumentService) ResolveDownload(ctx context.Context, token string) (*models.Document, io.ReadCloser, error) {
	docID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	doc, err := s.Get(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if doc.FilePath == nil || *doc.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match document")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "stored file missing")
	}
	return doc, file, nil
}

func (s *DocumentService) validateFile(mimeType string, size int64) error {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	isDocument := containsString(s.limits.DocumentMIMEs, mimeType)
	isImage := containsString(s.limits.ImageMIMEs, mimeType)
	if !isDocument && !isImage {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported file type %q", mimeType))
	}

	limit := s.limits.MaxDocumentBytes
	if isImage && !isDocument {
		limit = s.limits.MaxImageBytes
	}
	if limit > 0 && size > limit {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", limit))
	}
	return nil
}

func (s *DocumentService) audit(ctx context.Context, actorID *string, action, resourceID string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actorID,
		Action:     action,
		Resource:   "documents",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record document audit log", zap.Error(err))
	}
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// pathSegment reduces free-form text to a single safe directory name.
// Anything outside [a-z0-9-] becomes an underscore, so separators and
// dot-dot sequences can never reach the filesystem layer.
func pathSegment(raw, fallback string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	segment := strings.Trim(b.String(), "_")
	if segment == "" {
		return fallback
	}
	return segment
}

func sanitizedExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
