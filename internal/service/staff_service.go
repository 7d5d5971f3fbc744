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

type staffRepository interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.StaffMember, error)
	FindByID(ctx context.Context, id string) (*models.StaffMember, error)
	Create(ctx context.Context, member *models.StaffMember) error
	Update(ctx context.Context, member *models.StaffMember) error
	Delete(ctx context.Context, id string) error
}

// StaffMemberRequest is the admin payload for creating or updating a
// roster entry.
type StaffMemberRequest struct {
	FullName   string  `json:"full_name" validate:"required"`
	Position   string  `json:"position" validate:"required"`
	Department *string `json:"department"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone"`
	Bio        *string `json:"bio"`
	SortOrder  int     `json:"sort_order"`
	Active     *bool   `json:"active"`
}

// StaffPhotoInput carries an uploaded profile photo.
type StaffPhotoInput struct {
	FileName string
	MimeType string
	FileSize int64
	File     io.Reader
}

// StaffService manages the public staff roster.
type StaffService struct {
	repo      staffRepository
	store     documentStore
	validator *validator.Validate
	logger    *zap.Logger
	limits    UploadLimits
}

// NewStaffService constructs a StaffService.
func NewStaffService(repo staffRepository, store documentStore, validate *validator.Validate, logger *zap.Logger, limits UploadLimits) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{repo: repo, store: store, validator: validate, logger: logger, limits: limits}
}

// List returns roster entries in display order.
func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffMember, error) {
	members, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	if members == nil {
		members = []models.StaffMember{}
	}
	return members, nil
}

// Get returns one roster entry.
func (s *StaffService) Get(ctx context.Context, id string) (*models.StaffMember, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
	}
	return member, nil
}

// Create adds a roster entry.
func (s *StaffService) Create(ctx context.Context, req StaffMemberRequest) (*models.StaffMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	member := &models.StaffMember{
		FullName:   strings.TrimSpace(req.FullName),
		Position:   strings.TrimSpace(req.Position),
		Department: req.Department,
		Email:      req.Email,
		Phone:      req.Phone,
		Bio:        req.Bio,
		SortOrder:  req.SortOrder,
		Active:     active,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff member")
	}
	return member, nil
}

// Update rewrites a roster entry.
func (s *StaffService) Update(ctx context.Context, id string, req StaffMemberRequest) (*models.StaffMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	member.FullName = strings.TrimSpace(req.FullName)
	member.Position = strings.TrimSpace(req.Position)
	member.Department = req.Department
	member.Email = req.Email
	member.Phone = req.Phone
	member.Bio = req.Bio
	member.SortOrder = req.SortOrder
	if req.Active != nil {
		member.Active = *req.Active
	}

	if err := s.repo.Update(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff member")
	}
	return member, nil
}

// SetPhoto validates and stores a profile photo, replacing any previous one.
func (s *StaffService) SetPhoto(ctx context.Context, id string, input StaffPhotoInput) (*models.StaffMember, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
	if !containsString(s.limits.ImageMIMEs, mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported photo type %q", mimeType))
	}
	if s.limits.MaxImageBytes > 0 && input.FileSize > s.limits.MaxImageBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("photo exceeds the %d byte limit", s.limits.MaxImageBytes))
	}

	relPath := filepath.ToSlash(filepath.Join("staff", uuid.NewString()+sanitizedExt(input.FileName)))
	if _, err := s.store.SaveStream(relPath, input.File); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo")
	}

	previous := member.PhotoPath
	photoURL := "/uploads/" + relPath
	member.PhotoURL = &photoURL
	member.PhotoPath = &relPath

	if err := s.repo.Update(ctx, member); err != nil {
		if cleanupErr := s.store.Delete(relPath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned photo", zap.String("path", relPath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save photo")
	}

	if previous != nil && *previous != relPath {
		if err := s.store.Delete(*previous); err != nil {
			s.logger.Warn("failed to remove replaced photo", zap.String("path", *previous), zap.Error(err))
		}
	}
	return member, nil
}

// Delete removes a roster entry and unlinks its photo best-effort.
func (s *StaffService) Delete(ctx context.Context, id string) error {
	member, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete staff member")
	}

	if member.PhotoPath != nil {
		if err := s.store.Delete(*member.PhotoPath); err != nil {
			s.logger.Warn("failed to unlink staff photo", zap.String("path", *member.PhotoPath), zap.Error(err))
		}
	}
	return nil
}
