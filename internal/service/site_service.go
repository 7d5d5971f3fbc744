package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
)

type siteRepository interface {
	ListBoardMembers(ctx context.Context) ([]models.BoardMember, error)
	FindBoardMemberByID(ctx context.Context, id string) (*models.BoardMember, error)
	CreateBoardMember(ctx context.Context, m *models.BoardMember) error
	UpdateBoardMember(ctx context.Context, m *models.BoardMember) error
	DeleteBoardMember(ctx context.Context, id string) error
	ListSettings(ctx context.Context) ([]models.Setting, error)
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	UpsertSetting(ctx context.Context, s *models.Setting) error
	DeleteSetting(ctx context.Context, key string) error
}

// BoardMemberRequest is the admin payload for governance page entries.
type BoardMemberRequest struct {
	FullName  string  `json:"full_name" validate:"required"`
	Role      string  `json:"role" validate:"required"`
	Bio       *string `json:"bio"`
	PhotoURL  *string `json:"photo_url"`
	SortOrder int     `json:"sort_order"`
}

// SettingRequest writes one site-wide key/value pair.
type SettingRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// SiteService manages board members and site settings.
type SiteService struct {
	repo      siteRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSiteService constructs a SiteService.
func NewSiteService(repo siteRepository, validate *validator.Validate, logger *zap.Logger) *SiteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteService{repo: repo, validator: validate, logger: logger}
}

// ListBoard returns the governance board in display order.
func (s *SiteService) ListBoard(ctx context.Context) ([]models.BoardMember, error) {
	members, err := s.repo.ListBoardMembers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list board members")
	}
	if members == nil {
		members = []models.BoardMember{}
	}
	return members, nil
}

// CreateBoardMember adds a governance entry.
func (s *SiteService) CreateBoardMember(ctx context.Context, req BoardMemberRequest) (*models.BoardMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid board member payload")
	}

	member := &models.BoardMember{
		FullName:  strings.TrimSpace(req.FullName),
		Role:      strings.TrimSpace(req.Role),
		Bio:       req.Bio,
		PhotoURL:  req.PhotoURL,
		SortOrder: req.SortOrder,
	}
	if err := s.repo.CreateBoardMember(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create board member")
	}
	return member, nil
}

// UpdateBoardMember rewrites a governance entry.
func (s *SiteService) UpdateBoardMember(ctx context.Context, id string, req BoardMemberRequest) (*models.BoardMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid board member payload")
	}

	member, err := s.repo.FindBoardMemberByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "board member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load board member")
	}

	member.FullName = strings.TrimSpace(req.FullName)
	member.Role = strings.TrimSpace(req.Role)
	member.Bio = req.Bio
	member.PhotoURL = req.PhotoURL
	member.SortOrder = req.SortOrder

	if err := s.repo.UpdateBoardMember(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update board member")
	}
	return member, nil
}

// DeleteBoardMember removes a governance entry.
func (s *SiteService) DeleteBoardMember(ctx context.Context, id string) error {
	if err := s.repo.DeleteBoardMember(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "board member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete board member")
	}
	return nil
}

// Settings returns all key/value settings.
func (s *SiteService) Settings(ctx context.Context) ([]models.Setting, error) {
	settings, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	if settings == nil {
		settings = []models.Setting{}
	}
	return settings, nil
}

// Setting returns one setting.
func (s *SiteService) Setting(ctx context.Context, key string) (*models.Setting, error) {
	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}
	return setting, nil
}

// PutSetting inserts or overwrites a setting.
func (s *SiteService) PutSetting(ctx context.Context, req SettingRequest, actorID *string) (*models.Setting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid setting payload")
	}

	setting := &models.Setting{
		Key:       strings.TrimSpace(req.Key),
		Value:     req.Value,
		UpdatedBy: actorID,
	}
	if err := s.repo.UpsertSetting(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save setting")
	}
	return setting, nil
}

// DeleteSetting removes a setting.
func (s *SiteService) DeleteSetting(ctx context.Context, key string) error {
	if err := s.repo.DeleteSetting(ctx, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete setting")
	}
	return nil
}
