package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
)

type newsRepository interface {
	List(ctx context.Context, publishedOnly bool) ([]models.NewsArticle, error)
	FindByID(ctx context.Context, id string) (*models.NewsArticle, error)
	Create(ctx context.Context, a *models.NewsArticle) error
	Update(ctx context.Context, a *models.NewsArticle) error
	Delete(ctx context.Context, id string) error
}

// NewsArticleRequest is the admin payload for creating or updating a post.
type NewsArticleRequest struct {
	Title       string  `json:"title" validate:"required"`
	Summary     *string `json:"summary"`
	Body        string  `json:"body" validate:"required"`
	CoverURL    *string `json:"cover_url"`
	IsPublished bool    `json:"is_published"`
}

// NewsService manages public news posts.
type NewsService struct {
	repo      newsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNewsService constructs a NewsService.
func NewNewsService(repo newsRepository, validate *validator.Validate, logger *zap.Logger) *NewsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsService{repo: repo, validator: validate, logger: logger}
}

// List returns articles, restricted to published ones for the public site.
func (s *NewsService) List(ctx context.Context, publishedOnly bool) ([]models.NewsArticle, error) {
	articles, err := s.repo.List(ctx, publishedOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list news")
	}
	if articles == nil {
		articles = []models.NewsArticle{}
	}
	return articles, nil
}

// Get returns one article.
func (s *NewsService) Get(ctx context.Context, id string) (*models.NewsArticle, error) {
	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "news article not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load news article")
	}
	return article, nil
}

// GetPublished returns one article only if published.
func (s *NewsService) GetPublished(ctx context.Context, id string) (*models.NewsArticle, error) {
	article, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !article.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "news article not found")
	}
	return article, nil
}

// Create adds an article, stamping published_at on first publication.
func (s *NewsService) Create(ctx context.Context, req NewsArticleRequest, author *models.UserInfo) (*models.NewsArticle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid news payload")
	}

	article := &models.NewsArticle{
		Title:       strings.TrimSpace(req.Title),
		Summary:     req.Summary,
		Body:        req.Body,
		CoverURL:    req.CoverURL,
		IsPublished: req.IsPublished,
	}
	if author != nil {
		article.AuthorID = &author.ID
		article.AuthorName = &author.FullName
	}
	if req.IsPublished {
		now := time.Now().UTC()
		article.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, article); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create news article")
	}
	return article, nil
}

// Update rewrites an article. published_at is set the first time a draft
// goes live and kept on later edits.
func (s *NewsService) Update(ctx context.Context, id string, req NewsArticleRequest) (*models.NewsArticle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid news payload")
	}

	article, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	article.Title = strings.TrimSpace(req.Title)
	article.Summary = req.Summary
	article.Body = req.Body
	article.CoverURL = req.CoverURL
	if req.IsPublished && article.PublishedAt == nil {
		now := time.Now().UTC()
		article.PublishedAt = &now
	}
	article.IsPublished = req.IsPublished

	if err := s.repo.Update(ctx, article); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update news article")
	}
	return article, nil
}

// Delete removes an article.
func (s *NewsService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "news article not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete news article")
	}
	return nil
}
