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

type eventRepository interface {
	List(ctx context.Context, publishedOnly bool) ([]models.Event, error)
	Upcoming(ctx context.Context, now time.Time) ([]models.Event, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, e *models.Event) error
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id string) error
}

// EventRequest is the admin payload for school events.
type EventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description *string   `json:"description"`
	Location    *string   `json:"location"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	IsPublished bool      `json:"is_published"`
}

// EventService manages school event announcements.
type EventService struct {
	repo      eventRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs an EventService.
func NewEventService(repo eventRepository, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, validator: validate, logger: logger}
}

// List returns events, restricted to published ones for the public site.
func (s *EventService) List(ctx context.Context, publishedOnly bool) ([]models.Event, error) {
	events, err := s.repo.List(ctx, publishedOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Upcoming returns published events that have not finished yet.
func (s *EventService) Upcoming(ctx context.Context) ([]models.Event, error) {
	events, err := s.repo.Upcoming(ctx, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming events")
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Get returns one event.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// Create adds an event.
func (s *EventService) Create(ctx context.Context, req EventRequest) (*models.Event, error) {
	if err := s.validateEvent(req); err != nil {
		return nil, err
	}

	event := &models.Event{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		IsPublished: req.IsPublished,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Update rewrites an event.
func (s *EventService) Update(ctx context.Context, id string, req EventRequest) (*models.Event, error) {
	if err := s.validateEvent(req); err != nil {
		return nil, err
	}

	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	event.Title = strings.TrimSpace(req.Title)
	event.Description = req.Description
	event.Location = req.Location
	event.StartsAt = req.StartsAt
	event.EndsAt = req.EndsAt
	event.IsPublished = req.IsPublished

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Delete removes an event.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}

func (s *EventService) validateEvent(req EventRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if req.EndsAt.Before(req.StartsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "ends_at must not precede starts_at")
	}
	return nil
}
