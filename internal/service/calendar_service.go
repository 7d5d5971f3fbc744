package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/export"
)

type calendarRepository interface {
	List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, error)
	FindByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
	Update(ctx context.Context, event *models.CalendarEvent) error
	Delete(ctx context.Context, id string) error
}

type calendarTermLookup interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

// CreateCalendarEventRequest describes payload for a new calendar entry.
type CreateCalendarEventRequest struct {
	Title       string                   `json:"title" validate:"required"`
	Description *string                  `json:"description"`
	EventType   models.CalendarEventType `json:"event_type" validate:"required,oneof=ACADEMIC HOLIDAY EXAM ACTIVITY"`
	Category    *string                  `json:"category"`
	TermID      *string                  `json:"term_id"`
	GradeLevel  *string                  `json:"grade_level"`
	StartDate   time.Time                `json:"start_date" validate:"required"`
	EndDate     time.Time                `json:"end_date" validate:"required"`
	IsHoliday   bool                     `json:"is_holiday"`
	IsPublished bool                     `json:"is_published"`
}

// UpdateCalendarEventRequest mirrors the create payload for full updates.
type UpdateCalendarEventRequest struct {
	Title       string                   `json:"title" validate:"required"`
	Description *string                  `json:"description"`
	EventType   models.CalendarEventType `json:"event_type" validate:"required,oneof=ACADEMIC HOLIDAY EXAM ACTIVITY"`
	Category    *string                  `json:"category"`
	TermID      *string                  `json:"term_id"`
	GradeLevel  *string                  `json:"grade_level"`
	StartDate   time.Time                `json:"start_date" validate:"required"`
	EndDate     time.Time                `json:"end_date" validate:"required"`
	IsHoliday   bool                     `json:"is_holiday"`
	IsPublished *bool                    `json:"is_published"`
}

// CalendarService manages academic calendar entries.
type CalendarService struct {
	repo      calendarRepository
	terms     calendarTermLookup
	exporter  *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService creates a calendar service instance.
func NewCalendarService(repo calendarRepository, terms calendarTermLookup, exporter *export.PDFExporter, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, terms: terms, exporter: exporter, validator: validate, logger: logger}
}

// List returns calendar events matching the filter ordered by start date.
func (s *CalendarService) List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendar events")
	}
	if events == nil {
		events = []models.CalendarEvent{}
	}
	return events, nil
}

// Get returns one calendar event.
func (s *CalendarService) Get(ctx context.Context, id string) (*models.CalendarEvent, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar event")
	}
	return event, nil
}

// Create validates and stores a calendar entry. A referenced term must exist.
func (s *CalendarService) Create(ctx context.Context, req CreateCalendarEventRequest, actorID *string) (*models.CalendarEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}
	if err := s.checkTerm(ctx, req.TermID); err != nil {
		return nil, err
	}

	event := &models.CalendarEvent{
		Title:       req.Title,
		Description: req.Description,
		EventType:   req.EventType,
		Category:    req.Category,
		TermID:      req.TermID,
		GradeLevel:  req.GradeLevel,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		IsHoliday:   req.IsHoliday || req.EventType == models.CalendarEventHoliday,
		IsPublished: req.IsPublished,
		CreatedBy:   actorID,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create calendar event")
	}
	return event, nil
}

// Update rewrites a calendar entry.
func (s *CalendarService) Update(ctx context.Context, id string, req UpdateCalendarEventRequest) (*models.CalendarEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTerm(ctx, req.TermID); err != nil {
		return nil, err
	}

	event.Title = req.Title
	event.Description = req.Description
	event.EventType = req.EventType
	event.Category = req.Category
	event.TermID = req.TermID
	event.GradeLevel = req.GradeLevel
	event.StartDate = req.StartDate
	event.EndDate = req.EndDate
	event.IsHoliday = req.IsHoliday || req.EventType == models.CalendarEventHoliday
	if req.IsPublished != nil {
		event.IsPublished = *req.IsPublished
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update calendar event")
	}
	return event, nil
}

// Delete removes a calendar entry.
func (s *CalendarService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "calendar event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete calendar event")
	}
	return nil
}

// ExportPDF renders the filtered calendar as a printable table.
func (s *CalendarService) ExportPDF(ctx context.Context, filter models.CalendarFilter) ([]byte, string, error) {
	events, err := s.List(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Title", "Type", "Start", "End", "Grade"},
		Rows:    make([]map[string]string, 0, len(events)),
	}
	for _, event := range events {
		grade := "all"
		if event.GradeLevel != nil {
			grade = *event.GradeLevel
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Title": event.Title,
			"Type":  string(event.EventType),
			"Start": event.StartDate.Format("2006-01-02"),
			"End":   event.EndDate.Format("2006-01-02"),
			"Grade": grade,
		})
	}

	payload, err := s.exporter.Render(dataset, "Academic Calendar")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar pdf")
	}

	filename := fmt.Sprintf("academic-calendar-%s.pdf", time.Now().UTC().Format("20060102"))
	return payload, filename, nil
}

func (s *CalendarService) checkTerm(ctx context.Context, termID *string) error {
	if termID == nil || *termID == "" {
		return nil
	}
	if _, err := s.terms.FindByID(ctx, *termID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "referenced term does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check referenced term")
	}
	return nil
}
