package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/jobs"
	"github.com/noah-isme/school-site-api/pkg/mailer"
)

const newsletterDispatchJob = "newsletter.dispatch"

type newsletterRepository interface {
	Create(ctx context.Context, n *models.Newsletter) error
	GetByID(ctx context.Context, id string) (*models.Newsletter, error)
	List(ctx context.Context, filter models.NewsletterFilter) ([]models.Newsletter, int, error)
	Update(ctx context.Context, n *models.Newsletter) error
	UpdateStatus(ctx context.Context, id string, status models.NewsletterStatus, sentAt *time.Time) error
	Delete(ctx context.Context, id string) error
	CreateRecipients(ctx context.Context, recipients []models.NewsletterRecipient) error
	ListRecipients(ctx context.Context, newsletterID string) ([]models.NewsletterRecipient, error)
	UpdateRecipientStatus(ctx context.Context, id string, status models.RecipientStatus, sendErr *string, sentAt *time.Time) error
}

type newsletterAudience interface {
	ListActiveParents(ctx context.Context) ([]models.Parent, error)
	ListParentsByGradeLevels(ctx context.Context, grades []string) ([]models.Parent, error)
}

type newsletterDispatcher interface {
	Enqueue(job jobs.Job) error
}

type attachmentStore interface {
	Open(filename string) (io.ReadCloser, error)
}

// CreateNewsletterRequest is the admin payload for drafting a newsletter.
type CreateNewsletterRequest struct {
	Subject        string                    `json:"subject" validate:"required"`
	BodyHTML       string                    `json:"body_html" validate:"required"`
	Priority       models.NewsletterPriority `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH"`
	TargetAudience models.NewsletterAudience `json:"target_audience" validate:"required,oneof=ALL_PARENTS GRADE_LEVELS"`
	GradeLevels    []string                  `json:"grade_levels"`
	Attachments    []string                  `json:"attachments"`
	ScheduledFor   *time.Time                `json:"scheduled_for"`
}

// UpdateNewsletterRequest rewrites a draft.
type UpdateNewsletterRequest = CreateNewsletterRequest

// SendResult summarises the synchronous part of a dispatch.
type SendResult struct {
	Newsletter     *models.Newsletter `json:"newsletter"`
	RecipientCount int                `json:"recipient_count"`
}

// RecipientSummary aggregates per-status counts for one newsletter.
type RecipientSummary struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// NewsletterService drafts newsletters and fans deliveries out to parents.
// Sending resolves the audience and records one PENDING row per recipient
// synchronously, then hands the actual mail work to the background queue.
type NewsletterService struct {
	repo      newsletterRepository
	audience  newsletterAudience
	queue     newsletterDispatcher
	mail      mailer.Mailer
	store     attachmentStore
	auditor   documentAuditor
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	workers   int
}

// NewNewsletterService constructs a NewsletterService.
func NewNewsletterService(repo newsletterRepository, audience newsletterAudience, queue newsletterDispatcher, mail mailer.Mailer, store attachmentStore, auditor documentAuditor, validate *validator.Validate, logger *zap.Logger, workers int) *NewsletterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 4
	}
	return &NewsletterService{
		repo:      repo,
		audience:  audience,
		queue:     queue,
		mail:      mail,
		store:     store,
		auditor:   auditor,
		validator: validate,
		logger:    logger,
		workers:   workers,
	}
}

// WithMetrics attaches delivery instrumentation.
func (s *NewsletterService) WithMetrics(m *MetricsService) *NewsletterService {
	s.metrics = m
	return s
}

// Create drafts a newsletter.
func (s *NewsletterService) Create(ctx context.Context, req CreateNewsletterRequest, actorID *string) (*models.Newsletter, error) {
	if err := s.validateDraft(req); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.NewsletterPriorityNormal
	}
	status := models.NewsletterDraft
	if req.ScheduledFor != nil {
		status = models.NewsletterScheduled
	}

	n := &models.Newsletter{
		Subject:        req.Subject,
		BodyHTML:       req.BodyHTML,
		Status:         status,
		Priority:       priority,
		TargetAudience: req.TargetAudience,
		GradeLevels:    req.GradeLevels,
		Attachments:    req.Attachments,
		ScheduledFor:   req.ScheduledFor,
		CreatedBy:      actorID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create newsletter")
	}
	return n, nil
}

// Get returns one newsletter.
func (s *NewsletterService) Get(ctx context.Context, id string) (*models.Newsletter, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "newsletter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load newsletter")
	}
	return n, nil
}

// List returns newsletters newest-first with pagination metadata.
func (s *NewsletterService) List(ctx context.Context, filter models.NewsletterFilter) ([]models.Newsletter, *models.Pagination, error) {
	newsletters, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list newsletters")
	}
	if newsletters == nil {
		newsletters = []models.Newsletter{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return newsletters, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update rewrites a newsletter that has not been dispatched yet.
func (s *NewsletterService) Update(ctx context.Context, id string, req UpdateNewsletterRequest) (*models.Newsletter, error) {
	if err := s.validateDraft(req); err != nil {
		return nil, err
	}

	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != models.NewsletterDraft && n.Status != models.NewsletterScheduled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only draft newsletters can be edited")
	}

	n.Subject = req.Subject
	n.BodyHTML = req.BodyHTML
	if req.Priority != "" {
		n.Priority = req.Priority
	}
	n.TargetAudience = req.TargetAudience
	n.GradeLevels = req.GradeLevels
	n.Attachments = req.Attachments
	n.ScheduledFor = req.ScheduledFor
	if req.ScheduledFor != nil {
		n.Status = models.NewsletterScheduled
	} else {
		n.Status = models.NewsletterDraft
	}

	if err := s.repo.Update(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update newsletter")
	}
	return n, nil
}

// Delete removes a newsletter that is not mid-dispatch.
func (s *NewsletterService) Delete(ctx context.Context, id string) error {
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Status == models.NewsletterSending {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "newsletter is currently being sent")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "newsletter not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete newsletter")
	}
	return nil
}

// Send resolves the audience, records one PENDING row per recipient, flips
// the newsletter to SENDING and enqueues the background dispatch. Per-mail
// failures later only mark their own row FAILED.
func (s *NewsletterService) Send(ctx context.Context, id string, actorID *string) (*SendResult, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status == models.NewsletterSending || n.Status == models.NewsletterSent {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "newsletter was already sent")
	}

	parents, err := s.resolveAudience(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "audience resolved to zero recipients")
	}

	recipients := make([]models.NewsletterRecipient, 0, len(parents))
	for _, parent := range parents {
		recipients = append(recipients, models.NewsletterRecipient{
			ID:           uuid.NewString(),
			NewsletterID: n.ID,
			ParentID:     parent.ID,
			Email:        parent.Email,
			FullName:     parent.FullName,
			Status:       models.RecipientPending,
		})
	}
	if err := s.repo.CreateRecipients(ctx, recipients); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record recipients")
	}

	if err := s.repo.UpdateStatus(ctx, n.ID, models.NewsletterSending, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark newsletter sending")
	}
	n.Status = models.NewsletterSending

	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    newsletterDispatchJob,
		Payload: n.ID,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue dispatch")
	}

	if s.auditor != nil {
		if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     actorID,
			Action:     models.AuditActionNewsletterSend,
			Resource:   "newsletters",
			ResourceID: &n.ID,
		}); err != nil {
			s.logger.Warn("failed to record newsletter audit log", zap.Error(err))
		}
	}

	return &SendResult{Newsletter: n, RecipientCount: len(recipients)}, nil
}

// Recipients returns per-recipient rows and a status summary.
func (s *NewsletterService) Recipients(ctx context.Context, id string) ([]models.NewsletterRecipient, *RecipientSummary, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}

	recipients, err := s.repo.ListRecipients(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recipients")
	}
	if recipients == nil {
		recipients = []models.NewsletterRecipient{}
	}

	summary := &RecipientSummary{Total: len(recipients)}
	for _, r := range recipients {
		switch r.Status {
		case models.RecipientPending:
			summary.Pending++
		case models.RecipientSent:
			summary.Sent++
		case models.RecipientFailed:
			summary.Failed++
		}
	}
	return recipients, summary, nil
}

// DispatchHandler is mounted as the queue handler for newsletter jobs. It
// sends each PENDING recipient concurrently, records every outcome on its
// own row, and marks the newsletter SENT once all deliveries have settled.
// The handler never returns an error after dispatch starts: retrying the
// whole job would double-send the successful recipients.
func (s *NewsletterService) DispatchHandler(ctx context.Context, job jobs.Job) error {
	newsletterID, ok := job.Payload.(string)
	if !ok || newsletterID == "" {
		s.logger.Error("dispatch job carried no newsletter id", zap.String("job_id", job.ID))
		return nil
	}

	n, err := s.repo.GetByID(ctx, newsletterID)
	if err != nil {
		s.logger.Error("dispatch failed to load newsletter", zap.String("newsletter_id", newsletterID), zap.Error(err))
		return nil
	}

	recipients, err := s.repo.ListRecipients(ctx, newsletterID)
	if err != nil {
		s.logger.Error("dispatch failed to load recipients", zap.String("newsletter_id", newsletterID), zap.Error(err))
		return nil
	}

	attachments := s.loadAttachments(n)

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, recipient := range recipients {
		if recipient.Status != models.RecipientPending {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(r models.NewsletterRecipient) {
			defer wg.Done()
			defer func() { <-sem }()
			s.deliver(ctx, n, r, attachments)
		}(recipient)
	}
	wg.Wait()

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, n.ID, models.NewsletterSent, &now); err != nil {
		s.logger.Error("failed to mark newsletter sent", zap.String("newsletter_id", n.ID), zap.Error(err))
	}
	return nil
}

func (s *NewsletterService) deliver(ctx context.Context, n *models.Newsletter, r models.NewsletterRecipient, attachments []mailer.Attachment) {
	err := s.mail.Send(ctx, mailer.Message{
		ToName:      r.FullName,
		ToAddress:   r.Email,
		Subject:     n.Subject,
		HTML:        n.BodyHTML,
		Attachments: attachments,
	})

	now := time.Now().UTC()
	s.metrics.RecordDelivery(err == nil)
	if err != nil {
		msg := err.Error()
		s.logger.Warn("newsletter delivery failed",
			zap.String("newsletter_id", n.ID), zap.String("recipient", r.Email), zap.Error(err))
		if updateErr := s.repo.UpdateRecipientStatus(ctx, r.ID, models.RecipientFailed, &msg, nil); updateErr != nil {
			s.logger.Error("failed to mark recipient failed", zap.String("recipient_id", r.ID), zap.Error(updateErr))
		}
		return
	}
	if updateErr := s.repo.UpdateRecipientStatus(ctx, r.ID, models.RecipientSent, nil, &now); updateErr != nil {
		s.logger.Error("failed to mark recipient sent", zap.String("recipient_id", r.ID), zap.Error(updateErr))
	}
}

func (s *NewsletterService) loadAttachments(n *models.Newsletter) []mailer.Attachment {
	if s.store == nil || len(n.Attachments) == 0 {
		return nil
	}
	out := make([]mailer.Attachment, 0, len(n.Attachments))
	for _, path := range n.Attachments {
		file, err := s.store.Open(path)
		if err != nil {
			s.logger.Warn("skipping unreadable attachment", zap.String("path", path), zap.Error(err))
			continue
		}
		content, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			s.logger.Warn("skipping unreadable attachment", zap.String("path", path), zap.Error(err))
			continue
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		out = append(out, mailer.Attachment{
			Filename: filepath.Base(path),
			MimeType: mimeType,
			Content:  content,
		})
	}
	return out
}

func (s *NewsletterService) resolveAudience(ctx context.Context, n *models.Newsletter) ([]models.Parent, error) {
	switch n.TargetAudience {
	case models.AudienceGradeLevels:
		if len(n.GradeLevels) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "grade level audience requires grade_levels")
		}
		parents, err := s.audience.ListParentsByGradeLevels(ctx, n.GradeLevels)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve audience")
		}
		return parents, nil
	default:
		parents, err := s.audience.ListActiveParents(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve audience")
		}
		return parents, nil
	}
}

func (s *NewsletterService) validateDraft(req CreateNewsletterRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid newsletter payload")
	}
	if req.TargetAudience == models.AudienceGradeLevels && len(req.GradeLevels) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "grade level audience requires grade_levels")
	}
	return nil
}
