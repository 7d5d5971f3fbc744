package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
	"github.com/noah-isme/school-site-api/pkg/jobs"
	"github.com/noah-isme/school-site-api/pkg/mailer"
)

type mockNewsletterRepo struct {
	mu          sync.Mutex
	newsletters map[string]*models.Newsletter
	recipients  map[string]*models.NewsletterRecipient
	statuses    []models.NewsletterStatus
	lastSentAt  *time.Time
}

func newMockNewsletterRepo() *mockNewsletterRepo {
	return &mockNewsletterRepo{
		newsletters: make(map[string]*models.Newsletter),
		recipients:  make(map[string]*models.NewsletterRecipient),
	}
}

func (m *mockNewsletterRepo) Create(ctx context.Context, n *models.Newsletter) error {
	if n.ID == "" {
		n.ID = "n-generated"
	}
	m.newsletters[n.ID] = n
	return nil
}

func (m *mockNewsletterRepo) GetByID(ctx context.Context, id string) (*models.Newsletter, error) {
	if n, ok := m.newsletters[id]; ok {
		copied := *n
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNewsletterRepo) List(ctx context.Context, filter models.NewsletterFilter) ([]models.Newsletter, int, error) {
	var out []models.Newsletter
	for _, n := range m.newsletters {
		out = append(out, *n)
	}
	return out, len(out), nil
}

func (m *mockNewsletterRepo) Update(ctx context.Context, n *models.Newsletter) error {
	m.newsletters[n.ID] = n
	return nil
}

func (m *mockNewsletterRepo) UpdateStatus(ctx context.Context, id string, status models.NewsletterStatus, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.newsletters[id]; ok {
		n.Status = status
		n.SentAt = sentAt
	}
	m.statuses = append(m.statuses, status)
	m.lastSentAt = sentAt
	return nil
}

func (m *mockNewsletterRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.newsletters[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.newsletters, id)
	return nil
}

func (m *mockNewsletterRepo) CreateRecipients(ctx context.Context, recipients []models.NewsletterRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range recipients {
		r := recipients[i]
		m.recipients[r.ID] = &r
	}
	return nil
}

func (m *mockNewsletterRepo) ListRecipients(ctx context.Context, newsletterID string) ([]models.NewsletterRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NewsletterRecipient
	for _, r := range m.recipients {
		if r.NewsletterID == newsletterID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockNewsletterRepo) UpdateRecipientStatus(ctx context.Context, id string, status models.RecipientStatus, sendErr *string, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recipients[id]; ok {
		r.Status = status
		r.Error = sendErr
		r.SentAt = sentAt
	}
	return nil
}

func (m *mockNewsletterRepo) recipientStatusCounts() (sent, failed, pending int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients {
		switch r.Status {
		case models.RecipientSent:
			sent++
		case models.RecipientFailed:
			failed++
		case models.RecipientPending:
			pending++
		}
	}
	return sent, failed, pending
}

type mockAudience struct {
	active   []models.Parent
	byGrade  []models.Parent
	askedFor []string
}

func (m *mockAudience) ListActiveParents(ctx context.Context) ([]models.Parent, error) {
	return m.active, nil
}

func (m *mockAudience) ListParentsByGradeLevels(ctx context.Context, grades []string) ([]models.Parent, error) {
	m.askedFor = grades
	return m.byGrade, nil
}

type mockQueue struct {
	jobs []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

type mockMailer struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failFor  map[string]error
	sendErr  error
	maxInUse int
	inUse    int
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	m.inUse++
	if m.inUse > m.maxInUse {
		m.maxInUse = m.inUse
	}
	m.mu.Unlock()

	time.Sleep(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inUse--
	if m.sendErr != nil {
		return m.sendErr
	}
	if err, ok := m.failFor[msg.ToAddress]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newNewsletterTestService(repo *mockNewsletterRepo, audience *mockAudience, queue *mockQueue, mail *mockMailer) *NewsletterService {
	return NewNewsletterService(repo, audience, queue, mail, nil, nil, validator.New(), zap.NewNop(), 2)
}

func TestNewsletterServiceSendFansOutPendingRows(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{ID: "n1", Subject: "Hi", BodyHTML: "<p>hi</p>", Status: models.NewsletterDraft, TargetAudience: models.AudienceAllParents}
	audience := &mockAudience{active: []models.Parent{
		{ID: "p1", Email: "a@example.com", FullName: "A"},
		{ID: "p2", Email: "b@example.com", FullName: "B"},
		{ID: "p3", Email: "c@example.com", FullName: "C"},
	}}
	queue := &mockQueue{}
	svc := newNewsletterTestService(repo, audience, queue, &mockMailer{})

	result, err := svc.Send(context.Background(), "n1", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecipientCount)
	assert.Equal(t, models.NewsletterSending, result.Newsletter.Status)

	_, _, pending := repo.recipientStatusCounts()
	assert.Equal(t, 3, pending)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "newsletter.dispatch", queue.jobs[0].Type)
	assert.Equal(t, "n1", queue.jobs[0].Payload)
}

func TestNewsletterServiceSendBlocksResend(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{ID: "n1", Status: models.NewsletterSent, TargetAudience: models.AudienceAllParents}
	svc := newNewsletterTestService(repo, &mockAudience{}, &mockQueue{}, &mockMailer{})

	_, err := svc.Send(context.Background(), "n1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestNewsletterServiceSendEmptyAudience(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{ID: "n1", Status: models.NewsletterDraft, TargetAudience: models.AudienceAllParents}
	queue := &mockQueue{}
	svc := newNewsletterTestService(repo, &mockAudience{}, queue, &mockMailer{})

	_, err := svc.Send(context.Background(), "n1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, queue.jobs)
}

func TestNewsletterServiceGradeAudience(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{
		ID:             "n1",
		Status:         models.NewsletterDraft,
		TargetAudience: models.AudienceGradeLevels,
		GradeLevels:    []string{"3", "4"},
	}
	audience := &mockAudience{byGrade: []models.Parent{{ID: "p1", Email: "a@example.com"}}}
	svc := newNewsletterTestService(repo, audience, &mockQueue{}, &mockMailer{})

	result, err := svc.Send(context.Background(), "n1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecipientCount)
	assert.Equal(t, []string{"3", "4"}, audience.askedFor)
}

func TestNewsletterServiceDispatchPartialFailureStillSettles(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{ID: "n1", Subject: "Hi", BodyHTML: "<p>hi</p>", Status: models.NewsletterSending, TargetAudience: models.AudienceAllParents}
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		id := string(rune('r' + i))
		repo.recipients[id] = &models.NewsletterRecipient{ID: id, NewsletterID: "n1", Email: email, Status: models.RecipientPending}
	}
	mail := &mockMailer{failFor: map[string]error{"b@example.com": errors.New("mailbox full")}}
	svc := newNewsletterTestService(repo, &mockAudience{}, &mockQueue{}, mail)

	err := svc.DispatchHandler(context.Background(), jobs.Job{ID: "j1", Type: "newsletter.dispatch", Payload: "n1"})
	require.NoError(t, err)

	sent, failed, pending := repo.recipientStatusCounts()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	assert.Zero(t, pending)

	n, err := repo.GetByID(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, models.NewsletterSent, n.Status)
	require.NotNil(t, n.SentAt)
}

func TestNewsletterServiceDispatchSkipsSettledRecipients(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{ID: "n1", Subject: "Hi", BodyHTML: "<p>hi</p>", Status: models.NewsletterSending}
	repo.recipients["r1"] = &models.NewsletterRecipient{ID: "r1", NewsletterID: "n1", Email: "a@example.com", Status: models.RecipientSent}
	repo.recipients["r2"] = &models.NewsletterRecipient{ID: "r2", NewsletterID: "n1", Email: "b@example.com", Status: models.RecipientPending}
	mail := &mockMailer{}
	svc := newNewsletterTestService(repo, &mockAudience{}, &mockQueue{}, mail)

	require.NoError(t, svc.DispatchHandler(context.Background(), jobs.Job{Payload: "n1"}))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "b@example.com", mail.sent[0].ToAddress)
}

func TestNewsletterServiceDispatchBoundsConcurrency(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{ID: "n1", Subject: "Hi", BodyHTML: "<p>hi</p>", Status: models.NewsletterSending}
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		repo.recipients[id] = &models.NewsletterRecipient{ID: id, NewsletterID: "n1", Email: id + "@example.com", Status: models.RecipientPending}
	}
	mail := &mockMailer{}
	svc := newNewsletterTestService(repo, &mockAudience{}, &mockQueue{}, mail)

	require.NoError(t, svc.DispatchHandler(context.Background(), jobs.Job{Payload: "n1"}))
	assert.LessOrEqual(t, mail.maxInUse, 2)
	sent, _, pending := repo.recipientStatusCounts()
	assert.Equal(t, 10, sent)
	assert.Zero(t, pending)
}

func TestNewsletterServiceUpdateOnlyDrafts(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{ID: "n1", Status: models.NewsletterSent}
	svc := newNewsletterTestService(repo, &mockAudience{}, &mockQueue{}, &mockMailer{})

	_, err := svc.Update(context.Background(), "n1", UpdateNewsletterRequest{
		Subject:        "Edited",
		BodyHTML:       "<p>edited</p>",
		TargetAudience: models.AudienceAllParents,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestNewsletterServiceDeleteBlockedWhileSending(t *testing.T) {
	repo := newMockNewsletterRepo()
	repo.newsletters["n1"] = &models.Newsletter{ID: "n1", Status: models.NewsletterSending}
	svc := newNewsletterTestService(repo, &mockAudience{}, &mockQueue{}, &mockMailer{})

	err := svc.Delete(context.Background(), "n1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
