package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
)

type mockTermRepo struct {
	terms      map[string]*models.Term
	exists     bool
	eventCount int
	deleted    []string
}

func newMockTermRepo() *mockTermRepo {
	return &mockTermRepo{terms: make(map[string]*models.Term)}
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, error) {
	var out []models.Term
	for _, term := range m.terms {
		out = append(out, *term)
	}
	return out, nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if term, ok := m.terms[id]; ok {
		copied := *term
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) FindActive(ctx context.Context) (*models.Term, error) {
	for _, term := range m.terms {
		if term.IsActive {
			copied := *term
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) ExistsByYearAndName(ctx context.Context, academicYear, name, excludeID string) (bool, error) {
	return m.exists, nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = "t-generated"
	}
	m.terms[term.ID] = term
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	m.terms[term.ID] = term
	return nil
}

func (m *mockTermRepo) SetActive(ctx context.Context, id string) error {
	for _, term := range m.terms {
		term.IsActive = term.ID == id
	}
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id string) error {
	delete(m.terms, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTermRepo) CountEvents(ctx context.Context, id string) (int, error) {
	return m.eventCount, nil
}

func newTermTestService(repo *mockTermRepo) *TermService {
	return NewTermService(repo, validator.New(), zap.NewNop())
}

func termDates() (time.Time, time.Time) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 4, 0)
}

func TestTermServiceCreateRejectsInvertedDates(t *testing.T) {
	svc := newTermTestService(newMockTermRepo())
	start, end := termDates()

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:         "Fall",
		AcademicYear: "2026/2027",
		StartDate:    end,
		EndDate:      start,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTermServiceCreateRejectsDuplicate(t *testing.T) {
	repo := newMockTermRepo()
	repo.exists = true
	svc := newTermTestService(repo)
	start, end := termDates()

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:         "Fall",
		AcademicYear: "2026/2027",
		StartDate:    start,
		EndDate:      end,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTermServiceActivationDeactivatesOthers(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t1"] = &models.Term{ID: "t1", Name: "Fall", IsActive: true}
	repo.terms["t2"] = &models.Term{ID: "t2", Name: "Spring"}
	svc := newTermTestService(repo)

	term, err := svc.SetActive(context.Background(), "t2")
	require.NoError(t, err)
	assert.True(t, term.IsActive)
	assert.False(t, repo.terms["t1"].IsActive)
	assert.True(t, repo.terms["t2"].IsActive)
}

func TestTermServiceCreateActiveTermTakesOver(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t1"] = &models.Term{ID: "t1", Name: "Fall", IsActive: true}
	svc := newTermTestService(repo)
	start, end := termDates()

	term, err := svc.Create(context.Background(), CreateTermRequest{
		Name:         "Spring",
		AcademicYear: "2026/2027",
		StartDate:    start,
		EndDate:      end,
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.True(t, term.IsActive)
	assert.False(t, repo.terms["t1"].IsActive)
}

func TestTermServiceDeleteBlockedForActiveTerm(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t1"] = &models.Term{ID: "t1", IsActive: true}
	svc := newTermTestService(repo)

	err := svc.Delete(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestTermServiceDeleteBlockedWithEvents(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t1"] = &models.Term{ID: "t1"}
	repo.eventCount = 2
	svc := newTermTestService(repo)

	err := svc.Delete(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestTermServiceGetActiveMissing(t *testing.T) {
	svc := newTermTestService(newMockTermRepo())

	_, err := svc.GetActive(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
