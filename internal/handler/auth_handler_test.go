package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-site-api/internal/models"
	"github.com/noah-isme/school-site-api/internal/service"
)

type authRepoStub struct {
	count   int
	created []*models.User
}

func (s *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) Count(ctx context.Context) (int, error) {
	return s.count, nil
}

func (s *authRepoStub) Create(ctx context.Context, user *models.User) error {
	s.created = append(s.created, user)
	s.count++
	return nil
}

func (s *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (s *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return nil
}

func (s *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func newAuthTestHandler(repo *authRepoStub) *AuthHandler {
	svc := service.NewAuthService(repo, nil, nil, service.AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
		Issuer:      "school-site-api",
	})
	return NewAuthHandler(svc)
}

func TestAuthHandlerSetupStatusNeedsSetup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthTestHandler(&authRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/auth/setup", nil)

	handler.SetupStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"needs_setup":true`)
}

func TestAuthHandlerSetupCreatesFirstAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &authRepoStub{}
	handler := newAuthTestHandler(repo)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(models.SetupRequest{Email: "admin@school.test", Password: "password123", FullName: "Admin"})
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/setup", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Setup(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleSuperAdmin, repo.created[0].Role)
}

func TestAuthHandlerSetupAlreadyCompleted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthTestHandler(&authRepoStub{count: 1})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(models.SetupRequest{Email: "admin@school.test", Password: "password123", FullName: "Admin"})
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/setup", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Setup(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLoginInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthTestHandler(&authRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(`not-json`)))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
