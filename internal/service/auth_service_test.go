package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-site-api/internal/models"
	appErrors "github.com/noah-isme/school-site-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	count            int
	created          []*models.User
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	passwordUpdated  bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[strings.ToLower(strings.TrimSpace(email))]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Count(ctx context.Context) (int, error) {
	return m.count, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	m.created = append(m.created, user)
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[strings.ToLower(user.Email)] = user
	m.count++
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordUpdated = true
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
		Issuer:      "school-site-api",
	})
}

func TestAuthServiceSetupCreatesSuperAdmin(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)

	res, err := svc.Setup(context.Background(), models.SetupRequest{
		Email:    "Admin@School.Test",
		Password: "password123",
		FullName: "First Admin",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleSuperAdmin, repo.created[0].Role)
	assert.True(t, repo.created[0].Active)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionSetup, repo.auditLogs[0].Action)
}

func TestAuthServiceSetupAlreadyCompleted(t *testing.T) {
	repo := &mockAuthRepo{count: 1}
	svc := newAuthService(repo)

	_, err := svc.Setup(context.Background(), models.SetupRequest{
		Email:    "second@school.test",
		Password: "password123",
		FullName: "Second Admin",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSetupCompleted.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestAuthServiceLoginCaseInsensitiveEmail(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"admin@school.test": {ID: "u1", Email: "admin@school.test", PasswordHash: string(hash), FullName: "Admin", Role: models.RoleAdmin, Active: true},
	}, count: 1}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "Admin@School.Test", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "u1", res.User.ID)
	assert.True(t, repo.lastLoginUpdated)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"admin@school.test": {ID: "u1", Email: "admin@school.test", PasswordHash: string(hash), Active: true},
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginBeforeSetupPointsAtSetup(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSetupRequired.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmailAfterSetup(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{count: 1, users: map[string]*models.User{
		"admin@school.test": {ID: "u1", Email: "admin@school.test", PasswordHash: string(hash), Active: true},
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "other@school.test", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"admin@school.test": {ID: "u1", Email: "admin@school.test", PasswordHash: string(hash), Active: false},
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.test", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)

	res, err := svc.Setup(context.Background(), models.SetupRequest{
		Email:    "admin@school.test",
		Password: "password123",
		FullName: "Admin",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, models.RoleSuperAdmin, claims.Role)
}

func TestAuthServiceValidateTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{}
	expired := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: -time.Minute,
		Issuer:      "school-site-api",
	})

	res, err := expired.Setup(context.Background(), models.SetupRequest{
		Email:    "admin@school.test",
		Password: "password123",
		FullName: "Admin",
	})
	require.NoError(t, err)

	_, err = expired.ValidateToken(res.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]*models.User{
		"admin@school.test": {ID: "u1", Email: "admin@school.test"},
	}, count: 1}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "admin@school.test",
		Password: "password123",
		FullName: "Someone Else",
		Role:     models.RoleEditor,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordWrongCurrent(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"admin@school.test": {ID: "u1", Email: "admin@school.test", PasswordHash: string(hash), Active: true},
	}}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{
		OldPassword: "nope",
		NewPassword: "newpassword1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.passwordUpdated)
}
