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
	"golang.org/x/crypto/bcrypt"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type mockAuthUserRepo struct {
	users         map[string]*models.User
	usersByEmail  map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revoked       []string
	revokedAll    []string
	lastLogin     map[string]time.Time
	passwords     map[string]string
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if m.lastLogin == nil {
		m.lastLogin = make(map[string]time.Time)
	}
	m.lastLogin[id] = ts
	return nil
}

func (m *mockAuthUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.passwords == nil {
		m.passwords = make(map[string]string)
	}
	m.passwords[id] = passwordHash
	return nil
}

func (m *mockAuthUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "fyp-api",
		Audience:           []string{"fyp-platform"},
	}
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "u1",
		Email:        "student@uni.example",
		PasswordHash: string(hash),
		FullName:     "Test Student",
		Role:         models.RoleStudent,
		Active:       true,
	}
}

func newAuthService(repo *mockAuthUserRepo) (*AuthService, *mockAuditWriter) {
	audit := &mockAuditWriter{}
	return NewAuthService(repo, audit, validator.New(), zap.NewNop(), testAuthConfig()), audit
}

func TestAuthServiceLogin(t *testing.T) {
	user := testUser(t, "password123")
	repo := &mockAuthUserRepo{
		users:        map[string]*models.User{"u1": user},
		usersByEmail: map[string]*models.User{user.Email: user},
	}
	svc, audit := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, user.Email, resp.User.Email)
	assert.Contains(t, repo.lastLogin, "u1")
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionLogin, audit.entries[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	user := testUser(t, "password123")
	repo := &mockAuthUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}
	svc, _ := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthService(&mockAuthUserRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@uni.example", Password: "password123"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	user := testUser(t, "password123")
	user.Active = false
	repo := &mockAuthUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}
	svc, _ := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	assertAppError(t, err, appErrors.ErrInactiveAccount.Code)
}

func TestAuthServiceRefreshRotation(t *testing.T) {
	user := testUser(t, "password123")
	repo := &mockAuthUserRepo{
		users: map[string]*models.User{"u1": user},
		refreshTokens: map[string]*models.RefreshToken{
			"old-token": {ID: "rt1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc, _ := newAuthService(repo)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revoked, "rt1")
	assert.True(t, repo.refreshTokens["old-token"].Revoked)
}

func TestAuthServiceRefreshExpired(t *testing.T) {
	repo := &mockAuthUserRepo{
		refreshTokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
		},
	}
	svc, _ := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	assertAppError(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := &mockAuthUserRepo{
		refreshTokens: map[string]*models.RefreshToken{
			"tok": {ID: "rt1", UserID: "u1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc, audit := newAuthService(repo)

	err := svc.Logout(context.Background(), "tok", "u1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Contains(t, repo.revoked, "rt1")
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionLogout, audit.entries[0].Action)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := &mockAuthUserRepo{
		refreshTokens: map[string]*models.RefreshToken{
			"tok": {ID: "rt1", UserID: "u2", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc, _ := newAuthService(repo)

	err := svc.Logout(context.Background(), "tok", "u1", models.LoginRequest{})
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	user := testUser(t, "oldpassword")
	repo := &mockAuthUserRepo{users: map[string]*models.User{"u1": user}}
	svc, _ := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.Contains(t, repo.passwords, "u1")
	assert.Contains(t, repo.revokedAll, "u1")

	err = bcrypt.CompareHashAndPassword([]byte(repo.passwords["u1"]), []byte("newpassword"))
	assert.NoError(t, err)
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	user := testUser(t, "oldpassword")
	repo := &mockAuthUserRepo{users: map[string]*models.User{"u1": user}}
	svc, _ := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpassword"})
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestAuthServiceValidateTokenBadSignature(t *testing.T) {
	svc, _ := newAuthService(&mockAuthUserRepo{})

	_, err := svc.ValidateToken("not.a.token")
	assertAppError(t, err, appErrors.ErrUnauthorized.Code)
}
