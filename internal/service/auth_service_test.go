package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-voice-api/internal/dto"
	"github.com/noah-isme/campus-voice-api/internal/models"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

type mockUserRepo struct {
	users            map[string]*models.User
	lastLoginUpdated bool
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	for _, user := range users {
		repo.users[user.Email] = user
	}
	return repo
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-new"
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "campus-voice-api"}
}

func TestRegisterDefaultsToStudent(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email:    "student@campus.edu",
		Password: "password123",
		FullName: "Test Student",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	created := repo.users["student@campus.edu"]
	require.NotNil(t, created)
	assert.NotEqual(t, "password123", created.PasswordHash)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Email: "taken@campus.edu"})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email:    "taken@campus.edu",
		Password: "password123",
		FullName: "Someone",
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestLoginSuccess(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newMockUserRepo(&models.User{
		ID:           "u1",
		Email:        "warden@campus.edu",
		PasswordHash: string(hash),
		Role:         models.RoleWarden,
		Active:       true,
	})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: "warden@campus.edu", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleWarden, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newMockUserRepo(&models.User{Email: "a@campus.edu", PasswordHash: string(hash), Active: true})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "a@campus.edu", Password: "wrong-pass"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "ghost@campus.edu", Password: "whatever1"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newMockUserRepo(&models.User{Email: "off@campus.edu", PasswordHash: string(hash), Active: false})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "off@campus.edu", Password: "password123"})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), nil, nil, testAuthConfig())

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService(newMockUserRepo(), nil, nil, AuthConfig{Secret: "other-secret", Expiration: time.Hour})
	resp, err := issuer.Register(context.Background(), dto.RegisterRequest{
		Email:    "a@campus.edu",
		Password: "password123",
		FullName: "A",
	})
	require.NoError(t, err)

	verifier := NewAuthService(newMockUserRepo(), nil, nil, testAuthConfig())
	_, err = verifier.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
