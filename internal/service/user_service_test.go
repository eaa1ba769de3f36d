package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type mockUserDirectory struct {
	users      []models.User
	lastFilter models.UserFilter
}

func (m *mockUserDirectory) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	return m.users, len(m.users), nil
}

func (m *mockUserDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			return &m.users[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserDirectory{users: []models.User{
		{ID: "u1", Email: "ada@uni.edu", FullName: "Ada Lovelace", Role: models.RoleStudent, Active: true, CreatedAt: time.Now().UTC()},
		{ID: "u2", Email: "grace@uni.edu", FullName: "Grace Hopper", Role: models.RoleSupervisor, Active: true, CreatedAt: time.Now().UTC()},
	}}
	svc := NewUserService(repo, nil)

	role := models.RoleStudent
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Role: &role, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 10, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
	require.NotNil(t, repo.lastFilter.Role)
	assert.Equal(t, models.RoleStudent, *repo.lastFilter.Role)
}

func TestUserServiceListDefaultsPagination(t *testing.T) {
	repo := &mockUserDirectory{}
	svc := NewUserService(repo, nil)

	_, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestUserServiceGet(t *testing.T) {
	repo := &mockUserDirectory{users: []models.User{
		{ID: "u1", Email: "ada@uni.edu", FullName: "Ada Lovelace", Role: models.RoleStudent, Active: true},
	}}
	svc := NewUserService(repo, nil)

	user, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@uni.edu", user.Email)

	_, err = svc.Get(context.Background(), "missing")
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}
