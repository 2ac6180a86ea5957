package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var categoryColumns = []string{"id", "name", "slug", "description", "is_restricted", "created_at", "updated_at"}

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db, nil)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

func PtrTo[T any](v T) *T {
	return &v
}

func TestPostgresStore_GetCategoryByID_Found(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	query := regexp.QuoteMeta(`
		SELECT id, name, slug, description, is_restricted, created_at, updated_at
		FROM marketplace.categories
		WHERE id = $1;
	`)
	rows := sqlmock.NewRows(categoryColumns).
		AddRow(int64(3), "Tenders", "tenders", "Public tenders", true, now, now)
	mock.ExpectQuery(query).WithArgs(int64(3)).WillReturnRows(rows)

	category, err := store.GetCategoryByID(context.Background(), 3)

	require.NoError(t, err)
	require.NotNil(t, category)
	assert.Equal(t, int64(3), category.ID)
	assert.Equal(t, "tenders", category.Slug)
	assert.True(t, category.IsRestricted)
	require.NotNil(t, category.Description)
	assert.Equal(t, "Public tenders", *category.Description)
	assert.Equal(t, now.Unix(), category.CreatedAt.Unix())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCategoryByID_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM marketplace.categories`)).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	category, err := store.GetCategoryByID(context.Background(), 99)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCategoryNotFound), "Error should be ErrCategoryNotFound")
	assert.Nil(t, category)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCategories(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	query := regexp.QuoteMeta(`
		SELECT id, name, slug, description, is_restricted, created_at, updated_at
		FROM marketplace.categories
		ORDER BY name ASC;
	`)
	rows := sqlmock.NewRows(categoryColumns).
		AddRow(int64(1), "Cars", "car", nil, false, now, now).
		AddRow(int64(2), "Homes", "homes", nil, false, now, now)
	mock.ExpectQuery(query).WillReturnRows(rows)

	categories, err := store.ListCategories(context.Background())

	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "car", categories[0].Slug)
	assert.Nil(t, categories[0].Description)
	assert.Equal(t, "homes", categories[1].Slug)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCategories_QueryError(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM marketplace.categories`)).WillReturnError(errors.New("connection reset"))

	categories, err := store.ListCategories(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, categories)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CheckSubscriptionAccess(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"category_slug", "remaining"}).
		AddRow("cars", 0).
		AddRow("homes", -1).
		AddRow("jobs", 4)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM marketplace.user_post_quotas`)).
		WithArgs("user-1").
		WillReturnRows(rows)

	access, err := store.CheckSubscriptionAccess(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cars": 0, "homes": -1, "jobs": 4}, access.CanPost)
	remaining, ok := access.Remaining("homes")
	assert.True(t, ok)
	assert.Equal(t, -1, remaining)
	_, ok = access.Remaining("tenders")
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}
