package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return NewRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func siteColumns() []string {
	return []string{
		"id", "user_id", "domain", "title", "admin_email", "admin_user",
		"db_name", "db_user", "db_password", "status",
		"install_log", "error_log", "created_at", "updated_at",
	}
}

func siteRow(id int64, userID int64, domain string, status SiteStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(siteColumns()).AddRow(
		id, userID, domain, "Test Site", "admin@"+domain, "admin",
		"cp_test", "cp_test", "secret", status,
		nil, nil, now, now,
	)
}

func TestCreateSite(t *testing.T) {
	repo, mock := newMockRepo(t)

	site := &Site{
		UserID:     1,
		Domain:     "foo.example.com",
		Title:      "Foo",
		AdminEmail: "admin@foo.example.com",
		AdminUser:  "admin",
		DBName:     "cp_foo_example_com",
		DBUser:     "cp_foo_example_com",
		DBPassword: "secret",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sites WHERE user_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`INSERT INTO sites`).
		WithArgs(int64(1), "foo.example.com", "Foo", "admin@foo.example.com", "admin",
			"cp_foo_example_com", "cp_foo_example_com", "secret", StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "created_at", "updated_at"}).
			AddRow(7, StatusPending, time.Now(), time.Now()))
	mock.ExpectCommit()

	err := repo.CreateSite(context.Background(), site, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(7), site.ID)
	assert.Equal(t, StatusPending, site.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSiteLimitReached(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sites WHERE user_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	err := repo.CreateSite(context.Background(), &Site{UserID: 1, Domain: "foo.example.com"}, 5)
	assert.ErrorIs(t, err, ErrSiteLimitReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSiteDuplicateDomain(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sites WHERE user_id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO sites`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateSite(context.Background(), &Site{UserID: 1, Domain: "foo.example.com"}, 5)
	assert.ErrorIs(t, err, ErrDomainTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionSite(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE sites SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
	)).
		WithArgs(StatusInstalling, int64(1), StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.TransitionSite(context.Background(), 1, StatusPending, StatusInstalling)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionSiteStaleStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	// The row is no longer in the expected state; the guarded UPDATE
	// matches nothing.
	mock.ExpectExec(`UPDATE sites SET status`).
		WithArgs(StatusDeleted, int64(1), StatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TransitionSite(context.Background(), 1, StatusActive, StatusDeleted)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionSiteRejectsIllegalStep(t *testing.T) {
	repo, mock := newMockRepo(t)

	// No SQL expected: the transition table rejects it before any query.
	err := repo.TransitionSite(context.Background(), 1, StatusPending, StatusActive)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	err = repo.TransitionSite(context.Background(), 1, StatusInstalling, StatusDeleted)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSiteFailed(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE sites SET status`).
		WithArgs(StatusFailed, "database creation failed: Database error", int64(3), StatusInstalling).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSiteFailed(context.Background(), 3, "database creation failed: Database error")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserSite(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM sites WHERE id = $1 AND user_id = $2`)).
		WithArgs(int64(7), int64(1)).
		WillReturnRows(siteRow(7, 1, "foo.example.com", StatusActive))

	site, err := repo.GetUserSite(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "foo.example.com", site.Domain)
	assert.Equal(t, StatusActive, site.Status)
}

func TestGetUserSiteNotOwned(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM sites WHERE id = $1 AND user_id = $2`)).
		WithArgs(int64(7), int64(2)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserSite(context.Background(), 7, 2)
	assert.ErrorIs(t, err, ErrSiteNotFound)
}
