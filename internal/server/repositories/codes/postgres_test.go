package codes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var codeColumns = []string{
	"id", "email", "purpose", "code", "state", "attempts", "expires_at", "verified_at", "staged", "created_at", "updated_at",
}

func TestPostgres_ReplaceUpserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(10 * time.Minute)
	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+one_time_codes\b.*ON\s+CONFLICT\s+\(email,\s*purpose\)\s+DO\s+UPDATE\s+SET\s+id\s*=\s*EXCLUDED\.id.*RETURNING\s+created_at,\s*updated_at$`).
		WithArgs(sqlmock.AnyArg(), "a@example.com", "registration", "482913", "pending", exp, `{"firstName":"Ann","lastName":"","loginHash":"l","masterHash":"m"}`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	c := &models.OneTimeCode{
		ID: "old", Email: "a@example.com", Purpose: models.PurposeRegistration, Code: "482913",
		State: models.CodeVerified, Attempts: 2, ExpiresAt: exp,
		Staged: &models.StagedAccount{FirstName: "Ann", LoginHash: "l", MasterHash: "m"},
	}
	got, err := repo.Replace(context.Background(), c)
	require.NoError(t, err)
	assert.NotEqual(t, "old", got.ID)
	assert.Equal(t, models.CodePending, got.State)
	assert.Zero(t, got.Attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceWithoutStaged(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+one_time_codes`).
		WithArgs(sqlmock.AnyArg(), "a@example.com", "two_factor", "1", "pending", sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	_, err := repo.Replace(context.Background(), &models.OneTimeCode{
		Email: "a@example.com", Purpose: models.PurposeTwoFactor, Code: "1", ExpiresAt: now,
	})
	require.NoError(t, err)
}

func TestPostgres_Find(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*FROM\s+one_time_codes\s+WHERE\s+email\s*=\s*\$1\s+AND\s+purpose\s*=\s*\$2$`).
		WithArgs("a@example.com", "password_reset").
		WillReturnRows(sqlmock.NewRows(codeColumns).
			AddRow("id-1", "a@example.com", "password_reset", "123456", "verified", 1, now, now, nil, now, now))

	got, err := repo.Find(context.Background(), "a@example.com", models.PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, models.CodeVerified, got.State)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.VerifiedAt)
	assert.Nil(t, got.Staged)
}

func TestPostgres_FindNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "a@example.com", models.PurposeTwoFactor)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgres_RecordFailure(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+one_time_codes\s+SET\s+attempts\s*=\s*attempts\s*\+\s*1.*WHERE\s+id\s*=\s*\$1\s+AND\s+state\s*=\s*\$2\s+AND\s+attempts\s*<\s*\$3\s+RETURNING\s+attempts$`
	mock.ExpectQuery(q).WithArgs("id-1", "pending", 3).WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))
	mock.ExpectQuery(q).WithArgs("id-1", "pending", 3).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs("id-1", "pending", 3).WillReturnError(errors.New("boom"))

	c := &models.OneTimeCode{ID: "id-1", State: models.CodePending}

	n, err := repo.RecordFailure(context.Background(), c, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.RecordFailure(context.Background(), c, 3)
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	_, err = repo.RecordFailure(context.Background(), c, 3)
	assert.ErrorContains(t, err, "db error")
}

func TestPostgres_Transition(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	q := `(?s)^UPDATE\s+one_time_codes\s+SET\s+state\s*=\s*\$3,\s*verified_at\s*=\s*COALESCE\(\$4,\s*verified_at\).*attempts\s*<\s*\$5.*expires_at\s*>\s*\$6\)$`
	mock.ExpectExec(q).WithArgs("id-1", "pending", "verified", at, 3, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("id-1", "verified", "consumed", nil, 3, at).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Transition(context.Background(),
		&models.OneTimeCode{ID: "id-1", State: models.CodePending}, models.CodeVerified, at, 3))

	err := repo.Transition(context.Background(),
		&models.OneTimeCode{ID: "id-1", State: models.CodeVerified}, models.CodeConsumed, at, 3)
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Deletes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+one_time_codes\s+WHERE\s+email\s*=\s*\$1\s+AND\s+purpose\s*=\s*\$2$`).
		WithArgs("a@example.com", "registration").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+one_time_codes\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("a@example.com").WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.Delete(context.Background(), "a@example.com", models.PurposeRegistration))
	require.NoError(t, repo.DeleteByEmail(context.Background(), "a@example.com"))
}
