package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petcare/apiserver/types"
)

var userColumnNames = []string{"id", "full_name", "email", "password_hash", "role", "is_active", "phone", "address", "age", "email_verified", "created_at", "updated_at"}

func newUserMock(t *testing.T) (sqlmock.Sqlmock, *UserRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, NewUserRepository(db)
}

func TestGetUserByEmailIsCaseInsensitive(t *testing.T) {
	mock, repo := newUserMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE LOWER(email) = LOWER($1)`)).
		WithArgs("Ann@X.com").
		WillReturnRows(sqlmock.NewRows(userColumnNames).
			AddRow(20, "Ann", "ann@x.com", "hash", "Adopter", true, "", "", nil, false, now, now))

	user, err := repo.GetByEmail(context.Background(), " Ann@X.com ")
	require.NoError(t, err)
	assert.Equal(t, 20, user.ID)
	assert.Equal(t, types.RoleAdopter, user.Role)
	assert.Nil(t, user.Age)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByIDNotFound(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows(userColumnNames))

	_, err := repo.GetByID(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.User{FullName: "Ann", Email: "ANN@x.com", Role: types.RoleAdopter})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreateUserLowercasesEmail(t *testing.T) {
	mock, repo := newUserMock(t)
	age := 30

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("Ann", "ann@x.com", "hash", "Adopter", true, "", "", int64(30), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))

	user, err := repo.Create(context.Background(), types.User{
		FullName:     "Ann",
		Email:        " ANN@x.com",
		PasswordHash: "hash",
		Role:         types.RoleAdopter,
		IsActive:     true,
		Age:          &age,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, user.ID)
	assert.Equal(t, "ann@x.com", user.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRoleConflict(t *testing.T) {
	mock, repo := newUserMock(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET role = $1`)).
		WithArgs("Owner", sqlmock.AnyArg(), 20, "Adopter").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(userColumnNames).
			AddRow(20, "Ann", "ann@x.com", "hash", "Owner", true, "", "", nil, false, now, now))

	err := repo.UpdateRole(context.Background(), 20, types.RoleAdopter, types.RoleOwner)
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserMissing(t *testing.T) {
	mock, repo := newUserMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Delete(context.Background(), 99), ErrNotFound)
}
