package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/petcare/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, full_name, email, password_hash, role, is_active, phone, address, age, email_verified, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var age sql.NullInt64
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.Phone,
		&user.Address,
		&age,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		user.Age = &v
	}
	return user, nil
}

func nullableAge(age *int) sql.NullInt64 {
	if age == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*age), Valid: true}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail matches email case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	const query = `
		INSERT INTO users (full_name, email, password_hash, role, is_active, phone, address, age, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.FullName,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.Phone,
		user.Address,
		nullableAge(user.Age),
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, err
	}
	return user, nil
}

// Update writes the mutable profile and account columns of user.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET full_name = $1,
			password_hash = $2,
			role = $3,
			is_active = $4,
			phone = $5,
			address = $6,
			age = $7,
			email_verified = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.FullName,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.Phone,
		user.Address,
		nullableAge(user.Age),
		user.EmailVerified,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// UpdateRole changes the role only when it still equals from, so two
// concurrent role changes cannot both apply.
func (r *UserRepository) UpdateRole(ctx context.Context, id int, from, to types.Role) error {
	const query = `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3 AND role = $4`
	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// SetActive activates or deactivates the account registered under email.
func (r *UserRepository) SetActive(ctx context.Context, email string, active bool) error {
	const query = `UPDATE users SET is_active = $1, updated_at = $2 WHERE LOWER(email) = LOWER($3)`
	result, err := r.db.ExecContext(ctx, query, active, time.Now(), strings.TrimSpace(email))
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Touch bumps updated_at, used as the last-login marker.
func (r *UserRepository) Touch(ctx context.Context, id int) error {
	const query = `UPDATE users SET updated_at = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Delete removes the user. Pets and adoption requests cascade in SQL.
func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Stats computes the role-dependent dashboard counters for a user.
func (r *UserRepository) Stats(ctx context.Context, user types.User) (types.UserStats, error) {
	stats := types.UserStats{Role: user.Role, JoinDate: user.CreatedAt}

	if user.Role == types.RoleOwner {
		const petQuery = `
			SELECT COUNT(1),
			       COUNT(1) FILTER (WHERE is_available),
			       COUNT(1) FILTER (WHERE is_adopted)
			FROM pets
			WHERE owner_id = $1`
		if err := r.db.QueryRowContext(ctx, petQuery, user.ID).Scan(
			&stats.TotalPets,
			&stats.AvailablePets,
			&stats.AdoptedPets,
		); err != nil {
			return types.UserStats{}, err
		}

		const requestQuery = `
			SELECT COUNT(1)
			FROM adoption_requests ar
			JOIN pets p ON p.id = ar.pet_id
			WHERE p.owner_id = $1`
		if err := r.db.QueryRowContext(ctx, requestQuery, user.ID).Scan(&stats.ReceivedRequests); err != nil {
			return types.UserStats{}, err
		}
		stats.TotalActivity = stats.TotalPets + stats.ReceivedRequests
		return stats, nil
	}

	const adopterQuery = `
		SELECT COUNT(1),
		       COUNT(1) FILTER (WHERE status = 'Pending'),
		       COUNT(1) FILTER (WHERE status = 'Approved'),
		       COUNT(1) FILTER (WHERE status = 'Rejected')
		FROM adoption_requests
		WHERE adopter_id = $1`
	if err := r.db.QueryRowContext(ctx, adopterQuery, user.ID).Scan(
		&stats.TotalRequests,
		&stats.PendingRequests,
		&stats.ApprovedRequests,
		&stats.RejectedRequests,
	); err != nil {
		return types.UserStats{}, err
	}
	stats.TotalActivity = stats.TotalRequests
	return stats, nil
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
