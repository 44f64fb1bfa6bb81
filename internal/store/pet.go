package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/petcare/apiserver/types"
)

// PetRepository handles persistence for pets.
type PetRepository struct {
	db *sql.DB
}

func NewPetRepository(db *sql.DB) *PetRepository {
	return &PetRepository{db: db}
}

const petColumns = `id, owner_id, category, name, breed, age, gender, color, weight, temperament, location, diet, notes, image, is_available, is_adopted, created_at, updated_at`

func scanPet(row rowScanner) (types.Pet, error) {
	var pet types.Pet
	err := row.Scan(
		&pet.ID,
		&pet.OwnerID,
		&pet.Category,
		&pet.Name,
		&pet.Breed,
		&pet.Age,
		&pet.Gender,
		&pet.Color,
		&pet.Weight,
		&pet.Temperament,
		&pet.Location,
		&pet.Diet,
		&pet.Notes,
		&pet.Image,
		&pet.IsAvailable,
		&pet.IsAdopted,
		&pet.CreatedAt,
		&pet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Pet{}, ErrNotFound
		}
		return types.Pet{}, err
	}
	return pet, nil
}

func petWhere(filter types.PetFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.OwnerID > 0 {
		args = append(args, filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		args = append(args, category)
		clauses = append(clauses, fmt.Sprintf("LOWER(category) = LOWER($%d)", len(args)))
	}
	if filter.IsAvailable != nil {
		args = append(args, *filter.IsAvailable)
		clauses = append(clauses, fmt.Sprintf("is_available = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *PetRepository) List(ctx context.Context, filter types.PetFilter, offset, limit int) ([]types.Pet, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := petWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM pets`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(
		`SELECT %s FROM pets%s ORDER BY created_at DESC, id DESC OFFSET $%d LIMIT $%d`,
		petColumns, where, len(args)+1, len(args)+2,
	)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	pets := make([]types.Pet, 0, limit)
	for rows.Next() {
		pet, err := scanPet(rows)
		if err != nil {
			return nil, 0, err
		}
		pets = append(pets, pet)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return pets, total, nil
}

func (r *PetRepository) Get(ctx context.Context, id int) (types.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE id = $1`
	return scanPet(r.db.QueryRowContext(ctx, query, id))
}

func (r *PetRepository) Create(ctx context.Context, pet types.Pet) (types.Pet, error) {
	now := time.Now()
	pet.CreatedAt = now
	pet.UpdatedAt = now

	const query = `
		INSERT INTO pets (owner_id, category, name, breed, age, gender, color, weight, temperament,
		                  location, diet, notes, image, is_available, is_adopted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		pet.OwnerID,
		pet.Category,
		pet.Name,
		pet.Breed,
		pet.Age,
		pet.Gender,
		pet.Color,
		pet.Weight,
		pet.Temperament,
		pet.Location,
		pet.Diet,
		pet.Notes,
		pet.Image,
		pet.IsAvailable,
		pet.IsAdopted,
		pet.CreatedAt,
		pet.UpdatedAt,
	).Scan(&pet.ID); err != nil {
		return types.Pet{}, err
	}

	return pet, nil
}

// Update rewrites the listing. The owner column is part of the WHERE
// clause so a pet can only be changed under its stored owner. The adopted
// flag is owned by the approval path and is never written here; a pet
// that was adopted cannot be put back on the market, even when the caller
// read it before the approval committed.
func (r *PetRepository) Update(ctx context.Context, pet types.Pet) (types.Pet, error) {
	pet.UpdatedAt = time.Now()

	const query = `
		UPDATE pets
		SET category = $1,
			name = $2,
			breed = $3,
			age = $4,
			gender = $5,
			color = $6,
			weight = $7,
			temperament = $8,
			location = $9,
			diet = $10,
			notes = $11,
			image = $12,
			is_available = $13,
			updated_at = $14
		WHERE id = $15 AND owner_id = $16 AND NOT (is_adopted AND $13)
		RETURNING is_available, is_adopted`
	err := r.db.QueryRowContext(
		ctx,
		query,
		pet.Category,
		pet.Name,
		pet.Breed,
		pet.Age,
		pet.Gender,
		pet.Color,
		pet.Weight,
		pet.Temperament,
		pet.Location,
		pet.Diet,
		pet.Notes,
		pet.Image,
		pet.IsAvailable,
		pet.UpdatedAt,
		pet.ID,
		pet.OwnerID,
	).Scan(&pet.IsAvailable, &pet.IsAdopted)
	if err == nil {
		return pet, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Pet{}, err
	}

	// Nothing matched: either the pet is gone or it was adopted meanwhile.
	var adopted bool
	err = r.db.QueryRowContext(ctx, `SELECT is_adopted FROM pets WHERE id = $1 AND owner_id = $2`, pet.ID, pet.OwnerID).Scan(&adopted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return types.Pet{}, ErrNotFound
	case err != nil:
		return types.Pet{}, err
	case adopted:
		return types.Pet{}, ErrPetUnavailable
	default:
		return types.Pet{}, ErrNotFound
	}
}

// Delete removes a pet owned by ownerID.
func (r *PetRepository) Delete(ctx context.Context, id, ownerID int) error {
	const query = `DELETE FROM pets WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
