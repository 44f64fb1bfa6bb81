package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/petcare/apiserver/types"
)

// AdoptionRequestRepository handles persistence for adoption requests.
type AdoptionRequestRepository struct {
	db *sql.DB
}

func NewAdoptionRequestRepository(db *sql.DB) *AdoptionRequestRepository {
	return &AdoptionRequestRepository{db: db}
}

const requestColumns = `id, pet_id, adopter_id, questionnaire, status, rejection_reason, created_at, updated_at`

func scanRequest(row rowScanner) (types.AdoptionRequest, error) {
	var request types.AdoptionRequest
	var questionnaireJSON []byte
	err := row.Scan(
		&request.ID,
		&request.PetID,
		&request.AdopterID,
		&questionnaireJSON,
		&request.Status,
		&request.RejectionReason,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AdoptionRequest{}, ErrNotFound
		}
		return types.AdoptionRequest{}, err
	}

	if len(questionnaireJSON) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(questionnaireJSON))
		decoder.UseNumber()
		if err := decoder.Decode(&request.Questionnaire); err != nil {
			return types.AdoptionRequest{}, fmt.Errorf("decode questionnaire of request %d: %w", request.ID, err)
		}
	}
	return request, nil
}

// Create inserts a Pending request. The pet row is locked FOR SHARE for
// the duration of the insert, so an approval that flips availability
// either commits before the check or waits until the request exists.
func (r *AdoptionRequestRepository) Create(ctx context.Context, request types.AdoptionRequest) (types.AdoptionRequest, error) {
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now
	request.Status = types.StatusPending

	questionnaireJSON, err := request.MarshalQuestionnaire()
	if err != nil {
		return types.AdoptionRequest{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.AdoptionRequest{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var available bool
	const lockQuery = `SELECT is_available FROM pets WHERE id = $1 FOR SHARE`
	if err := tx.QueryRowContext(ctx, lockQuery, request.PetID).Scan(&available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AdoptionRequest{}, ErrNotFound
		}
		return types.AdoptionRequest{}, err
	}
	if !available {
		return types.AdoptionRequest{}, ErrPetUnavailable
	}

	const insertQuery = `
		INSERT INTO adoption_requests (pet_id, adopter_id, questionnaire, status, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', $5, $6)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertQuery,
		request.PetID,
		request.AdopterID,
		questionnaireJSON,
		request.Status,
		request.CreatedAt,
		request.UpdatedAt,
	).Scan(&request.ID); err != nil {
		return types.AdoptionRequest{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.AdoptionRequest{}, err
	}
	return request, nil
}

func (r *AdoptionRequestRepository) Get(ctx context.Context, id int) (types.AdoptionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM adoption_requests WHERE id = $1`
	return scanRequest(r.db.QueryRowContext(ctx, query, id))
}

func requestWhere(filter types.RequestFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.AdopterID > 0 {
		args = append(args, filter.AdopterID)
		clauses = append(clauses, fmt.Sprintf("ar.adopter_id = $%d", len(args)))
	}
	if filter.OwnerID > 0 {
		args = append(args, filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("p.owner_id = $%d", len(args)))
	}
	if filter.PetID > 0 {
		args = append(args, filter.PetID)
		clauses = append(clauses, fmt.Sprintf("ar.pet_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("ar.status = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns request summaries joined with the pet and its owner.
func (r *AdoptionRequestRepository) List(ctx context.Context, filter types.RequestFilter, offset, limit int) ([]types.AdoptionRequestSummary, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const from = `
		FROM adoption_requests ar
		JOIN pets p ON p.id = ar.pet_id
		JOIN users u ON u.id = p.owner_id`
	where, args := requestWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT ar.id, ar.pet_id, ar.adopter_id, ar.status, ar.rejection_reason, ar.created_at, ar.updated_at,
		       p.name, p.category, p.breed, p.location, p.image,
		       u.id, u.full_name, u.email, u.phone,
		       COALESCE(ar.questionnaire->>'full_name', ''), COALESCE(ar.questionnaire->>'email', '')
		%s%s
		ORDER BY ar.created_at DESC, ar.id DESC
		OFFSET $%d LIMIT $%d`, from, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries := make([]types.AdoptionRequestSummary, 0, limit)
	for rows.Next() {
		var s types.AdoptionRequestSummary
		if err := rows.Scan(
			&s.ID,
			&s.PetID,
			&s.AdopterID,
			&s.Status,
			&s.RejectionReason,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.PetName,
			&s.PetCategory,
			&s.PetBreed,
			&s.PetLocation,
			&s.PetImage,
			&s.OwnerID,
			&s.OwnerName,
			&s.OwnerEmail,
			&s.OwnerPhone,
			&s.ApplicantName,
			&s.ApplicantEmail,
		); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}

// UpdateStatus applies change only if the request is still in change.From.
// It returns ErrConflict when the request moved in the meantime.
func (r *AdoptionRequestRepository) UpdateStatus(ctx context.Context, change types.StatusChange) (types.AdoptionRequest, error) {
	now := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.AdoptionRequest{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var available bool
	const lockQuery = `SELECT is_available FROM pets WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lockQuery, change.PetID).Scan(&available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AdoptionRequest{}, ErrNotFound
		}
		return types.AdoptionRequest{}, err
	}

	updateQuery := `
		UPDATE adoption_requests
		SET status = $1,
			rejection_reason = $2,
			updated_at = $3
		WHERE id = $4 AND pet_id = $5 AND status = $6
		RETURNING ` + requestColumns
	updated, err := scanRequest(tx.QueryRowContext(
		ctx,
		updateQuery,
		change.To,
		change.Reason,
		now,
		change.RequestID,
		change.PetID,
		change.From,
	))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.AdoptionRequest{}, ErrConflict
		}
		return types.AdoptionRequest{}, err
	}

	if change.AdoptPet {
		const adoptQuery = `UPDATE pets SET is_available = FALSE, is_adopted = TRUE, updated_at = $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, adoptQuery, now, change.PetID); err != nil {
			return types.AdoptionRequest{}, err
		}

		const siblingsQuery = `
			UPDATE adoption_requests
			SET status = $1,
				rejection_reason = $2,
				updated_at = $3
			WHERE pet_id = $4 AND status = $5 AND id <> $6`
		if _, err := tx.ExecContext(
			ctx,
			siblingsQuery,
			types.StatusRejected,
			change.SiblingReason,
			now,
			change.PetID,
			types.StatusPending,
			change.RequestID,
		); err != nil {
			return types.AdoptionRequest{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.AdoptionRequest{}, err
	}
	return updated, nil
}
