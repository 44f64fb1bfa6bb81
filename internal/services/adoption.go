package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/petcare/apiserver/internal/auth"
	"github.com/petcare/apiserver/internal/errs"
	"github.com/petcare/apiserver/internal/observability/metrics"
	"github.com/petcare/apiserver/internal/store"
	"github.com/petcare/apiserver/types"
)

// SiblingRejectionReason is recorded on pending requests that lose out
// when another request for the same pet is approved.
const SiblingRejectionReason = "Another adoption request for this pet was approved."

const maxRejectionReasonLength = 500

// AdoptionRequestRepository defines persistence operations for adoption requests.
type AdoptionRequestRepository interface {
	Create(ctx context.Context, request types.AdoptionRequest) (types.AdoptionRequest, error)
	Get(ctx context.Context, id int) (types.AdoptionRequest, error)
	List(ctx context.Context, filter types.RequestFilter, offset, limit int) ([]types.AdoptionRequestSummary, int, error)
	UpdateStatus(ctx context.Context, change types.StatusChange) (types.AdoptionRequest, error)
}

// PetLookup resolves the pet a request refers to.
type PetLookup interface {
	Get(ctx context.Context, id int) (types.Pet, error)
}

// AdoptionService manages the lifecycle of adoption requests:
// Pending moves once to Approved or Rejected and never leaves them.
type AdoptionService struct {
	requests AdoptionRequestRepository
	pets     PetLookup
	logger   *slog.Logger
}

func NewAdoptionService(requests AdoptionRequestRepository, pets PetLookup, logger *slog.Logger) *AdoptionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdoptionService{requests: requests, pets: pets, logger: logger}
}

// applicantContact holds the questionnaire fields every request must carry.
type applicantContact struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

func (c applicantContact) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FullName, validation.Required),
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Phone, validation.Required),
		validation.Field(&c.Address, validation.Required),
	)
}

// firstString returns the first non-blank string value among keys.
func firstString(q types.Questionnaire, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(q.String(key)); v != "" {
			return v
		}
	}
	return ""
}

func contactOf(q types.Questionnaire) applicantContact {
	return applicantContact{
		FullName: firstString(q, "full_name", "fullName"),
		Email:    firstString(q, "email"),
		Phone:    firstString(q, "phone"),
		Address:  firstString(q, "address"),
	}
}

// normalizeQuestionnaire stores the contact fields under their snake_case
// keys so listings can read them back.
func normalizeQuestionnaire(q types.Questionnaire, contact applicantContact) types.Questionnaire {
	out := make(types.Questionnaire, len(q)+4)
	for k, v := range q {
		out[k] = v
	}
	delete(out, "fullName")
	out["full_name"] = contact.FullName
	out["email"] = contact.Email
	out["phone"] = contact.Phone
	out["address"] = contact.Address
	return out
}

func record(action string, err error) {
	result := "ok"
	if err != nil {
		result = errs.CodeOf(err)
	}
	metrics.AdoptionRequestsTotal.WithLabelValues(action, result).Inc()
}

// Create files a Pending request by principal for petID.
// Checks run in order: pet exists, pet is available, contact fields present.
// Availability is checked again by the repository inside the insert, so a
// concurrent approval cannot let a request through for an adopted pet.
func (s *AdoptionService) Create(ctx context.Context, principal auth.Principal, petID int, questionnaire types.Questionnaire) (request types.AdoptionRequest, err error) {
	defer func() { record("create", err) }()

	if err := auth.RequireRole(principal, types.RoleAdopter); err != nil {
		return types.AdoptionRequest{}, err
	}

	pet, err := s.pets.Get(ctx, petID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AdoptionRequest{}, ErrPetNotFound
		}
		return types.AdoptionRequest{}, err
	}
	if !pet.IsAvailable {
		return types.AdoptionRequest{}, ErrPetUnavailable
	}

	contact := contactOf(questionnaire)
	if err := asValidation(contact.Validate()); err != nil {
		return types.AdoptionRequest{}, err
	}

	created, err := s.requests.Create(ctx, types.AdoptionRequest{
		PetID:         pet.ID,
		AdopterID:     principal.UserID,
		Questionnaire: normalizeQuestionnaire(questionnaire, contact),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.AdoptionRequest{}, ErrPetNotFound
		case errors.Is(err, store.ErrPetUnavailable):
			return types.AdoptionRequest{}, ErrPetUnavailable
		}
		return types.AdoptionRequest{}, err
	}

	s.logger.Info("adoption request created", "request_id", created.ID, "pet_id", pet.ID, "adopter_id", principal.UserID)
	return created, nil
}

// Approve accepts a Pending request. The pet becomes adopted and its other
// pending requests are rejected in the same unit of work.
func (s *AdoptionService) Approve(ctx context.Context, principal auth.Principal, requestID int) (request types.AdoptionRequest, err error) {
	defer func() { record("approve", err) }()

	return s.decide(ctx, principal, requestID, types.StatusApproved, "")
}

// Reject declines a Pending request with an optional reason.
func (s *AdoptionService) Reject(ctx context.Context, principal auth.Principal, requestID int, reason string) (request types.AdoptionRequest, err error) {
	defer func() { record("reject", err) }()

	return s.decide(ctx, principal, requestID, types.StatusRejected, strings.TrimSpace(reason))
}

func (s *AdoptionService) decide(ctx context.Context, principal auth.Principal, requestID int, to types.RequestStatus, reason string) (types.AdoptionRequest, error) {
	request, pet, err := s.load(ctx, requestID)
	if err != nil {
		return types.AdoptionRequest{}, err
	}
	if err := auth.RequireOwnership(principal, pet.OwnerID); err != nil {
		return types.AdoptionRequest{}, err
	}
	if !request.Status.CanTransitionTo(to) {
		return types.AdoptionRequest{}, ErrInvalidTransition
	}
	if len([]rune(reason)) > maxRejectionReasonLength {
		return types.AdoptionRequest{}, errs.Validation("reason: the length must be no more than 500")
	}

	change := types.StatusChange{
		RequestID: request.ID,
		PetID:     pet.ID,
		From:      request.Status,
		To:        to,
		Reason:    reason,
	}
	if to == types.StatusApproved {
		change.AdoptPet = true
		change.SiblingReason = SiblingRejectionReason
	}

	updated, err := s.requests.UpdateStatus(ctx, change)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.AdoptionRequest{}, ErrInvalidTransition
		case errors.Is(err, store.ErrNotFound):
			return types.AdoptionRequest{}, ErrPetNotFound
		}
		return types.AdoptionRequest{}, err
	}

	s.logger.Info("adoption request decided",
		"request_id", updated.ID,
		"pet_id", pet.ID,
		"owner_id", principal.UserID,
		"status", updated.Status,
	)
	return updated, nil
}

func (s *AdoptionService) load(ctx context.Context, requestID int) (types.AdoptionRequest, types.Pet, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AdoptionRequest{}, types.Pet{}, ErrRequestNotFound
		}
		return types.AdoptionRequest{}, types.Pet{}, err
	}
	pet, err := s.pets.Get(ctx, request.PetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AdoptionRequest{}, types.Pet{}, ErrPetNotFound
		}
		return types.AdoptionRequest{}, types.Pet{}, err
	}
	return request, pet, nil
}

// Get returns a request to its adopter or to the owner of the pet.
func (s *AdoptionService) Get(ctx context.Context, principal auth.Principal, requestID int) (types.AdoptionRequest, error) {
	request, pet, err := s.load(ctx, requestID)
	if err != nil {
		return types.AdoptionRequest{}, err
	}
	if principal.UserID < 1 || (principal.UserID != request.AdopterID && principal.UserID != pet.OwnerID) {
		return types.AdoptionRequest{}, auth.ErrNotOwner
	}
	return request, nil
}

func parseStatusFilter(raw string) (types.RequestStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	for _, status := range []types.RequestStatus{types.StatusPending, types.StatusApproved, types.StatusRejected} {
		if strings.EqualFold(raw, string(status)) {
			return status, nil
		}
	}
	return "", errs.Validation("status: must be Pending, Approved or Rejected")
}

// ListMine returns the requests principal filed as an adopter.
func (s *AdoptionService) ListMine(ctx context.Context, principal auth.Principal, status string, offset, limit int) ([]types.AdoptionRequestSummary, int, error) {
	if err := auth.RequireRole(principal, types.RoleAdopter); err != nil {
		return nil, 0, err
	}
	parsed, err := parseStatusFilter(status)
	if err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	return s.requests.List(ctx, types.RequestFilter{AdopterID: principal.UserID, Status: parsed}, offset, limit)
}

// ListReceived returns requests for pets principal owns, optionally for one pet.
func (s *AdoptionService) ListReceived(ctx context.Context, principal auth.Principal, petID int, status string, offset, limit int) ([]types.AdoptionRequestSummary, int, error) {
	if err := auth.RequireRole(principal, types.RoleOwner); err != nil {
		return nil, 0, err
	}
	parsed, err := parseStatusFilter(status)
	if err != nil {
		return nil, 0, err
	}
	offset, limit = clampPage(offset, limit)
	return s.requests.List(ctx, types.RequestFilter{OwnerID: principal.UserID, PetID: petID, Status: parsed}, offset, limit)
}
