package memory

import (
	"context"
	"maps"

	"github.com/petcare/apiserver/internal/store"
	"github.com/petcare/apiserver/types"
)

type AdoptionRequestRepository struct {
	db *DB
}

func copyRequest(request types.AdoptionRequest) types.AdoptionRequest {
	if request.Questionnaire != nil {
		request.Questionnaire = maps.Clone(request.Questionnaire)
	}
	return request
}

// Create checks availability and inserts under the same lock, so no
// approval can slip in between the two.
func (r *AdoptionRequestRepository) Create(_ context.Context, request types.AdoptionRequest) (types.AdoptionRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	pet, ok := r.db.pets[request.PetID]
	if !ok {
		return types.AdoptionRequest{}, store.ErrNotFound
	}
	if !pet.IsAvailable {
		return types.AdoptionRequest{}, store.ErrPetUnavailable
	}

	r.db.nextRequestID++
	now := r.db.now()
	request = copyRequest(request)
	request.ID = r.db.nextRequestID
	request.Status = types.StatusPending
	request.RejectionReason = ""
	request.CreatedAt = now
	request.UpdatedAt = now
	r.db.requests[request.ID] = request
	return copyRequest(request), nil
}

func (r *AdoptionRequestRepository) Get(_ context.Context, id int) (types.AdoptionRequest, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	request, ok := r.db.requests[id]
	if !ok {
		return types.AdoptionRequest{}, store.ErrNotFound
	}
	return copyRequest(request), nil
}

func (r *AdoptionRequestRepository) List(_ context.Context, filter types.RequestFilter, offset, limit int) ([]types.AdoptionRequestSummary, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	items := make([]types.AdoptionRequestSummary, 0)
	for _, request := range r.db.requests {
		pet, ok := r.db.pets[request.PetID]
		if !ok {
			continue
		}
		if filter.AdopterID > 0 && request.AdopterID != filter.AdopterID {
			continue
		}
		if filter.OwnerID > 0 && pet.OwnerID != filter.OwnerID {
			continue
		}
		if filter.PetID > 0 && request.PetID != filter.PetID {
			continue
		}
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}

		owner := r.db.users[pet.OwnerID]
		items = append(items, types.AdoptionRequestSummary{
			ID:              request.ID,
			PetID:           request.PetID,
			AdopterID:       request.AdopterID,
			Status:          request.Status,
			RejectionReason: request.RejectionReason,
			CreatedAt:       request.CreatedAt,
			UpdatedAt:       request.UpdatedAt,
			PetName:         pet.Name,
			PetCategory:     pet.Category,
			PetBreed:        pet.Breed,
			PetLocation:     pet.Location,
			PetImage:        pet.Image,
			OwnerID:         owner.ID,
			OwnerName:       owner.FullName,
			OwnerEmail:      owner.Email,
			OwnerPhone:      owner.Phone,
			ApplicantName:   request.Questionnaire.String("full_name"),
			ApplicantEmail:  request.Questionnaire.String("email"),
		})
	}
	sortSummaries(items)
	return page(items, offset, limit), len(items), nil
}

// UpdateStatus applies change only if the request is still in change.From.
func (r *AdoptionRequestRepository) UpdateStatus(_ context.Context, change types.StatusChange) (types.AdoptionRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	pet, ok := r.db.pets[change.PetID]
	if !ok {
		return types.AdoptionRequest{}, store.ErrNotFound
	}
	request, ok := r.db.requests[change.RequestID]
	if !ok || request.PetID != change.PetID || request.Status != change.From {
		return types.AdoptionRequest{}, store.ErrConflict
	}

	now := r.db.now()
	request.Status = change.To
	request.RejectionReason = change.Reason
	request.UpdatedAt = now
	r.db.requests[request.ID] = request

	if change.AdoptPet {
		pet.IsAvailable = false
		pet.IsAdopted = true
		pet.UpdatedAt = now
		r.db.pets[pet.ID] = pet

		for id, sibling := range r.db.requests {
			if sibling.PetID != pet.ID || sibling.Status != types.StatusPending || id == request.ID {
				continue
			}
			sibling.Status = types.StatusRejected
			sibling.RejectionReason = change.SiblingReason
			sibling.UpdatedAt = now
			r.db.requests[id] = sibling
		}
	}

	return copyRequest(request), nil
}
