package memory

import (
	"context"
	"strings"

	"github.com/petcare/apiserver/internal/store"
	"github.com/petcare/apiserver/types"
)

type PetRepository struct {
	db *DB
}

func petMatches(pet types.Pet, filter types.PetFilter) bool {
	if filter.OwnerID > 0 && pet.OwnerID != filter.OwnerID {
		return false
	}
	if category := strings.TrimSpace(filter.Category); category != "" && !strings.EqualFold(pet.Category, category) {
		return false
	}
	if filter.IsAvailable != nil && pet.IsAvailable != *filter.IsAvailable {
		return false
	}
	return true
}

func (r *PetRepository) List(_ context.Context, filter types.PetFilter, offset, limit int) ([]types.Pet, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	pets := make([]types.Pet, 0, len(r.db.pets))
	for _, pet := range r.db.pets {
		if petMatches(pet, filter) {
			pets = append(pets, pet)
		}
	}
	sortPets(pets)
	return page(pets, offset, limit), len(pets), nil
}

func (r *PetRepository) Get(_ context.Context, id int) (types.Pet, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	pet, ok := r.db.pets[id]
	if !ok {
		return types.Pet{}, store.ErrNotFound
	}
	return pet, nil
}

func (r *PetRepository) Create(_ context.Context, pet types.Pet) (types.Pet, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.nextPetID++
	now := r.db.now()
	pet.ID = r.db.nextPetID
	pet.CreatedAt = now
	pet.UpdatedAt = now
	r.db.pets[pet.ID] = pet
	return pet, nil
}

func (r *PetRepository) Update(_ context.Context, pet types.Pet) (types.Pet, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.pets[pet.ID]
	if !ok || current.OwnerID != pet.OwnerID {
		return types.Pet{}, store.ErrNotFound
	}
	// The adopted flag only changes through an approval.
	if current.IsAdopted && pet.IsAvailable {
		return types.Pet{}, store.ErrPetUnavailable
	}
	pet.IsAdopted = current.IsAdopted
	pet.CreatedAt = current.CreatedAt
	pet.UpdatedAt = r.db.now()
	r.db.pets[pet.ID] = pet
	return pet, nil
}

func (r *PetRepository) Delete(_ context.Context, id, ownerID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	pet, ok := r.db.pets[id]
	if !ok || pet.OwnerID != ownerID {
		return store.ErrNotFound
	}
	r.db.deletePet(id)
	return nil
}

// deletePet drops the pet and its requests. Callers hold the write lock.
func (db *DB) deletePet(id int) {
	delete(db.pets, id)
	for requestID, request := range db.requests {
		if request.PetID == id {
			delete(db.requests, requestID)
		}
	}
}
