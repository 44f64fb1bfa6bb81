package memory

import (
	"context"
	"strings"

	"github.com/petcare/apiserver/internal/store"
	"github.com/petcare/apiserver/types"
)

type UserRepository struct {
	db *DB
}

func (r *UserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	user, ok := r.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	user, ok := r.db.userByEmail(email)
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (db *DB) userByEmail(email string) (types.User, bool) {
	email = strings.TrimSpace(email)
	for _, user := range db.users {
		if strings.EqualFold(user.Email, email) {
			return user, true
		}
	}
	return types.User{}, false
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := r.db.userByEmail(user.Email); exists {
		return types.User{}, store.ErrDuplicateEmail
	}

	r.db.nextUserID++
	now := r.db.now()
	user.ID = r.db.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.db.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Email = current.Email
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.db.now()
	r.db.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) UpdateRole(_ context.Context, id int, from, to types.Role) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if user.Role != from {
		return store.ErrConflict
	}
	user.Role = to
	user.UpdatedAt = r.db.now()
	r.db.users[id] = user
	return nil
}

func (r *UserRepository) SetActive(_ context.Context, email string, active bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.userByEmail(email)
	if !ok {
		return store.ErrNotFound
	}
	user.IsActive = active
	user.UpdatedAt = r.db.now()
	r.db.users[user.ID] = user
	return nil
}

func (r *UserRepository) Touch(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.UpdatedAt = r.db.now()
	r.db.users[id] = user
	return nil
}

// Delete removes the user with their pets and requests, matching the
// cascading foreign keys of the SQL schema.
func (r *UserRepository) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.users, id)
	for petID, pet := range r.db.pets {
		if pet.OwnerID == id {
			r.db.deletePet(petID)
		}
	}
	for requestID, request := range r.db.requests {
		if request.AdopterID == id {
			delete(r.db.requests, requestID)
		}
	}
	return nil
}

func (r *UserRepository) Stats(_ context.Context, user types.User) (types.UserStats, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	stats := types.UserStats{Role: user.Role, JoinDate: user.CreatedAt}
	if user.Role == types.RoleOwner {
		for _, pet := range r.db.pets {
			if pet.OwnerID != user.ID {
				continue
			}
			stats.TotalPets++
			if pet.IsAvailable {
				stats.AvailablePets++
			}
			if pet.IsAdopted {
				stats.AdoptedPets++
			}
		}
		for _, request := range r.db.requests {
			if r.db.pets[request.PetID].OwnerID == user.ID {
				stats.ReceivedRequests++
			}
		}
		stats.TotalActivity = stats.TotalPets + stats.ReceivedRequests
		return stats, nil
	}

	for _, request := range r.db.requests {
		if request.AdopterID != user.ID {
			continue
		}
		stats.TotalRequests++
		switch request.Status {
		case types.StatusPending:
			stats.PendingRequests++
		case types.StatusApproved:
			stats.ApprovedRequests++
		case types.StatusRejected:
			stats.RejectedRequests++
		}
	}
	stats.TotalActivity = stats.TotalRequests
	return stats, nil
}
