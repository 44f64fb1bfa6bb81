// Package memory keeps users, pets and adoption requests in process memory.
// It backs the server's --memory mode and the service tests, and mirrors the
// behaviour of the Postgres repositories in package store.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/petcare/apiserver/types"
)

// DB is the shared state behind the memory repositories. A single lock
// guards all three tables so cross-table operations are atomic.
type DB struct {
	mu sync.RWMutex

	users    map[int]types.User
	pets     map[int]types.Pet
	requests map[int]types.AdoptionRequest

	nextUserID    int
	nextPetID     int
	nextRequestID int

	now func() time.Time
}

// New returns an empty database.
func New() *DB {
	return &DB{
		users:    make(map[int]types.User),
		pets:     make(map[int]types.Pet),
		requests: make(map[int]types.AdoptionRequest),
		now:      time.Now,
	}
}

// WithClock replaces the timestamp source.
func (db *DB) WithClock(now func() time.Time) *DB {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
	return db
}

func (db *DB) Users() *UserRepository {
	return &UserRepository{db: db}
}

func (db *DB) Pets() *PetRepository {
	return &PetRepository{db: db}
}

func (db *DB) AdoptionRequests() *AdoptionRequestRepository {
	return &AdoptionRequestRepository{db: db}
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// newestFirst orders by creation time, then id, both descending.
func newestFirst(aTime, bTime time.Time, aID, bID int) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

func sortPets(pets []types.Pet) {
	sort.Slice(pets, func(i, j int) bool {
		return newestFirst(pets[i].CreatedAt, pets[j].CreatedAt, pets[i].ID, pets[j].ID)
	})
}

func sortSummaries(items []types.AdoptionRequestSummary) {
	sort.Slice(items, func(i, j int) bool {
		return newestFirst(items[i].CreatedAt, items[j].CreatedAt, items[i].ID, items[j].ID)
	})
}
