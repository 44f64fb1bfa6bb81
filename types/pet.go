package types

import "time"

// Pet is an animal listed for adoption by an owner.
type Pet struct {
	// ID is the unique identifier of the pet.
	ID int `json:"id" db:"id"`

	// OwnerID references the user who listed the pet.
	OwnerID int `json:"owner_id" db:"owner_id"`

	// Category is the kind of animal (dog, cat, bird...).
	Category string `json:"category" db:"category"`

	Name        string  `json:"name" db:"name"`
	Breed       string  `json:"breed,omitempty" db:"breed"`
	Age         string  `json:"age,omitempty" db:"age"`
	Gender      string  `json:"gender,omitempty" db:"gender"`
	Color       string  `json:"color,omitempty" db:"color"`
	Weight      float64 `json:"weight,omitempty" db:"weight"`
	Temperament string  `json:"temperament,omitempty" db:"temperament"`
	Location    string  `json:"location,omitempty" db:"location"`
	Diet        string  `json:"diet,omitempty" db:"diet"`
	Notes       string  `json:"notes,omitempty" db:"notes"`

	// Image is an opaque reference to the pet's picture: either an object
	// key in the configured image storage or an external URL.
	Image string `json:"image,omitempty" db:"image"`

	// IsAvailable gates new adoption requests. A pet that is not available
	// cannot receive requests, whatever IsAdopted says.
	IsAvailable bool `json:"is_available" db:"is_available"`

	// IsAdopted is set once an adoption request for the pet is approved.
	IsAdopted bool `json:"is_adopted" db:"is_adopted"`

	// CreatedAt is the timestamp when the pet was listed.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the listing.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PetFilter narrows pet listings. Zero values mean "any".
type PetFilter struct {
	OwnerID     int
	Category    string
	IsAvailable *bool
}

// PetView is a pet as returned by listings, with caller-specific flags.
type PetView struct {
	Pet
	OwnedByMe bool `json:"owned_by_me"`
}
