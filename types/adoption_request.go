package types

import (
	"encoding/json"
	"time"
)

// RequestStatus is the state of an adoption request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "Pending"
	StatusApproved RequestStatus = "Approved"
	StatusRejected RequestStatus = "Rejected"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether s may move to next.
// Only Pending requests move, and only to Approved or Rejected.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return s == StatusPending && next.Terminal()
}

// Questionnaire is the adopter's application form. Only the contact
// fields drive validation; the rest is stored as submitted.
type Questionnaire map[string]any

// String returns the value of key as a string. Numbers decoded with
// json.Decoder.UseNumber are rendered as written; other types yield "".
func (q Questionnaire) String(key string) string {
	switch value := q[key].(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

// AdoptionRequest is an adopter's application to adopt a pet.
type AdoptionRequest struct {
	// ID is the unique identifier of the request.
	ID int `json:"id" db:"id"`

	// PetID references the pet being applied for.
	PetID int `json:"pet_id" db:"pet_id"`

	// AdopterID references the applicant.
	AdopterID int `json:"adopter_id" db:"adopter_id"`

	// Questionnaire is the full application form as submitted.
	Questionnaire Questionnaire `json:"questionnaire" db:"questionnaire"`

	// Status starts at Pending and becomes Approved or Rejected once.
	Status RequestStatus `json:"status" db:"status"`

	// RejectionReason is set when the owner rejects the request.
	RejectionReason string `json:"rejection_reason,omitempty" db:"rejection_reason"`

	// CreatedAt is the timestamp when the request was submitted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the latest status change.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MarshalQuestionnaire encodes the questionnaire for storage.
func (r AdoptionRequest) MarshalQuestionnaire() ([]byte, error) {
	if r.Questionnaire == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Questionnaire)
}

// AdoptionRequestSummary is a request joined with the pet and its owner,
// as shown in "my requests" and "received requests" listings.
type AdoptionRequestSummary struct {
	ID              int           `json:"id"`
	PetID           int           `json:"pet_id"`
	AdopterID       int           `json:"adopter_id"`
	Status          RequestStatus `json:"status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	PetName     string `json:"pet_name"`
	PetCategory string `json:"pet_category"`
	PetBreed    string `json:"pet_breed,omitempty"`
	PetLocation string `json:"pet_location,omitempty"`
	PetImage    string `json:"pet_image,omitempty"`

	OwnerID    int    `json:"owner_id"`
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
	OwnerPhone string `json:"owner_phone,omitempty"`

	ApplicantName  string `json:"applicant_name"`
	ApplicantEmail string `json:"applicant_email"`
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	AdopterID int
	OwnerID   int
	PetID     int
	Status    RequestStatus
}

// StatusChange describes a conditional status update on a request.
type StatusChange struct {
	RequestID int
	PetID     int
	From      RequestStatus
	To        RequestStatus
	Reason    string

	// AdoptPet marks the pet adopted and unavailable in the same unit of
	// work, and rejects the pet's other pending requests with SiblingReason.
	AdoptPet      bool
	SiblingReason string
}
