package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/petcare/apiserver/internal/auth"
	"github.com/petcare/apiserver/internal/storage"
	"github.com/petcare/apiserver/internal/store"
	"github.com/petcare/apiserver/types"
)

// PetRepository defines persistence operations for pets.
type PetRepository interface {
	List(ctx context.Context, filter types.PetFilter, offset, limit int) ([]types.Pet, int, error)
	Get(ctx context.Context, id int) (types.Pet, error)
	Create(ctx context.Context, pet types.Pet) (types.Pet, error)
	Update(ctx context.Context, pet types.Pet) (types.Pet, error)
	Delete(ctx context.Context, id, ownerID int) error
}

// PetService encapsulates pet listing use-cases.
type PetService struct {
	repo   PetRepository
	images *storage.Storage
	logger *slog.Logger

	// requireOwnerRole restricts create/update/delete to role Owner on
	// top of the ownership check.
	requireOwnerRole bool
}

// NewPetService constructs a PetService. images may be nil, in which case
// uploads are refused and only external image URLs can be recorded.
func NewPetService(repo PetRepository, images *storage.Storage, requireOwnerRole bool, logger *slog.Logger) *PetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PetService{repo: repo, images: images, requireOwnerRole: requireOwnerRole, logger: logger}
}

// PetInput is the editable part of a pet listing.
type PetInput struct {
	Category    string  `json:"category"`
	Name        string  `json:"name"`
	Breed       string  `json:"breed"`
	Age         string  `json:"age"`
	Gender      string  `json:"gender"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Temperament string  `json:"temperament"`
	Location    string  `json:"location"`
	Diet        string  `json:"diet"`
	Notes       string  `json:"notes"`
	// Image is an external URL. An uploaded file takes precedence.
	Image       string `json:"image"`
	IsAvailable *bool  `json:"is_available"`
}

func (in PetInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Category, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Breed, validation.Length(0, 100)),
		validation.Field(&in.Age, validation.Length(0, 50)),
		validation.Field(&in.Gender, validation.Length(0, 20)),
		validation.Field(&in.Weight, validation.Min(0.0)),
		validation.Field(&in.Location, validation.Length(0, 200)),
		validation.Field(&in.Notes, validation.Length(0, 2000)),
	)
}

func (in PetInput) trimmed() PetInput {
	in.Category = strings.TrimSpace(in.Category)
	in.Name = strings.TrimSpace(in.Name)
	in.Breed = strings.TrimSpace(in.Breed)
	in.Age = strings.TrimSpace(in.Age)
	in.Gender = strings.TrimSpace(in.Gender)
	in.Color = strings.TrimSpace(in.Color)
	in.Temperament = strings.TrimSpace(in.Temperament)
	in.Location = strings.TrimSpace(in.Location)
	in.Diet = strings.TrimSpace(in.Diet)
	in.Notes = strings.TrimSpace(in.Notes)
	in.Image = strings.TrimSpace(in.Image)
	return in
}

func (in PetInput) applyTo(pet types.Pet) types.Pet {
	pet.Category = in.Category
	pet.Name = in.Name
	pet.Breed = in.Breed
	pet.Age = in.Age
	pet.Gender = in.Gender
	pet.Color = in.Color
	pet.Weight = in.Weight
	pet.Temperament = in.Temperament
	pet.Location = in.Location
	pet.Diet = in.Diet
	pet.Notes = in.Notes
	if in.Image != "" {
		pet.Image = in.Image
	}
	if in.IsAvailable != nil {
		pet.IsAvailable = *in.IsAvailable
	}
	return pet
}

// ImageUpload is a picture sent with a create or update.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *PetService) views(pets []types.Pet, viewerID int) []types.PetView {
	views := make([]types.PetView, 0, len(pets))
	for _, pet := range pets {
		views = append(views, types.PetView{Pet: pet, OwnedByMe: viewerID > 0 && pet.OwnerID == viewerID})
	}
	return views
}

// List returns pets matching filter. viewerID is 0 for anonymous callers.
func (s *PetService) List(ctx context.Context, viewerID int, filter types.PetFilter, offset, limit int) ([]types.PetView, int, error) {
	offset, limit = clampPage(offset, limit)
	pets, total, err := s.repo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return s.views(pets, viewerID), total, nil
}

// ListOwned returns the principal's own listings.
func (s *PetService) ListOwned(ctx context.Context, principal auth.Principal, filter types.PetFilter, offset, limit int) ([]types.PetView, int, error) {
	if err := auth.RequireRole(principal, types.RoleOwner); err != nil {
		return nil, 0, err
	}
	filter.OwnerID = principal.UserID
	return s.List(ctx, principal.UserID, filter, offset, limit)
}

func (s *PetService) Get(ctx context.Context, id int) (types.Pet, error) {
	pet, err := s.repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Pet{}, ErrPetNotFound
	}
	return pet, err
}

func (s *PetService) checkMutator(principal auth.Principal) error {
	if principal.UserID < 1 {
		return auth.ErrNotAuthenticated
	}
	if s.requireOwnerRole {
		return auth.RequireRole(principal, types.RoleOwner)
	}
	return nil
}

func (s *PetService) storeImage(ctx context.Context, upload *ImageUpload) (string, error) {
	if s.images == nil {
		return "", ErrImagesDisabled
	}
	key := s.images.ImageKey(upload.Filename)
	if err := s.images.Put(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		return "", err
	}
	return key, nil
}

func (s *PetService) dropImage(ctx context.Context, ref string) {
	if s.images == nil || !storage.IsImageKey(ref) {
		return
	}
	if err := s.images.Delete(ctx, ref); err != nil {
		s.logger.Warn("delete pet image failed", "key", ref, "error", err)
	}
}

// Create lists a new pet owned by principal.
func (s *PetService) Create(ctx context.Context, principal auth.Principal, input PetInput, upload *ImageUpload) (types.Pet, error) {
	if err := s.checkMutator(principal); err != nil {
		return types.Pet{}, err
	}
	input = input.trimmed()
	if err := asValidation(input.Validate()); err != nil {
		return types.Pet{}, err
	}

	pet := input.applyTo(types.Pet{OwnerID: principal.UserID, IsAvailable: true})
	if upload != nil {
		key, err := s.storeImage(ctx, upload)
		if err != nil {
			return types.Pet{}, err
		}
		pet.Image = key
	}

	created, err := s.repo.Create(ctx, pet)
	if err != nil {
		s.dropImage(ctx, pet.Image)
		return types.Pet{}, err
	}
	return created, nil
}

// Update rewrites a listing. Only the stored owner may change it.
func (s *PetService) Update(ctx context.Context, principal auth.Principal, id int, input PetInput, upload *ImageUpload) (types.Pet, error) {
	if err := s.checkMutator(principal); err != nil {
		return types.Pet{}, err
	}
	input = input.trimmed()
	if err := asValidation(input.Validate()); err != nil {
		return types.Pet{}, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return types.Pet{}, err
	}
	if err := auth.RequireOwnership(principal, current.OwnerID); err != nil {
		return types.Pet{}, err
	}

	pet := input.applyTo(current)
	if pet.IsAdopted && pet.IsAvailable {
		return types.Pet{}, ErrPetUnavailable.WithMessage("an adopted pet cannot be made available again")
	}
	if upload != nil {
		key, err := s.storeImage(ctx, upload)
		if err != nil {
			return types.Pet{}, err
		}
		pet.Image = key
	}

	updated, err := s.repo.Update(ctx, pet)
	if err != nil {
		if pet.Image != current.Image {
			s.dropImage(ctx, pet.Image)
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Pet{}, ErrPetNotFound
		case errors.Is(err, store.ErrPetUnavailable):
			return types.Pet{}, ErrPetUnavailable.WithMessage("the pet was adopted while it was being edited")
		}
		return types.Pet{}, err
	}
	if updated.Image != current.Image {
		s.dropImage(ctx, current.Image)
	}
	return updated, nil
}

// Delete removes a listing and its stored image.
func (s *PetService) Delete(ctx context.Context, principal auth.Principal, id int) error {
	if err := s.checkMutator(principal); err != nil {
		return err
	}
	pet, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.RequireOwnership(principal, pet.OwnerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, principal.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPetNotFound
		}
		return err
	}
	s.dropImage(ctx, pet.Image)
	return nil
}

// Image opens the stored picture of a pet. The caller closes Body.
func (s *PetService) Image(ctx context.Context, id int) (storage.Object, error) {
	pet, err := s.Get(ctx, id)
	if err != nil {
		return storage.Object{}, err
	}
	if s.images == nil || !storage.IsImageKey(pet.Image) {
		return storage.Object{}, ErrImageNotFound
	}
	obj, err := s.images.Get(ctx, pet.Image)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return storage.Object{}, ErrImageNotFound
	}
	return obj, err
}
