package handlers

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/petcare/apiserver/internal/auth"
	"github.com/petcare/apiserver/internal/errs"
	"github.com/petcare/apiserver/internal/services"
	"github.com/petcare/apiserver/types"
)

const (
	maxMultipartMemory = 8 << 20
	maxImageBytes      = 5 << 20
	formFieldImage     = "pet_image"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// PetHandler provides HTTP handlers for pet listings.
type PetHandler struct {
	pets *services.PetService
}

func NewPetHandler(pets *services.PetService) *PetHandler {
	return &PetHandler{pets: pets}
}

// PetRouter registers pet routes. Reads are public; writes require auth.
func PetRouter(r chi.Router, pets *services.PetService, mw *AuthMiddleware) {
	handler := NewPetHandler(pets)

	r.With(mw.OptionalAuth).Get("/", handler.ListPets)
	r.With(mw.OptionalAuth).Get("/available", handler.ListAvailable)
	r.With(mw.RequireAuth).Post("/", handler.CreatePet)
	r.Route("/{petID}", func(r chi.Router) {
		r.With(mw.OptionalAuth).Get("/", handler.GetPet)
		r.Get("/image", handler.GetImage)
		r.With(mw.RequireAuth).Put("/", handler.UpdatePet)
		r.With(mw.RequireAuth).Delete("/", handler.DeletePet)
	})
}

func viewerID(r *http.Request) int {
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		return principal.UserID
	}
	return 0
}

func (h *PetHandler) ListPets(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := parsePetFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	viewer := viewerID(r)
	if ownedByMe, _ := strconv.ParseBool(r.URL.Query().Get("owned_by_me")); ownedByMe {
		if viewer == 0 {
			writeError(w, r, auth.ErrNotAuthenticated)
			return
		}
		filter.OwnerID = viewer
	}

	items, total, err := h.pets.List(r.Context(), viewer, filter, offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.PetView]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *PetHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	available := true
	filter := types.PetFilter{Category: r.URL.Query().Get("category"), IsAvailable: &available}
	items, total, err := h.pets.List(r.Context(), viewerID(r), filter, offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.PetView]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *PetHandler) GetPet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "petID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	pet, err := h.pets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	viewer := viewerID(r)
	writeJSON(w, http.StatusOK, types.PetView{Pet: pet, OwnedByMe: viewer > 0 && viewer == pet.OwnerID})
}

func (h *PetHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "petID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	obj, err := h.pets.Image(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}

func (h *PetHandler) CreatePet(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	input, upload, cleanup, err := parsePetRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	pet, err := h.pets.Create(r.Context(), principal, input, upload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.PetView{Pet: pet, OwnedByMe: true})
}

func (h *PetHandler) UpdatePet(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID(r, "petID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	input, upload, cleanup, err := parsePetRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cleanup()

	pet, err := h.pets.Update(r.Context(), principal, id, input, upload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.PetView{Pet: pet, OwnedByMe: true})
}

func (h *PetHandler) DeletePet(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID(r, "petID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.pets.Delete(r.Context(), principal, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "pet deleted"})
}

func noCleanup() {}

// parsePetRequest reads a pet from a JSON body or a multipart form with an
// optional pet_image file. cleanup closes the uploaded file.
func parsePetRequest(w http.ResponseWriter, r *http.Request) (services.PetInput, *services.ImageUpload, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var input services.PetInput
		if err := decodeJSON(r, &input); err != nil {
			return services.PetInput{}, nil, noCleanup, err
		}
		return input, nil, noCleanup, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.PetInput{}, nil, noCleanup, errs.Validation("invalid multipart form")
	}

	weight, err := parseOptionalFloat(r.FormValue("weight"))
	if err != nil {
		return services.PetInput{}, nil, noCleanup, errs.Validation("invalid weight")
	}
	available, err := parseOptionalBool(r.FormValue("is_available"))
	if err != nil {
		return services.PetInput{}, nil, noCleanup, errs.Validation("invalid is_available")
	}

	input := services.PetInput{
		Category:    r.FormValue("category"),
		Name:        r.FormValue("name"),
		Breed:       r.FormValue("breed"),
		Age:         r.FormValue("age"),
		Gender:      r.FormValue("gender"),
		Color:       r.FormValue("color"),
		Weight:      weight,
		Temperament: r.FormValue("temperament"),
		Location:    r.FormValue("location"),
		Diet:        r.FormValue("diet"),
		Notes:       r.FormValue("notes"),
		Image:       r.FormValue("image"),
		IsAvailable: available,
	}

	files := r.MultipartForm.File[formFieldImage]
	if len(files) == 0 {
		return input, nil, noCleanup, nil
	}
	if len(files) > 1 {
		return services.PetInput{}, nil, noCleanup, errs.Validation("only one pet_image file is allowed")
	}

	header := files[0]
	if header.Size > maxImageBytes {
		return services.PetInput{}, nil, noCleanup, errs.Validation("pet_image must be at most 5MB")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(strings.ToLower(path.Ext(header.Filename)))
	}
	if !allowedImageTypes[contentType] {
		return services.PetInput{}, nil, noCleanup, errs.Validation("pet_image must be a jpeg, png, gif or webp image")
	}

	file, err := header.Open()
	if err != nil {
		return services.PetInput{}, nil, noCleanup, errs.Validation("failed to read pet_image")
	}
	upload := &services.ImageUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}
	return input, upload, func() { _ = file.Close() }, nil
}

func parseOptionalFloat(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
