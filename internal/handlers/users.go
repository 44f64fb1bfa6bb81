package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petcare/apiserver/internal/errs"
	"github.com/petcare/apiserver/internal/services"
	"github.com/petcare/apiserver/types"
)

// UserHandler serves the signed-in user's profile and dashboards.
type UserHandler struct {
	users     *services.UserService
	pets      *services.PetService
	adoptions *services.AdoptionService
}

func NewUserHandler(users *services.UserService, pets *services.PetService, adoptions *services.AdoptionService) *UserHandler {
	return &UserHandler{users: users, pets: pets, adoptions: adoptions}
}

// UserRouter registers /users routes. Every route requires authentication.
func UserRouter(r chi.Router, users *services.UserService, pets *services.PetService, adoptions *services.AdoptionService, mw *AuthMiddleware) {
	handler := NewUserHandler(users, pets, adoptions)

	r.Use(mw.RequireAuth)
	r.Get("/profile", handler.GetProfile)
	r.Put("/profile", handler.UpdateProfile)
	r.Delete("/profile", handler.DeleteProfile)
	r.Get("/stats", handler.Stats)
	r.Patch("/verify-email", handler.VerifyEmail)
	r.Patch("/change-role", handler.ChangeRole)
	r.With(RequireRole(types.RoleOwner)).Get("/pets", handler.ListPets)
	r.With(RequireRole(types.RoleAdopter)).Get("/adoption-requests", handler.ListAdoptionRequests)
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Age      *int    `json:"age"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

type ChangeRoleRequest struct {
	NewRole string `json:"new_role"`
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.Get(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), principal.UserID, types.ProfileUpdate{
		FullName: req.FullName,
		Age:      req.Age,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), principal.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "account deleted"})
}

func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.users.Stats(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.VerifyEmail(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req ChangeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.ChangeRole(r.Context(), principal.UserID, req.NewRole)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ListPets(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
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

	items, total, err := h.pets.ListOwned(r.Context(), principal, filter, offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.PetView]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *UserHandler) ListAdoptionRequests(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, total, err := h.adoptions.ListMine(r.Context(), principal, r.URL.Query().Get("status"), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.AdoptionRequestSummary]{Items: items, Page: page, Limit: limit, Total: total})
}

func parsePetFilter(r *http.Request) (types.PetFilter, error) {
	available, err := parseOptionalBool(r.URL.Query().Get("is_available"))
	if err != nil {
		return types.PetFilter{}, errs.Validation("invalid is_available")
	}
	return types.PetFilter{
		Category:    r.URL.Query().Get("category"),
		IsAvailable: available,
	}, nil
}
