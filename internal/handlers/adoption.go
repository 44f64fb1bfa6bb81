package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/petcare/apiserver/internal/errs"
	"github.com/petcare/apiserver/internal/services"
	"github.com/petcare/apiserver/types"
)

var errInvalidPetID = errs.Validation("pet_id is required and must be a positive integer")

// AdoptionHandler exposes the adoption request lifecycle over HTTP.
type AdoptionHandler struct {
	adoptions *services.AdoptionService
}

func NewAdoptionHandler(adoptions *services.AdoptionService) *AdoptionHandler {
	return &AdoptionHandler{adoptions: adoptions}
}

// AdoptionRouter registers /adoption-requests routes. Every route requires authentication.
func AdoptionRouter(r chi.Router, adoptions *services.AdoptionService, mw *AuthMiddleware) {
	handler := NewAdoptionHandler(adoptions)

	r.Use(mw.RequireAuth)
	r.Post("/", handler.Create)
	r.Get("/received", handler.ListReceived)
	r.Route("/{requestID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Post("/approve", handler.Approve)
		r.Post("/reject", handler.Reject)
	})
}

type CreateAdoptionResponse struct {
	RequestID int                 `json:"request_id"`
	Status    types.RequestStatus `json:"status"`
	Message   string              `json:"message"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

// takePetID removes pet_id (or petId) from the questionnaire and parses it.
// Clients send it either as a number or as a numeric string.
func takePetID(q types.Questionnaire) (int, error) {
	var raw any
	for _, key := range []string{"pet_id", "petId"} {
		if v, ok := q[key]; ok {
			raw = v
			delete(q, key)
		}
	}

	switch v := raw.(type) {
	case json.Number:
		id, err := strconv.Atoi(v.String())
		if err != nil || id < 1 {
			return 0, errInvalidPetID
		}
		return id, nil
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || id < 1 {
			return 0, errInvalidPetID
		}
		return id, nil
	default:
		return 0, errInvalidPetID
	}
}

func (h *AdoptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	decoder.UseNumber()
	var questionnaire types.Questionnaire
	if err := decoder.Decode(&questionnaire); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, errInvalidBody.WithMessage("request body is required"))
			return
		}
		writeError(w, r, errInvalidBody)
		return
	}
	if questionnaire == nil {
		writeError(w, r, errInvalidPetID)
		return
	}

	petID, err := takePetID(questionnaire)
	if err != nil {
		writeError(w, r, err)
		return
	}

	request, err := h.adoptions.Create(r.Context(), principal, petID, questionnaire)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateAdoptionResponse{
		RequestID: request.ID,
		Status:    request.Status,
		Message:   "adoption request submitted",
	})
}

func (h *AdoptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID(r, "requestID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	request, err := h.adoptions.Get(r.Context(), principal, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *AdoptionHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
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
	petID, err := parseOptionalInt(r.URL.Query().Get("pet_id"))
	if err != nil || petID < 0 {
		writeError(w, r, errs.Validation("invalid pet_id"))
		return
	}

	items, total, err := h.adoptions.ListReceived(r.Context(), principal, petID, r.URL.Query().Get("status"), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.AdoptionRequestSummary]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *AdoptionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID(r, "requestID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	request, err := h.adoptions.Approve(r.Context(), principal, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *AdoptionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseID(r, "requestID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The reason is optional, so an empty body is accepted.
	var req RejectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, errInvalidBody)
		return
	}

	request, err := h.adoptions.Reject(r.Context(), principal, id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}
