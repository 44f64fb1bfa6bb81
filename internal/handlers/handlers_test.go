package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petcare/apiserver/internal/auth"
	"github.com/petcare/apiserver/internal/services"
	"github.com/petcare/apiserver/internal/storage"
	"github.com/petcare/apiserver/internal/store/memory"
)

type testAPI struct {
	t      *testing.T
	router chi.Router
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db := memory.New()
	codec := auth.NewTokenCodec("handlers-test-secret")
	images := storage.NewStorage(storage.NewMemoryBackend("pets"))

	users := services.NewUserService(db.Users(), codec, auth.PasswordVerifier{}, nil)
	pets := services.NewPetService(db.Pets(), images, true, nil)
	adoptions := services.NewAdoptionService(db.AdoptionRequests(), db.Pets(), nil)
	mw := NewAuthMiddleware(auth.NewAuthenticator(codec, db.Users(), nil), nil)

	r := chi.NewRouter()
	r.Get("/api/health", Health)
	r.Route("/auth", func(r chi.Router) { AuthRouter(r, users, mw, nil) })
	r.Route("/users", func(r chi.Router) { UserRouter(r, users, pets, adoptions, mw) })
	r.Route("/pets", func(r chi.Router) { PetRouter(r, pets, mw) })
	r.Route("/adoption-requests", func(r chi.Router) { AdoptionRouter(r, adoptions, mw) })

	return &testAPI{t: t, router: r}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(name, email, role string) string {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/auth/register", "", map[string]any{
		"full_name": name,
		"email":     email,
		"password":  "secret1",
		"role":      role,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var result services.AuthResult
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(a.t, result.Token)
	return result.Token
}

func (a *testAPI) createPet(token, name string) int {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/pets", token, map[string]any{"category": "Dog", "name": name})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var pet struct {
		ID int `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &pet))
	return pet.ID
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func applicationFor(petID any) map[string]any {
	return map[string]any{
		"pet_id":    petID,
		"full_name": "Ann Adopter",
		"email":     "ann@example.com",
		"phone":     "5551234567",
		"address":   "1 Main Street",
		"has_yard":  true,
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, Version, body.Version)
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("Ann Adopter", "ann@example.com", "")

	rec := api.do(http.MethodPost, "/auth/register", "", map[string]any{
		"full_name": "Ann Again", "email": "ANN@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email_taken", decodeBody[ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "ann@example.com", Password: "nope!!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeBody[ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodPost, "/auth/login", "", LoginRequest{Email: "ann@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_token", decodeBody[ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodGet, "/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ann@example.com", me["email"])
	assert.NotContains(t, me, "password_hash")

	rec = api.do(http.MethodPost, "/auth/check-email", "", CheckEmailRequest{Email: "ann@example.com"})
	assert.True(t, decodeBody[CheckEmailResponse](t, rec).Exists)

	rec = api.do(http.MethodPost, "/auth/login", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("Ann Adopter", "ann@example.com", "Adopter")

	rec := api.do(http.MethodPut, "/users/profile", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/users/profile", token, map[string]any{"phone": "5551234567"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5551234567", decodeBody[map[string]any](t, rec)["phone"])

	rec = api.do(http.MethodGet, "/users/pets", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPatch, "/users/change-role", token, ChangeRoleRequest{NewRole: "Owner"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/users/pets", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPatch, "/users/verify-email", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["email_verified"])

	rec = api.do(http.MethodDelete, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/users/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "account_not_found", decodeBody[ErrorResponse](t, rec).Code)
}

func TestPetEndpoints(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("Olive Owner", "olive@example.com", "Owner")
	adopter := api.register("Ann Adopter", "ann@example.com", "Adopter")

	rec := api.do(http.MethodPost, "/pets", adopter, map[string]any{"category": "Dog", "name": "Rex"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/pets", "", map[string]any{"category": "Dog", "name": "Rex"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	petID := api.createPet(owner, "Rex")
	api.createPet(owner, "Fido")

	rec = api.do(http.MethodGet, "/pets?limit=1", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ListResponse[map[string]any]](t, rec)
	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, true, list.Items[0]["owned_by_me"])

	rec = api.do(http.MethodGet, "/pets?owned_by_me=true", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/pets?is_available=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, fmt.Sprintf("/pets/%d", petID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody[map[string]any](t, rec)["owned_by_me"])

	rec = api.do(http.MethodPut, fmt.Sprintf("/pets/%d", petID), adopter, map[string]any{"category": "Dog", "name": "Stolen"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPut, fmt.Sprintf("/pets/%d", petID), owner, map[string]any{"category": "Dog", "name": "Rex", "notes": "calm"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "calm", decodeBody[map[string]any](t, rec)["notes"])

	rec = api.do(http.MethodDelete, fmt.Sprintf("/pets/%d", petID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, fmt.Sprintf("/pets/%d", petID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/pets/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPetImageUpload(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("Olive Owner", "olive@example.com", "Owner")

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("category", "Cat"))
	require.NoError(t, form.WriteField("name", "Tom"))
	require.NoError(t, form.WriteField("weight", "4.5"))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="pet_image"; filename="tom.png"`)
	header.Set("Content-Type", "image/png")
	part, err := form.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG-data"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/pets", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+owner)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody[map[string]any](t, rec)
	assert.Equal(t, 4.5, created["weight"])
	assert.Contains(t, created["image"], storage.ImagePrefix)

	rec = api.do(http.MethodGet, fmt.Sprintf("/pets/%v/image", created["id"]), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG-data", rec.Body.String())

	petID := api.createPet(owner, "NoPicture")
	rec = api.do(http.MethodGet, fmt.Sprintf("/pets/%d/image", petID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdoptionRequestFlow(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("Olive Owner", "olive@example.com", "Owner")
	adopter := api.register("Ann Adopter", "ann@example.com", "Adopter")
	petID := api.createPet(owner, "Rex")

	rec := api.do(http.MethodPost, "/adoption-requests", owner, applicationFor(petID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/adoption-requests", adopter, map[string]any{"full_name": "Ann"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/adoption-requests", adopter, applicationFor(fmt.Sprint(petID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[CreateAdoptionResponse](t, rec)
	assert.Equal(t, "Pending", string(first.Status))

	rec = api.do(http.MethodPost, "/adoption-requests", adopter, applicationFor(petID))
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeBody[CreateAdoptionResponse](t, rec)

	rec = api.do(http.MethodGet, fmt.Sprintf("/adoption-requests/%d", first.RequestID), adopter, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/adoption-requests/received?status=pending", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[ListResponse[map[string]any]](t, rec).Total)

	rec = api.do(http.MethodPost, fmt.Sprintf("/adoption-requests/%d/approve", first.RequestID), adopter, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, fmt.Sprintf("/adoption-requests/%d/approve", first.RequestID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Approved", decodeBody[map[string]any](t, rec)["status"])

	rec = api.do(http.MethodPost, fmt.Sprintf("/adoption-requests/%d/reject", first.RequestID), owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decodeBody[ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodGet, fmt.Sprintf("/adoption-requests/%d", second.RequestID), adopter, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	closed := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Rejected", closed["status"])

	rec = api.do(http.MethodPost, "/adoption-requests", adopter, applicationFor(petID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "pet_unavailable", decodeBody[ErrorResponse](t, rec).Code)

	rec = api.do(http.MethodGet, "/users/adoption-requests?status=approved", adopter, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[ListResponse[map[string]any]](t, rec).Total)

	rec = api.do(http.MethodPost, "/adoption-requests/9999/approve", owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectAcceptsOptionalReason(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register("Olive Owner", "olive@example.com", "Owner")
	adopter := api.register("Ann Adopter", "ann@example.com", "Adopter")
	petID := api.createPet(owner, "Rex")

	var ids []int
	for range 2 {
		rec := api.do(http.MethodPost, "/adoption-requests", adopter, applicationFor(petID))
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decodeBody[CreateAdoptionResponse](t, rec).RequestID)
	}

	rec := api.do(http.MethodPost, fmt.Sprintf("/adoption-requests/%d/reject", ids[0]), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rejected", decodeBody[map[string]any](t, rec)["status"])

	rec = api.do(http.MethodPost, fmt.Sprintf("/adoption-requests/%d/reject", ids[1]), owner, RejectRequest{Reason: "no yard"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no yard", decodeBody[map[string]any](t, rec)["rejection_reason"])
}

func TestTakePetID(t *testing.T) {
	for name, raw := range map[string]any{
		"number": json.Number("7"),
		"string": " 7 ",
	} {
		t.Run(name, func(t *testing.T) {
			q := map[string]any{"pet_id": raw, "email": "a@b.co"}
			id, err := takePetID(q)
			require.NoError(t, err)
			assert.Equal(t, 7, id)
			assert.NotContains(t, q, "pet_id")
		})
	}

	for name, raw := range map[string]any{
		"missing":  nil,
		"negative": json.Number("-1"),
		"float":    json.Number("1.5"),
		"word":     "seven",
		"bool":     true,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := takePetID(map[string]any{"pet_id": raw})
			require.ErrorIs(t, err, errInvalidPetID)
		})
	}
}

func TestParsePagination(t *testing.T) {
	largest := math.MaxInt/maxLimit + 1
	for _, tc := range []struct {
		query string
		want  [3]int
	}{
		{"", [3]int{1, defaultLimit, 0}},
		{"?page=3&limit=10", [3]int{3, 10, 20}},
		{"?page=2&per_page=500", [3]int{2, maxLimit, maxLimit}},
		{fmt.Sprintf("?page=%d&limit=%d", largest, maxLimit), [3]int{largest, maxLimit, (largest - 1) * maxLimit}},
	} {
		page, limit, offset, err := parsePagination(httptest.NewRequest(http.MethodGet, "/pets"+tc.query, nil))
		require.NoError(t, err, tc.query)
		assert.Equal(t, tc.want, [3]int{page, limit, offset}, tc.query)
	}

	for _, query := range []string{
		"?page=0",
		"?page=abc",
		"?limit=-1",
		fmt.Sprintf("?page=%d", math.MaxInt),
		fmt.Sprintf("?page=%d&limit=%d", largest+1, maxLimit),
	} {
		_, _, _, err := parsePagination(httptest.NewRequest(http.MethodGet, "/pets"+query, nil))
		require.Error(t, err, query)
	}

	api := newTestAPI(t)
	rec := api.do(http.MethodGet, fmt.Sprintf("/pets?page=%d", math.MaxInt), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
