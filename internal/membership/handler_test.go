package membership

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unilib/internal/auth"
)

type stubService struct {
	user  *User
	users []*User
	err   error

	gotRegistration Registration
	gotEmail        string
	gotRole         string
}

func (s *stubService) Register(_ context.Context, reg Registration) (*User, error) {
	s.gotRegistration = reg
	return s.user, s.err
}

func (s *stubService) Authenticate(_ context.Context, email, _ string) (*User, error) {
	s.gotEmail = email
	return s.user, s.err
}

func (s *stubService) GetUser(_ context.Context, _ uuid.UUID) (*User, error) {
	return s.user, s.err
}

func (s *stubService) ListUsers(_ context.Context, role string, _, _ int) ([]*User, error) {
	s.gotRole = role
	return s.users, s.err
}

func (s *stubService) UpdateRole(_ context.Context, _ uuid.UUID, role string) (*User, error) {
	s.gotRole = role
	return s.user, s.err
}

func (s *stubService) UpdateProfile(_ context.Context, _ uuid.UUID, _ ProfileUpdate) (*User, error) {
	return s.user, s.err
}

func (s *stubService) LookupByNFC(_ context.Context, _ string) (*User, error) {
	return s.user, s.err
}

func (s *stubService) CreateLibrarian(_ context.Context, _, _, _ string) (*User, error) {
	return s.user, s.err
}

func newMembershipRouter(svc Service) (chi.Router, *auth.Issuer) {
	issuer := auth.NewIssuer("test-secret", time.Hour)
	h := NewHandler(svc, issuer)
	r := chi.NewRouter()
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
	r.Get("/me", h.HandleMe)
	r.Get("/users", h.HandleListUsers)
	r.Post("/users", h.HandleCreateLibrarian)
	r.Get("/users/nfc", h.HandleNFCLookup)
	r.Get("/users/{id}", h.HandleGetUser)
	r.Put("/users/{id}/role", h.HandleUpdateRole)
	r.Put("/me/profile", h.HandleUpdateProfile)
	return r, issuer
}

func doRequest(router http.Handler, method, path string, identity *auth.Identity, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *identity))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleRegister(t *testing.T) {
	svc := &stubService{user: &User{ID: uuid.New(), Name: "Ada", Email: "ada@example.edu", Role: RoleStudent}}
	router, _ := newMembershipRouter(svc)

	rec := doRequest(router, http.MethodPost, "/auth/register", nil, map[string]any{
		"name": "Ada", "email": "ada@example.edu", "password": "long enough",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "ada@example.edu", svc.gotRegistration.Email)
}

func TestHandleRegisterValidation(t *testing.T) {
	router, _ := newMembershipRouter(&stubService{})

	cases := []map[string]any{
		{"email": "ada@example.edu", "password": "long enough"},
		{"name": "Ada", "email": "not-an-email", "password": "long enough"},
		{"name": "Ada", "email": "ada@example.edu", "password": "short"},
		{"name": "Ada", "email": "ada@example.edu", "password": "long enough", "educationYear": 9},
	}
	for i, body := range cases {
		rec := doRequest(router, http.MethodPost, "/auth/register", nil, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "case %d", i)
	}
}

func TestHandleRegisterEmailTaken(t *testing.T) {
	router, _ := newMembershipRouter(&stubService{err: ErrEmailTaken})

	rec := doRequest(router, http.MethodPost, "/auth/register", nil, map[string]any{
		"name": "Ada", "email": "ada@example.edu", "password": "long enough",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var env struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "conflict", env.Error.Kind)
}

func TestHandleLoginIssuesVerifiableToken(t *testing.T) {
	userID := uuid.New()
	svc := &stubService{user: &User{ID: userID, Email: "ada@example.edu", Role: RoleLibrarian}}
	router, issuer := newMembershipRouter(svc)

	rec := doRequest(router, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "ada@example.edu", "password": "whatever1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
		User  *User  `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	identity, err := issuer.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, RoleLibrarian, identity.Role)
}

func TestHandleLoginBadCredentials(t *testing.T) {
	router, _ := newMembershipRouter(&stubService{err: ErrInvalidCredentials})

	rec := doRequest(router, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "ada@example.edu", "password": "nope12345",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLoginRateLimited(t *testing.T) {
	router, _ := newMembershipRouter(&stubService{err: ErrRateLimited})

	rec := doRequest(router, http.MethodPost, "/auth/login", nil, map[string]any{
		"email": "ada@example.edu", "password": "nope12345",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandleMe(t *testing.T) {
	userID := uuid.New()
	svc := &stubService{user: &User{ID: userID, Name: "Ada", Role: RoleStudent}}
	router, _ := newMembershipRouter(svc)

	rec := doRequest(router, http.MethodGet, "/me", &auth.Identity{UserID: userID, Role: RoleStudent}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleUpdateRole(t *testing.T) {
	svc := &stubService{user: &User{ID: uuid.New(), Role: RoleLibrarian}}
	router, _ := newMembershipRouter(svc)

	rec := doRequest(router, http.MethodPut, "/users/"+uuid.NewString()+"/role", nil, map[string]any{"role": "LIBRARIAN"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "LIBRARIAN", svc.gotRole)

	rec = doRequest(router, http.MethodPut, "/users/"+uuid.NewString()+"/role", nil, map[string]any{"role": "WIZARD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetUserNotFound(t *testing.T) {
	router, _ := newMembershipRouter(&stubService{err: ErrUserNotFound})
	rec := doRequest(router, http.MethodGet, "/users/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleNFCLookup(t *testing.T) {
	svc := &stubService{user: &User{ID: uuid.New(), Name: "Ada"}}
	router, _ := newMembershipRouter(svc)

	rec := doRequest(router, http.MethodGet, "/users/nfc?card=abc123", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/users/nfc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateLibrarian(t *testing.T) {
	svc := &stubService{user: &User{ID: uuid.New(), Role: RoleLibrarian}}
	router, _ := newMembershipRouter(svc)

	rec := doRequest(router, http.MethodPost, "/users", nil, map[string]any{
		"name": "Lib", "email": "lib@univ.edu", "password": "long enough",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(router, http.MethodPost, "/users", nil, map[string]any{
		"name": "Lib", "email": "lib@univ.edu", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListUsersFilter(t *testing.T) {
	svc := &stubService{}
	router, _ := newMembershipRouter(svc)

	rec := doRequest(router, http.MethodGet, "/users?role=STUDENT", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "STUDENT", svc.gotRole)
}
