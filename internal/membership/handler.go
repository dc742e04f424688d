package membership

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"unilib/internal/auth"
	"unilib/internal/httpx"
)

type Handler struct {
	service Service
	issuer  *auth.Issuer
}

func NewHandler(service Service, issuer *auth.Issuer) *Handler {
	return &Handler{service: service, issuer: issuer}
}

type registerRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	EducationYear *int   `json:"educationYear,omitempty" validate:"omitempty,min=1,max=7"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), Registration{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		EducationYear: req.EducationYear,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}

	token, err := h.issuer.Issue(user.ID, user.Role)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "could not issue token")
		return
	}

	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid user id")
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}

	user, err := h.service.GetUser(r.Context(), identity.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Pagination(r)
	users, err := h.service.ListUsers(r.Context(), r.URL.Query().Get("role"), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, users)
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=STUDENT LIBRARIAN"`
}

func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid user id")
		return
	}

	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	user, err := h.service.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1"`
	EducationYear *int    `json:"educationYear,omitempty" validate:"omitempty,min=1,max=7"`
	NFCCardID     *string `json:"nfcCardId,omitempty"`
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), identity.UserID, ProfileUpdate{
		Name:          req.Name,
		EducationYear: req.EducationYear,
		NFCCardID:     req.NFCCardID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user)
}

type createLibrarianRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// HandleCreateLibrarian creates a staff account. Librarian-only route.
func (h *Handler) HandleCreateLibrarian(w http.ResponseWriter, r *http.Request) {
	var req createLibrarianRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	user, err := h.service.CreateLibrarian(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) HandleNFCLookup(w http.ResponseWriter, r *http.Request) {
	cardID := r.URL.Query().Get("card")
	if cardID == "" {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "missing card parameter")
		return
	}

	user, err := h.service.LookupByNFC(r.Context(), cardID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrNFCCardTaken):
		httpx.Error(w, http.StatusConflict, httpx.KindConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, err.Error())
	case errors.Is(err, ErrInvalidRole):
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
	case errors.Is(err, ErrRateLimited):
		httpx.Error(w, http.StatusTooManyRequests, httpx.KindConflict, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "internal error")
	}
}
