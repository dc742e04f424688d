package engagement

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"unilib/internal/auth"
	"unilib/internal/httpx"
	"unilib/internal/membership"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type complaintRequest struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

func (h *Handler) HandleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}

	var req complaintRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	complaint, err := h.service.CreateComplaint(r.Context(), identity.UserID, req.Subject, req.Body)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, complaint)
}

func (h *Handler) HandleListComplaints(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Pagination(r)
	complaints, err := h.service.ListComplaints(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, complaints)
}

func (h *Handler) HandleResolveComplaint(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid complaint id")
		return
	}

	complaint, err := h.service.ResolveComplaint(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, complaint)
}

type ideaRequest struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

func (h *Handler) HandleCreateIdea(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}

	var req ideaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	idea, err := h.service.CreateIdea(r.Context(), identity.UserID, req.Title, req.Body)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, idea)
}

func (h *Handler) HandleListIdeas(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Pagination(r)
	ideas, err := h.service.ListIdeas(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, ideas)
}

type demandRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) HandleCreateDemand(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}

	var req demandRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	demand, err := h.service.CreateDemand(r.Context(), identity.UserID, req.Email)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, demand)
}

func (h *Handler) HandleListDemands(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Pagination(r)
	demands, err := h.service.ListDemands(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, demands)
}

type decideDemandRequest struct {
	Approve bool `json:"approve"`
}

func (h *Handler) HandleDecideDemand(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok || identity.Role != membership.RoleLibrarian {
		httpx.Error(w, http.StatusForbidden, httpx.KindAuth, "deciding demands requires a librarian")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid demand id")
		return
	}

	var req decideDemandRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	demand, err := h.service.DecideDemand(r.Context(), id, identity.UserID, req.Approve)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, demand)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrComplaintNotFound), errors.Is(err, ErrDemandNotFound):
		httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	case errors.Is(err, ErrDemandDecided), errors.Is(err, ErrDuplicateDemand):
		httpx.Error(w, http.StatusConflict, httpx.KindConflict, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "internal error")
	}
}
