package circulation

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"unilib/internal/auth"
	"unilib/internal/httpx"
	"unilib/internal/membership"
)

type Handler struct {
	service Service
	// selfService lets students open loans for themselves; when false all
	// lending is librarian-mediated.
	selfService bool
}

func NewHandler(service Service, selfService bool) *Handler {
	return &Handler{service: service, selfService: selfService}
}

type lendRequest struct {
	BookID  uuid.UUID  `json:"bookId" validate:"required"`
	DueDate time.Time  `json:"dueDate" validate:"required"`
	UserID  *uuid.UUID `json:"userId,omitempty"`
}

func (h *Handler) HandleLend(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}

	var req lendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	// Librarians lend to any user; students only to themselves, and only
	// when self-service is enabled.
	userID := identity.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}
	if identity.Role != membership.RoleLibrarian {
		if !h.selfService || userID != identity.UserID {
			httpx.Error(w, http.StatusForbidden, httpx.KindAuth, "lending requires a librarian")
			return
		}
	}

	borrow, err := h.service.Lend(r.Context(), req.BookID, userID, req.DueDate)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, borrow)
}

// Weeks carries no validation tag: range checking belongs to the service so
// weeks=0 reports the same "invalid extension period" as weeks=5.
type extendRequest struct {
	Weeks      int    `json:"weeks"`
	Reason     string `json:"reason,omitempty"`
	ApprovedBy string `json:"approvedBy,omitempty"`
}

type extendResponse struct {
	Borrow    *Borrow    `json:"borrow"`
	Extension *Extension `json:"extension"`
}

func (h *Handler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}

	borrowID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid borrow id")
		return
	}

	var req extendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	if identity.Role != membership.RoleLibrarian {
		borrow, err := h.service.GetBorrow(r.Context(), borrowID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		if borrow.UserID != identity.UserID {
			httpx.Error(w, http.StatusForbidden, httpx.KindAuth, "not your borrow")
			return
		}
	}

	borrow, extension, err := h.service.Extend(r.Context(), borrowID, req.Weeks, req.Reason, req.ApprovedBy)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, extendResponse{Borrow: borrow, Extension: extension})
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}
	if identity.Role != membership.RoleLibrarian && !h.selfService {
		httpx.Error(w, http.StatusForbidden, httpx.KindAuth, "returning requires a librarian")
		return
	}

	borrowID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid borrow id")
		return
	}

	if identity.Role != membership.RoleLibrarian {
		borrow, err := h.service.GetBorrow(r.Context(), borrowID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		if borrow.UserID != identity.UserID {
			httpx.Error(w, http.StatusForbidden, httpx.KindAuth, "not your borrow")
			return
		}
	}

	receipt, err := h.service.Return(r.Context(), borrowID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) HandleGetBorrow(w http.ResponseWriter, r *http.Request) {
	borrowID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid borrow id")
		return
	}

	borrow, err := h.service.GetBorrow(r.Context(), borrowID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, borrow)
}

func (h *Handler) HandleListBorrows(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, httpx.KindAuth, "authentication required")
		return
	}

	q := r.URL.Query()
	limit, offset := httpx.Pagination(r)
	filter := Filter{
		ActiveOnly:  q.Get("active") == "true",
		OverdueOnly: q.Get("overdue") == "true",
		Limit:       limit,
		Offset:      offset,
	}

	// Students only see their own loans.
	if identity.Role == membership.RoleLibrarian {
		if raw := q.Get("user"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid user id")
				return
			}
			filter.UserID = id
		}
		if raw := q.Get("book"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid book id")
				return
			}
			filter.BookID = id
		}
	} else {
		filter.UserID = identity.UserID
	}

	borrows, err := h.service.ListBorrows(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, borrows)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	borrowID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid borrow id")
		return
	}

	events, err := h.service.History(r.Context(), borrowID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, events)
}

// respondError maps lifecycle errors onto the wire contract: missing or
// unavailable books are 404 on lend, state conflicts on extend/return are
// 400, unknown borrows are 404.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrBookNotAvailable), errors.Is(err, ErrBorrowNotFound):
		httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	case errors.Is(err, ErrInvalidExtension), errors.Is(err, ErrInvalidDueDate):
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
	case errors.Is(err, ErrAlreadyReturned), errors.Is(err, ErrCannotExtendReturned), errors.Is(err, ErrExtensionLimit):
		httpx.Error(w, http.StatusBadRequest, httpx.KindConflict, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "internal error")
	}
}
