package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"unilib/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type bookRequest struct {
	Title         string  `json:"title" validate:"required"`
	Author        string  `json:"author" validate:"required"`
	ISBN          *string `json:"isbn,omitempty"`
	PageCount     *int    `json:"pageCount,omitempty" validate:"omitempty,min=1"`
	Language      string  `json:"language"`
	PublishedYear *int    `json:"publishedYear,omitempty" validate:"omitempty,min=1000,max=2100"`
}

func (r bookRequest) input() BookInput {
	return BookInput{
		Title:         r.Title,
		Author:        r.Author,
		ISBN:          r.ISBN,
		PageCount:     r.PageCount,
		Language:      r.Language,
		PublishedYear: r.PublishedYear,
	}
}

func (h *Handler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	book, err := h.service.CreateBook(r.Context(), req.input())
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, book)
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid book id")
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid book id")
		return
	}

	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, req.input())
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, book)
}

func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid book id")
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := httpx.Pagination(r)

	filter := Filter{
		Query:         q.Get("q"),
		Language:      q.Get("language"),
		AvailableOnly: q.Get("available") == "true",
		Sort:          q.Get("sort"),
		Limit:         limit,
		Offset:        offset,
	}
	if raw := q.Get("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid category id")
			return
		}
		filter.CategoryID = id
	}

	books, err := h.service.ListBooks(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, books)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "missing search query")
		return
	}

	limit, _ := httpx.Pagination(r)
	books, err := h.service.Search(r.Context(), query, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, books)
}

type categoryRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, categories)
}

type assignCategoriesRequest struct {
	CategoryIDs []uuid.UUID `json:"categoryIds" validate:"required"`
}

func (h *Handler) HandleAssignCategories(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid book id")
		return
	}

	var req assignCategoriesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error())
		return
	}

	if err := h.service.AssignCategories(r.Context(), id, req.CategoryIDs); err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrCategoryNotFound):
		httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	case errors.Is(err, ErrCategoryExists), errors.Is(err, ErrBookHasActiveLoan), errors.Is(err, ErrBookHasHistory):
		httpx.Error(w, http.StatusConflict, httpx.KindConflict, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, httpx.KindInternal, "internal error")
	}
}
