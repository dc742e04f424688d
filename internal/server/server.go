// Package server assembles the HTTP API from the feature handlers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"unilib/internal/auth"
	"unilib/internal/catalog"
	"unilib/internal/circulation"
	"unilib/internal/engagement"
	"unilib/internal/httpx"
	"unilib/internal/membership"
)

type Deps struct {
	Logger         zerolog.Logger
	Issuer         *auth.Issuer
	Membership     *membership.Handler
	Catalog        *catalog.Handler
	Circulation    *circulation.Handler
	Engagement     *engagement.Handler
	AllowedOrigins []string
}

// NewRouter builds the full route tree.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpx.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(httpx.Tracing)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Route("/api/v1", func(r chi.Router) {
		// Public surface: account creation and catalog browsing.
		r.Post("/auth/register", deps.Membership.HandleRegister)
		r.Post("/auth/login", deps.Membership.HandleLogin)

		r.Get("/books", deps.Catalog.HandleListBooks)
		r.Get("/books/search", deps.Catalog.HandleSearch)
		r.Get("/books/{id}", deps.Catalog.HandleGetBook)
		r.Get("/categories", deps.Catalog.HandleListCategories)

		// Anything below requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(deps.Issuer.Middleware)

			r.Get("/me", deps.Membership.HandleMe)
			r.Patch("/me", deps.Membership.HandleUpdateProfile)

			r.Post("/borrows", deps.Circulation.HandleLend)
			r.Get("/borrows", deps.Circulation.HandleListBorrows)
			r.Get("/borrows/{id}", deps.Circulation.HandleGetBorrow)
			r.Post("/borrows/{id}/extend", deps.Circulation.HandleExtend)
			r.Post("/borrows/{id}/return", deps.Circulation.HandleReturn)

			r.Post("/complaints", deps.Engagement.HandleCreateComplaint)
			r.Post("/ideas", deps.Engagement.HandleCreateIdea)
			r.Get("/ideas", deps.Engagement.HandleListIdeas)
			r.Post("/sndl", deps.Engagement.HandleCreateDemand)

			// Staff back office.
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(membership.RoleLibrarian))

				r.Post("/books", deps.Catalog.HandleCreateBook)
				r.Put("/books/{id}", deps.Catalog.HandleUpdateBook)
				r.Delete("/books/{id}", deps.Catalog.HandleDeleteBook)
				r.Post("/books/{id}/categories", deps.Catalog.HandleAssignCategories)
				r.Post("/categories", deps.Catalog.HandleCreateCategory)

				r.Get("/borrows/{id}/history", deps.Circulation.HandleHistory)

				r.Get("/users", deps.Membership.HandleListUsers)
				r.Post("/users", deps.Membership.HandleCreateLibrarian)
				r.Get("/users/nfc", deps.Membership.HandleNFCLookup)
				r.Get("/users/{id}", deps.Membership.HandleGetUser)
				r.Patch("/users/{id}/role", deps.Membership.HandleUpdateRole)

				r.Get("/complaints", deps.Engagement.HandleListComplaints)
				r.Patch("/complaints/{id}", deps.Engagement.HandleResolveComplaint)
				r.Get("/sndl", deps.Engagement.HandleListDemands)
				r.Patch("/sndl/{id}", deps.Engagement.HandleDecideDemand)
			})
		})
	})

	return r
}
