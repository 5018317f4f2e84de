package httpapi

import (
	"net/http"

	"github.com/anpetrov/filegate/internal/server/auth"
	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		// credential exchange, no token required
		r.Post("/servers/login", s.handleServerLogin)
		r.Post("/users/login", s.handleUserLogin)

		// management surface, admin tokens only
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken(auth.AdminProjection))

			r.Post("/servers", s.handleServerRegister)
			r.Get("/servers", s.handleServerList)
			r.Get("/servers/{id}", s.handleServerGet)
			r.Put("/servers/{id}", s.handleServerUpdate)
			r.Delete("/servers/{id}", s.handleServerDelete)
			r.Get("/servers/{id}/token", s.handleServerToken)

			r.Post("/users", s.handleUserRegister)
			r.Get("/users", s.handleUserList)
			r.Get("/users/{id}", s.handleUserGet)
			r.Put("/users/{id}", s.handleUserUpdate)
			r.Delete("/users/{id}", s.handleUserDelete)
		})

		// file surface, server tokens only; ownership comes from the token
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken(auth.ServerProjection))

			r.Post("/files", s.handleFileCreate)
			r.Get("/files", s.handleFileList)
			r.Get("/files/{id}", s.handleFileGet)
			r.Get("/files/{id}/download", s.handleFileDownload)
			r.Put("/files/{id}", s.handleFileUpdate)
			r.Delete("/files/{id}", s.handleFileDelete)
		})
	})

	return r
}
