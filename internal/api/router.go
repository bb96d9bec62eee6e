package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memento/internal/noteservice"
	"github.com/starford/memento/internal/views"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// notifier, if non-nil, is told about every TODO mutation.
func NewRouter(svc *noteservice.Service, ctrl *views.Controller, authEnabled bool, token string, sseHandler http.Handler, notifier Notifier) chi.Router {
	h := NewHandler(svc, ctrl, notifier)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes and tags.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/pinned", h.PinnedNotes)
	r.Get("/tags", h.TagTree)
	r.Get("/tags/*", h.TagNode)

	// TODOs.
	r.Get("/todos", h.ListTodos)
	r.Get("/todos/due", h.DueTodos)
	r.Post("/todos/toggle", h.ToggleTodo)
	r.Patch("/todos", h.UpdateTodo)

	// Periodic notes.
	r.Get("/periodic/{kind}", h.ListPeriodic)
	r.Post("/periodic/{kind}", h.OpenPeriodic)
	r.Get("/calendar", h.Calendar)

	// Search and snapshot control.
	r.Get("/search", h.Search)
	r.Post("/refresh", h.Refresh)
	r.Get("/config", h.Config)

	// View state.
	r.Get("/view", h.GetView)
	r.Put("/view", h.PutView)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
