package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-comments-client/internal/http/handlers"
	"github.com/pribylovaa/go-comments-client/internal/http/middleware"
	"github.com/pribylovaa/go-comments-client/internal/service"
)

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой - роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.RequestID(),          // X-Request-Id раньше логгера, чтобы попасть в его attrs
		middleware.Logging(opts.Logger), // логгер запроса в контексте и запись "http"
		middleware.Recover(),            // паника пишется логгером запроса и видна в "http" как 500
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h)
	return root
}

// registerRoutes - единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// дерево
	r.Get("/comments", h.ListForest)
	r.Get("/comments/{id}", h.GetComment)
	r.Get("/comments/{id}/path", h.GetPath)
	r.Post("/comments/{id}/expand", h.ExpandReplies)

	// действия
	r.Post("/comments", h.PostComment)
	r.Post("/comments/{id}/replies", h.Reply)
	r.Put("/comments/{id}", h.EditComment)
	r.Delete("/comments/{id}", h.DeleteComment)
	r.Post("/comments/{id}/restore", h.RestoreComment)

	// текущий пользователь
	r.Get("/me/comments", h.ListMyComments)

	// уведомления
	r.Get("/notifications", h.ListNotifications)
	r.Post("/notifications/{id}/read", h.MarkNotificationRead)
}
