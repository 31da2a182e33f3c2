package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/pribylovaa/go-comments-client/internal/errors"
	"github.com/pribylovaa/go-comments-client/internal/service"
	logctx "github.com/pribylovaa/go-comments-client/pkg/log"
)

// Recover превращает panic обработчика в 500/internal; текст паники клиенту не уходит.
// Если ответ уже начат, тело не дописывается. http.ErrAbortHandler
// пробрасывается дальше: им net/http обрывает соединение.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := record(w)

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic",
					slog.String("path", r.URL.Path),
					slog.Any("reason", v),
					slog.Bool("response_started", rec.started()),
					slog.String("stack", string(debug.Stack())),
				)

				if rec.started() {
					return
				}
				apierrors.WriteError(rec, r, fmt.Errorf("panic: %v: %w", v, service.ErrInternal))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
