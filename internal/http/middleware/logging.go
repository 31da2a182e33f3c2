package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-comments-client/internal/remote/httpapi/interceptors"
	logctx "github.com/pribylovaa/go-comments-client/pkg/log"
)

// Logging кладёт в контекст логгер запроса (с request_id, если RequestID
// стоит раньше) и по завершении пишет одну запись "http".
//
// Уровень: 5xx - Warn, остальное - Info. Отказ 409 помечается busy=true:
// над тем же комментарием ещё идёт действие. Шаблон маршрута и {id} из
// него попадают в запись, если запрос обслуживал chi.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := l
			if rid, _ := r.Context().Value(interceptors.CtxRequestID).(string); rid != "" {
				reqLog = reqLog.With(slog.String("request_id", rid))
			}
			r = r.WithContext(logctx.Into(r.Context(), reqLog))

			rec := record(w)
			start := time.Now()
			next.ServeHTTP(rec, r)

			status := rec.code()
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", rec.bytes),
			}

			// Маршрут chi заполняет уже после прохода по цепочке.
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					attrs = append(attrs, slog.String("route", p))
				}
				if id := rc.URLParam("id"); id != "" {
					attrs = append(attrs, slog.String("id", id))
				}
			}

			if status == http.StatusConflict {
				attrs = append(attrs, slog.Bool("busy", true))
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}

			reqLog.LogAttrs(r.Context(), level, "http", attrs...)
		})
	}
}
