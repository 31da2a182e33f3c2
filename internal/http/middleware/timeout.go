package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrRequestTimeout - причина отмены контекста запроса мидлваром Timeout.
var ErrRequestTimeout = errors.New("view request timed out")

// Timeout ограничивает время ответа view-API; более ранний дедлайн родителя
// остаётся в силе, d <= 0 отключает мидлвар.
//
// Удалённые вызовы действий от этого дедлайна отвязаны: запрос может
// истечь, а согласование с сервером всё равно дойдёт до конца.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeoutCause(r.Context(), d, ErrRequestTimeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
