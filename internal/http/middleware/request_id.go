package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-comments-client/internal/remote/httpapi/interceptors"
)

const headerRequestID = "X-Request-Id"

// Пришедший id длиннее этого заменяется своим.
const maxRequestIDLen = 128

// RequestID гарантирует запросу X-Request-Id.
//
// Пришедший id берётся как есть, если он короче maxRequestIDLen и состоит из
// видимых ASCII-символов; иначе выдаётся новый UUID. id попадает в заголовки
// запроса и ответа и в контекст по interceptors.CtxRequestID: оттуда его
// берут Logging и REST-клиент, так что вызов к сервису комментариев уходит
// с тем же id.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerRequestID)
			if !validRequestID(id) {
				id = uuid.NewString()
				r.Header.Set(headerRequestID, id)
			}
			w.Header().Set(headerRequestID, id)

			ctx := context.WithValue(r.Context(), interceptors.CtxRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}

	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}

	return true
}
