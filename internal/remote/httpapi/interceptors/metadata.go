package interceptors

import (
	"net/http"
)

// WithMetadata - добавляет в исходящий запрос заголовки:
//   - X-Request-Id (если есть в контексте),
//   - Authorization (если auth вернул непустое значение),
//   - User-Agent (если передан параметром).
//
// Уже выставленные заголовки не перезаписываются. Исходный запрос не меняется.
func WithMetadata(userAgent string, auth func() string) Interceptor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			r = r.Clone(r.Context())

			if r.Header.Get("X-Request-Id") == "" {
				if rid, _ := r.Context().Value(CtxRequestID).(string); rid != "" {
					r.Header.Set("X-Request-Id", rid)
				}
			}
			if auth != nil && r.Header.Get("Authorization") == "" {
				if v := auth(); v != "" {
					r.Header.Set("Authorization", v)
				}
			}
			if userAgent != "" {
				r.Header.Set("User-Agent", userAgent)
			}

			return next.RoundTrip(r)
		})
	}
}
