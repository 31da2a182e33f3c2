package interceptors

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-comments-client/pkg/log"
)

// WithLogging - логирование исходящих запросов.
// Поведение:
//   - берёт X-Request-Id из заголовка (или из контекста, или генерирует новый и добавляет);
//   - добавляет поля method/path, прокладывает обогащённый логгер в контекст (pkg/log);
//   - пишет одну финальную запись: msg="http", status, dur (Warn для 5xx и транспортных ошибок).
//
// Безопасность: не логирует тело и заголовок Authorization.
func WithLogging(base *slog.Logger) Interceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			rid := r.Header.Get("X-Request-Id")
			if rid == "" {
				rid, _ = r.Context().Value(CtxRequestID).(string)
			}
			if rid == "" {
				rid = uuid.NewString()
			}

			r = r.Clone(r.Context())
			r.Header.Set("X-Request-Id", rid)

			l := base.With(
				slog.String("request_id", rid),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			r = r.WithContext(log.Into(r.Context(), l))

			resp, err := next.RoundTrip(r)
			dur := time.Since(start)

			switch {
			case err != nil:
				l.Warn("http", slog.String("err", err.Error()), slog.Duration("dur", dur))
			case resp.StatusCode >= http.StatusInternalServerError:
				l.Warn("http", slog.Int("status", resp.StatusCode), slog.Duration("dur", dur))
			default:
				l.Info("http", slog.Int("status", resp.StatusCode), slog.Duration("dur", dur))
			}

			return resp, err
		})
	}
}
