// interceptors предоставляет набор http.RoundTripper-обёрток для исходящих
// запросов к REST-API сервиса комментариев.
package interceptors

import (
	"net/http"
)

type CtxKey string

const (
	CtxRequestID CtxKey = "request_id"
)

// Interceptor оборачивает транспорт.
type Interceptor func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc - адаптер функции к http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain применяет интерсепторы к base в порядке перечисления:
// первый видит запрос первым.
func Chain(base http.RoundTripper, ics ...Interceptor) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(ics) - 1; i >= 0; i-- {
		base = ics[i](base)
	}
	return base
}
