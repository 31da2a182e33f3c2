package middleware

import "net/http"

// Middleware оборачивает обработчик view-API.
type Middleware func(http.Handler) http.Handler

// Chain собирает цепочку: первый мидлвар в списке оказывается внешним.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// recorder запоминает, что обработчик уже отправил клиенту.
// Один recorder на запрос делят Recover и Logging.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

// record возвращает recorder, надетый выше по цепочке, или создаёт новый.
func record(w http.ResponseWriter) *recorder {
	if rec, ok := w.(*recorder); ok {
		return rec
	}
	return &recorder{ResponseWriter: w}
}

func (rec *recorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}

	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += n
	return n, err
}

// Unwrap нужен http.ResponseController.
func (rec *recorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

func (rec *recorder) started() bool { return rec.status != 0 }

// code - итоговый статус; обработчик, не записавший ничего, отдал 200.
func (rec *recorder) code() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}
