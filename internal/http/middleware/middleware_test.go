package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-comments-client/internal/config"
	"github.com/pribylovaa/go-comments-client/internal/http/handlers"
	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/internal/remote/httpapi/interceptors"
	"github.com/pribylovaa/go-comments-client/internal/service"
	"github.com/pribylovaa/go-comments-client/internal/tree"
	"github.com/pribylovaa/go-comments-client/mocks"
)

// logSink собирает записи всех логгеров, порождённых от capHandler.
type logSink struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	msg   string
	level slog.Level
	attrs map[string]any
}

// find возвращает первую запись msg, у которой attrs[key] == val.
func (s *logSink) find(msg, key string, val any) (logEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.msg == msg && e.attrs[key] == val {
			return e, true
		}
	}
	return logEntry{}, false
}

// capHandler - slog.Handler без I/O; attrs из With(...) наследуются копией.
type capHandler struct {
	sink *logSink
	base []slog.Attr
}

func (h capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h capHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.base)+r.NumAttrs())
	for _, a := range h.base {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.sink.mu.Lock()
	h.sink.entries = append(h.sink.entries, logEntry{msg: r.Message, level: r.Level, attrs: attrs})
	h.sink.mu.Unlock()

	return nil
}

func (h capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return capHandler{sink: h.sink, base: append(slices.Clip(h.base), attrs...)}
}

func (h capHandler) WithGroup(string) slog.Handler { return h }

type staticUser string

func (u staticUser) UserID() string { return string(u) }

type errEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

type testAPI struct {
	handler http.Handler
	store   *tree.Store
	remote  *mocks.MockRemote
	logs    *logSink
}

// newTestAPI собирает цепочку в том же порядке, что и роутер приложения,
// поверх настоящего сервиса и мока удалённого API. inner встают после Timeout.
func newTestAPI(t *testing.T, timeout time.Duration, inner ...Middleware) testAPI {
	t.Helper()

	ctrl := gomock.NewController(t)
	rm := mocks.NewMockRemote(ctrl)
	st := tree.New()
	logs := &logSink{}

	cfg := config.Config{
		Limits:   config.LimitsConfig{Default: 20, Max: 100},
		Timeouts: config.TimeoutConfig{Call: time.Second, Request: timeout},
	}
	h := handlers.New(service.New(st, rm, staticUser("u1"), nil, cfg))

	r := chi.NewRouter()
	r.Use(RequestID(), Logging(slog.New(capHandler{sink: logs})), Recover(), Timeout(timeout))
	for _, mw := range inner {
		r.Use(mw)
	}

	r.Put("/comments/{id}", h.EditComment)
	r.Delete("/comments/{id}", h.DeleteComment)
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("store invariant broken: 42") })
	r.Get("/panic-late", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"comments":[`))
		panic("encoder failed")
	})

	return testAPI{handler: r, store: st, remote: rm, logs: logs}
}

func serve(h http.Handler, method, target, body, rid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid != "" {
		req.Header.Set("X-Request-Id", rid)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func own(id, content string) models.Comment {
	return models.Comment{ID: id, AuthorID: "u1", Content: content, CanEdit: true, CanDelete: true}
}

func TestChain_BusyRejectionKeepsActionMessage(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, 0)
	require.True(t, api.store.Upsert(own("1", "old"), ""))

	entered := make(chan struct{})
	release := make(chan struct{})
	var editRID string

	api.remote.EXPECT().UpdateComment(gomock.Any(), "1", "new").
		DoAndReturn(func(ctx context.Context, _, _ string) (*models.Comment, error) {
			editRID, _ = ctx.Value(interceptors.CtxRequestID).(string)
			close(entered)
			<-release
			return &models.Comment{ID: "1", Content: "new", IsEdited: true}, nil
		})

	editDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		editDone <- serve(api.handler, http.MethodPut, "/comments/1", `{"content":"new"}`, "rid-edit")
	}()
	<-entered

	// id запроса доезжает до вызова REST-клиента.
	require.Equal(t, "rid-edit", editRID)

	rr := serve(api.handler, http.MethodDelete, "/comments/1", "", "rid-delete")
	close(release)

	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "rid-delete", rr.Header().Get("X-Request-Id"))

	var env errEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, "busy", env.Error.Code)
	require.Equal(t, "Another action on this comment is still in progress.", env.Error.Message)
	require.Equal(t, "rid-delete", env.Error.RequestID)

	entry, ok := api.logs.find("http", "request_id", "rid-delete")
	require.True(t, ok)
	require.Equal(t, slog.LevelInfo, entry.level)
	require.EqualValues(t, http.StatusConflict, entry.attrs["status"])
	require.Equal(t, true, entry.attrs["busy"])
	require.Equal(t, "/comments/{id}", entry.attrs["route"])
	require.Equal(t, "1", entry.attrs["id"])

	// Сервис пишет в тот же логгер запроса.
	_, ok = api.logs.find("comment is busy", "request_id", "rid-delete")
	require.True(t, ok)

	edit := <-editDone
	require.Equal(t, http.StatusOK, edit.Code)

	c, ok := api.store.Get("1")
	require.True(t, ok)
	require.Equal(t, "new", c.Content)
	require.False(t, c.IsDeleted)
}

func TestChain_RequestTimeoutDoesNotAbortEdit(t *testing.T) {
	t.Parallel()

	reqCtx := make(chan context.Context, 1)
	capture := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx <- r.Context()
			next.ServeHTTP(w, r)
		})
	}

	api := newTestAPI(t, 30*time.Millisecond, capture)
	require.True(t, api.store.Upsert(own("1", "old"), ""))

	api.remote.EXPECT().UpdateComment(gomock.Any(), "1", "new").
		DoAndReturn(func(ctx context.Context, _, _ string) (*models.Comment, error) {
			rctx := <-reqCtx
			<-rctx.Done()

			require.ErrorIs(t, context.Cause(rctx), ErrRequestTimeout)
			require.NoError(t, ctx.Err())
			return &models.Comment{ID: "1", Content: "new", IsEdited: true}, nil
		})

	rr := serve(api.handler, http.MethodPut, "/comments/1", `{"content":"new"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)

	c, ok := api.store.Get("1")
	require.True(t, ok)
	require.Equal(t, "new", c.Content)
	require.True(t, c.IsEdited)

	_, ok = api.logs.find("comment edited", "id", "1")
	require.True(t, ok)
}

func TestTimeout_KeepsEarlierParentDeadline(t *testing.T) {
	t.Parallel()

	var got time.Time
	h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Deadline()
	}), Timeout(time.Minute))

	parent, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(parent))

	want, _ := parent.Deadline()
	require.Equal(t, want, got)
}

func TestRecover_PanicBecomesInternal(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, 0)

	rr := serve(api.handler, http.MethodGet, "/panic", "", "rid-panic")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.NotContains(t, rr.Body.String(), "42")

	var env errEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.Equal(t, "internal", env.Error.Code)
	require.Equal(t, "rid-panic", env.Error.RequestID)

	entry, ok := api.logs.find("panic", "request_id", "rid-panic")
	require.True(t, ok)
	require.Equal(t, slog.LevelError, entry.level)
	require.Contains(t, entry.attrs["stack"], "runtime/debug.Stack")

	entry, ok = api.logs.find("http", "request_id", "rid-panic")
	require.True(t, ok)
	require.Equal(t, slog.LevelWarn, entry.level)
	require.EqualValues(t, http.StatusInternalServerError, entry.attrs["status"])
}

func TestRecover_StartedResponseIsNotRewritten(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t, 0)

	rr := serve(api.handler, http.MethodGet, "/panic-late", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, `{"comments":[`, rr.Body.String())

	entry, ok := api.logs.find("panic", "path", "/panic-late")
	require.True(t, ok)
	require.Equal(t, true, entry.attrs["response_started"])
}

func TestRecover_AbortHandlerPassesThrough(t *testing.T) {
	t.Parallel()

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}), Recover())

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestID_ReplacesUnusableHeader(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name  string
		given string
		keep  bool
	}{
		{"absent", "", false},
		{"kept", "rid-123", true},
		{"with_space", "rid 123", false},
		{"too_long", strings.Repeat("a", maxRequestIDLen+1), false},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen, _ = r.Context().Value(interceptors.CtxRequestID).(string)
			}), RequestID())

			rr := serve(h, http.MethodGet, "/", "", tc.given)
			got := rr.Header().Get("X-Request-Id")
			require.Equal(t, got, seen)

			if tc.keep {
				require.Equal(t, tc.given, got)
				return
			}
			_, err := uuid.Parse(got)
			require.NoError(t, err)
		})
	}
}

func TestLogging_WarnsOnUnavailable(t *testing.T) {
	t.Parallel()

	logs := &logSink{}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), Logging(slog.New(capHandler{sink: logs})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/comments", nil))

	entry, ok := logs.find("http", "path", "/comments")
	require.True(t, ok)
	require.Equal(t, slog.LevelWarn, entry.level)
	require.EqualValues(t, http.StatusServiceUnavailable, entry.attrs["status"])
	require.NotContains(t, entry.attrs, "busy")
}
