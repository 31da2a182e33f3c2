// service содержит ядро клиента: движок согласования оптимистичных действий,
// загрузчик поддеревьев и обработку уведомлений поверх tree.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pribylovaa/go-comments-client/internal/config"
	"github.com/pribylovaa/go-comments-client/internal/metrics"
	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/internal/remote"
	"github.com/pribylovaa/go-comments-client/internal/tree"
)

var (
	// ErrInvalidArgument - неверные входные параметры или действие бессмысленно для узла.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized - сессия отсутствует или истекла.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden - сервер запретил действие.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound - комментария нет локально или на сервере.
	ErrNotFound = errors.New("not found")
	// ErrUnreachable - сеть/таймаут/5xx; можно повторить вручную.
	ErrUnreachable = errors.New("unreachable")
	// ErrBusy - над этим ID уже выполняется другое действие.
	ErrBusy = errors.New("busy")
	// ErrInternal - прочие ошибки.
	ErrInternal = errors.New("internal")

	// errNoResult - удалённый вызов завершился без ошибки, но и без комментария.
	errNoResult = errors.New("remote returned no comment")
)

// Имена действий (лейблы метрик, поле ActionError.Action).
const (
	ActionReply   = "reply"
	ActionPost    = "post"
	ActionEdit    = "edit"
	ActionDelete  = "delete"
	ActionRestore = "restore"
)

var fallbackMessages = map[string]string{
	ActionReply:   "Failed to reply.",
	ActionPost:    "Failed to post comment.",
	ActionEdit:    "Failed to edit comment.",
	ActionDelete:  "Failed to delete comment.",
	ActionRestore: "Failed to restore comment.",
}

// ActionError - отказ пользовательского действия.
// Message пригоден для показа: текст сервера или запасной текст действия.
// Err - один из сентинелов пакета.
type ActionError struct {
	Action  string
	ID      string
	Message string
	Err     error

	cause error
}

func (e *ActionError) Error() string {
	s := e.Action
	if e.ID != "" {
		s += " " + e.ID
	}
	s += ": " + e.Err.Error()
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}

	return s
}

func (e *ActionError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.cause}
}

// MessageOf возвращает текст для пользователя из цепочки ошибок ("" если его нет).
func MessageOf(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Message
	}

	return ""
}

// UserSource отдаёт ID текущего пользователя ("" - аноним).
type UserSource interface {
	UserID() string
}

// SessionInvalidator - сессия, которую можно сбросить после 401 (session.Provider).
type SessionInvalidator interface {
	Invalidate() bool
}

// EventSource - канал уведомлений; Subscribe возвращает функцию отписки.
type EventSource interface {
	Subscribe(fn func(models.Event)) (unsubscribe func())
}

// Service - движок согласования локального леса с удалённым сервисом.
//
// Блокировки: s.mu защищает только pending/stale и никогда не удерживается
// во время обращения к store или remote. Store вызывает hold под своим мьютексом,
// поэтому порядок захвата всегда store.mu -> s.mu.
type Service struct {
	store   *tree.Store
	remote  remote.Remote
	users   UserSource
	metrics *metrics.Metrics
	cfg     config.Config

	mu      sync.Mutex
	pending map[string]string // id -> действие
	stale   map[string]struct{}

	inboxMu sync.Mutex
	inbox   []models.Event // новые первыми
}

// New создаёт новый экземпляр Service. users и m могут быть nil.
func New(store *tree.Store, rm remote.Remote, users UserSource, m *metrics.Metrics, cfg config.Config) *Service {
	return &Service{
		store:   store,
		remote:  rm,
		users:   users,
		metrics: m,
		cfg:     cfg,
		pending: make(map[string]string),
		stale:   make(map[string]struct{}),
	}
}

// CurrentUserID - ID текущего пользователя ("" если сессии нет).
func (s *Service) CurrentUserID() string {
	if s.users == nil {
		return ""
	}

	return s.users.UserID()
}

// Comment возвращает узел с загруженным поддеревом.
func (s *Service) Comment(id string) (models.Comment, bool) {
	return s.store.Find(id)
}

// Forest возвращает все корни леса.
func (s *Service) Forest() []models.Comment {
	return s.store.Roots()
}

// Path возвращает цепочку ID от корня до id.
func (s *Service) Path(id string) ([]string, bool) {
	return s.store.GetPath(id)
}

// Visibility вычисляет флаги отображения для текущего пользователя.
func (s *Service) Visibility(c models.Comment) models.Visibility {
	return models.DeriveVisibility(c, s.CurrentUserID())
}

// Pending - выполняется ли сейчас действие над id.
func (s *Service) Pending(id string) bool {
	return s.isPending(id)
}

// acquire занимает слот id под действие; false - слот занят.
func (s *Service) acquire(id, action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.pending[id]; busy {
		return false
	}
	s.pending[id] = action

	return true
}

// release освобождает слот и сообщает, устарел ли узел за время действия.
func (s *Service) release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, id)
	_, stale := s.stale[id]
	delete(s.stale, id)

	return stale
}

func (s *Service) isPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pending[id]
	return ok
}

// markStale помечает занятый id устаревшим; для свободного id ничего не делает.
func (s *Service) markStale(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return false
	}
	s.stale[id] = struct{}{}

	return true
}

// settle завершает действие: освобождает слот и, если нужно, перечитывает поддерево.
func (s *Service) settle(ctx context.Context, id string, refresh bool) {
	if s.release(id) || refresh {
		// Ошибку уже залогировал и обработал LoadSubtree.
		_, _ = s.LoadSubtree(context.WithoutCancel(ctx), id)
	}
	s.metrics.Nodes(s.store.Len())
}

// callContext отвязывает удалённый вызов от отмены инициатора:
// закрытое представление не должно оставлять лес наполовину применённым.
func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeouts.Call)
}

// patch перечитывает узел и записывает изменённые fn поля через Upsert.
func (s *Service) patch(id string, fn func(c *models.Comment)) bool {
	c, ok := s.store.Get(id)
	if !ok {
		return false
	}
	fn(&c)

	return s.store.Upsert(c, "")
}

// mapRemote переводит ошибку удалённого слоя в сентинел сервиса.
func mapRemote(err error) error {
	switch {
	case errors.Is(err, remote.ErrValidation):
		return ErrInvalidArgument
	case errors.Is(err, remote.ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, remote.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, remote.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, remote.ErrUnreachable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrUnreachable
	default:
		return ErrInternal
	}
}

// actionError строит ActionError из ошибки удалённого вызова.
func actionError(action, id string, err error) *ActionError {
	msg := remote.MessageOf(err)
	if msg == "" {
		msg = fallbackMessages[action]
	}

	return &ActionError{Action: action, ID: id, Message: msg, Err: mapRemote(err), cause: err}
}

// localError - отказ без обращения к серверу.
func localError(action, id string, kind error, msg string) *ActionError {
	return &ActionError{Action: action, ID: id, Message: msg, Err: kind}
}

func busyError(action, id string) *ActionError {
	return localError(action, id, ErrBusy, "Another action on this comment is still in progress.")
}

// dropSession сбрасывает сессию, если сервер отверг токен.
func (s *Service) dropSession(lg *slog.Logger, err error) {
	if !errors.Is(err, remote.ErrUnauthorized) {
		return
	}

	inv, ok := s.users.(SessionInvalidator)
	if ok && inv.Invalidate() {
		lg.Warn("session rejected by server, continuing anonymously")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrBusy):
		return metrics.OutcomeBusy
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
