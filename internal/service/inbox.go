package service

import (
	"context"
	"strings"

	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/pkg/log"
)

// Входящих уведомлений держим не больше этого; старые вытесняются.
const inboxLimit = 200

// LoadNotifications заменяет входящие списком уведомлений с сервера.
func (s *Service) LoadNotifications(ctx context.Context) ([]models.Event, error) {
	const op = "service/inbox/LoadNotifications"

	lg := log.From(ctx).With("op", op)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Call)
	defer cancel()

	list, err := s.remote.ListNotifications(cctx)
	if err != nil {
		s.dropSession(lg, err)
		lg.Warn("notifications fetch failed", "err", err)
		return nil, wrap(op, mapRemote(err))
	}

	if len(list) > inboxLimit {
		list = list[:inboxLimit]
	}
	inbox := append([]models.Event(nil), list...)

	s.inboxMu.Lock()
	s.inbox = inbox
	s.inboxMu.Unlock()

	lg.Debug("notifications loaded", "count", len(inbox))

	return s.Notifications(), nil
}

// Notifications - копия входящих, новые первыми.
func (s *Service) Notifications() []models.Event {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()

	return append([]models.Event{}, s.inbox...)
}

// UnreadCount - число непрочитанных входящих.
func (s *Service) UnreadCount() int {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()

	n := 0
	for _, ev := range s.inbox {
		if !ev.IsRead {
			n++
		}
	}

	return n
}

// MarkRead помечает уведомление прочитанным на сервере, затем локально.
// Вызов к серверу, как и у действий над комментариями, не прерывается
// отменой ctx.
//
// Ошибки: ErrInvalidArgument, ErrNotFound, ErrUnauthorized, ErrUnreachable, ErrInternal.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	const op = "service/inbox/MarkRead"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "event_id", id)

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return wrap(op, ErrInvalidArgument)
	}

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	if err := s.remote.MarkNotificationRead(cctx, id); err != nil {
		s.dropSession(lg, err)
		lg.Warn("mark read failed", "err", err)
		return wrap(op, mapRemote(err))
	}

	s.inboxMu.Lock()
	for i := range s.inbox {
		if s.inbox[i].ID == id {
			s.inbox[i].IsRead = true
		}
	}
	s.inboxMu.Unlock()

	return nil
}

// record кладёт уведомление из realtime-канала в начало входящих.
// Повтор с тем же ID заменяет прежнюю запись.
func (s *Service) record(ev models.Event) {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()

	if ev.ID != "" {
		for i := range s.inbox {
			if s.inbox[i].ID == ev.ID {
				s.inbox = append(s.inbox[:i], s.inbox[i+1:]...)
				break
			}
		}
	}

	s.inbox = append([]models.Event{ev}, s.inbox...)
	if len(s.inbox) > inboxLimit {
		s.inbox = s.inbox[:inboxLimit]
	}
}
