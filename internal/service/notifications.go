package service

import (
	"context"

	"github.com/pribylovaa/go-comments-client/internal/metrics"
	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/pkg/log"
)

// HandleEvent кладёт уведомление во входящие и реагирует на него по ev.TargetID:
//   - над узлом идёт действие -> узел помечается устаревшим и перечитывается после завершения;
//   - узел известен -> поддерево перечитывается сразу;
//   - узел неизвестен -> уведомление отбрасывается.
//
// Возвращает способ обработки (metrics.Event*).
func (s *Service) HandleEvent(ctx context.Context, ev models.Event) string {
	const op = "service/notifications/HandleEvent"

	lg := log.From(ctx).With("op", op, "event_id", ev.ID, "target_id", ev.TargetID, "kind", string(ev.Kind))

	s.record(ev)

	handling := metrics.EventDropped
	switch {
	case ev.TargetID == "":
		lg.Debug("event without target dropped")
	case s.markStale(ev.TargetID):
		handling = metrics.EventDeferred
		lg.Debug("target is busy, refresh deferred")
	case s.store.Has(ev.TargetID):
		handling = metrics.EventRefreshed
		if _, err := s.LoadSubtree(ctx, ev.TargetID); err != nil {
			lg.Warn("refresh on event failed", "err", err)
		}
	default:
		lg.Debug("target is not in the forest, event dropped")
	}

	s.metrics.Event(string(ev.Kind), handling)

	return handling
}

// Watch подписывается на src и обрабатывает уведомления по одному в порядке
// поступления, пока не завершится ctx.
func (s *Service) Watch(ctx context.Context, src EventSource) {
	const op = "service/notifications/Watch"

	lg := log.From(ctx).With("op", op)

	queue := make(chan models.Event, s.cfg.Notify.Buffer)
	unsubscribe := src.Subscribe(func(ev models.Event) {
		select {
		case queue <- ev:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	lg.Info("watching notifications")
	for {
		select {
		case <-ctx.Done():
			lg.Info("notifications watcher stopped")
			return
		case ev := <-queue:
			s.HandleEvent(ctx, ev)
		}
	}
}
