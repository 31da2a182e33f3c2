package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pribylovaa/go-comments-client/internal/metrics"
	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/pkg/log"
)

// LoadSubtree запрашивает у сервера полное дерево потомков id и сливает его
// с лесом по идентичности. Повторный вызов с теми же данными ничего не меняет.
//
// Узлы, над которыми идёт действие, сохраняют оптимистичные скаляры (дети
// сливаются) и помечаются устаревшими: их перечитают после завершения действия.
//
// Ошибки:
//   - ErrNotFound - узла больше нет на сервере; локальная копия удаляется
//     вместе с поддеревом (если над ней не идёт действие);
//   - ErrUnreachable, ErrUnauthorized, ErrInternal.
func (s *Service) LoadSubtree(ctx context.Context, id string) (models.Comment, error) {
	const op = "service/loader/LoadSubtree"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return models.Comment{}, wrap(op, ErrInvalidArgument)
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Call)
	defer cancel()

	sub, err := s.remote.CommentSubtree(cctx, id)
	if err == nil && sub == nil {
		err = errNoResult
	}
	if err != nil {
		kind := mapRemote(err)
		if errors.Is(kind, ErrNotFound) {
			s.vanished(lg, id)
			s.metrics.Load(metrics.OutcomeNotFound)
		} else {
			s.dropSession(lg, err)
			lg.Warn("subtree fetch failed", "err", err)
			s.metrics.Load(metrics.OutcomeError)
		}

		return models.Comment{}, wrap(op, kind)
	}

	// Дерево потомков полное.
	sub.ChildrenLoaded = true
	s.mergeHeld(*sub, s.placement(*sub))
	s.metrics.Load(metrics.OutcomeOK)
	s.metrics.Nodes(s.store.Len())

	c, ok := s.store.Find(id)
	if !ok {
		// Сервер вернул узел, который некуда повесить (например, цикл).
		lg.Warn("subtree could not be placed")
		return *sub, nil
	}
	lg.Debug("subtree merged", "replies", c.ReplyCount)

	return c, nil
}

// Expand раскрывает ветку: поддерево загружается, только если у узла есть
// ответы, которых клиент ещё не видел.
func (s *Service) Expand(ctx context.Context, id string) (models.Comment, error) {
	const op = "service/loader/Expand"

	id = strings.TrimSpace(id)
	c, ok := s.store.Get(id)
	if !ok {
		log.From(ctx).Warn("comment not found locally", "op", op, "id", id)
		return models.Comment{}, wrap(op, ErrNotFound)
	}

	if !c.HasUnloadedReplies() {
		full, _ := s.store.Find(id)
		return full, nil
	}

	loaded, err := s.LoadSubtree(ctx, id)
	if err != nil {
		return models.Comment{}, wrap(op, err)
	}

	return loaded, nil
}

// LoadUserComments загружает страницу комментариев текущего пользователя
// и сливает их с лесом. page < 1 -> 1; limit <= 0 -> Limits.Default; limit > Limits.Max -> Limits.Max.
func (s *Service) LoadUserComments(ctx context.Context, page, limit int) (*models.Page, error) {
	const op = "service/loader/LoadUserComments"

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.cfg.Limits.Default
	}
	if s.cfg.Limits.Max > 0 && limit > s.cfg.Limits.Max {
		limit = s.cfg.Limits.Max
	}

	lg := log.From(ctx).With("op", op, "page", page, "limit", limit)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.Call)
	defer cancel()

	res, err := s.remote.ListUserComments(cctx, page, limit)
	if err == nil && res == nil {
		res = &models.Page{Page: page, Limit: limit}
	}
	if err != nil {
		s.dropSession(lg, err)
		lg.Warn("user comments fetch failed", "err", err)
		return nil, wrap(op, mapRemote(err))
	}

	out := &models.Page{
		Comments: make([]models.Comment, 0, len(res.Comments)),
		Total:    res.Total,
		Page:     res.Page,
		Limit:    res.Limit,
		HasMore:  res.HasMore,
	}

	for _, c := range res.Comments {
		s.mergeHeld(c, s.placement(c))
		if merged, ok := s.store.Get(c.ID); ok {
			c = merged
		}
		out.Comments = append(out.Comments, c)
	}
	s.metrics.Nodes(s.store.Len())
	lg.Debug("user comments merged", "count", len(out.Comments))

	return out, nil
}

// placement выбирает родителя для узла из ответа сервера: известный узел
// сливается на месте; новый вешается под известного родителя, иначе становится корнем.
func (s *Service) placement(c models.Comment) string {
	if s.store.Has(c.ID) || c.ParentID == "" {
		return ""
	}
	if s.store.Has(c.ParentID) {
		return c.ParentID
	}

	return ""
}

// mergeHeld сливает c с лесом, удерживая скаляры занятых узлов.
func (s *Service) mergeHeld(c models.Comment, parentID string) {
	held := make(map[string]struct{})
	s.store.Merge(c, parentID, func(id string) bool {
		if s.isPending(id) {
			held[id] = struct{}{}
			return true
		}
		return false
	})

	for id := range held {
		s.markStale(id)
	}
}

// vanished обрабатывает узел, исчезнувший на сервере.
func (s *Service) vanished(lg *slog.Logger, id string) {
	if s.markStale(id) {
		// Действие ещё идёт: оно само откатится и перечитает узел.
		return
	}
	if s.store.Remove(id) {
		lg.Info("comment vanished on server, removed locally")
	}
}
