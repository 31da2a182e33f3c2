package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/pkg/log"
)

// Каждое действие проходит Idle -> OptimisticallyApplied -> Committed | RolledBack.
// Над одним ID одновременно выполняется не больше одного действия; второе
// получает ErrBusy. Ответ занимает слот родителя.

// Reply - ответ на комментарий parentID.
//
// Оптимистичного узла нет: ID ответа назначает сервер. После успеха:
//   - у родителя нет невиденных ответов -> ответ вставляется, ReplyCount родителя +1,
//     дети родителя считаются загруженными;
//   - у родителя есть ответы, которых клиент не видел -> поддерево перечитывается;
//   - родитель неизвестен -> размещать нечего.
//
// Ошибки: ErrInvalidArgument, ErrBusy и сентинелы удалённого вызова.
func (s *Service) Reply(ctx context.Context, parentID, content string) (models.Comment, error) {
	const op = "service/actions/Reply"

	parentID = strings.TrimSpace(parentID)
	content = strings.TrimSpace(content)
	lg := log.From(ctx).With("op", op, "parent_id", parentID)

	if parentID == "" || content == "" {
		lg.Warn("invalid argument: empty parent_id or content")
		return s.done(ActionReply, op, localError(ActionReply, parentID, ErrInvalidArgument, "Reply cannot be empty."))
	}

	if !s.acquire(parentID, ActionReply) {
		lg.Warn("parent is busy")
		return s.done(ActionReply, op, busyError(ActionReply, parentID))
	}

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	created, err := s.remote.CreateComment(cctx, content, parentID)
	if err == nil && created == nil {
		err = errNoResult
	}
	if err != nil {
		s.settle(ctx, parentID, false)
		s.logFailure(lg, err)
		return s.done(ActionReply, op, actionError(ActionReply, parentID, err))
	}

	refresh := false
	parent, known := s.store.Get(parentID)
	switch {
	case !known:
		lg.Debug("parent is not in the forest, nothing to place")
	case !parent.HasUnloadedReplies():
		// Все ответы родителя уже в лесу (или их не было): вставляем сразу.
		// Ответ мог уже приехать вместе с перечитанным поддеревом.
		fresh := !s.store.Has(created.ID)
		if s.store.Upsert(leaf(*created), parentID) && fresh {
			s.store.PatchCounts(parentID, +1)
		}
		if !parent.ChildrenLoaded {
			s.patch(parentID, func(c *models.Comment) { c.ChildrenLoaded = true })
		}
	default:
		refresh = true
	}

	s.settle(ctx, parentID, refresh)
	lg.Info("reply created", "id", created.ID)

	return s.result(ActionReply, leaf(*created))
}

// Post - новый корневой комментарий.
func (s *Service) Post(ctx context.Context, content string) (models.Comment, error) {
	const op = "service/actions/Post"

	content = strings.TrimSpace(content)
	lg := log.From(ctx).With("op", op)

	if content == "" {
		lg.Warn("invalid argument: empty content")
		return s.done(ActionPost, op, localError(ActionPost, "", ErrInvalidArgument, "Comment cannot be empty."))
	}

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	created, err := s.remote.CreateComment(cctx, content, "")
	if err == nil && created == nil {
		err = errNoResult
	}
	if err != nil {
		s.logFailure(lg, err)
		return s.done(ActionPost, op, actionError(ActionPost, "", err))
	}

	c := leaf(*created)
	s.store.Upsert(c, "")
	s.metrics.Nodes(s.store.Len())
	lg.Info("comment posted", "id", c.ID)

	return s.result(ActionPost, c)
}

// Edit меняет текст комментария.
// Оптимистично: новый текст и IsEdited. Откат восстанавливает Content/IsEdited/UpdatedAt.
func (s *Service) Edit(ctx context.Context, id, content string) (models.Comment, error) {
	const op = "service/actions/Edit"

	id = strings.TrimSpace(id)
	content = strings.TrimSpace(content)
	lg := log.From(ctx).With("op", op, "id", id)

	if id == "" || content == "" {
		lg.Warn("invalid argument: empty id or content")
		return s.done(ActionEdit, op, localError(ActionEdit, id, ErrInvalidArgument, "Comment cannot be empty."))
	}

	if !s.acquire(id, ActionEdit) {
		lg.Warn("comment is busy")
		return s.done(ActionEdit, op, busyError(ActionEdit, id))
	}

	cur, ok := s.store.Get(id)
	if !ok {
		s.release(id)
		lg.Warn("comment not found locally")
		return s.done(ActionEdit, op, localError(ActionEdit, id, ErrNotFound, "Comment not found."))
	}

	snap := cur
	s.patch(id, func(c *models.Comment) {
		c.Content = content
		c.IsEdited = true
	})

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	updated, err := s.remote.UpdateComment(cctx, id, content)
	if err == nil && updated == nil {
		err = errNoResult
	}
	if err != nil {
		s.patch(id, func(c *models.Comment) {
			c.Content = snap.Content
			c.IsEdited = snap.IsEdited
			c.UpdatedAt = snap.UpdatedAt
		})
		s.settle(ctx, id, errors.Is(mapRemote(err), ErrNotFound))
		s.logFailure(lg, err)
		return s.done(ActionEdit, op, actionError(ActionEdit, id, err))
	}

	s.patch(id, func(c *models.Comment) {
		if updated.Content != "" {
			c.Content = updated.Content
		}
		c.IsEdited = true
		if !updated.UpdatedAt.IsZero() {
			c.UpdatedAt = updated.UpdatedAt
		}
	})
	s.settle(ctx, id, false)
	lg.Info("comment edited")

	return s.current(ActionEdit, id)
}

// Delete - мягкое удаление. Узел остаётся заглушкой, его ветка доступна,
// ReplyCount родителя не уменьшается.
// После успеха от сервера берутся только флаги прав и отметки времени:
// текст остаётся очищенным.
func (s *Service) Delete(ctx context.Context, id string) (models.Comment, error) {
	const op = "service/actions/Delete"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return s.done(ActionDelete, op, localError(ActionDelete, id, ErrInvalidArgument, fallbackMessages[ActionDelete]))
	}

	if !s.acquire(id, ActionDelete) {
		lg.Warn("comment is busy")
		return s.done(ActionDelete, op, busyError(ActionDelete, id))
	}

	cur, ok := s.store.Get(id)
	if !ok {
		s.release(id)
		lg.Warn("comment not found locally")
		return s.done(ActionDelete, op, localError(ActionDelete, id, ErrNotFound, "Comment not found."))
	}
	if cur.IsDeleted {
		s.release(id)
		lg.Warn("comment is already deleted")
		return s.done(ActionDelete, op, localError(ActionDelete, id, ErrInvalidArgument, "Comment is already deleted."))
	}

	snap := cur
	s.patch(id, func(c *models.Comment) {
		c.IsDeleted = true
		c.Content = ""
	})

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	deleted, err := s.remote.DeleteComment(cctx, id)
	if err != nil {
		s.patch(id, func(c *models.Comment) {
			c.IsDeleted = snap.IsDeleted
			c.Content = snap.Content
		})
		s.settle(ctx, id, errors.Is(mapRemote(err), ErrNotFound))
		s.logFailure(lg, err)
		return s.done(ActionDelete, op, actionError(ActionDelete, id, err))
	}

	if deleted == nil {
		// Сервер подтвердил без тела: флаги прав приедут с перечитанным поддеревом.
		s.settle(ctx, id, true)
		lg.Info("comment deleted, state refreshed")
		return s.current(ActionDelete, id)
	}

	s.patch(id, func(c *models.Comment) {
		c.IsDeleted = true
		c.Content = ""
		c.CanEdit = deleted.CanEdit
		c.CanDelete = deleted.CanDelete
		c.CanRestore = deleted.CanRestore
		if deleted.DeletedAt != nil {
			c.DeletedAt = deleted.DeletedAt
		}
		if !deleted.UpdatedAt.IsZero() {
			c.UpdatedAt = deleted.UpdatedAt
		}
	})
	s.settle(ctx, id, false)
	lg.Info("comment deleted")

	return s.current(ActionDelete, id)
}

// Restore снимает мягкое удаление. Узел, для которого восстановление
// не предлагается (DeriveVisibility.CanShowRestore == false), отклоняется локально.
func (s *Service) Restore(ctx context.Context, id string) (models.Comment, error) {
	const op = "service/actions/Restore"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return s.done(ActionRestore, op, localError(ActionRestore, id, ErrInvalidArgument, fallbackMessages[ActionRestore]))
	}

	if !s.acquire(id, ActionRestore) {
		lg.Warn("comment is busy")
		return s.done(ActionRestore, op, busyError(ActionRestore, id))
	}

	cur, ok := s.store.Get(id)
	if !ok {
		s.release(id)
		lg.Warn("comment not found locally")
		return s.done(ActionRestore, op, localError(ActionRestore, id, ErrNotFound, "Comment not found."))
	}
	if !s.Visibility(cur).CanShowRestore {
		s.release(id)
		lg.Warn("comment cannot be restored")
		return s.done(ActionRestore, op, localError(ActionRestore, id, ErrInvalidArgument, "Comment cannot be restored."))
	}

	snap := cur
	s.patch(id, func(c *models.Comment) {
		c.IsDeleted = false
		c.DeletedAt = nil
	})

	cctx, cancel := s.callContext(ctx)
	defer cancel()

	restored, err := s.remote.RestoreComment(cctx, id)
	if err != nil {
		s.patch(id, func(c *models.Comment) {
			c.IsDeleted = snap.IsDeleted
			c.DeletedAt = snap.DeletedAt
		})
		s.settle(ctx, id, errors.Is(mapRemote(err), ErrNotFound))
		s.logFailure(lg, err)
		return s.done(ActionRestore, op, actionError(ActionRestore, id, err))
	}

	if restored == nil {
		// Текст восстановленного комментария есть только на сервере.
		s.settle(ctx, id, true)
		lg.Info("comment restored, state refreshed")
		return s.current(ActionRestore, id)
	}

	s.patch(id, func(c *models.Comment) {
		c.IsDeleted = false
		c.DeletedAt = nil
		c.Content = restored.Content
		c.IsEdited = restored.IsEdited
		c.CanEdit = restored.CanEdit
		c.CanDelete = restored.CanDelete
		c.CanRestore = restored.CanRestore
		if !restored.UpdatedAt.IsZero() {
			c.UpdatedAt = restored.UpdatedAt
		}
	})
	s.settle(ctx, id, false)
	lg.Info("comment restored")

	return s.current(ActionRestore, id)
}

// leaf отмечает только что созданный комментарий: ответов у него нет,
// так что и загружать под ним нечего.
func leaf(c models.Comment) models.Comment {
	if c.ReplyCount == 0 {
		c.ChildrenLoaded = true
	}

	return c
}

// done учитывает отказ в метриках и оборачивает его op.
func (s *Service) done(action, op string, ae *ActionError) (models.Comment, error) {
	s.metrics.Action(action, outcome(ae))

	return models.Comment{}, wrap(op, ae)
}

func (s *Service) result(action string, c models.Comment) (models.Comment, error) {
	s.metrics.Action(action, outcome(nil))

	return c, nil
}

// current возвращает подтверждённое состояние узла из леса.
func (s *Service) current(action, id string) (models.Comment, error) {
	s.metrics.Action(action, outcome(nil))

	c, _ := s.store.Find(id)
	return c, nil
}

// logFailure пишет отказ удалённого вызова; 401 дополнительно сбрасывает сессию.
func (s *Service) logFailure(lg *slog.Logger, err error) {
	s.dropSession(lg, err)

	switch kind := mapRemote(err); kind {
	case ErrUnreachable, ErrInternal:
		lg.Error("remote call failed", "err", err)
	default:
		lg.Warn("remote call rejected", "kind", kind.Error(), "err", err)
	}
}
