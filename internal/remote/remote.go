// Package remote описывает контракт удалённого сервиса комментариев,
// который потребляет ядро клиента. Транспорт (REST, авторизация) живёт
// в реализациях, например remote/httpapi.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/go-comments-client/internal/models"
)

var (
	// ErrValidation - сервер отверг входные данные; повторять бессмысленно.
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized - нет или протухла сессия.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden - действие запрещено для этого пользователя.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound - сущность исчезла на сервере.
	ErrNotFound = errors.New("not found")
	// ErrUnreachable - транспортный сбой (сеть, таймаут, 5xx); можно повторить вручную.
	ErrUnreachable = errors.New("unreachable")
)

// Error - ошибка удалённого вызова.
// Kind - один из сентинелов выше (errors.Is работает через Unwrap).
// Message - человекочитаемый текст из тела ответа сервера, если он был.
// Cause - исходная ошибка транспорта (status 0), если запрос не дошёл.
type Error struct {
	Kind    error
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("remote: %v (status %d): %v", e.Kind, e.Status, e.Cause)
	case e.Message == "":
		return fmt.Sprintf("remote: %v (status %d)", e.Kind, e.Status)
	default:
		return fmt.Sprintf("remote: %v (status %d): %s", e.Kind, e.Status, e.Message)
	}
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}

// MessageOf достаёт серверное сообщение из цепочки ошибок ("" если его нет).
func MessageOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Message
	}

	return ""
}

// Remote описывает операции над комментариями на стороне сервера.
type Remote interface {
	// CreateComment создаёт корневой комментарий (parentID == "") или ответ.
	// Возможные ошибки: ErrValidation, ErrUnauthorized, ErrUnreachable.
	CreateComment(ctx context.Context, content, parentID string) (*models.Comment, error)

	// UpdateComment меняет текст комментария.
	// Возможные ошибки: ErrNotFound, ErrForbidden, ErrUnreachable.
	UpdateComment(ctx context.Context, id, content string) (*models.Comment, error)

	// DeleteComment выполняет мягкое удаление.
	// (nil, nil) - сервер подтвердил удаление без тела ответа.
	// Возможные ошибки: ErrNotFound, ErrForbidden, ErrUnreachable.
	DeleteComment(ctx context.Context, id string) (*models.Comment, error)

	// RestoreComment снимает мягкое удаление.
	// (nil, nil) - сервер подтвердил восстановление без тела ответа.
	// Возможные ошибки: ErrNotFound, ErrForbidden, ErrUnreachable.
	RestoreComment(ctx context.Context, id string) (*models.Comment, error)

	// CommentSubtree возвращает комментарий со всем деревом потомков.
	// Возможные ошибки: ErrNotFound, ErrUnreachable.
	CommentSubtree(ctx context.Context, id string) (*models.Comment, error)

	// ListUserComments возвращает страницу комментариев текущего пользователя (page с 1).
	ListUserComments(ctx context.Context, page, limit int) (*models.Page, error)

	// ListNotifications возвращает уведомления текущего пользователя, новые первыми.
	ListNotifications(ctx context.Context) ([]models.Event, error)

	// MarkNotificationRead помечает уведомление прочитанным.
	// Возможные ошибки: ErrNotFound, ErrUnauthorized, ErrUnreachable.
	MarkNotificationRead(ctx context.Context, id string) error
}
