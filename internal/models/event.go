package models

import "time"

// EventKind - тип уведомления.
type EventKind string

const (
	EventReply   EventKind = "reply"
	EventComment EventKind = "comment"
)

// Event - уведомление из realtime-канала.
// TargetID - комментарий, поддерево которого устарело (для reply - родитель ответа).
// IsRead - пользователь уже видел уведомление (ведёт сервер).
type Event struct {
	ID        string
	TargetID  string
	Kind      EventKind
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
