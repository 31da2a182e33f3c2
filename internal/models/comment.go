// Package models содержит доменные сущности клиента комментариев.
package models

import "time"

// Comment - узел дерева комментариев в том виде, в каком его знает клиент.
// Важно:
//   - ID - непрозрачный строковый идентификатор, назначается сервером.
//   - ParentID - пусто для корня; Depth - глубина ветки (корень = 0).
//   - IsDeleted - мягкое удаление: узел остаётся «заглушкой», ветка под ним доступна.
//   - CanEdit/CanDelete/CanRestore - флаги сервера, клиент права не вычисляет.
//   - ReplyCount - число прямых ответов; может отставать от len(Children).
//   - Children - частичный список; ChildrenLoaded отличает «загружено пусто»
//     от «ещё не загружали».
type Comment struct {
	ID         string
	ParentID   string
	RootID     string
	AuthorID   string
	AuthorName string
	Content    string
	Depth      int
	ReplyCount int
	IsEdited   bool
	IsDeleted  bool
	CanEdit    bool
	CanDelete  bool
	CanRestore bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time

	Children       []*Comment
	ChildrenLoaded bool
}

// HasUnloadedReplies - у узла есть ответы, которых клиент ещё не видел.
func (c Comment) HasUnloadedReplies() bool {
	return !c.ChildrenLoaded && c.ReplyCount > 0
}

// Page - страница комментариев текущего пользователя.
type Page struct {
	Comments []Comment
	Total    int
	Page     int
	Limit    int
	HasMore  bool
}
