package httpapi

import (
	"encoding/json"
	"time"

	"github.com/pribylovaa/go-comments-client/internal/models"
)

// commentDTO - комментарий в формате REST-API.
// Replies == nil - поле отсутствовало (дети не загружены);
// пустой массив - детей нет.
type commentDTO struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	AuthorID   string     `json:"authorId"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	IsEdited   bool       `json:"isEdited"`
	IsDeleted  bool       `json:"isDeleted"`
	DeletedAt  *time.Time `json:"deletedAt"`
	ParentID   *string    `json:"parentId"`
	RootID     *string    `json:"rootId"`
	Depth      int        `json:"depth"`
	CanEdit    bool       `json:"canEdit"`
	CanDelete  bool       `json:"canDelete"`
	CanRestore bool       `json:"canRestore"`

	Author *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"author"`
	Count *struct {
		Replies int `json:"replies"`
	} `json:"_count"`
	Replies *[]commentDTO `json:"replies"`
}

type pageDTO struct {
	Comments []commentDTO `json:"comments"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
	HasMore  bool         `json:"hasMore"`
}

type createRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

type updateRequest struct {
	Content string `json:"content"`
}

// notificationDTO - уведомление из GET /notifications.
type notificationDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
	TargetID  string    `json:"targetId"`
	CommentID string    `json:"commentId"`
	ParentID  string    `json:"parentId"`
}

// decodeNotifications принимает и голый массив, и {"notifications": [...]}.
func decodeNotifications(raw json.RawMessage) ([]notificationDTO, error) {
	var list []notificationDTO
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Notifications []notificationDTO `json:"notifications"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}

	return wrapped.Notifications, nil
}

func (d notificationDTO) toModel() models.Event {
	kind := models.EventKind(d.Type)

	target := d.TargetID
	if target == "" && kind == models.EventReply {
		target = d.ParentID
	}
	if target == "" {
		target = d.CommentID
	}

	return models.Event{
		ID:        d.ID,
		TargetID:  target,
		Kind:      kind,
		Message:   d.Message,
		IsRead:    d.IsRead,
		CreatedAt: d.CreatedAt,
	}
}

// errorDTO - тело ошибки; message бывает строкой или массивом строк.
type errorDTO struct {
	Message    json.RawMessage `json:"message"`
	StatusCode int             `json:"statusCode"`
}

func (e errorDTO) text() string {
	if len(e.Message) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}

	var list []string
	if err := json.Unmarshal(e.Message, &list); err == nil && len(list) > 0 {
		return list[0]
	}

	return ""
}

func (d commentDTO) toModel() models.Comment {
	c := models.Comment{
		ID:         d.ID,
		Content:    d.Content,
		AuthorID:   d.AuthorID,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		IsEdited:   d.IsEdited,
		IsDeleted:  d.IsDeleted,
		DeletedAt:  d.DeletedAt,
		Depth:      d.Depth,
		CanEdit:    d.CanEdit,
		CanDelete:  d.CanDelete,
		CanRestore: d.CanRestore,
	}

	if d.ParentID != nil {
		c.ParentID = *d.ParentID
	}
	if d.RootID != nil {
		c.RootID = *d.RootID
	}
	if d.Author != nil {
		c.AuthorName = d.Author.Username
		if c.AuthorID == "" {
			c.AuthorID = d.Author.ID
		}
	}

	if d.Replies != nil {
		c.ChildrenLoaded = true
		c.Children = make([]*models.Comment, 0, len(*d.Replies))
		for _, r := range *d.Replies {
			ch := r.toModel()
			c.Children = append(c.Children, &ch)
		}
		c.ReplyCount = len(c.Children)
	}
	if d.Count != nil {
		c.ReplyCount = max(d.Count.Replies, len(c.Children))
	}

	return c
}
