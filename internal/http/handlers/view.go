package handlers

import (
	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/internal/service"
)

// Comment - узел дерева в том виде, в каком его отдаёт view-API.
// Content заполняется только когда DeriveVisibility разрешает показ.
type Comment struct {
	ID                 string     `json:"id"`
	ParentID           string     `json:"parent_id,omitempty"` // "" - корень
	RootID             string     `json:"root_id,omitempty"`
	AuthorID           string     `json:"author_id"`
	AuthorName         string     `json:"author_name"`
	Content            string     `json:"content"`
	Depth              int        `json:"depth"`       // 0 - корень
	ReplyCount         int        `json:"reply_count"` // прямые дети
	IsEdited           bool       `json:"is_edited"`
	IsDeleted          bool       `json:"is_deleted"`
	CanEdit            bool       `json:"can_edit"`
	CanDelete          bool       `json:"can_delete"`
	CanRestore         bool       `json:"can_restore"`
	CanShowContent     bool       `json:"can_show_content"`
	CanShowRestore     bool       `json:"can_show_restore"`
	HasUnloadedReplies bool       `json:"has_unloaded_replies"`
	ChildrenLoaded     bool       `json:"children_loaded"`
	Pending            bool       `json:"pending"`
	CreatedAt          int64      `json:"created_at"` // Unix UTC
	UpdatedAt          int64      `json:"updated_at"` // Unix UTC
	DeletedAt          *int64     `json:"deleted_at,omitempty"`
	Replies            []*Comment `json:"replies"`
}

type ForestResponse struct {
	Comments []*Comment `json:"comments"`
}

type PathResponse struct {
	Path []string `json:"path"`
}

type CommentResponse struct {
	Comment *Comment `json:"comment"`
}

type UserCommentsResponse struct {
	Comments []*Comment `json:"comments"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	Limit    int        `json:"limit"`
	HasMore  bool       `json:"has_more"`
}

type contentRequest struct {
	Content string `json:"content"`
}

// toView рекурсивно собирает представление узла для текущего пользователя.
func toView(svc *service.Service, c models.Comment) *Comment {
	vis := svc.Visibility(c)

	out := &Comment{
		ID:                 c.ID,
		ParentID:           c.ParentID,
		RootID:             c.RootID,
		AuthorID:           c.AuthorID,
		AuthorName:         c.AuthorName,
		Depth:              c.Depth,
		ReplyCount:         c.ReplyCount,
		IsEdited:           c.IsEdited,
		IsDeleted:          c.IsDeleted,
		CanEdit:            c.CanEdit,
		CanDelete:          c.CanDelete,
		CanRestore:         c.CanRestore,
		CanShowContent:     vis.CanShowContent,
		CanShowRestore:     vis.CanShowRestore,
		HasUnloadedReplies: c.HasUnloadedReplies(),
		ChildrenLoaded:     c.ChildrenLoaded,
		Pending:            svc.Pending(c.ID),
		CreatedAt:          c.CreatedAt.UTC().Unix(),
		UpdatedAt:          c.UpdatedAt.UTC().Unix(),
		Replies:            make([]*Comment, 0, len(c.Children)),
	}

	if vis.CanShowContent {
		out.Content = c.Content
	}

	if c.DeletedAt != nil {
		ts := c.DeletedAt.UTC().Unix()
		out.DeletedAt = &ts
	}

	for _, ch := range c.Children {
		if ch != nil {
			out.Replies = append(out.Replies, toView(svc, *ch))
		}
	}

	return out
}

func toViews(svc *service.Service, cs []models.Comment) []*Comment {
	out := make([]*Comment, 0, len(cs))
	for _, c := range cs {
		out = append(out, toView(svc, c))
	}

	return out
}
