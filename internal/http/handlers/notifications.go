package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/go-comments-client/internal/errors"
	"github.com/pribylovaa/go-comments-client/internal/models"
)

type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // reply | comment
	TargetID  string `json:"target_id,omitempty"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt int64  `json:"created_at"` // Unix UTC
}

type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// ListNotifications отдаёт входящие; refresh=true сначала перечитывает их с сервера.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("refresh"); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			apierrors.WriteError(w, r, errInvalidArgument("refresh"))
			return
		}

		if refresh {
			if _, err := h.Svc.LoadNotifications(r.Context()); err != nil {
				apierrors.WriteError(w, r, err)
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, h.inbox())
}

// MarkNotificationRead помечает уведомление прочитанным и отдаёт обновлённые входящие.
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.inbox())
}

func (h *Handlers) inbox() NotificationsResponse {
	events := h.Svc.Notifications()

	out := NotificationsResponse{Notifications: make([]Notification, 0, len(events))}
	for _, ev := range events {
		out.Notifications = append(out.Notifications, toNotification(ev))
		if !ev.IsRead {
			out.UnreadCount++
		}
	}

	return out
}

func toNotification(ev models.Event) Notification {
	n := Notification{
		ID:       ev.ID,
		Type:     string(ev.Kind),
		TargetID: ev.TargetID,
		Message:  ev.Message,
		IsRead:   ev.IsRead,
	}
	if !ev.CreatedAt.IsZero() {
		n.CreatedAt = ev.CreatedAt.UTC().Unix()
	}

	return n
}
