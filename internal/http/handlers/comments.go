package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/go-comments-client/internal/errors"
	"github.com/pribylovaa/go-comments-client/internal/service"
)

// ListForest отдаёт все известные клиенту корни вместе с загруженными ветками.
func (h *Handlers) ListForest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ForestResponse{Comments: toViews(h.Svc, h.Svc.Forest())})
}

// GetComment отдаёт узел из локального дерева; если узла нет или передан
// refresh=true, поддерево сначала подтягивается с сервера.
func (h *Handlers) GetComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		apierrors.WriteError(w, r, errInvalidArgument("id"))
		return
	}

	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apierrors.WriteError(w, r, errInvalidArgument("refresh"))
			return
		}

		refresh = b
	}

	c, ok := h.Svc.Comment(id)
	if !ok || refresh {
		loaded, err := h.Svc.LoadSubtree(r.Context(), id)
		if err != nil {
			apierrors.WriteError(w, r, err)
			return
		}

		c = loaded
	}

	writeJSON(w, http.StatusOK, CommentResponse{Comment: toView(h.Svc, c)})
}

// GetPath отдаёт цепочку id от корня до узла.
func (h *Handlers) GetPath(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	path, ok := h.Svc.Path(id)
	if !ok {
		apierrors.WriteError(w, r, service.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, PathResponse{Path: path})
}

func (h *Handlers) PostComment(w http.ResponseWriter, r *http.Request) {
	var in contentRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errInvalidArgument("body"))
		return
	}

	c, err := h.Svc.Post(r.Context(), in.Content)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CommentResponse{Comment: toView(h.Svc, c)})
}

func (h *Handlers) Reply(w http.ResponseWriter, r *http.Request) {
	var in contentRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errInvalidArgument("body"))
		return
	}

	c, err := h.Svc.Reply(r.Context(), chi.URLParam(r, "id"), in.Content)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CommentResponse{Comment: toView(h.Svc, c)})
}

func (h *Handlers) EditComment(w http.ResponseWriter, r *http.Request) {
	var in contentRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errInvalidArgument("body"))
		return
	}

	c, err := h.Svc.Edit(r.Context(), chi.URLParam(r, "id"), in.Content)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommentResponse{Comment: toView(h.Svc, c)})
}

func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommentResponse{Comment: toView(h.Svc, c)})
}

func (h *Handlers) RestoreComment(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Restore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommentResponse{Comment: toView(h.Svc, c)})
}

// ExpandReplies догружает ответы узла, если их ещё не видели.
func (h *Handlers) ExpandReplies(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Expand(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommentResponse{Comment: toView(h.Svc, c)})
}

func (h *Handlers) ListMyComments(w http.ResponseWriter, r *http.Request) {
	page, limit := 0, 0

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierrors.WriteError(w, r, errInvalidArgument("page"))
			return
		}

		page = n
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierrors.WriteError(w, r, errInvalidArgument("limit"))
			return
		}

		limit = n
	}

	p, err := h.Svc.LoadUserComments(r.Context(), page, limit)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UserCommentsResponse{
		Comments: toViews(h.Svc, p.Comments),
		Total:    p.Total,
		Page:     p.Page,
		Limit:    p.Limit,
		HasMore:  p.HasMore,
	})
}
