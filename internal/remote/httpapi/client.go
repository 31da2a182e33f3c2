// httpapi - реализация remote.Remote поверх REST-API сервиса комментариев.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/internal/remote"
	"github.com/pribylovaa/go-comments-client/internal/remote/httpapi/interceptors"
)

// Тело ошибки больше этого не читаем.
const maxErrorBody = 64 << 10

// errEmptyBody - 2xx без тела там, где ожидался JSON.
var errEmptyBody = errors.New("empty response body")

// Options - параметры исходящих запросов.
type Options struct {
	UserAgent string
	// Auth возвращает значение заголовка Authorization ("" - без авторизации).
	Auth      func() string
	Timeout   time.Duration
	Logger    *slog.Logger
	Transport http.RoundTripper
}

// Client - REST-клиент сервиса комментариев.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ remote.Remote = (*Client)(nil)

// New создаёт клиент для baseURL (например, https://host/api).
func New(baseURL string, opts Options) (*Client, error) {
	const op = "remote/httpapi/New"

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: invalid base url %q", op, baseURL)
	}

	// Цепочка интерсепторов: metadata -> timeout -> logging.
	transport := interceptors.Chain(opts.Transport,
		interceptors.WithMetadata(opts.UserAgent, opts.Auth),
		interceptors.WithTimeout(opts.Timeout),
		interceptors.WithLogging(opts.Logger),
	)

	return &Client{
		base: base,
		http: &http.Client{Transport: transport},
	}, nil
}

func (c *Client) CreateComment(ctx context.Context, content, parentID string) (*models.Comment, error) {
	const op = "remote/httpapi/CreateComment"

	var out commentDTO
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "comments"), createRequest{Content: content, ParentID: parentID}, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := out.toModel()
	return &m, nil
}

func (c *Client) UpdateComment(ctx context.Context, id, content string) (*models.Comment, error) {
	const op = "remote/httpapi/UpdateComment"

	var out commentDTO
	if err := c.do(ctx, http.MethodPut, c.endpoint(nil, "comments", id), updateRequest{Content: content}, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := out.toModel()
	return &m, nil
}

func (c *Client) DeleteComment(ctx context.Context, id string) (*models.Comment, error) {
	const op = "remote/httpapi/DeleteComment"

	var out commentDTO
	err := c.do(ctx, http.MethodDelete, c.endpoint(nil, "comments", id), nil, &out)
	switch {
	case errors.Is(err, errEmptyBody):
		// 204 или пустой 200: действие выполнено, состояние узла сервер не прислал.
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := out.toModel()
	return &m, nil
}

func (c *Client) RestoreComment(ctx context.Context, id string) (*models.Comment, error) {
	const op = "remote/httpapi/RestoreComment"

	var out commentDTO
	err := c.do(ctx, http.MethodPost, c.endpoint(nil, "comments", id, "restore"), nil, &out)
	switch {
	case errors.Is(err, errEmptyBody):
		// 204 или пустой 200: действие выполнено, состояние узла сервер не прислал.
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := out.toModel()
	return &m, nil
}

func (c *Client) CommentSubtree(ctx context.Context, id string) (*models.Comment, error) {
	const op = "remote/httpapi/CommentSubtree"

	var out commentDTO
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "comments", id, "tree"), nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := out.toModel()
	return &m, nil
}

func (c *Client) ListUserComments(ctx context.Context, page, limit int) (*models.Page, error) {
	const op = "remote/httpapi/ListUserComments"

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out pageDTO
	if err := c.do(ctx, http.MethodGet, c.endpoint(q, "comments", "user"), nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &models.Page{
		Comments: make([]models.Comment, 0, len(out.Comments)),
		Total:    out.Total,
		Page:     out.Page,
		Limit:    out.Limit,
		HasMore:  out.HasMore,
	}
	for _, d := range out.Comments {
		res.Comments = append(res.Comments, d.toModel())
	}

	return res, nil
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.Event, error) {
	const op = "remote/httpapi/ListNotifications"

	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "notifications"), nil, &raw)
	switch {
	case errors.Is(err, errEmptyBody):
		return []models.Event{}, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	list, err := decodeNotifications(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}

	out := make([]models.Event, 0, len(list))
	for _, d := range list {
		out = append(out, d.toModel())
	}

	return out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	const op = "remote/httpapi/MarkNotificationRead"

	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "notifications", id, "read"), nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) endpoint(q url.Values, elem ...string) string {
	u := c.base.JoinPath(elem...)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// do выполняет запрос и декодирует ответ в out.
// Ошибки транспорта и статусы >= 400 возвращаются как *remote.Error.
func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &remote.Error{Kind: remote.ErrUnreachable, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e errorDTO
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&e)
		return &remote.Error{Kind: KindOf(resp.StatusCode), Status: resp.StatusCode, Message: e.text()}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.Is(err, context.DeadlineExceeded):
			return &remote.Error{Kind: remote.ErrUnreachable, Status: resp.StatusCode, Cause: err}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// KindOf - маппинг HTTP-статуса в категорию ошибки:
//   - 400/409/422 и прочие 4xx -> ErrValidation;
//   - 401 -> ErrUnauthorized, 403 -> ErrForbidden, 404 -> ErrNotFound;
//   - 408/5xx -> ErrUnreachable.
func KindOf(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return remote.ErrUnauthorized
	case status == http.StatusForbidden:
		return remote.ErrForbidden
	case status == http.StatusNotFound:
		return remote.ErrNotFound
	case status == http.StatusRequestTimeout, status >= http.StatusInternalServerError:
		return remote.ErrUnreachable
	default:
		return remote.ErrValidation
	}
}
