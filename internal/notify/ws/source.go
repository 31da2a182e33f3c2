// ws - источник уведомлений поверх WebSocket (gorilla/websocket).
// Держит одно соединение, декодирует JSON-уведомления и публикует их в хаб;
// при обрыве переподключается с фиксированной паузой, пока жив контекст.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pribylovaa/go-comments-client/internal/config"
	"github.com/pribylovaa/go-comments-client/internal/models"
	"github.com/pribylovaa/go-comments-client/pkg/log"
)

// Publisher - получатель декодированных уведомлений (обычно notify.Hub).
type Publisher interface {
	Publish(ev models.Event)
}

// Source - WebSocket-подключение к каналу уведомлений.
type Source struct {
	url         string
	auth        func() string
	reconnect   time.Duration
	readTimeout time.Duration
	pub         Publisher
	dialer      *websocket.Dialer
}

// New создаёт источник. auth может быть nil.
func New(cfg config.NotifyConfig, auth func() string, pub Publisher) *Source {
	return &Source{
		url:         cfg.URL,
		auth:        auth,
		reconnect:   cfg.Reconnect,
		readTimeout: cfg.ReadTimeout,
		pub:         pub,
		dialer:      websocket.DefaultDialer,
	}
}

// Run держит соединение до отмены ctx. Возвращает nil при штатной остановке.
func (s *Source) Run(ctx context.Context) error {
	const op = "notify/ws/Run"

	lg := log.From(ctx).With("op", op, "url", s.url)

	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			lg.Info("notification source stopped")
			return nil
		}
		lg.Warn("notification connection lost", "err", err, "retry_in", s.reconnect)

		select {
		case <-ctx.Done():
			lg.Info("notification source stopped")
			return nil
		case <-time.After(s.reconnect):
		}
	}
}

// session - одно соединение: dial, чтение до ошибки.
func (s *Source) session(ctx context.Context) error {
	lg := log.From(ctx)

	header := http.Header{}
	if s.auth != nil {
		if v := s.auth(); v != "" {
			header.Set("Authorization", v)
		}
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Разблокировать ReadMessage при отмене контекста.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	s.extendDeadline(conn)
	conn.SetPingHandler(func(data string) error {
		s.extendDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	lg.Info("notification connection established")

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.extendDeadline(conn)

		if kind != websocket.TextMessage {
			continue
		}

		ev, ok, err := Decode(data)
		if err != nil {
			lg.Warn("malformed notification skipped", "err", err)
			continue
		}
		if !ok {
			lg.Debug("notification of unsupported type skipped")
			continue
		}

		s.pub.Publish(ev)
	}
}

func (s *Source) extendDeadline(conn *websocket.Conn) {
	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
}

// message - уведомление на проводе. Допускается обёртка {"event": ..., "data": {...}}.
type message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
	TargetID  string    `json:"targetId"`
	CommentID string    `json:"commentId"`
	ParentID  string    `json:"parentId"`

	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode разбирает уведомление. ok == false - тип не reply/comment.
//
// Целевой комментарий: targetId; для reply - parentId (у родителя появился ответ);
// иначе commentId.
func Decode(data []byte) (models.Event, bool, error) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return models.Event{}, false, err
	}
	if len(m.Data) > 0 && m.Type == "" {
		if m.Event != "" && m.Event != "notification" {
			return models.Event{}, false, nil
		}
		return Decode(m.Data)
	}

	kind := models.EventKind(m.Type)
	if kind != models.EventReply && kind != models.EventComment {
		return models.Event{}, false, nil
	}

	target := m.TargetID
	if target == "" && kind == models.EventReply {
		target = m.ParentID
	}
	if target == "" {
		target = m.CommentID
	}

	return models.Event{
		ID:        m.ID,
		TargetID:  target,
		Kind:      kind,
		Message:   m.Message,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}, true, nil
}
