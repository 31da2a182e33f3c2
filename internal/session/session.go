// session - сессия пользователя: bearer-токен для исходящих запросов и ID
// текущего пользователя, прочитанный из JWT без проверки подписи
// (подпись проверяет сервер, клиенту нужен только идентификатор для отображения).
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pribylovaa/go-comments-client/internal/config"
)

// ErrInvalidToken - токен не похож на JWT.
var ErrInvalidToken = errors.New("invalid token")

// Claims, в которых сервер кладёт ID пользователя (по убыванию приоритета).
var userIDClaims = []string{"id", "uid", "sub"}

// Provider отдаёт заголовок авторизации и ID текущего пользователя.
// Пустой токен - анонимная сессия: AuthHeader и UserID возвращают "".
// После Invalidate сессия становится анонимной до перезапуска.
type Provider struct {
	mu     sync.RWMutex
	token  string
	userID string
}

// New собирает сессию из конфигурации: Token важнее TokenFile.
func New(cfg config.SessionConfig) (*Provider, error) {
	const op = "session/New"

	token := strings.TrimSpace(cfg.Token)
	if token == "" && cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("%s: read token file: %w", op, err)
		}
		token = strings.TrimSpace(string(raw))
	}

	p, err := FromToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// FromToken разбирает JWT без проверки подписи.
func FromToken(token string) (*Provider, error) {
	token = strings.TrimPrefix(strings.TrimSpace(token), "Bearer ")
	if token == "" {
		return &Provider{}, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &Provider{token: token, userID: userIDFrom(claims)}, nil
}

func userIDFrom(claims jwt.MapClaims) string {
	for _, key := range userIDClaims {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			// Числовые ID приходят из JSON как float64.
			return fmt.Sprintf("%.0f", v)
		}
	}

	return ""
}

// AuthHeader - значение заголовка Authorization ("" для анонимной сессии).
func (p *Provider) AuthHeader() string {
	if p == nil {
		return ""
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.token == "" {
		return ""
	}

	return "Bearer " + p.token
}

// UserID - ID текущего пользователя ("" для анонимной сессии).
func (p *Provider) UserID() string {
	if p == nil {
		return ""
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.userID
}

// Anonymous - нет токена.
func (p *Provider) Anonymous() bool {
	if p == nil {
		return true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.token == ""
}

// Invalidate сбрасывает токен после ответа 401: сервер его больше не принимает,
// и слать его дальше бессмысленно. Возвращает false, если сессия уже анонимная.
func (p *Provider) Invalidate() bool {
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == "" {
		return false
	}
	p.token = ""
	p.userID = ""

	return true
}
