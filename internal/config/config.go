// config реализует конфигурацию comments-client: загрузка из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config - корневая конфигурация клиента.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
//
// Поверх файла всегда накладываются ENV-переменные.
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	API      APIConfig     `yaml:"api"`
	Notify   NotifyConfig  `yaml:"notify"`
	Session  SessionConfig `yaml:"session"`
	HTTP     HTTPConfig    `yaml:"http"`
	Limits   LimitsConfig  `yaml:"limits"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// APIConfig - REST-API сервиса комментариев.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"   env:"API_BASE_URL"   env-required:"true"`
	UserAgent string `yaml:"user_agent" env:"API_USER_AGENT" env-default:"comments-client"`
}

// NotifyConfig - realtime-канал уведомлений. Пустой URL отключает подписку.
type NotifyConfig struct {
	URL         string        `yaml:"url"          env:"NOTIFY_URL"`
	Reconnect   time.Duration `yaml:"reconnect"    env:"NOTIFY_RECONNECT"    env-default:"5s"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"NOTIFY_READ_TIMEOUT" env-default:"60s"`
	Buffer      int           `yaml:"buffer"       env:"NOTIFY_BUFFER"       env-default:"64"`
}

// SessionConfig - откуда брать bearer-токен. Token важнее TokenFile.
type SessionConfig struct {
	Token     string `yaml:"token"      env:"AUTH_TOKEN"`
	TokenFile string `yaml:"token_file" env:"AUTH_TOKEN_FILE"`
}

// HTTPConfig - локальный view-API, health и метрики.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"127.0.0.1"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50095"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// LimitsConfig - пагинация списка «мои комментарии».
type LimitsConfig struct {
	// page_size=0 -> берём Default; верхняя граница - Max.
	Default int `yaml:"default" env:"DEFAULT_LIMIT" env-default:"20"`
	Max     int `yaml:"max"     env:"MAX_LIMIT"     env-default:"100"`
}

// TimeoutConfig - таймауты.
// Call - дедлайн одного удалённого вызова; он не зависит от жизни запроса,
// который его инициировал. Request - общий дедлайн запроса к view-API.
type TimeoutConfig struct {
	Call    time.Duration `yaml:"call"    env:"CALL_TIMEOUT"    env-default:"10s"`
	Request time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"15s"`
}

// MustLoad - обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
func Load(path string) (*Config, error) {
	var cfg Config

	if src := resolvePath(path); src != "" {
		if _, err := os.Stat(src); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", src, err)
		}

		// ReadConfig читает файл и сразу накладывает ENV.
		if err := cleanenv.ReadConfig(src, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", src, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolvePath выбирает файл конфигурации; "" - файла нет, только ENV.
func resolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}

	if _, err := os.Stat("local.yaml"); err == nil {
		return "local.yaml"
	}

	return ""
}

// validate - базовая валидация значений.
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if c.API.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) url")
	}

	if c.Notify.URL != "" {
		u, err := url.Parse(c.Notify.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return fmt.Errorf("notify.url must be an absolute ws(s) url")
		}
	}

	if c.Notify.Reconnect <= 0 {
		return fmt.Errorf("notify.reconnect must be > 0")
	}

	if c.Notify.Buffer <= 0 {
		return fmt.Errorf("notify.buffer must be > 0")
	}

	if c.Limits.Default <= 0 {
		return fmt.Errorf("limits.default must be > 0")
	}

	if c.Limits.Max <= 0 {
		return fmt.Errorf("limits.max must be > 0")
	}

	if c.Limits.Default > c.Limits.Max {
		return fmt.Errorf("limits.default must be <= limits.max")
	}

	if c.Timeouts.Call <= 0 {
		return fmt.Errorf("timeouts.call must be > 0")
	}

	return nil
}
