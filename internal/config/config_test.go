package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile - утилита записи временного файла конфигурации.
func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

// chdir - смена текущего рабочего каталога с автоматическим откатом.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// Полный корректный YAML (не зависит от дефолтов).
const sampleYAML = `
env: "prod"
api:
  base_url: "https://comments.example.com/api"
  user_agent: "cc-test"
notify:
  url: "wss://comments.example.com/ws"
  reconnect: 2s
  read_timeout: 30s
  buffer: 16
session:
  token_file: "/run/secrets/token"
http:
  host: "0.0.0.0"
  port: "8095"
limits:
  default: 15
  max: 50
timeouts:
  call: 3s
  request: 4s
`

// Минимально валидный YAML (только обязательные поля).
const minimalYAML = `
api:
  base_url: "http://localhost:3000/api"
`

const brokenYAML = `
api:
  base_url: "http://localhost:3000/api"
limits: [10, 5
`

func TestHTTPConfig_Addr(t *testing.T) {
	t.Parallel()
	cfg := HTTPConfig{Host: "127.0.0.1", Port: "50095"}
	require.Equal(t, "127.0.0.1:50095", cfg.Addr())
}

// TestLoad_WithExplicitPath_OK - явный путь имеет высший приоритет.
func TestLoad_WithExplicitPath_OK(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "https://comments.example.com/api", cfg.API.BaseURL)
	require.Equal(t, "cc-test", cfg.API.UserAgent)
	require.Equal(t, "wss://comments.example.com/ws", cfg.Notify.URL)
	require.Equal(t, 2*time.Second, cfg.Notify.Reconnect)
	require.Equal(t, 30*time.Second, cfg.Notify.ReadTimeout)
	require.Equal(t, 16, cfg.Notify.Buffer)
	require.Equal(t, "/run/secrets/token", cfg.Session.TokenFile)
	require.Equal(t, "0.0.0.0:8095", cfg.HTTP.Addr())
	require.Equal(t, 15, cfg.Limits.Default)
	require.Equal(t, 50, cfg.Limits.Max)
	require.Equal(t, 3*time.Second, cfg.Timeouts.Call)
	require.Equal(t, 4*time.Second, cfg.Timeouts.Request)
}

func TestLoad_WithExplicitPath_BrokenYAML(t *testing.T) {
	t.Parallel()

	cfgPath := writeFile(t, t.TempDir(), "broken.yaml", brokenYAML)

	_, err := Load(cfgPath)
	require.Error(t, err)
}

func TestLoad_WithExplicitPath_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "stat failed")
}

// TestLoad_WithCONFIG_PATH_Defaults - путь из CONFIG_PATH, остальное - дефолты.
func TestLoad_WithCONFIG_PATH_Defaults(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "from_env_path.yaml", minimalYAML)
	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "http://localhost:3000/api", cfg.API.BaseURL)
	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "comments-client", cfg.API.UserAgent)
	require.Empty(t, cfg.Notify.URL)
	require.Equal(t, 5*time.Second, cfg.Notify.Reconnect)
	require.Equal(t, 60*time.Second, cfg.Notify.ReadTimeout)
	require.Equal(t, 64, cfg.Notify.Buffer)
	require.Equal(t, "127.0.0.1:50095", cfg.HTTP.Addr())
	require.Equal(t, 20, cfg.Limits.Default)
	require.Equal(t, 100, cfg.Limits.Max)
	require.Equal(t, 10*time.Second, cfg.Timeouts.Call)
	require.Equal(t, 15*time.Second, cfg.Timeouts.Request)
}

// TestLoad_WithLocalYAML_OK - если нет CONFIG_PATH, берётся ./local.yaml.
func TestLoad_WithLocalYAML_OK(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, ".", "local.yaml", sampleYAML)
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, 15, cfg.Limits.Default)
}

// TestLoad_EnvOverlaysFile - ENV перекрывает значения из YAML.
func TestLoad_EnvOverlaysFile(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)
	t.Setenv("AUTH_TOKEN", "tok-from-env")
	t.Setenv("CALL_TIMEOUT", "9s")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "tok-from-env", cfg.Session.Token)
	require.Equal(t, 9*time.Second, cfg.Timeouts.Call)
}

// TestLoad_EnvOnly_OK - конфигурация полностью из ENV без YAML-файлов.
func TestLoad_EnvOnly_OK(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	t.Setenv("API_BASE_URL", "https://env.example.com/api")
	t.Setenv("ENV", "dev")
	t.Setenv("NOTIFY_URL", "ws://env.example.com/ws")
	t.Setenv("HTTP_PORT", "7095")
	t.Setenv("DEFAULT_LIMIT", "21")
	t.Setenv("MAX_LIMIT", "42")
	t.Setenv("REQUEST_TIMEOUT", "7s")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "https://env.example.com/api", cfg.API.BaseURL)
	require.Equal(t, "ws://env.example.com/ws", cfg.Notify.URL)
	require.Equal(t, "7095", cfg.HTTP.Port)
	require.Equal(t, 21, cfg.Limits.Default)
	require.Equal(t, 42, cfg.Limits.Max)
	require.Equal(t, 7*time.Second, cfg.Timeouts.Request)
}

// TestLoad_Priority_ExplicitWinsOverEnvAndLocal - явный путь важнее CONFIG_PATH и local.yaml.
func TestLoad_Priority_ExplicitWinsOverEnvAndLocal(t *testing.T) {
	dir := t.TempDir()

	explicit := writeFile(t, dir, "explicit.yaml", `
api: { base_url: "https://explicit.example.com" }
limits: { default: 10, max: 10 }
`)
	t.Setenv("CONFIG_PATH", writeFile(t, dir, "env_bad.yaml", brokenYAML))
	writeFile(t, dir, "local.yaml", `
api: { base_url: "https://local.example.com" }
`)
	chdir(t, dir)

	cfg, err := Load(explicit)
	require.NoError(t, err)
	require.Equal(t, "https://explicit.example.com", cfg.API.BaseURL)
	require.Equal(t, 10, cfg.Limits.Default)
}

// TestLoad_Priority_ENVWinsOverLocal - CONFIG_PATH важнее local.yaml.
func TestLoad_Priority_ENVWinsOverLocal(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, dir, "local.yaml", `
api: { base_url: "https://local.example.com" }
`)
	t.Setenv("CONFIG_PATH", writeFile(t, dir, "from_env.yaml", `
env: "dev"
api: { base_url: "https://env.example.com" }
`))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "https://env.example.com", cfg.API.BaseURL)
}

// TestLoad_EnvOnly_NoConfigInEnv_ReturnsDescriptiveError -
// нет ни файлов, ни обязательных ENV -> осмысленная ошибка.
func TestLoad_EnvOnly_NoConfigInEnv_ReturnsDescriptiveError(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "config not found: provide --config, CONFIG_PATH, local.yaml or env vars")
}

func TestLoad_Validation(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		yaml string
		want string
	}{
		{"relative_base_url", `api: { base_url: "/api" }`, "api.base_url must be an absolute http(s) url"},
		{"ftp_base_url", `api: { base_url: "ftp://x/api" }`, "api.base_url must be an absolute http(s) url"},
		{"http_notify_url", "api: { base_url: \"http://x\" }\nnotify: { url: \"http://x/ws\" }", "notify.url must be an absolute ws(s) url"},
		{"limits_order", "api: { base_url: \"http://x\" }\nlimits: { default: 100, max: 10 }", "limits.default must be <= limits.max"},
		{"negative_call_timeout", "api: { base_url: \"http://x\" }\ntimeouts: { call: -1s }", "timeouts.call must be > 0"},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfgPath := writeFile(t, t.TempDir(), "cfg.yaml", tc.yaml)

			_, err := Load(cfgPath)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		_ = MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}
