package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-comments-client/internal/config"
	apihttp "github.com/pribylovaa/go-comments-client/internal/http"
	"github.com/pribylovaa/go-comments-client/internal/metrics"
	"github.com/pribylovaa/go-comments-client/internal/notify"
	"github.com/pribylovaa/go-comments-client/internal/notify/ws"
	"github.com/pribylovaa/go-comments-client/internal/remote/httpapi"
	"github.com/pribylovaa/go-comments-client/internal/service"
	"github.com/pribylovaa/go-comments-client/internal/session"
	"github.com/pribylovaa/go-comments-client/internal/tree"
	logctx "github.com/pribylovaa/go-comments-client/pkg/log"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	// .env необязателен: переменные окружения могут прийти и снаружи.
	envErr := godotenv.Load()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting comments-client", "env", cfg.Env)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("dotenv_load_failed", slog.String("err", envErr.Error()))
	}

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()
	rootCtx = logctx.Into(rootCtx, log)

	sess, err := session.New(cfg.Session)
	if err != nil {
		log.Error("session_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if sess.Anonymous() {
		log.Warn("no session token, running anonymously")
	} else {
		log.Info("session_loaded", slog.String("user_id", sess.UserID()))
	}

	rm, err := httpapi.New(cfg.API.BaseURL, httpapi.Options{
		UserAgent: cfg.API.UserAgent,
		Auth:      sess.AuthHeader,
		Timeout:   cfg.Timeouts.Call,
		Logger:    log,
	})
	if err != nil {
		log.Error("remote_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	svc := service.New(tree.New(), rm, sess, metrics.New(prometheus.DefaultRegisterer), *cfg)
	hub := notify.NewHub()

	var workers sync.WaitGroup

	workers.Add(1)
	go func() {
		defer workers.Done()
		svc.Watch(rootCtx, hub)
	}()

	if !sess.Anonymous() {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if _, err := svc.LoadNotifications(rootCtx); err != nil {
				log.Warn("inbox_load_failed", slog.String("err", err.Error()))
			}
		}()
	}

	if cfg.Notify.URL != "" {
		src := ws.New(cfg.Notify, sess.AuthHeader, hub)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := src.Run(rootCtx); err != nil {
				log.Error("notifications_failed", slog.String("err", err.Error()))
			}
		}()
	} else {
		log.Info("notifications disabled: notify.url is empty")
	}

	opts := apihttp.Options{
		Logger:   log,
		Timeout:  cfg.Timeouts.Request,
		BasePath: "",
	}

	apiHandler := apihttp.NewRouter(svc, opts)

	var ready int32 // 0 - not ready; 1 - ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/", apiHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("client_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)
	rootCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	workers.Wait()
	log.Info("client_stopped")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
