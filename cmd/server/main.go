package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/searchforge/creators_proxy/internal/api"
	"github.com/searchforge/creators_proxy/internal/controller"
	"github.com/searchforge/creators_proxy/obs"
	"github.com/searchforge/creators_proxy/sources"
)

const (
	defaultPort      = 8000
	defaultTimeoutMs = 30000
	defaultUserAgent = "creators-proxy/1.0"
)

func main() {
	cfg := loadConfig()

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	shutdown, err := obs.InitTracer("creators-proxy")
	if err != nil {
		logger.Warn("tracer init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown error", zap.Error(err))
		}
	}()

	client := newHTTPClient(cfg.Timeout)

	source, err := sources.NewCreatorSource(sources.Config{
		URL:       cfg.SourceURL,
		Accept:    cfg.SourceAccept,
		UserAgent: cfg.UserAgent,
	}, client, logger.Named("source"))
	if err != nil {
		logger.Fatal("source", zap.Error(err))
	}

	ctrl, err := controller.New(source, controller.Config{
		Cache:  controller.NewCache(),
		Logger: logger.Named("controller"),
	})
	if err != nil {
		logger.Fatal("controller", zap.Error(err))
	}

	router, err := api.NewRouter(ctrl, api.Options{
		StrictErrorStatus: cfg.StrictErrorStatus,
		Logger:            logger.Named("http"),
	})
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	if cfg.WarmOnStart {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
			defer cancel()
			if err := ctrl.Warm(ctx); err != nil {
				logger.Warn("cache warm-up failed; will retry on first request", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("creators proxy listening",
			zap.Int("port", cfg.Port),
			zap.Stringer("source", source),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

type config struct {
	Port              int
	SourceURL         string
	SourceAccept      string
	UserAgent         string
	Timeout           time.Duration
	StrictErrorStatus bool
	WarmOnStart       bool
	LogLevel          string
}

func loadConfig() config {
	return config{
		Port:              getEnvInt("PORT", defaultPort),
		SourceURL:         getEnvStr("SOURCE_URL", sources.DefaultURL),
		SourceAccept:      getEnvStr("SOURCE_ACCEPT", sources.DefaultAccept),
		UserAgent:         getEnvStr("USER_AGENT", defaultUserAgent),
		Timeout:           time.Duration(getEnvInt("TIMEOUT_MS", defaultTimeoutMs)) * time.Millisecond,
		StrictErrorStatus: getEnvBool("STRICT_ERROR_STATUS", false),
		WarmOnStart:       getEnvBool("WARM_ON_START", false),
		LogLevel:          getEnvStr("LOG_LEVEL", "info"),
	}
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func getEnvStr(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
