package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/config"
	"github.com/MrSnakeDoc/stash/internal/dashboard"
	"github.com/MrSnakeDoc/stash/internal/httpserver"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/redis"
	"github.com/MrSnakeDoc/stash/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/stash/internal/store/redis"
	"github.com/MrSnakeDoc/stash/internal/summarize"
	"github.com/MrSnakeDoc/stash/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	provider    *auth.RedisProvider
	hub         *dashboard.Hub
	importer    *scheduler.Importer
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.Connect(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	docs := redisstore.NewStore(redisClient, loggerClient)
	provider := auth.NewRedisProvider(redisClient, loggerClient)

	// Summaries: the model chain, behind the per-bookmark cache
	chain, models := newChain(cfg, loggerClient)
	cache := summarize.NewCache(docs, chain, loggerClient)

	hub := dashboard.NewHub(dashboard.HubConfig{
		Docs:    docs,
		Auth:    provider,
		Cache:   cache,
		Log:     loggerClient,
		IdleTTL: cfg.SessionIdleTTL,
	})

	// Initialize bookmarks importer (if a bookmarks file is configured)
	var importer *scheduler.Importer
	var importTrigger chan struct{}
	if cfg.ImportFile != "" {
		loggerClient.Info("bookmarks file configured, initializing importer",
			logger.String("file", cfg.ImportFile),
			logger.String("owner_id", cfg.ImportOwner))
		importTrigger = make(chan struct{}, 1)
		importer = scheduler.NewImporter(
			cfg.ImportFile,
			docs,
			cfg.ImportOwner,
			loggerClient,
			cfg.ImportInterval,
			importTrigger,
		)
	} else {
		loggerClient.Info("bookmarks file not configured, import disabled")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:           loggerClient,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		TimeNow:          time.Now,
		AllowedHosts:     cfg.AllowedHosts,
		AllowedCIDRS:     cfg.AllowedCIDRS,
		TrustProxy:       cfg.TrustProxy,
		RequestTimeout:   cfg.RequestTimeout,
		SummarizeTimeout: cfg.SummarizeTimeout,
		SummarizeBurst:   cfg.SummarizeRateBurst,
		SummarizePerMin:  cfg.SummarizeRatePerMin,
		RealtimeOrigins:  cfg.RealtimeOrigins,
		RedisClient:      redisClient,
		Docs:             docs,
		Auth:             provider,
		Hub:              hub,
		Summaries:        cache,
		Models:           models,
		ImportTrigger:    importTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		provider:    provider,
		hub:         hub,
		importer:    importer,
	}
}

// newChain builds the Gemini fallback chain. Without an API key the chain
// has no candidates and every summary reports "not configured".
func newChain(cfg *config.Config, log logger.Logger) (*summarize.Chain, []string) {
	if cfg.GeminiAPIKey == "" {
		log.Warn("STASH_GEMINI_API_KEY not set, summaries disabled")
		return summarize.NewChain(nil, cfg.AttemptTimeout, summarize.DefaultParams, log), nil
	}

	timeout := cfg.AttemptTimeout
	models := summarize.DefaultModels
	if cfg.ModelsFile != "" {
		mc, err := summarize.LoadModels(cfg.ModelsFile)
		if err != nil {
			log.Errorf("Failed to load models file: %v", err)
			os.Exit(1)
		}
		timeout, models = mc.Timeout, mc.Models
	}

	client := summarize.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL, &http.Client{})
	log.Info("summary model chain configured",
		logger.Strings("models", models),
		logger.Duration("attempt_timeout", timeout))
	return summarize.NewChain(client.Providers(models), timeout, summarize.DefaultParams, log), models
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Stash v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bootstrap session, for single-user setups without an external sign-in
	if a.cfg.BootstrapToken != "" {
		s := auth.Session{Token: a.cfg.BootstrapToken, UserID: a.cfg.BootstrapUser}
		if a.cfg.BootstrapTTL > 0 {
			s.ExpiresAt = time.Now().Add(a.cfg.BootstrapTTL)
		}
		if err := a.provider.Save(ctx, s); err != nil {
			return fmt.Errorf("failed to save bootstrap session: %w", err)
		}
		a.logger.Info("bootstrap session ready", logger.String("owner_id", s.UserID))
	}

	// Start importer (imports once, then periodically and on demand)
	if a.importer != nil {
		if err := a.importer.Start(ctx); err != nil {
			a.logger.Warn("bookmarks import failed, will retry on schedule", logger.Error(err))
		}
		a.logger.Info("bookmarks importer started",
			logger.Duration("interval", a.cfg.ImportInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	// Stop importer
	if a.importer != nil {
		a.importer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Close dashboard sessions before their subscriptions lose Redis
	a.hub.Close()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Stash stopped cleanly")
	return nil
}
