package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Kerhoff/walkbot/internal/api"
	"github.com/Kerhoff/walkbot/internal/config"
	"github.com/Kerhoff/walkbot/internal/conversation"
	"github.com/Kerhoff/walkbot/internal/handlers"
	"github.com/Kerhoff/walkbot/internal/metrics"
	"github.com/Kerhoff/walkbot/internal/repository/memory"
	"github.com/Kerhoff/walkbot/internal/repository/postgres"
	"github.com/Kerhoff/walkbot/internal/service"
	"github.com/Kerhoff/walkbot/internal/telegram"
	"github.com/Kerhoff/walkbot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	l.Info("Starting walkbot...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := service.Deps{
		Logger:   l,
		Metrics:  metrics.New(reg),
		Location: cfg.Location,
	}
	checks := map[string]api.HealthCheck{}

	// Storage
	if cfg.DatabaseURL != "" {
		db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
		if err != nil {
			l.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(cfg.MigrationsPath); err != nil {
			l.Fatalf("Failed to run migrations: %v", err)
		}

		deps.Users = postgres.NewUserRepository(db.DB)
		deps.Proposals = postgres.NewProposalRepository(db.DB)
		deps.Votes = postgres.NewVoteRepository(db.DB)
		deps.Comments = postgres.NewCommentRepository(db.DB)
		deps.Messages = postgres.NewMessageRepository(db.DB)
		deps.Quotas = postgres.NewQuotaRepository(db.DB)
		checks["database"] = db.Check
	} else {
		l.Warn("DATABASE_URL is not set, keeping all data in memory")
		store := memory.New()
		deps.Users = store.Users()
		deps.Proposals = store.Proposals()
		deps.Votes = store.Votes()
		deps.Comments = store.Comments()
		deps.Messages = store.Messages()
		deps.Quotas = store.Quotas()
	}

	// Conversation state
	var convs conversation.Store
	if cfg.RedisURL != "" {
		rs, err := conversation.NewRedisStore(cfg.RedisURL, cfg.ConversationTTL)
		if err != nil {
			l.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rs.Close()
		convs = rs
		checks["redis"] = rs.Ping
	} else {
		convs = conversation.NewMemoryStore(cfg.ConversationTTL)
	}

	// Telegram bot
	bot, err := telegram.NewBot(cfg.TelegramToken, l)
	if err != nil {
		l.Fatalf("Failed to create Telegram bot: %v", err)
	}
	deps.Messenger = telegram.NewMessenger(bot.API(), l)

	svc := service.New(deps)

	router := bot.Router()
	router.SetGuard(telegram.AllowList(cfg.AllowedUserIDs))
	handlers.Register(router, svc, convs, l)

	// Ops API
	apiServer := api.NewServer(svc, l)
	for name, check := range checks {
		apiServer.AddHealthCheck(name, check)
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	serve(g, l, "HTTP API", httpServer)
	serve(g, l, "Metrics", metricsServer)
	g.Go(func() error {
		svc.RunScheduler(gctx, cfg.SchedulerInterval)
		return nil
	})
	g.Go(func() error {
		return bot.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range []*http.Server{httpServer, metricsServer} {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				l.WithError(err).Warn("HTTP server shutdown failed")
			}
		}
		return nil
	})

	l.Info("walkbot started successfully")

	if err := g.Wait(); err != nil {
		l.WithError(err).Error("walkbot stopped with an error")
	}
	l.Info("walkbot stopped")
}

// serve runs srv until it is shut down. A listen failure stops the group.
func serve(g *errgroup.Group, l *logrus.Logger, name string, srv *http.Server) {
	g.Go(func() error {
		l.Infof("%s listening on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
}
