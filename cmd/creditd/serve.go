package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/huudong03uet/credit-scoring/internal/auth"
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/events"
	"github.com/huudong03uet/credit-scoring/internal/explain"
	"github.com/huudong03uet/credit-scoring/internal/scoring"
	"github.com/huudong03uet/credit-scoring/internal/server"
	"github.com/huudong03uet/credit-scoring/internal/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

// app holds the connections shared by every command
type app struct {
	cfg    *config.Config
	policy config.Policy
	db     *gorm.DB
	rdb    *redis.Client
	clock  clockwork.Clock
	log    *logrus.Entry
	deps   server.Deps
	bus    *events.Bus
}

func newApp(ctx context.Context) (*app, error) {
	cfg, policy, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("service", "creditd")

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	rt := &app{
		cfg:    cfg,
		policy: policy,
		db:     db,
		clock:  clockwork.NewRealClock(),
		log:    log,
		bus:    events.NewBus(log),
	}

	var publisher events.Publisher = rt.bus
	opts := server.Options{
		DB:             db,
		Policy:         policy,
		Vault:          cfg.VaultAddress,
		OracleCacheTTL: cfg.OracleCacheTTL,
		Clock:          rt.clock,
		Log:            log,
	}
	if cfg.Redis.Addr != "" {
		rt.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Failed to connect to Redis")
		}
		publisher = events.Multi{rt.bus, events.NewRedisPublisher(rt.rdb, events.DefaultStream)}
		opts.Redis = rt.rdb
	}
	opts.Publisher = publisher

	rt.deps = server.Wire(opts)
	if err := rt.deps.Access.Seed(ctx, cfg.Admins); err != nil {
		rt.Close()
		return nil, fmt.Errorf("seed admins: %w", err)
	}
	return rt, nil
}

func (rt *app) Close() {
	if sqlDB, err := rt.db.DB(); err == nil {
		sqlDB.Close()
	}
	if rt.rdb != nil {
		rt.rdb.Close()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg

	hub := websocket.NewHub(rt.clock, rt.log)
	go hub.Run()
	defer hub.Stop()

	// with Redis every replica's events reach this replica's sockets
	var feed events.Subscriber = rt.bus
	if rt.rdb != nil {
		feed = events.NewRedisSubscriber(rt.rdb, events.DefaultStream, rt.log)
	}
	if err := feed.Subscribe(ctx, hub.Dispatch); err != nil {
		return fmt.Errorf("subscribe event feed: %w", err)
	}

	deps := rt.deps
	deps.Hub = hub
	deps.Auth = auth.NewAuthMiddleware(rt.clock)
	deps.AllowedOrigins = cfg.Server.AllowedOrigins
	if cfg.Explain.URL != "" {
		deps.Explainer = explain.NewClient(cfg.Explain.URL, cfg.Explain.Timeout, rt.log)
	}

	if cfg.RefreshInterval > 0 {
		if cfg.ScorerAddress == (common.Address{}) {
			return errors.New("REFRESH_INTERVAL requires SCORER_ADDRESS")
		}
		refresher, err := scoring.NewRefresher(deps.Scoring, deps.Identity, cfg.ScorerAddress, cfg.RefreshInterval, rt.clock, rt.log)
		if err != nil {
			return err
		}
		if err := refresher.Start(ctx); err != nil {
			return err
		}
		defer refresher.Shutdown()
	}

	if logrus.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.NewRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting credit scoring API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrus.Info("Server exited")
	return nil
}
