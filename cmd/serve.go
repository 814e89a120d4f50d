package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jrjocham/apihub/internal/agent"
	"github.com/jrjocham/apihub/internal/config"
	"github.com/jrjocham/apihub/internal/credentials"
	"github.com/jrjocham/apihub/internal/db"
	"github.com/jrjocham/apihub/internal/dedupe"
	httpSrv "github.com/jrjocham/apihub/internal/http"
	"github.com/jrjocham/apihub/internal/kafka"
	"github.com/jrjocham/apihub/internal/logger"
	"github.com/jrjocham/apihub/internal/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.New(cfg.Log.Level, cfg.Log.File)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		creds, err := credentials.Load(cfg.Credentials.KeysFile)
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		if missing := creds.MissingAgent(); len(missing) > 0 {
			return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
		}

		routes, err := router.Table(cfg.Routing, creds)
		if err != nil {
			return fmt.Errorf("routing table: %w", err)
		}

		client := agent.NewClient(agent.OptionsFrom(cfg.Agent, creds.AgentAPIKey))
		dispatcher := router.NewDispatcher(routes, client, log)

		deps := httpSrv.Deps{Router: dispatcher, Log: log, LogLevel: cfg.Log.Level}

		if cfg.Dedupe.Enabled {
			store, err := newDedupeStore(cfg)
			if err != nil {
				return fmt.Errorf("dedupe store: %w", err)
			}
			defer func() { _ = store.Close() }()
			deps.Dedupe = store
		}

		if cfg.Kafka.Enabled() {
			producer := kafka.NewProducerFromConfig(kafka.ConfigFrom(cfg.Kafka))
			defer func() { _ = producer.Close() }()
			deps.Commands = producer
		}

		server := httpSrv.NewServer(deps)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
				return err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

func newDedupeStore(cfg config.Config) (dedupe.Store, error) {
	if cfg.Dedupe.Backend == config.DedupeRedis {
		rdb, err := db.NewRedisClient(db.RedisOptsFrom(cfg.Redis))
		if err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		return dedupe.NewRedis(rdb, cfg.Dedupe.KeyPrefix, cfg.Dedupe.TTL), nil
	}

	return dedupe.NewMemory(cfg.Dedupe.TTL, cfg.Dedupe.MaxEntries), nil
}
