package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jrjocham/apihub/internal/bootstrap"
	"github.com/jrjocham/apihub/internal/config"
	"github.com/jrjocham/apihub/internal/credentials"
	"github.com/jrjocham/apihub/internal/db"
	"github.com/jrjocham/apihub/internal/kafka"
	"github.com/jrjocham/apihub/internal/logger"
)

var errChecksFailed = errors.New("dependency checks failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify credentials and backing services; exit 1 if any is unavailable",
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

		checks, err := dependencyChecks(cfg)
		if err != nil {
			return err
		}

		runner := bootstrap.NewRunner(cfg.Bootstrap.Attempts, cfg.Bootstrap.Pause, log)
		results := runner.Run(cmd.Context(), checks)
		bootstrap.Report(os.Stdout, results)

		if len(bootstrap.Failed(results)) > 0 {
			return errChecksFailed
		}

		return nil
	},
}

// dependencyChecks lists what the configured deployment needs. Credentials
// are re-read on every attempt so a keys file fixed between attempts counts.
func dependencyChecks(cfg config.Config) ([]bootstrap.Check, error) {
	load := func() credentials.Credentials {
		c, _ := credentials.Load(cfg.Credentials.KeysFile)
		return c
	}
	if _, err := credentials.Load(cfg.Credentials.KeysFile); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	checks := []bootstrap.Check{
		bootstrap.RequireSet("agent credentials", func() []string { return load().MissingAgent() }),
	}

	if cfg.Dedupe.Enabled && cfg.Dedupe.Backend == config.DedupeRedis {
		checks = append(checks, bootstrap.Check{
			Name: "redis " + cfg.Redis.Addr,
			Run: func(context.Context) error {
				return db.PingRedis(db.RedisOptsFrom(cfg.Redis))
			},
		})
	}

	if cfg.Kafka.Enabled() {
		checks = append(checks,
			bootstrap.Check{
				Name: "kafka",
				Run: func(ctx context.Context) error {
					timeout := cfg.Kafka.WriteTimeout
					if timeout <= 0 {
						timeout = 5 * time.Second
					}
					ctx, cancel := context.WithTimeout(ctx, timeout)
					defer cancel()
					return kafka.Ping(ctx, cfg.Kafka.Brokers)
				},
			},
			bootstrap.RequireSet("relay credentials", func() []string { return load().MissingRelay() }),
		)
	}

	return checks, nil
}
