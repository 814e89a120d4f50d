package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jrjocham/apihub/internal/command"
	"github.com/jrjocham/apihub/internal/config"
	"github.com/jrjocham/apihub/internal/credentials"
	"github.com/jrjocham/apihub/internal/kafka"
	"github.com/jrjocham/apihub/internal/logger"
	"github.com/jrjocham/apihub/internal/metrics"
	"github.com/jrjocham/apihub/internal/relay"
	"github.com/jrjocham/apihub/internal/worker"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Consume queued cloud commands, execute them and reply to the sender",
	RunE:  runCommands,
}

func runCommands(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Kafka.Enabled() {
		return fmt.Errorf("kafka.brokers is empty; the commands worker needs a queue")
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) relay client
	creds, err := credentials.Load(cfg.Credentials.KeysFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	replier, err := relay.NewClient(relay.OptionsFrom(cfg.Relay, creds.RelayAccountSID, creds.RelayAuthToken, creds.RelayNumber))
	if err != nil {
		return fmt.Errorf("relay client: %w", err)
	}

	// 3) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4) google executor
	hc, err := command.NewGoogleHTTPClient(ctx, cfg.Cloud.Timeout)
	if err != nil {
		return err
	}
	exec, err := command.NewExecutor(ctx, command.OptionsFrom(cfg.Cloud, hc))
	if err != nil {
		return err
	}

	// 5) kafka consumer
	kc := kafka.ConfigFrom(cfg.Kafka)
	consumer := kafka.NewConsumerFromConfig(kc)
	defer consumer.Close()

	w := worker.NewCommands(consumer, exec, replier, log)
	if cfg.Worker.Count > 0 {
		w.Workers = cfg.Worker.Count
	}

	log.Info("commands worker started",
		zap.String("topic", kc.Topic),
		zap.String("group", kc.GroupID),
		zap.Int("workers", w.Workers),
	)

	return w.Run(ctx)
}
