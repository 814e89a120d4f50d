// Package worker runs the background command consumer.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jrjocham/apihub/internal/command"
	"github.com/jrjocham/apihub/internal/kafka"
	"github.com/jrjocham/apihub/internal/metrics"
	"github.com/jrjocham/apihub/internal/model"
	"github.com/jrjocham/apihub/internal/util"
)

type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

type Executor interface {
	Execute(ctx context.Context, cmd command.Command) (string, error)
}

type Replier interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// FailureReply is sent when a parsed command could not be executed.
func FailureReply(correlationID string) string {
	return "Command failed. Please reference this error ID: " + correlationID
}

// Commands:
// - fetches envelopes from Kafka,
// - hands each to the lane owning its key, so one sender's commands run in order,
// - parses and executes each command,
// - replies to the sender through the relay,
// - commits a partition only up to the highest offset below which every
//   message is done (at-least-once).
type Commands struct {
	Source  Source
	Exec    Executor
	Reply   Replier
	Log     *zap.Logger
	Workers int
}

func NewCommands(src Source, exec Executor, reply Replier, log *zap.Logger) *Commands {
	return &Commands{Source: src, Exec: exec, Reply: reply, Log: log, Workers: 4}
}

// Run blocks until ctx is cancelled and every processor has returned.
func (w *Commands) Run(ctx context.Context) error {
	if w.Source == nil || w.Exec == nil || w.Reply == nil {
		return errors.New("commands worker: missing dependency")
	}
	if w.Workers <= 0 {
		w.Workers = 4
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}

	lanes := make([]chan kafka.Message, w.Workers)
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 2)
	}

	tr := newCommitTracker()

	go func() {
		defer func() {
			for _, l := range lanes {
				close(l)
			}
		}()
		for {
			m, err := w.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}

			tr.add(m)
			select {
			case lanes[laneFor(m.Key, len(lanes))] <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for _, lane := range lanes {
		wg.Add(1)
		go func(lane <-chan kafka.Message) {
			defer wg.Done()
			for m := range lane {
				w.processOne(ctx, m)
				w.commit(ctx, tr, m)
			}
		}(lane)
	}

	wg.Wait()

	return nil
}

func (w *Commands) commit(ctx context.Context, tr *commitTracker, m kafka.Message) {
	tr.commitMu.Lock()
	defer tr.commitMu.Unlock()

	upTo, ok := tr.done(m)
	if !ok {
		return
	}

	if err := w.Source.Commit(ctx, upTo); err != nil {
		w.Log.Warn("kafka commit failed", zap.Error(err), zap.Int("partition", upTo.Partition), zap.Int64("offset", upTo.Offset))
	}
}

// laneFor maps a message key onto one of n lanes.
func laneFor(key []byte, n int) int {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(n))
}

func (w *Commands) processOne(ctx context.Context, m kafka.Message) {
	var env model.CommandEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.ID == "" || env.From == "" {
		w.Log.Warn("dropping malformed envelope", zap.Error(err), zap.Int64("offset", m.Offset))
		return
	}

	log := w.Log.With(zap.String("envelope_id", env.ID), zap.String("from", env.From))

	cmd, err := command.Parse(env.Text)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("rejected", command.KindUnknown.String()).Inc()
		log.Warn("unknown command", zap.String("text", env.Text), zap.Error(err))
		w.reply(ctx, log, env.From, command.UnknownReply(env.Text))
		return
	}

	out, err := w.Exec.Execute(ctx, cmd)
	if err != nil {
		id := util.NewCorrelationID()
		metrics.CommandsTotal.WithLabelValues("failed", cmd.Kind().String()).Inc()
		log.Error("command failed", zap.String("correlation_id", id), zap.String("kind", cmd.Kind().String()), zap.Error(err))
		w.reply(ctx, log, env.From, FailureReply(id))
		return
	}

	metrics.CommandsTotal.WithLabelValues("executed", cmd.Kind().String()).Inc()
	log.Info("command executed", zap.String("kind", cmd.Kind().String()))
	w.reply(ctx, log, env.From, out)
}

func (w *Commands) reply(ctx context.Context, log *zap.Logger, to, body string) {
	sid, err := w.Reply.Send(ctx, to, body)
	if err != nil {
		log.Error("relay reply failed", zap.Error(err))
		return
	}

	log.Debug("reply sent", zap.String("sid", sid))
}
