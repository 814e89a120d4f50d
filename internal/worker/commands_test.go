package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jrjocham/apihub/internal/command"
	"github.com/jrjocham/apihub/internal/kafka"
	"github.com/jrjocham/apihub/internal/model"
)

type fakeSource struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func newFakeSource(values ...[]byte) *fakeSource {
	s := &fakeSource{}
	for i, v := range values {
		s.pending = append(s.pending, kafka.Message{Offset: int64(i), Value: v})
	}
	return s
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		m := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *fakeSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, m.Offset)
	return nil
}

func (s *fakeSource) Committed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

func (s *fakeSource) LastCommitted() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.committed) == 0 {
		return -1
	}
	return s.committed[len(s.committed)-1]
}

type fakeExec struct {
	err error
}

func (f fakeExec) Execute(_ context.Context, cmd command.Command) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "done: " + cmd.Kind().String(), nil
}

type sent struct{ to, body string }

type fakeReplier struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeReplier) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to, body})
	return "SM1", nil
}

func (f *fakeReplier) All() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

// gatedExec holds drive uploads named "slow" until gate is closed.
type gatedExec struct {
	gate chan struct{}
	mu   sync.Mutex
	ran  []string
}

func (g *gatedExec) Execute(ctx context.Context, cmd command.Command) (string, error) {
	d := cmd.(command.DriveUpload)
	if d.Name == "slow" {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.ran = append(g.ran, d.Name)
	return "ok", nil
}

func (g *gatedExec) Ran() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.ran...)
}

func envelope(t *testing.T, text string) []byte {
	return envelopeFrom(t, "whatsapp:+15550001", text)
}

func envelopeFrom(t *testing.T, from, text string) []byte {
	t.Helper()
	b, err := json.Marshal(model.CommandEnvelope{ID: "e-" + text, From: from, Text: text})
	require.NoError(t, err)
	return b
}

// keyedMessage builds a partition 0 message keyed by sender, as the producer does.
func keyedMessage(t *testing.T, offset int64, from, text string) kafka.Message {
	return kafka.Message{Partition: 0, Offset: offset, Key: []byte(from), Value: envelopeFrom(t, from, text)}
}

// senderOnOtherLane returns a sender whose lane differs from from's.
func senderOnOtherLane(t *testing.T, from string, lanes int) string {
	t.Helper()
	for i := 0; i < 100; i++ {
		other := fmt.Sprintf("whatsapp:+1555%07d", i)
		if laneFor([]byte(other), lanes) != laneFor([]byte(from), lanes) {
			return other
		}
	}
	t.Fatal("no sender on another lane")
	return ""
}

func start(t *testing.T, w *Commands) (cancel func()) {
	t.Helper()

	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	return func() {
		stop()
		require.NoError(t, <-errCh)
	}
}

func runUntilCommitted(t *testing.T, w *Commands, src *fakeSource, n int) {
	t.Helper()

	stop := start(t, w)
	require.Eventually(t, func() bool { return src.LastCommitted() == int64(n-1) }, 2*time.Second, 10*time.Millisecond)
	stop()
}

func TestCommands_ExecutesAndReplies(t *testing.T) {
	src := newFakeSource(envelope(t, "drive notes hello"))
	rep := &fakeReplier{}
	w := NewCommands(src, fakeExec{}, rep, zap.NewNop())

	runUntilCommitted(t, w, src, 1)

	require.Len(t, rep.All(), 1)
	assert.Equal(t, sent{"whatsapp:+15550001", "done: drive"}, rep.All()[0])
}

func TestCommands_UnknownCommandReply(t *testing.T) {
	src := newFakeSource(envelope(t, "dance now"))
	rep := &fakeReplier{}
	w := NewCommands(src, fakeExec{}, rep, zap.NewNop())

	runUntilCommitted(t, w, src, 1)

	require.Len(t, rep.All(), 1)
	assert.Equal(t, "Unknown command: dance now", rep.All()[0].body)
}

func TestCommands_ExecutionFailureLogsCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	src := newFakeSource(envelope(t, "drive notes hello"))
	rep := &fakeReplier{}
	w := NewCommands(src, fakeExec{err: errors.New("403")}, rep, zap.New(core))

	runUntilCommitted(t, w, src, 1)

	failed := logs.FilterMessage("command failed").All()
	require.Len(t, failed, 1)
	id := failed[0].ContextMap()["correlation_id"].(string)

	require.Len(t, rep.All(), 1)
	assert.Equal(t, FailureReply(id), rep.All()[0].body)
	assert.NotContains(t, rep.All()[0].body, "403")
}

func TestCommands_MalformedEnvelopeCommitted(t *testing.T) {
	src := newFakeSource([]byte("{not json"), []byte(`{"id":"","from":"x","text":"drive a b"}`))
	rep := &fakeReplier{}
	w := NewCommands(src, fakeExec{}, rep, zap.NewNop())
	w.Workers = 1

	runUntilCommitted(t, w, src, 2)

	assert.Empty(t, rep.All())
}

func TestCommands_CommitWaitsForEarlierOffsets(t *testing.T) {
	slowSender := "whatsapp:+15550001"
	fastSender := senderOnOtherLane(t, slowSender, 2)

	src := &fakeSource{pending: []kafka.Message{
		keyedMessage(t, 0, slowSender, "drive slow a"),
		keyedMessage(t, 1, fastSender, "drive fast b"),
	}}
	exec := &gatedExec{gate: make(chan struct{})}
	w := NewCommands(src, exec, &fakeReplier{}, zap.NewNop())
	w.Workers = 2

	stop := start(t, w)
	defer stop()

	require.Eventually(t, func() bool { return len(exec.Ran()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"fast"}, exec.Ran())
	assert.Never(t, func() bool { return len(src.Committed()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	close(exec.gate)

	require.Eventually(t, func() bool { return src.LastCommitted() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{1}, src.Committed())
}

func TestCommands_SameSenderRunsInOrder(t *testing.T) {
	from := "whatsapp:+15550001"
	src := &fakeSource{pending: []kafka.Message{
		keyedMessage(t, 0, from, "drive slow a"),
		keyedMessage(t, 1, from, "drive fast b"),
	}}
	exec := &gatedExec{gate: make(chan struct{})}
	w := NewCommands(src, exec, &fakeReplier{}, zap.NewNop())
	w.Workers = 4

	stop := start(t, w)
	defer stop()

	assert.Never(t, func() bool { return len(exec.Ran()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	close(exec.gate)

	require.Eventually(t, func() bool { return src.LastCommitted() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"slow", "fast"}, exec.Ran())
}

func TestCommitTracker_PerPartitionPrefix(t *testing.T) {
	tr := newCommitTracker()
	msgs := []kafka.Message{
		{Partition: 0, Offset: 10},
		{Partition: 1, Offset: 5},
		{Partition: 0, Offset: 11},
		{Partition: 0, Offset: 12},
	}
	for _, m := range msgs {
		tr.add(m)
	}

	_, ok := tr.done(msgs[2])
	assert.False(t, ok, "offset 10 still running")

	m, ok := tr.done(msgs[1])
	require.True(t, ok)
	assert.Equal(t, int64(5), m.Offset)

	m, ok = tr.done(msgs[0])
	require.True(t, ok)
	assert.Equal(t, int64(11), m.Offset)

	m, ok = tr.done(msgs[3])
	require.True(t, ok)
	assert.Equal(t, int64(12), m.Offset)
}

func TestCommands_MissingDependency(t *testing.T) {
	w := &Commands{}
	assert.Error(t, w.Run(context.Background()))
}
