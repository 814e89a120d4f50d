package worker

import (
	"sync"

	"github.com/jrjocham/apihub/internal/kafka"
)

type inFlight struct {
	m    kafka.Message
	done bool
}

// commitTracker holds fetched messages per partition in fetch order. A
// message becomes committable once it and everything fetched before it on
// the same partition are done.
type commitTracker struct {
	mu         sync.Mutex
	partitions map[int][]*inFlight

	// commitMu serialises done and the Commit call after it so commits on a
	// partition reach the source in increasing offset order.
	commitMu sync.Mutex
}

func newCommitTracker() *commitTracker {
	return &commitTracker{partitions: make(map[int][]*inFlight)}
}

func (t *commitTracker) add(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partitions[m.Partition] = append(t.partitions[m.Partition], &inFlight{m: m})
}

// done marks m finished and returns the last message of the finished prefix
// of its partition. ok is false when an earlier message is still running.
func (t *commitTracker) done(m kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.partitions[m.Partition]
	for _, f := range q {
		if f.m.Offset == m.Offset {
			f.done = true
			break
		}
	}

	n := 0
	for n < len(q) && q[n].done {
		n++
	}
	if n == 0 {
		return kafka.Message{}, false
	}

	last := q[n-1].m
	t.partitions[m.Partition] = q[n:]

	return last, true
}
