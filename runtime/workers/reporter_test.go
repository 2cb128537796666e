package workers

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticState struct {
	online []string
	calls  int
}

func (s staticState) Online() []string { return s.online }
func (s staticState) ActiveCalls() int { return s.calls }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReporterWorker_Logs_Snapshot(t *testing.T) {
	req := require.New(t)
	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	state := staticState{online: []string{"alice", "bob"}, calls: 1}
	worker := NewReporterWorker(log, state, state, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then the live state shows up in the logs
	req.Eventually(func() bool {
		return strings.Contains(out.String(), "online_users=2 active_calls=1")
	}, time.Second, 5*time.Millisecond)

	cancel()
	req.ErrorIs(<-done, context.Canceled)
}
