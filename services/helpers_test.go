package services

import (
	"chat-signal/domain/event"
	"chat-signal/errors"
	"chat-signal/observability"
	"chat-signal/runtime"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

const testSDP = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

var (
	testOffer  = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: testSDP}
	testAnswer = webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: testSDP}
)

// recordingHandle keeps every event it receives.
type recordingHandle struct {
	mu     sync.Mutex
	id     uuid.UUID
	events []event.Event
	closed bool
}

func newRecordingHandle() *recordingHandle {
	return &recordingHandle{id: uuid.New()}
}

func (h *recordingHandle) ID() uuid.UUID { return h.id }

func (h *recordingHandle) Send(e event.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.ErrConnClosed
	}
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

// named returns the received events called name, in arrival order.
func (h *recordingHandle) named(name string) []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var res []event.Event
	for _, e := range h.events {
		if e.Name() == name {
			res = append(res, e)
		}
	}
	return res
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelError)
}

func newTestRegistry() (*runtime.Registry, *observability.Metrics) {
	metrics := observability.NewMetrics()
	return runtime.NewRegistry(testLogger(), metrics), metrics
}

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
