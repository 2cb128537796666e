package websocket

import (
	"chat-signal/domain"
	"chat-signal/domain/event"
	"chat-signal/errors"
	"chat-signal/observability"
	"chat-signal/repositories"
	"chat-signal/runtime"
	"chat-signal/services"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

const testSDP = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

var testOffer = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: testSDP}

type stack struct {
	registry      *runtime.Registry
	router        *EventRouter
	metrics       *observability.Metrics
	conversations repositories.ConversationRepository
}

// newStack wires the relays on a throwaway badger store, the same way main does.
func newStack(t *testing.T, limiter *runtime.EventLimiter) stack {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	messages, err := repositories.NewMessageRepository(db, log, nil)
	req.NoError(err)
	t.Cleanup(func() {
		_ = messages.Close()
		_ = db.Close()
	})
	conversations := repositories.NewConversationRepository(db, log)

	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry(log, metrics)
	presence := runtime.NewPresenceBroadcaster(log, registry, metrics)
	registry.OnPresenceChange(presence.Broadcast)

	calls := services.NewCallSignaling(log, repositories.NewCallRepository(db, log), registry, metrics, time.Minute)
	registry.OnPresenceChange(calls.HandlePresence)

	router := NewEventRouter(log, registry,
		services.NewMessageRelay(log, messages, conversations, registry, metrics),
		calls,
		services.NewContactRelay(log, repositories.NewContactRepository(db, log), registry),
		limiter, metrics)
	return stack{registry: registry, router: router, metrics: metrics, conversations: conversations}
}

func (s stack) createConversation(t *testing.T, id string, participants ...string) {
	require.NoError(t, s.conversations.CreateConversation(domain.Conversation{
		ID:           id,
		Participants: participants,
		CreatedBy:    participants[0],
	}))
}

// fakeSession records what the router sends back.
type fakeSession struct {
	mu     sync.Mutex
	id     uuid.UUID
	userID string
	events []event.Event
	closed bool
}

func newFakeSession(userID string) *fakeSession {
	return &fakeSession{id: uuid.New(), userID: userID}
}

func (f *fakeSession) ID() uuid.UUID  { return f.id }
func (f *fakeSession) UserID() string { return f.userID }

func (f *fakeSession) Send(e event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.ErrConnClosed
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSession) named(name string) []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []event.Event
	for _, e := range f.events {
		if e.Name() == name {
			res = append(res, e)
		}
	}
	return res
}

func frame(t *testing.T, name string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Envelope{Event: name, Payload: raw})
	require.NoError(t, err)
	return data
}
