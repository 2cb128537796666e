package websocket

import (
	"chat-signal/domain"
	"chat-signal/domain/event"
	"chat-signal/runtime"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventRouter_User_Online_Registers_Session(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()

	t.Run("should accept a bare user id", func(t *testing.T) {
		req := require.New(t)
		alice := newFakeSession("alice")

		s.router.HandleMessage(ctx, alice, frame(t, event.NameUserOnline, "alice"))

		handle, ok := s.registry.Lookup("alice")
		req.True(ok)
		req.Equal(alice.ID(), handle.ID())
		req.Empty(alice.named(event.NameError))
	})

	t.Run("should accept an object payload", func(t *testing.T) {
		req := require.New(t)
		bob := newFakeSession("bob")

		s.router.HandleMessage(ctx, bob, frame(t, event.NameUserOnline, map[string]string{"userId": "bob"}))

		_, ok := s.registry.Lookup("bob")
		req.True(ok)
		req.Equal([]event.Event{event.PresenceSnapshot{Online: []string{"alice"}}},
			bob.named(event.NamePresenceSnapshot))
	})

	t.Run("should refuse to register someone else", func(t *testing.T) {
		req := require.New(t)
		mallory := newFakeSession("mallory")

		s.router.HandleMessage(ctx, mallory, frame(t, event.NameUserOnline, "carol"))

		_, ok := s.registry.Lookup("carol")
		req.False(ok)
		errs := mallory.named(event.NameError)
		req.Len(errs, 1)
		req.Equal("validation", errs[0].(event.Error).Code)
		req.Equal(event.NameUserOnline, errs[0].(event.Error).Event)
	})
}

func TestEventRouter_Rejections(t *testing.T) {
	s := newStack(t, nil)
	cases := map[string][]byte{
		"malformed envelope": []byte("{not json"),
		"unknown event":      []byte(`{"event":"user:dance","payload":{}}`),
		"missing payload":    []byte(`{"event":"call:end"}`),
		"invalid payload":    []byte(`{"event":"friend:response","payload":{"requesterId":"bob","action":"maybe"}}`),
		"spoofed sender":     []byte(`{"event":"message:send","payload":{"conversationId":"c1","senderId":"bob","content":"hi"}}`),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			alice := newFakeSession("alice")

			s.router.HandleMessage(context.Background(), alice, data)

			errs := alice.named(event.NameError)
			req.Len(errs, 1)
			req.Equal("validation", errs[0].(event.Error).Code)
		})
	}
}

func TestEventRouter_Message_Send(t *testing.T) {
	req := require.New(t)
	s := newStack(t, nil)
	ctx := context.Background()
	s.createConversation(t, "c1", "alice", "bob")
	alice, bob := newFakeSession("alice"), newFakeSession("bob")
	s.router.HandleMessage(ctx, alice, frame(t, event.NameUserOnline, "alice"))
	s.router.HandleMessage(ctx, bob, frame(t, event.NameUserOnline, "bob"))

	// When alice sends a message without repeating the sender id
	s.router.HandleMessage(ctx, alice, frame(t, event.NameMessageSend, map[string]string{
		"conversationId": "c1",
		"content":        "hello bob",
	}))

	// Then both participants receive it
	for _, session := range []*fakeSession{alice, bob} {
		received := session.named(event.NameMessageReceive)
		req.Len(received, 1)
		message := received[0].(event.MessageReceived).Message
		req.Equal("alice", message.SenderID)
		req.Equal("hello bob", message.Content)
		req.Equal(domain.MessageText, message.Type)
	}
	req.Empty(alice.named(event.NameError))
}

func TestEventRouter_Message_To_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	s := newStack(t, nil)
	alice := newFakeSession("alice")

	s.router.HandleMessage(context.Background(), alice, frame(t, event.NameMessageSend, map[string]string{
		"conversationId": "nope",
		"content":        "hello",
	}))

	errs := alice.named(event.NameError)
	req.Len(errs, 1)
	req.Equal("not_found", errs[0].(event.Error).Code)
}

func TestEventRouter_Call_Flow(t *testing.T) {
	req := require.New(t)
	s := newStack(t, nil)
	ctx := context.Background()
	alice, bob := newFakeSession("alice"), newFakeSession("bob")
	s.router.HandleMessage(ctx, alice, frame(t, event.NameUserOnline, "alice"))
	s.router.HandleMessage(ctx, bob, frame(t, event.NameUserOnline, "bob"))

	// alice offers
	s.router.HandleMessage(ctx, alice, frame(t, event.NameCallOffer, map[string]any{
		"from":     "alice",
		"to":       "bob",
		"offer":    testOffer,
		"typeCall": "audio",
	}))
	created := alice.named(event.NameCallCreated)
	req.Len(created, 1)
	callID := created[0].(event.CallCreated).CallID
	incoming := bob.named(event.NameCallIncoming)
	req.Len(incoming, 1)
	req.Equal(callID, incoming[0].(event.CallIncoming).CallID)
	req.Equal(testOffer.SDP, incoming[0].(event.CallIncoming).Offer.SDP)

	// bob answers and both exchange a candidate
	s.router.HandleMessage(ctx, bob, frame(t, event.NameCallAnswer, map[string]any{
		"to":     "alice",
		"callId": callID,
		"answer": map[string]string{"type": "answer", "sdp": testSDP},
	}))
	req.Len(alice.named(event.NameCallAnswered), 1)
	s.router.HandleMessage(ctx, bob, frame(t, event.NameCallIce, map[string]any{
		"to":        "alice",
		"candidate": map[string]any{"candidate": "candidate:1 1 UDP 2122252543 10.0.0.2 5000 typ host"},
	}))
	req.Len(alice.named(event.NameCallIce), 1)

	// alice hangs up
	s.router.HandleMessage(ctx, alice, frame(t, event.NameCallEnd, map[string]string{"callId": callID}))
	req.Equal([]event.Event{event.CallEnded{CallID: callID}}, bob.named(event.NameCallEnded))
	req.Empty(alice.named(event.NameError))
	req.Empty(bob.named(event.NameError))
}

func TestEventRouter_Friend_Request(t *testing.T) {
	req := require.New(t)
	s := newStack(t, nil)
	ctx := context.Background()
	alice, bob := newFakeSession("alice"), newFakeSession("bob")
	s.router.HandleMessage(ctx, bob, frame(t, event.NameUserOnline, "bob"))
	s.router.HandleMessage(ctx, alice, frame(t, event.NameUserOnline, "alice"))

	s.router.HandleMessage(ctx, alice, frame(t, event.NameFriendRequest, map[string]string{"fromUser": "alice", "toUser": "bob"}))
	req.Equal([]event.Event{event.FriendRequest{FromUser: "alice", ToUser: "bob"}}, bob.named(event.NameFriendRequest))

	s.router.HandleMessage(ctx, bob, frame(t, event.NameFriendResponse, map[string]string{
		"requesterId": "alice",
		"responderId": "bob",
		"action":      "accept",
	}))
	req.Equal([]event.Event{event.FriendResponse{RequesterID: "alice", ResponderID: "bob", Action: domain.ContactAccept}},
		alice.named(event.NameFriendResponse))
}

func TestEventRouter_Rate_Limit(t *testing.T) {
	req := require.New(t)
	s := newStack(t, runtime.NewEventLimiter(1, 2, time.Minute))
	alice := newFakeSession("alice")
	now := time.Now()
	s.router.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		s.router.HandleMessage(context.Background(), alice, frame(t, event.NameUserOnline, "alice"))
	}

	errs := alice.named(event.NameError)
	req.Len(errs, 1)
	req.Equal("rate_limited", errs[0].(event.Error).Code)
}

func TestEventRouter_Recovers_From_Panic(t *testing.T) {
	req := require.New(t)
	s := newStack(t, nil)
	s.router.handlers["test:boom"] = func(context.Context, Session, json.RawMessage) error {
		panic("boom")
	}
	alice := newFakeSession("alice")

	req.NotPanics(func() {
		s.router.HandleMessage(context.Background(), alice, []byte(`{"event":"test:boom","payload":{}}`))
	})

	errs := alice.named(event.NameError)
	req.Len(errs, 1)
	req.Equal("internal", errs[0].(event.Error).Code)
}
