package websocket

import (
	"chat-signal/contract"
	"chat-signal/domain"
	"chat-signal/domain/event"
	"chat-signal/errors"
	"chat-signal/observability"
	"chat-signal/runtime"
	"chat-signal/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Session is the connection an inbound event came from.
type Session interface {
	contract.ConnectionHandle
	UserID() string
}

type handlerFunc func(ctx context.Context, s Session, payload json.RawMessage) error

// EventRouter decodes inbound envelopes, checks them against the
// authenticated identity and dispatches them to the relays. Any failure is
// reported to the originating connection with an "error" event.
type EventRouter struct {
	log      *slog.Logger
	registry contract.IRegistry
	messages services.IMessageRelay
	calls    services.ICallSignaling
	contacts services.IContactRelay
	limiter  *runtime.EventLimiter
	metrics  *observability.Metrics
	handlers map[string]handlerFunc
	now      func() time.Time
}

func NewEventRouter(
	log *slog.Logger,
	registry contract.IRegistry,
	messages services.IMessageRelay,
	calls services.ICallSignaling,
	contacts services.IContactRelay,
	limiter *runtime.EventLimiter,
	metrics *observability.Metrics,
) *EventRouter {
	r := &EventRouter{
		log:      log.With("component", "event_router"),
		registry: registry,
		messages: messages,
		calls:    calls,
		contacts: contacts,
		limiter:  limiter,
		metrics:  metrics,
		now:      time.Now,
	}
	r.handlers = map[string]handlerFunc{
		event.NameUserOnline:     r.userOnline,
		event.NameFriendRequest:  r.friendRequest,
		event.NameFriendResponse: r.friendResponse,
		event.NameMessageSend:    r.messageSend,
		event.NameCallOffer:      r.callOffer,
		event.NameCallAnswer:     r.callAnswer,
		event.NameCallIce:        r.callIce,
		event.NameCallReject:     r.callReject,
		event.NameCallEnd:        r.callEnd,
	}
	return r
}

// HandleMessage processes one inbound frame to completion.
func (r *EventRouter) HandleMessage(ctx context.Context, s Session, data []byte) {
	var envelope Envelope
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Event handler panicked", "event", envelope.Event,
				"user_id", s.UserID(), "panic", rec)
			r.reject(s, envelope.Event, fmt.Errorf("internal error"))
		}
	}()

	if err := json.Unmarshal(data, &envelope); err != nil {
		r.reject(s, "", errors.Validation("malformed envelope: %v", err))
		return
	}
	handler, ok := r.handlers[envelope.Event]
	if !ok {
		r.reject(s, envelope.Event, errors.Validation("unknown event %q", envelope.Event))
		return
	}
	r.metrics.InboundEvents.WithLabelValues(envelope.Event).Inc()

	if !r.limiter.Allow(s.UserID(), r.now()) {
		r.reject(s, envelope.Event, errors.ErrRateLimited)
		return
	}
	if err := handler(ctx, s, envelope.Payload); err != nil {
		r.reject(s, envelope.Event, err)
	}
}

func (r *EventRouter) reject(s Session, eventName string, err error) {
	code := errors.Code(err)
	label := eventName
	if _, known := r.handlers[eventName]; !known {
		label = "unknown"
	}
	r.metrics.RejectedEvents.WithLabelValues(label, code).Inc()
	r.log.Debug("Event rejected", "event", eventName, "user_id", s.UserID(), "code", code, "error", err)
	if sendErr := s.Send(event.Error{Event: eventName, Code: code, Message: err.Error()}); sendErr != nil {
		r.log.Debug("Unable to report error", "user_id", s.UserID(), "error", sendErr)
	}
}

func (r *EventRouter) userOnline(_ context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[userOnlinePayload](raw)
	if err != nil {
		return err
	}
	userID, err := claimIdentity("userId", p.UserID, s.UserID())
	if err != nil {
		return err
	}
	r.registry.Register(userID, s)
	return nil
}

func (r *EventRouter) friendRequest(ctx context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[friendRequestPayload](raw)
	if err != nil {
		return err
	}
	from, err := claimIdentity("fromUser", p.FromUser, s.UserID())
	if err != nil {
		return err
	}
	return r.contacts.RequestContact(ctx, domain.ContactRequestCommand{FromUserID: from, ToUserID: p.ToUser})
}

func (r *EventRouter) friendResponse(ctx context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[friendResponsePayload](raw)
	if err != nil {
		return err
	}
	responder, err := claimIdentity("responderId", p.ResponderID, s.UserID())
	if err != nil {
		return err
	}
	return r.contacts.RespondContact(ctx, domain.ContactResponseCommand{
		RequesterID: p.RequesterID,
		ResponderID: responder,
		Action:      p.Action,
	})
}

func (r *EventRouter) messageSend(ctx context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[messageSendPayload](raw)
	if err != nil {
		return err
	}
	sender, err := claimIdentity("senderId", p.SenderID, s.UserID())
	if err != nil {
		return err
	}
	_, err = r.messages.Send(ctx, domain.SendMessageCommand{
		ConversationID: p.ConversationID,
		SenderID:       sender,
		Content:        p.Content,
		Type:           p.Type,
	})
	return err
}

func (r *EventRouter) callOffer(ctx context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[callOfferPayload](raw)
	if err != nil {
		return err
	}
	caller, err := claimIdentity("from", p.From, s.UserID())
	if err != nil {
		return err
	}
	callID, err := r.calls.Offer(ctx, domain.OfferCallCommand{
		CallerID:       caller,
		ReceiverID:     p.To,
		ConversationID: p.ConversationID,
		Media:          p.TypeCall,
		Offer:          p.Offer,
	})
	if err != nil {
		return err
	}
	return s.Send(event.CallCreated{CallID: callID})
}

func (r *EventRouter) callAnswer(ctx context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[callAnswerPayload](raw)
	if err != nil {
		return err
	}
	return r.calls.Answer(ctx, domain.AnswerCallCommand{CallID: p.CallID, UserID: s.UserID(), Answer: p.Answer})
}

func (r *EventRouter) callIce(ctx context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[callIcePayload](raw)
	if err != nil {
		return err
	}
	return r.calls.Ice(ctx, domain.IceCandidateCommand{
		FromUserID:   s.UserID(),
		TargetUserID: p.To,
		Candidate:    p.Candidate,
	})
}

func (r *EventRouter) callReject(ctx context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[callIDPayload](raw)
	if err != nil {
		return err
	}
	return r.calls.Reject(ctx, domain.EndCallCommand{CallID: p.CallID, UserID: s.UserID()})
}

func (r *EventRouter) callEnd(ctx context.Context, s Session, raw json.RawMessage) error {
	p, err := decodePayload[callIDPayload](raw)
	if err != nil {
		return err
	}
	return r.calls.End(ctx, domain.EndCallCommand{CallID: p.CallID, UserID: s.UserID()})
}
