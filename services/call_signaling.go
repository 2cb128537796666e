package services

import (
	"chat-signal/contract"
	"chat-signal/domain"
	"chat-signal/domain/event"
	"chat-signal/errors"
	"chat-signal/observability"
	"chat-signal/repositories"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/samber/lo"
)

type ICallSignaling interface {
	Offer(ctx context.Context, cmd domain.OfferCallCommand) (string, error)
	Answer(ctx context.Context, cmd domain.AnswerCallCommand) error
	Ice(ctx context.Context, cmd domain.IceCandidateCommand) error
	End(ctx context.Context, cmd domain.EndCallCommand) error
	Reject(ctx context.Context, cmd domain.EndCallCommand) error
	ExpireRinging(ctx context.Context, now time.Time) int
}

// callEntry serializes the transitions of one call.
type callEntry struct {
	mu      sync.Mutex
	session domain.CallSession
}

// CallSignaling drives the call state machine and relays SDP/ICE between the two parties.
// Only non-terminal sessions are kept in memory; the store keeps the history.
type CallSignaling struct {
	log         *slog.Logger
	calls       repositories.ICallRepository
	registry    contract.IRegistry
	metrics     *observability.Metrics
	ringTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*callEntry // map call id -> entry
	byPair   map[string]string     // map pair key -> call id
}

func NewCallSignaling(
	log *slog.Logger,
	calls repositories.ICallRepository,
	registry contract.IRegistry,
	metrics *observability.Metrics,
	ringTimeout time.Duration,
) *CallSignaling {
	return &CallSignaling{
		log:         log.With("component", "call_signaling"),
		calls:       calls,
		registry:    registry,
		metrics:     metrics,
		ringTimeout: ringTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		sessions:    make(map[string]*callEntry),
		byPair:      make(map[string]string),
	}
}

// Offer opens a ringing session and forwards the SDP offer to the receiver.
// The call id is returned even when the receiver is not connected.
func (s *CallSignaling) Offer(ctx context.Context, cmd domain.OfferCallCommand) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if cmd.Media == "" {
		cmd.Media = domain.Audio
	}
	if err := validateOffer(cmd); err != nil {
		return "", err
	}

	entry := &callEntry{session: domain.CallSession{
		ID:             uuid.NewString(),
		CallerID:       cmd.CallerID,
		ReceiverID:     cmd.ReceiverID,
		ConversationID: cmd.ConversationID,
		Media:          cmd.Media,
		Phase:          domain.PhaseRinging,
		StartedAt:      s.now(),
	}}
	pair := domain.PairKey(cmd.CallerID, cmd.ReceiverID)

	// The entry is locked before it becomes visible so that nothing
	// acts on a session that is not persisted yet
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s.mu.Lock()
	if existing, ok := s.byPair[pair]; ok {
		s.mu.Unlock()
		return "", errors.Validation("call %s already in progress between %s and %s",
			existing, cmd.CallerID, cmd.ReceiverID)
	}
	s.sessions[entry.session.ID] = entry
	s.byPair[pair] = entry.session.ID
	s.mu.Unlock()

	if err := s.calls.SaveCall(entry.session); err != nil {
		s.evict(entry.session)
		s.log.Error("Unable to persist call", "call_id", entry.session.ID, "error", err)
		return "", err
	}
	s.metrics.CallTransitions.WithLabelValues(string(domain.PhaseRinging)).Inc()
	s.metrics.ActiveCalls.Inc()

	reached := s.registry.Notify(cmd.ReceiverID, event.CallIncoming{
		From:     cmd.CallerID,
		To:       cmd.ReceiverID,
		Offer:    cmd.Offer,
		CallID:   entry.session.ID,
		TypeCall: cmd.Media,
	})
	s.log.Debug("Call offered", "call_id", entry.session.ID,
		"caller_id", cmd.CallerID, "receiver_id", cmd.ReceiverID, "reached", reached)
	return entry.session.ID, nil
}

// Answer moves a ringing call to active. Answers from anyone but the receiver,
// for unknown calls or for calls that are no longer ringing are dropped.
func (s *CallSignaling) Answer(ctx context.Context, cmd domain.AnswerCallCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateSDP(cmd.Answer, webrtc.SDPTypeAnswer); err != nil {
		return err
	}
	entry, ok := s.lookup(cmd.CallID)
	if !ok {
		s.log.Debug("Answer for unknown call dropped", "call_id", cmd.CallID, "user_id", cmd.UserID)
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.Phase != domain.PhaseRinging || entry.session.ReceiverID != cmd.UserID {
		s.log.Debug("Answer dropped", "call_id", cmd.CallID, "user_id", cmd.UserID,
			"phase", entry.session.Phase)
		return nil
	}

	previous := entry.session
	entry.session.Phase = domain.PhaseActive
	entry.session.AnsweredAt = s.now()
	if err := s.calls.SaveCall(entry.session); err != nil {
		entry.session = previous
		s.log.Error("Unable to persist call answer", "call_id", cmd.CallID, "error", err)
		return err
	}
	s.metrics.CallTransitions.WithLabelValues(string(domain.PhaseActive)).Inc()

	s.registry.Notify(entry.session.CallerID, event.CallAnswered{CallID: cmd.CallID, Answer: cmd.Answer})
	return nil
}

// Ice relays a candidate without looking at any session. An empty candidate
// marks the end of gathering and is relayed like any other.
func (s *CallSignaling) Ice(ctx context.Context, cmd domain.IceCandidateCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case cmd.TargetUserID == "":
		return errors.Validation("ice target is required")
	case cmd.TargetUserID == cmd.FromUserID:
		return errors.Validation("ice target must be another user")
	}
	s.registry.Notify(cmd.TargetUserID, event.CallIce{Candidate: cmd.Candidate})
	return nil
}

// End hangs up a ringing or active call on behalf of either party.
// Ending an unknown or already finished call is a no-op.
func (s *CallSignaling) End(ctx context.Context, cmd domain.EndCallCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.terminate(cmd, domain.PhaseEnded, func(c domain.CallSession) bool {
		return c.Involves(cmd.UserID)
	})
}

// Reject lets the receiver decline a ringing call.
func (s *CallSignaling) Reject(ctx context.Context, cmd domain.EndCallCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.terminate(cmd, domain.PhaseRejected, func(c domain.CallSession) bool {
		return c.Phase == domain.PhaseRinging && c.ReceiverID == cmd.UserID
	})
}

// ExpireRinging marks as missed every call that kept ringing for longer than
// the ring timeout, and returns how many were expired.
func (s *CallSignaling) ExpireRinging(ctx context.Context, now time.Time) int {
	expired := 0
	for _, entry := range s.snapshot() {
		if ctx.Err() != nil {
			break
		}
		entry.mu.Lock()
		session := entry.session
		if session.Phase == domain.PhaseRinging && now.Sub(session.StartedAt) >= s.ringTimeout {
			if err := s.finish(entry, domain.PhaseMissed, now); err != nil {
				s.log.Warn("Unable to expire call", "call_id", session.ID, "error", err)
			} else {
				expired++
			}
		}
		entry.mu.Unlock()
	}
	return expired
}

// HandlePresence is a registry presence hook. When a user goes offline their
// calls are hung up on a separate goroutine, since the registry may run hooks
// while a call entry is locked.
func (s *CallSignaling) HandlePresence(userID string, status domain.PresenceStatus) {
	if status != domain.Offline {
		return
	}
	at := s.now()
	go s.HangUpUser(context.Background(), userID, at)
}

// HangUpUser finishes every call of userID that started no later than before.
// Ringing calls become missed, ongoing calls completed. It returns how many
// calls were finished.
func (s *CallSignaling) HangUpUser(ctx context.Context, userID string, before time.Time) int {
	finished := 0
	for _, entry := range s.snapshot() {
		if ctx.Err() != nil {
			break
		}
		entry.mu.Lock()
		session := entry.session
		if !session.Phase.IsTerminal() && session.Involves(userID) && !session.StartedAt.After(before) {
			phase := domain.PhaseEnded
			if session.Phase == domain.PhaseRinging {
				phase = domain.PhaseMissed
			}
			if err := s.finish(entry, phase, s.now()); err != nil {
				s.log.Warn("Unable to hang up call", "call_id", session.ID, "user_id", userID, "error", err)
			} else {
				finished++
			}
		}
		entry.mu.Unlock()
	}
	if finished > 0 {
		s.log.Info("Calls hung up after disconnect", "user_id", userID, "count", finished)
	}
	return finished
}

// terminate applies a terminal phase when allowed accepts the current session.
func (s *CallSignaling) terminate(cmd domain.EndCallCommand, phase domain.CallPhase, allowed func(domain.CallSession) bool) error {
	entry, ok := s.lookup(cmd.CallID)
	if !ok {
		return nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.Phase.IsTerminal() || !allowed(entry.session) {
		s.log.Debug("Call termination dropped", "call_id", cmd.CallID,
			"user_id", cmd.UserID, "phase", entry.session.Phase, "target", phase)
		return nil
	}
	return s.finish(entry, phase, s.now())
}

// finish must be called with entry.mu held.
func (s *CallSignaling) finish(entry *callEntry, phase domain.CallPhase, at time.Time) error {
	previous := entry.session
	entry.session.Terminate(phase, at)
	if err := s.calls.SaveCall(entry.session); err != nil {
		entry.session = previous
		return err
	}
	s.evict(entry.session)
	s.metrics.CallTransitions.WithLabelValues(string(phase)).Inc()
	s.metrics.ActiveCalls.Dec()

	evt := event.CallEnded{CallID: entry.session.ID}
	if phase != domain.PhaseEnded {
		evt.Status = phase
	}
	s.registry.Notify(entry.session.CallerID, evt)
	s.registry.Notify(entry.session.ReceiverID, evt)
	s.log.Debug("Call finished", "call_id", entry.session.ID,
		"phase", phase, "duration", entry.session.Duration)
	return nil
}

// ActiveCalls counts the sessions that are ringing or ongoing.
func (s *CallSignaling) ActiveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *CallSignaling) snapshot() []*callEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Values(s.sessions)
}

func (s *CallSignaling) lookup(callID string) (*callEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[callID]
	return e, ok
}

func (s *CallSignaling) evict(session domain.CallSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session.ID)
	pair := domain.PairKey(session.CallerID, session.ReceiverID)
	if s.byPair[pair] == session.ID {
		delete(s.byPair, pair)
	}
}

func validateOffer(cmd domain.OfferCallCommand) error {
	switch {
	case cmd.CallerID == "" || cmd.ReceiverID == "":
		return errors.Validation("caller and receiver are required")
	case cmd.CallerID == cmd.ReceiverID:
		return errors.Validation("cannot call yourself")
	case !cmd.Media.IsValid():
		return errors.Validation("unknown call type %q", cmd.Media)
	}
	return validateSDP(cmd.Offer, webrtc.SDPTypeOffer)
}

// validateSDP checks the description type and that its body parses.
func validateSDP(desc webrtc.SessionDescription, expected webrtc.SDPType) error {
	if desc.Type != expected {
		return errors.Validation("expected sdp %s, got %s", expected, desc.Type)
	}
	if _, err := desc.Unmarshal(); err != nil {
		return errors.Validation("malformed sdp: %v", err)
	}
	return nil
}
