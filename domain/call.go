package domain

import (
	"time"
)

type MediaKind string

const (
	Audio MediaKind = "audio"
	Video MediaKind = "video"
)

func (m MediaKind) IsValid() bool {
	return m == Audio || m == Video
}

// CallPhase is the lifecycle position of a call session.
//
//	none -> ringing -> active -> ended
//	        ringing -> missed | rejected | ended
type CallPhase string

const (
	PhaseNone     CallPhase = ""
	PhaseRinging  CallPhase = "ringing"
	PhaseActive   CallPhase = "ongoing"
	PhaseEnded    CallPhase = "completed"
	PhaseMissed   CallPhase = "missed"
	PhaseRejected CallPhase = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (p CallPhase) IsTerminal() bool {
	switch p {
	case PhaseEnded, PhaseMissed, PhaseRejected:
		return true
	}
	return false
}

// CallSession is the record behind one callId.
type CallSession struct {
	ID             string        `json:"callId"`
	CallerID       string        `json:"callerId"`
	ReceiverID     string        `json:"receiverId"`
	ConversationID string        `json:"conversationId,omitempty"`
	Media          MediaKind     `json:"typeCall"`
	Phase          CallPhase     `json:"status"`
	StartedAt      time.Time     `json:"startTime"`
	AnsweredAt     time.Time     `json:"answeredAt,omitzero"`
	EndedAt        time.Time     `json:"endTime,omitzero"`
	Duration       time.Duration `json:"duration"`
}

// Involves reports whether userID is the caller or the receiver.
func (c CallSession) Involves(userID string) bool {
	return c.CallerID == userID || c.ReceiverID == userID
}

// Peer returns the other party of the call.
func (c CallSession) Peer(userID string) string {
	if c.CallerID == userID {
		return c.ReceiverID
	}
	return c.CallerID
}

// Terminate moves the session into a terminal phase and stamps end time and duration.
// An answered call is timed from the answer, any other from the offer.
func (c *CallSession) Terminate(phase CallPhase, at time.Time) {
	c.Phase = phase
	c.EndedAt = at
	from := c.StartedAt
	if !c.AnsweredAt.IsZero() {
		from = c.AnsweredAt
	}
	c.Duration = at.Sub(from)
	if c.Duration < 0 {
		c.Duration = 0
	}
}

// PairKey identifies the unordered pair of users of a call.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
