// Package event defines the server→client events pushed on a connection.
// Each event knows its wire name; the payload is the event value itself.
package event

import (
	"chat-signal/domain"

	"github.com/pion/webrtc/v4"
)

const (
	NameUserOnline       = "user:online"
	NamePresence         = "user:presence"
	NamePresenceSnapshot = "presence:snapshot"
	NameFriendRequest    = "friend:request"
	NameFriendResponse   = "friend:response"
	NameMessageSend      = "message:send"
	NameMessageReceive   = "message:receive"
	NameCallOffer        = "call:offer"
	NameCallCreated      = "call:created"
	NameCallIncoming     = "call:incoming"
	NameCallAnswer       = "call:answer"
	NameCallAnswered     = "call:answered"
	NameCallIce          = "call:ice"
	NameCallReject       = "call:reject"
	NameCallEnd          = "call:end"
	NameCallEnded        = "call:ended"
	NameError            = "error"
)

type Event interface {
	Name() string
}

type Presence struct {
	UserID string                `json:"userId"`
	Status domain.PresenceStatus `json:"status"`
}

func (Presence) Name() string { return NamePresence }

type PresenceSnapshot struct {
	Online []string `json:"online"`
}

func (PresenceSnapshot) Name() string { return NamePresenceSnapshot }

type FriendRequest struct {
	FromUser string `json:"fromUser"`
	ToUser   string `json:"toUser"`
}

func (FriendRequest) Name() string { return NameFriendRequest }

type FriendResponse struct {
	RequesterID string               `json:"requesterId"`
	ResponderID string               `json:"responderId"`
	Action      domain.ContactAction `json:"action"`
}

func (FriendResponse) Name() string { return NameFriendResponse }

type MessageReceived struct {
	Message        domain.Message `json:"message"`
	ConversationID string         `json:"conversationId"`
}

func (MessageReceived) Name() string { return NameMessageReceive }

type CallCreated struct {
	CallID string `json:"callId"`
}

func (CallCreated) Name() string { return NameCallCreated }

type CallIncoming struct {
	From     string                    `json:"from"`
	To       string                    `json:"to"`
	Offer    webrtc.SessionDescription `json:"offer"`
	CallID   string                    `json:"callId"`
	TypeCall domain.MediaKind          `json:"typeCall"`
}

func (CallIncoming) Name() string { return NameCallIncoming }

type CallAnswered struct {
	CallID string                    `json:"callId"`
	Answer webrtc.SessionDescription `json:"answer"`
}

func (CallAnswered) Name() string { return NameCallAnswered }

type CallIce struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (CallIce) Name() string { return NameCallIce }

// CallEnded carries the recorded outcome when it is not a plain hang-up.
type CallEnded struct {
	CallID string           `json:"callId"`
	Status domain.CallPhase `json:"status,omitempty"`
}

func (CallEnded) Name() string { return NameCallEnded }

// Error reports a rejected inbound event back to the connection that sent it.
type Error struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Error) Name() string { return NameError }
