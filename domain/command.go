package domain

import (
	"github.com/pion/webrtc/v4"
)

type SendMessageCommand struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           MessageType
}

type OfferCallCommand struct {
	CallerID       string
	ReceiverID     string
	ConversationID string
	Media          MediaKind
	Offer          webrtc.SessionDescription
}

type AnswerCallCommand struct {
	CallID string
	UserID string
	Answer webrtc.SessionDescription
}

type IceCandidateCommand struct {
	FromUserID   string
	TargetUserID string
	Candidate    webrtc.ICECandidateInit
}

// EndCallCommand is used for end and reject: UserID must be a party of the call.
type EndCallCommand struct {
	CallID string
	UserID string
}

type ContactRequestCommand struct {
	FromUserID string
	ToUserID   string
}

type ContactResponseCommand struct {
	RequesterID string
	ResponderID string
	Action      ContactAction
}
