package websocket

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"
)

var validate = validator.New()

// userOnlinePayload accepts both a bare string and {"userId": "..."}.
type userOnlinePayload struct {
	UserID string `json:"userId" validate:"required"`
}

func (p *userOnlinePayload) UnmarshalJSON(data []byte) error {
	var userID string
	if err := json.Unmarshal(data, &userID); err == nil {
		p.UserID = userID
		return nil
	}
	type alias userOnlinePayload
	return json.Unmarshal(data, (*alias)(p))
}

type friendRequestPayload struct {
	FromUser string `json:"fromUser"`
	ToUser   string `json:"toUser" validate:"required"`
}

type friendResponsePayload struct {
	RequesterID string               `json:"requesterId" validate:"required"`
	ResponderID string               `json:"responderId"`
	Action      domain.ContactAction `json:"action" validate:"required,oneof=accept decline"`
}

type messageSendPayload struct {
	ConversationID string             `json:"conversationId" validate:"required"`
	SenderID       string             `json:"senderId"`
	Content        string             `json:"content" validate:"max=16384"`
	Type           domain.MessageType `json:"typeMessage" validate:"omitempty,oneof=text image video audio file sticker"`
}

type callOfferPayload struct {
	From           string                    `json:"from"`
	To             string                    `json:"to" validate:"required"`
	Offer          webrtc.SessionDescription `json:"offer"`
	TypeCall       domain.MediaKind          `json:"typeCall" validate:"omitempty,oneof=audio video"`
	ConversationID string                    `json:"conversationId"`
}

type callAnswerPayload struct {
	To     string                    `json:"to"`
	Answer webrtc.SessionDescription `json:"answer"`
	CallID string                    `json:"callId" validate:"required"`
}

type callIcePayload struct {
	To        string                  `json:"to" validate:"required"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type callIDPayload struct {
	CallID string `json:"callId" validate:"required"`
}

// decodePayload unmarshals and validates raw into T. Every failure is a
// validation error.
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(raw) == 0 {
		return p, errors.Validation("missing payload")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, errors.Validation("malformed payload: %v", err)
	}
	if err := validate.Struct(p); err != nil {
		return p, errors.Validation("%s", describeValidation(err))
	}
	return p, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fe.Field()+" failed on "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}

// claimIdentity resolves an identity field of a payload against the
// authenticated user: an empty field defaults to it, a different one is refused.
func claimIdentity(field, claimed, authenticated string) (string, error) {
	if claimed == "" || claimed == authenticated {
		return authenticated, nil
	}
	return "", errors.Validation("%s %q does not match the authenticated user", field, claimed)
}
