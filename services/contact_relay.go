package services

import (
	"chat-signal/contract"
	"chat-signal/domain"
	"chat-signal/domain/event"
	"chat-signal/errors"
	"chat-signal/repositories"
	"context"
	"log/slog"
)

type IContactRelay interface {
	RequestContact(ctx context.Context, cmd domain.ContactRequestCommand) error
	RespondContact(ctx context.Context, cmd domain.ContactResponseCommand) error
}

// ContactRelay records friend requests and their outcome, then forwards them
// to the other user when connected.
type ContactRelay struct {
	log      *slog.Logger
	contacts repositories.IContactRepository
	registry contract.IRegistry
}

func NewContactRelay(log *slog.Logger, contacts repositories.IContactRepository, registry contract.IRegistry) *ContactRelay {
	return &ContactRelay{
		log:      log.With("component", "contact_relay"),
		contacts: contacts,
		registry: registry,
	}
}

func (r *ContactRelay) RequestContact(ctx context.Context, cmd domain.ContactRequestCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case cmd.FromUserID == "" || cmd.ToUserID == "":
		return errors.Validation("both users are required")
	case cmd.FromUserID == cmd.ToUserID:
		return errors.Validation("cannot add yourself as a contact")
	}

	created, err := r.contacts.CreatePendingIfAbsent(cmd.FromUserID, cmd.ToUserID)
	if err != nil {
		r.log.Error("Unable to persist contact request",
			"user_id", cmd.FromUserID, "contact_id", cmd.ToUserID, "error", err)
		return err
	}
	r.log.Debug("Contact requested", "user_id", cmd.FromUserID, "contact_id", cmd.ToUserID, "created", created)

	r.registry.Notify(cmd.ToUserID, event.FriendRequest{FromUser: cmd.FromUserID, ToUser: cmd.ToUserID})
	return nil
}

// RespondContact applies the responder's decision to a pending request and
// forwards it to the requester. Without a matching pending request nothing is
// written, but the response is still forwarded so that a retry gets through.
func (r *ContactRelay) RespondContact(ctx context.Context, cmd domain.ContactResponseCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cmd.RequesterID == "" || cmd.ResponderID == "" {
		return errors.Validation("both users are required")
	}

	var applied bool
	var err error
	switch cmd.Action {
	case domain.ContactAccept:
		applied, err = r.contacts.Accept(cmd.RequesterID, cmd.ResponderID)
	case domain.ContactDecline:
		applied, err = r.contacts.Decline(cmd.RequesterID, cmd.ResponderID)
	default:
		return errors.Validation("unknown contact action %q", cmd.Action)
	}
	if err != nil {
		r.log.Error("Unable to persist contact response",
			"user_id", cmd.RequesterID, "contact_id", cmd.ResponderID, "action", cmd.Action, "error", err)
		return err
	}
	r.log.Debug("Contact answered", "user_id", cmd.RequesterID,
		"contact_id", cmd.ResponderID, "action", cmd.Action, "applied", applied)

	r.registry.Notify(cmd.RequesterID, event.FriendResponse{
		RequesterID: cmd.RequesterID,
		ResponderID: cmd.ResponderID,
		Action:      cmd.Action,
	})
	return nil
}
