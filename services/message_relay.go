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
)

type IMessageRelay interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
}

// MessageRelay persists a chat message then pushes it to every connected
// participant of its conversation, sender included.
type MessageRelay struct {
	log           *slog.Logger
	messages      repositories.IMessageRepository
	conversations repositories.IConversationRepository
	registry      contract.IRegistry
	metrics       *observability.Metrics
	locks         *keyedMutex
}

func NewMessageRelay(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	conversations repositories.IConversationRepository,
	registry contract.IRegistry,
	metrics *observability.Metrics,
) *MessageRelay {
	return &MessageRelay{
		log:           log.With("component", "message_relay"),
		messages:      messages,
		conversations: conversations,
		registry:      registry,
		metrics:       metrics,
		locks:         newKeyedMutex(),
	}
}

// Send returns the stored message, with ID, Seq and CreatedAt set by the store.
// Nothing is delivered when the message cannot be persisted.
func (r *MessageRelay) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if cmd.Type == "" {
		cmd.Type = domain.MessageText
	}
	if err := validateMessage(cmd); err != nil {
		return domain.Message{}, err
	}

	conversation, err := r.conversations.GetConversation(cmd.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conversation.HasParticipant(cmd.SenderID) {
		return domain.Message{}, errors.Validation("user %s is not a participant of conversation %s",
			cmd.SenderID, cmd.ConversationID)
	}

	// Persist and fan-out under the same lock so recipients observe store order
	unlock := r.locks.Lock(cmd.ConversationID)
	defer unlock()

	message, err := r.messages.StoreMessage(domain.Message{
		ConversationID: cmd.ConversationID,
		SenderID:       cmd.SenderID,
		Type:           cmd.Type,
		Content:        cmd.Content,
	})
	if err != nil {
		r.log.Error("Unable to persist message", "conversation_id", cmd.ConversationID, "error", err)
		return domain.Message{}, err
	}

	if err := r.conversations.TouchLastMessage(conversation.ID, message.ID, message.CreatedAt); err != nil {
		r.log.Warn("Unable to move last message pointer",
			"conversation_id", conversation.ID, "message_id", message.ID, "error", err)
	}

	evt := event.MessageReceived{Message: message, ConversationID: conversation.ID}
	delivered := 0
	for _, participant := range conversation.Participants {
		if r.registry.Notify(participant, evt) {
			delivered++
		}
	}
	r.metrics.MessagesRelayed.Inc()
	r.log.Debug("Message relayed",
		"conversation_id", conversation.ID, "seq", message.Seq,
		"participants", len(conversation.Participants), "delivered", delivered)
	return message, nil
}

func validateMessage(cmd domain.SendMessageCommand) error {
	switch {
	case cmd.ConversationID == "":
		return errors.Validation("conversation id is required")
	case cmd.SenderID == "":
		return errors.Validation("sender id is required")
	case !cmd.Type.IsValid():
		return errors.Validation("unknown message type %q", cmd.Type)
	case cmd.Type == domain.MessageText && cmd.Content == "":
		return errors.Validation("message content is empty")
	}
	return nil
}
