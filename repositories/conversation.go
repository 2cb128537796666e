//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IConversationRepository interface {
	CreateConversation(conversation domain.Conversation) error
	GetConversation(id string) (domain.Conversation, error)
	TouchLastMessage(id string, messageID uuid.UUID, at time.Time) error
}

// ConversationRepository stores conversations under "conv:{id}".
// Conversations are created by the outer CRUD layer; the relay only reads them
// and moves the last-message pointer.
type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

func conversationKey(id string) string {
	return "conv:" + id
}

func (c ConversationRepository) CreateConversation(conversation domain.Conversation) error {
	if conversation.ID == "" {
		return errors.Validation("conversation id is required")
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, conversationKey(conversation.ID), toDiskConversation(conversation))
	})
	return wrapStoreErr("create conversation", err)
}

func (c ConversationRepository) GetConversation(id string) (domain.Conversation, error) {
	var disk DiskConversation
	err := c.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, conversationKey(id), &disk)
	})
	if errors.Is(err, errors.ErrNotFound) {
		return domain.Conversation{}, errNotFound("conversation", id)
	}
	if err != nil {
		return domain.Conversation{}, wrapStoreErr("get conversation", err)
	}
	return fromDiskConversation(disk), nil
}

// TouchLastMessage moves the last-message pointer forward. Concurrent touches
// of one conversation are retried on conflict.
func (c ConversationRepository) TouchLastMessage(id string, messageID uuid.UUID, at time.Time) error {
	err := updateWithRetry(c.db, func(txn *badger.Txn) error {
		var disk DiskConversation
		if err := getRecord(txn, conversationKey(id), &disk); err != nil {
			return err
		}
		disk.LastMessageID = messageID.String()
		disk.LastActivity = at.UnixNano()
		return setRecord(txn, conversationKey(id), disk)
	})
	if errors.Is(err, errors.ErrNotFound) {
		return errNotFound("conversation", id)
	}
	return wrapStoreErr("touch conversation", err)
}
