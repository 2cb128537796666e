//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	messageSeqKey       = "seq:msg"
	messageSeqBandwidth = 100
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) (domain.Message, error)
	GetMessage(id uuid.UUID) (domain.Message, error)
	GetMessages(conversationID string, cursor *string) ([]domain.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	seq           *badger.Sequence
	limitMessages *int
}

// NewMessageRepository leases a block of sequence numbers from badger.
// Close must be called before the database is closed so unused numbers are released.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSeqKey), messageSeqBandwidth)
	if err != nil {
		return nil, wrapStoreErr("lease message sequence", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq, limitMessages: limitMessages}, nil
}

func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

func messageKey(conversationID string, seq uint64) string {
	return fmt.Sprintf("msg:%s:%020d", conversationID, seq)
}

func messageIndexKey(id uuid.UUID) string {
	return "msgid:" + id.String()
}

// StoreMessage assigns ID, Seq and CreatedAt, then persists the message.
// The key is formatted as "msg:{conversation_id}:{seq_padded}" so that a prefix
// scan returns a conversation in append order. A secondary "msgid:{id}" key
// points back to the primary key.
func (m *MessageRepository) StoreMessage(message domain.Message) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, wrapStoreErr("next message sequence", err)
	}
	message.ID = uuid.New()
	// Sequences start at 0, keep 0 for "unassigned"
	message.Seq = next + 1
	message.CreatedAt = time.Now().UTC()

	key := messageKey(message.ConversationID, message.Seq)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := setRecord(txn, key, toDiskMessage(message)); err != nil {
			return err
		}
		return txn.Set([]byte(messageIndexKey(message.ID)), []byte(key))
	})
	if err != nil {
		return domain.Message{}, wrapStoreErr("store message", err)
	}
	return message, nil
}

func (m *MessageRepository) GetMessage(id uuid.UUID) (domain.Message, error) {
	var disk DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(messageIndexKey(id)))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getRecord(txn, string(key), &disk)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, wrapStoreErr("get message", errNotFound("message", id.String()))
	}
	if err != nil {
		return domain.Message{}, wrapStoreErr("get message", err)
	}
	return fromDiskMessage(disk)
}

// GetMessages reads a conversation in append order, starting after cursor.
// The returned cursor is the sequence of the last message read, to be passed
// back to fetch the next page. It stops once limitMessages is reached.
func (m *MessageRepository) GetMessages(conversationID string, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastSeq string
	prefixStr := fmt.Sprintf("msg:%s:", conversationID)
	prefix := []byte(prefixStr)

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			after, err := strconv.ParseUint(*cursor, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid cursor %q: %w", *cursor, err)
			}
			seekKey = []byte(messageKey(conversationID, after+1))
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			var disk DiskMessage
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			message, err := fromDiskMessage(disk)
			if err != nil {
				return err
			}
			messages = append(messages, message)
			lastSeq = strconv.FormatUint(message.Seq, 10)
		}
		return nil
	})
	if err != nil {
		return nil, nil, wrapStoreErr("get messages", err)
	}
	if lastSeq == "" {
		return messages, cursor, nil
	}
	return messages, &lastSeq, nil
}
