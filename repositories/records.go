package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// maxTxnRetries bounds optimistic retries when two transactions touch the same key.
const maxTxnRetries = 5

// DiskMessage is the on-disk shape of a domain.Message.
type DiskMessage struct {
	ID             string `msgpack:"id"`
	ConversationID string `msgpack:"conversation_id"`
	SenderID       string `msgpack:"sender_id"`
	Type           string `msgpack:"type"`
	Content        string `msgpack:"content"`
	Seq            uint64 `msgpack:"seq"`
	CreatedAt      int64  `msgpack:"created_at"`
}

type DiskConversation struct {
	ID            string   `msgpack:"id"`
	IsGroup       bool     `msgpack:"is_group"`
	Participants  []string `msgpack:"participants"`
	GroupName     string   `msgpack:"group_name,omitempty"`
	CreatedBy     string   `msgpack:"created_by"`
	LastMessageID string   `msgpack:"last_message_id,omitempty"`
	LastActivity  int64    `msgpack:"last_activity"`
	CreatedAt     int64    `msgpack:"created_at"`
}

type DiskContact struct {
	UserID    string `msgpack:"user_id"`
	ContactID string `msgpack:"contact_id"`
	Status    string `msgpack:"status"`
	AddedAt   int64  `msgpack:"added_at"`
}

type DiskCall struct {
	ID             string `msgpack:"id"`
	CallerID       string `msgpack:"caller_id"`
	ReceiverID     string `msgpack:"receiver_id"`
	ConversationID string `msgpack:"conversation_id,omitempty"`
	Media          string `msgpack:"media"`
	Phase          string `msgpack:"phase"`
	StartedAt      int64  `msgpack:"started_at"`
	AnsweredAt     int64  `msgpack:"answered_at,omitempty"`
	EndedAt        int64  `msgpack:"ended_at,omitempty"`
	Duration       int64  `msgpack:"duration"`
}

func toDiskMessage(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Type:           string(m.Type),
		Content:        m.Content,
		Seq:            m.Seq,
		CreatedAt:      m.CreatedAt.UnixNano(),
	}
}

func fromDiskMessage(d DiskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:             parsedID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Type:           domain.MessageType(d.Type),
		Content:        d.Content,
		Seq:            d.Seq,
		CreatedAt:      time.Unix(0, d.CreatedAt).UTC(),
	}, nil
}

func toDiskConversation(c domain.Conversation) DiskConversation {
	return DiskConversation{
		ID:            c.ID,
		IsGroup:       c.IsGroup,
		Participants:  c.Participants,
		GroupName:     c.GroupName,
		CreatedBy:     c.CreatedBy,
		LastMessageID: c.LastMessageID,
		LastActivity:  unixNano(c.LastActivity),
		CreatedAt:     unixNano(c.CreatedAt),
	}
}

func fromDiskConversation(d DiskConversation) domain.Conversation {
	return domain.Conversation{
		ID:            d.ID,
		IsGroup:       d.IsGroup,
		Participants:  d.Participants,
		GroupName:     d.GroupName,
		CreatedBy:     d.CreatedBy,
		LastMessageID: d.LastMessageID,
		LastActivity:  fromUnixNano(d.LastActivity),
		CreatedAt:     fromUnixNano(d.CreatedAt),
	}
}

func toDiskContact(c domain.Contact) DiskContact {
	return DiskContact{
		UserID:    c.UserID,
		ContactID: c.ContactID,
		Status:    string(c.Status),
		AddedAt:   unixNano(c.AddedAt),
	}
}

func fromDiskContact(d DiskContact) domain.Contact {
	return domain.Contact{
		UserID:    d.UserID,
		ContactID: d.ContactID,
		Status:    domain.ContactStatus(d.Status),
		AddedAt:   fromUnixNano(d.AddedAt),
	}
}

func toDiskCall(c domain.CallSession) DiskCall {
	return DiskCall{
		ID:             c.ID,
		CallerID:       c.CallerID,
		ReceiverID:     c.ReceiverID,
		ConversationID: c.ConversationID,
		Media:          string(c.Media),
		Phase:          string(c.Phase),
		StartedAt:      unixNano(c.StartedAt),
		AnsweredAt:     unixNano(c.AnsweredAt),
		EndedAt:        unixNano(c.EndedAt),
		Duration:       int64(c.Duration),
	}
}

func fromDiskCall(d DiskCall) domain.CallSession {
	return domain.CallSession{
		ID:             d.ID,
		CallerID:       d.CallerID,
		ReceiverID:     d.ReceiverID,
		ConversationID: d.ConversationID,
		Media:          domain.MediaKind(d.Media),
		Phase:          domain.CallPhase(d.Phase),
		StartedAt:      fromUnixNano(d.StartedAt),
		AnsweredAt:     fromUnixNano(d.AnsweredAt),
		EndedAt:        fromUnixNano(d.EndedAt),
		Duration:       time.Duration(d.Duration),
	}
}

// unixNano keeps the zero time as 0 so that omitempty drops it on disk.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// getRecord loads key inside txn and decodes it into out.
// A missing key is reported as errors.ErrNotFound.
func getRecord(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshal(val, out)
	})
}

func setRecord(txn *badger.Txn, key string, in any) error {
	bytes, err := msgpack.Marshal(in)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), bytes)
}

// updateWithRetry runs fn in a read-write transaction and replays it when
// badger reports a conflict with a concurrent commit.
func updateWithRetry(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnRetries {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// wrapStoreErr tags store failures as persistence errors and lets
// not-found through unchanged.
func wrapStoreErr(op string, err error) error {
	if err == nil || errors.Is(err, errors.ErrNotFound) {
		return err
	}
	return errors.Persistence(op, err)
}

func errNotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", errors.ErrNotFound, kind, id)
}

func unmarshal(val []byte, out any) error {
	return msgpack.Unmarshal(val, out)
}
