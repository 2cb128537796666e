package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestMessageRepository(t *testing.T, db *badger.DB, limit *int) *MessageRepository {
	t.Helper()
	repository, err := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError), limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func Test_Store_Message_Assigns_Identity(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := newTestMessageRepository(t, db, nil)

	// When a message is stored without any identity
	stored, err := repository.StoreMessage(domain.Message{
		ConversationID: "c1",
		SenderID:       "alice",
		Type:           domain.MessageText,
		Content:        "hello",
	})

	// Then the store assigns ID, Seq and CreatedAt
	req.NoError(err)
	req.NotEqual(uuid.Nil, stored.ID)
	req.Equal(uint64(1), stored.Seq)
	req.False(stored.CreatedAt.IsZero())

	// And the message can be read back by id
	fetched, err := repository.GetMessage(stored.ID)
	req.NoError(err)
	req.Equal(stored, fetched)
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := newTestMessageRepository(t, db, nil)
	authors := []string{"Alice", "Bob", "Clara"}

	var stored []domain.Message
	for _, author := range authors {
		m, err := repository.StoreMessage(domain.Message{
			ConversationID: "c1",
			SenderID:       author,
			Type:           domain.MessageText,
			Content:        "this message will self destruct in 5 seconds",
		})
		req.NoError(err)
		stored = append(stored, m)
	}
	// Noise in another conversation
	_, err := repository.StoreMessage(domain.Message{ConversationID: "c2", SenderID: "Dan", Type: domain.MessageText, Content: "hi"})
	req.NoError(err)

	fetched, cursor, err := repository.GetMessages("c1", nil)
	req.NoError(err)
	req.Equal(stored, fetched)
	req.NotNil(cursor)
	req.Equal("3", *cursor)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	limit := 2
	repository := newTestMessageRepository(t, db, &limit)

	for _, author := range []string{"Alice", "Bob", "Clara"} {
		_, err := repository.StoreMessage(domain.Message{ConversationID: "c1", SenderID: author, Type: domain.MessageText, Content: "x"})
		req.NoError(err)
	}

	// When reading a first page
	page, cursor, err := repository.GetMessages("c1", nil)
	req.NoError(err)
	req.Len(page, limit)
	req.Equal("Alice", page[0].SenderID)

	// Then the cursor resumes right after it
	page, _, err = repository.GetMessages("c1", cursor)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("Clara", page[0].SenderID)
}

func Test_Get_Unknown_Message(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := newTestMessageRepository(t, db, nil)

	_, err := repository.GetMessage(uuid.New())

	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Sequence_Survives_Reopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	db, err := badger.Open(opts)
	req.NoError(err)
	repository, err := NewMessageRepository(db, log, nil)
	req.NoError(err)
	first, err := repository.StoreMessage(domain.Message{ConversationID: "c1", SenderID: "a", Type: domain.MessageText, Content: "1"})
	req.NoError(err)
	req.NoError(repository.Close())
	req.NoError(db.Close())

	// When the store is reopened
	db, err = badger.Open(opts)
	req.NoError(err)
	defer db.Close()
	repository, err = NewMessageRepository(db, log, nil)
	req.NoError(err)
	defer repository.Close()
	second, err := repository.StoreMessage(domain.Message{ConversationID: "c1", SenderID: "a", Type: domain.MessageText, Content: "2"})
	req.NoError(err)

	// Then sequence numbers keep increasing
	req.Greater(second.Seq, first.Seq)
	messages, _, err := repository.GetMessages("c1", nil)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("1", messages[0].Content)
}
