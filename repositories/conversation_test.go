package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_Conversation_Create_Get_Touch(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewConversationRepository(db, logs.GetLoggerFromLevel(slog.LevelError))

	// Given a direct conversation between alice and bob
	req.NoError(repository.CreateConversation(domain.Conversation{
		ID:           "c1",
		Participants: []string{"alice", "bob"},
		CreatedBy:    "alice",
	}))

	// When a message is recorded as the latest one
	messageID := uuid.New()
	at := time.Now().UTC()
	req.NoError(repository.TouchLastMessage("c1", messageID, at))

	// Then the pointer and activity are stored
	conversation, err := repository.GetConversation("c1")
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, conversation.Participants)
	req.Equal(messageID.String(), conversation.LastMessageID)
	req.True(at.Equal(conversation.LastActivity))
	req.False(conversation.CreatedAt.IsZero())
}

func Test_Conversation_Not_Found(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewConversationRepository(db, logs.GetLoggerFromLevel(slog.LevelError))

	_, err := repository.GetConversation("missing")
	req.ErrorIs(err, errors.ErrNotFound)

	err = repository.TouchLastMessage("missing", uuid.New(), time.Now())
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Conversation_Concurrent_Touch(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewConversationRepository(db, logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(repository.CreateConversation(domain.Conversation{ID: "c1", Participants: []string{"a", "b"}}))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repository.TouchLastMessage("c1", uuid.New(), time.Now())
		}()
	}
	wg.Wait()
	close(errs)

	// No touch surfaces a raw conflict
	for err := range errs {
		if err != nil {
			req.ErrorIs(err, errors.ErrPersistence)
		}
	}
	conversation, err := repository.GetConversation("c1")
	req.NoError(err)
	req.NotEmpty(conversation.LastMessageID)
}
