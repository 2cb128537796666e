package repositories

import (
	"chat-signal/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_Describe_Stored_Records(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	messages := newTestMessageRepository(t, db, nil)
	calls := NewCallRepository(db, log)
	contacts := NewContactRepository(db, log)

	// Given one record of each kind
	_, err := messages.StoreMessage(domain.Message{ConversationID: "c1", SenderID: "alice", Type: domain.MessageText, Content: "hi"})
	req.NoError(err)
	req.NoError(calls.SaveCall(domain.CallSession{
		ID:         uuid.NewString(),
		CallerID:   "alice",
		ReceiverID: "bob",
		Media:      domain.Audio,
		Phase:      domain.PhaseRinging,
		StartedAt:  time.Now().UTC(),
	}))
	created, err := contacts.CreatePendingIfAbsent("alice", "bob")
	req.NoError(err)
	req.True(created)

	// When the whole store is scanned
	kinds := map[string]RecordView{}
	err = ScanRecords(db, "", func(key string, view RecordView, err error) {
		req.NoError(err, key)
		kinds[view.Kind] = view
	})

	// Then every record is decoded by its prefix
	req.NoError(err)
	req.Contains(kinds, KindMessage)
	req.Equal("alice", kinds[KindMessage].Owner)
	req.Equal("#1 [text] hi", kinds[KindMessage].Detail)
	req.Contains(kinds, KindIndex)
	req.Contains(kinds, KindCall)
	req.Equal("alice", kinds[KindCall].Owner)
	req.Contains(kinds[KindCall].Detail, "ringing")
	req.Contains(kinds, KindContact)
	req.Equal("-> bob [pending]", kinds[KindContact].Detail)
}

func Test_Describe_Unknown_And_Corrupted(t *testing.T) {
	req := require.New(t)

	view, err := DescribeRecord("other:1", []byte{1, 2, 3})
	req.NoError(err)
	req.Equal(KindUnknown, view.Kind)
	req.Equal("3 bytes", view.Detail)

	view, err = DescribeRecord("call:x", []byte{0xc1})
	req.Error(err)
	req.Equal(KindCall, view.Kind)
}
