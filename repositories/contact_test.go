package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestContactRepository(t *testing.T) ContactRepository {
	return NewContactRepository(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelError))
}

func Test_Contact_Create_Pending_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := newTestContactRepository(t)

	created, err := repository.CreatePendingIfAbsent("alice", "bob")
	req.NoError(err)
	req.True(created)

	created, err = repository.CreatePendingIfAbsent("alice", "bob")
	req.NoError(err)
	req.False(created)

	contact, err := repository.GetContact("alice", "bob")
	req.NoError(err)
	req.Equal(domain.ContactPending, contact.Status)
}

func Test_Contact_Concurrent_Requests_Create_One_Record(t *testing.T) {
	req := require.New(t)
	repository := newTestContactRepository(t)
	var wg sync.WaitGroup
	var createdCount atomic.Int32

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repository.CreatePendingIfAbsent("alice", "bob")
			if err == nil && created {
				createdCount.Add(1)
			}
		}()
	}
	wg.Wait()

	req.Equal(int32(1), createdCount.Load())
	contacts, err := repository.ListContacts("alice")
	req.NoError(err)
	req.Len(contacts, 1)
}

func Test_Contact_Accept_Creates_Reciprocal(t *testing.T) {
	req := require.New(t)
	repository := newTestContactRepository(t)
	_, err := repository.CreatePendingIfAbsent("alice", "bob")
	req.NoError(err)

	// When bob accepts
	accepted, err := repository.Accept("alice", "bob")

	// Then both directions are accepted
	req.NoError(err)
	req.True(accepted)
	request, err := repository.GetContact("alice", "bob")
	req.NoError(err)
	req.Equal(domain.ContactAccepted, request.Status)
	reciprocal, err := repository.GetContact("bob", "alice")
	req.NoError(err)
	req.Equal(domain.ContactAccepted, reciprocal.Status)

	// And accepting twice is a no-op
	accepted, err = repository.Accept("alice", "bob")
	req.NoError(err)
	req.False(accepted)
}

func Test_Contact_Accept_Updates_Existing_Reciprocal(t *testing.T) {
	req := require.New(t)
	repository := newTestContactRepository(t)
	// Both sent a request to each other
	_, err := repository.CreatePendingIfAbsent("alice", "bob")
	req.NoError(err)
	_, err = repository.CreatePendingIfAbsent("bob", "alice")
	req.NoError(err)

	accepted, err := repository.Accept("alice", "bob")
	req.NoError(err)
	req.True(accepted)

	contacts, err := repository.ListContacts("bob")
	req.NoError(err)
	req.Len(contacts, 1)
	req.Equal(domain.ContactAccepted, contacts[0].Status)
}

func Test_Contact_Decline_Removes_Pending(t *testing.T) {
	req := require.New(t)
	repository := newTestContactRepository(t)
	_, err := repository.CreatePendingIfAbsent("alice", "bob")
	req.NoError(err)

	declined, err := repository.Decline("alice", "bob")
	req.NoError(err)
	req.True(declined)

	_, err = repository.GetContact("alice", "bob")
	req.ErrorIs(err, errors.ErrNotFound)
	_, err = repository.GetContact("bob", "alice")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Contact_Respond_Without_Request(t *testing.T) {
	req := require.New(t)
	repository := newTestContactRepository(t)

	accepted, err := repository.Accept("alice", "bob")
	req.NoError(err)
	req.False(accepted)

	declined, err := repository.Decline("alice", "bob")
	req.NoError(err)
	req.False(declined)
}
