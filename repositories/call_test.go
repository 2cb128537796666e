package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_Call_Save_And_Overwrite(t *testing.T) {
	req := require.New(t)
	repository := NewCallRepository(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelError))
	started := time.Now().UTC()
	call := domain.CallSession{
		ID:         uuid.NewString(),
		CallerID:   "alice",
		ReceiverID: "bob",
		Media:      domain.Video,
		Phase:      domain.PhaseRinging,
		StartedAt:  started,
	}

	// Given a ringing call
	req.NoError(repository.SaveCall(call))

	// When it ends
	call.Terminate(domain.PhaseEnded, started.Add(42*time.Second))
	req.NoError(repository.SaveCall(call))

	// Then only the final state is kept
	fetched, err := repository.GetCall(call.ID)
	req.NoError(err)
	req.Equal(call, fetched)
	req.True(fetched.AnsweredAt.IsZero())
	req.Equal(42*time.Second, fetched.Duration)

	calls, err := repository.ListCalls()
	req.NoError(err)
	req.Len(calls, 1)
}

func Test_Call_Not_Found(t *testing.T) {
	req := require.New(t)
	repository := NewCallRepository(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelError))

	_, err := repository.GetCall("missing")

	req.ErrorIs(err, errors.ErrNotFound)
}
