//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-signal/domain"
	"chat-signal/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ConnectionHandle is one live bidirectional channel to a client.
// Send must never block: a handle that cannot accept an event returns an error.
type ConnectionHandle interface {
	ID() uuid.UUID
	Send(e event.Event) error
	Close()
}

// IRegistry is the single source of truth for "who is reachable now".
type IRegistry interface {
	Register(userID string, handle ConnectionHandle)
	Unregister(handle ConnectionHandle) (string, bool)
	Lookup(userID string) (ConnectionHandle, bool)
	Notify(userID string, e event.Event) bool
	Others(userID string) []ConnectionHandle
	Online() []string
}

type IPresenceBroadcaster interface {
	Broadcast(userID string, status domain.PresenceStatus)
}
