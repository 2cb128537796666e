//go:generate go run go.uber.org/mock/mockgen -source=call.go -destination=../mocks/mock_call_repository.go -package=mocks
package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type ICallRepository interface {
	SaveCall(call domain.CallSession) error
	GetCall(id string) (domain.CallSession, error)
	ListCalls() ([]domain.CallSession, error)
}

// CallRepository keeps the call history under "call:{id}". Every transition
// overwrites the record.
type CallRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewCallRepository(db *badger.DB, log *slog.Logger) CallRepository {
	return CallRepository{db: db, log: log}
}

func callKey(id string) string {
	return "call:" + id
}

func (c CallRepository) SaveCall(call domain.CallSession) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, callKey(call.ID), toDiskCall(call))
	})
	return wrapStoreErr("save call", err)
}

func (c CallRepository) GetCall(id string) (domain.CallSession, error) {
	var disk DiskCall
	err := c.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, callKey(id), &disk)
	})
	if errors.Is(err, errors.ErrNotFound) {
		return domain.CallSession{}, errNotFound("call", id)
	}
	if err != nil {
		return domain.CallSession{}, wrapStoreErr("get call", err)
	}
	return fromDiskCall(disk), nil
}

func (c CallRepository) ListCalls() ([]domain.CallSession, error) {
	var calls []domain.CallSession
	prefix := []byte(callKey(""))
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk DiskCall
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			calls = append(calls, fromDiskCall(disk))
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr("list calls", err)
	}
	return calls, nil
}
