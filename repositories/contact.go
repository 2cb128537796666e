//go:generate go run go.uber.org/mock/mockgen -source=contact.go -destination=../mocks/mock_contact_repository.go -package=mocks
package repositories

import (
	"chat-signal/domain"
	"chat-signal/errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IContactRepository interface {
	CreatePendingIfAbsent(userID, contactID string) (bool, error)
	GetContact(userID, contactID string) (domain.Contact, error)
	ListContacts(userID string) ([]domain.Contact, error)
	Accept(requesterID, responderID string) (bool, error)
	Decline(requesterID, responderID string) (bool, error)
}

// ContactRepository keeps one record per ordered pair under
// "contact:{user_id}:{contact_id}". Uniqueness relies on badger's optimistic
// transactions: two concurrent creators conflict and the loser re-reads.
type ContactRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewContactRepository(db *badger.DB, log *slog.Logger) ContactRepository {
	return ContactRepository{db: db, log: log}
}

func contactKey(userID, contactID string) string {
	return "contact:" + userID + ":" + contactID
}

// CreatePendingIfAbsent inserts a pending record for (userID, contactID).
// It reports false when a record already exists, whatever its status.
func (c ContactRepository) CreatePendingIfAbsent(userID, contactID string) (bool, error) {
	created := false
	err := updateWithRetry(c.db, func(txn *badger.Txn) error {
		created = false
		var existing DiskContact
		err := getRecord(txn, contactKey(userID, contactID), &existing)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, errors.ErrNotFound):
			return err
		}
		created = true
		return setRecord(txn, contactKey(userID, contactID), toDiskContact(domain.Contact{
			UserID:    userID,
			ContactID: contactID,
			Status:    domain.ContactPending,
			AddedAt:   time.Now().UTC(),
		}))
	})
	if err != nil {
		return false, wrapStoreErr("create contact", err)
	}
	return created, nil
}

func (c ContactRepository) GetContact(userID, contactID string) (domain.Contact, error) {
	var disk DiskContact
	err := c.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, contactKey(userID, contactID), &disk)
	})
	if errors.Is(err, errors.ErrNotFound) {
		return domain.Contact{}, errNotFound("contact", userID+"->"+contactID)
	}
	if err != nil {
		return domain.Contact{}, wrapStoreErr("get contact", err)
	}
	return fromDiskContact(disk), nil
}

// ListContacts returns every record owned by userID, ordered by contact id.
func (c ContactRepository) ListContacts(userID string) ([]domain.Contact, error) {
	var contacts []domain.Contact
	prefix := []byte(contactKey(userID, ""))
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk DiskContact
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			contacts = append(contacts, fromDiskContact(disk))
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr("list contacts", err)
	}
	return contacts, nil
}

// Accept flips the pending request of requesterID to accepted and creates or
// updates the reciprocal record, in one transaction. It reports false when no
// pending request exists.
func (c ContactRepository) Accept(requesterID, responderID string) (bool, error) {
	accepted := false
	err := updateWithRetry(c.db, func(txn *badger.Txn) error {
		accepted = false
		var request DiskContact
		err := getRecord(txn, contactKey(requesterID, responderID), &request)
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if domain.ContactStatus(request.Status) != domain.ContactPending {
			return nil
		}
		now := time.Now().UTC()
		request.Status = string(domain.ContactAccepted)
		if err := setRecord(txn, contactKey(requesterID, responderID), request); err != nil {
			return err
		}

		reciprocal := DiskContact{
			UserID:    responderID,
			ContactID: requesterID,
			AddedAt:   now.UnixNano(),
		}
		err = getRecord(txn, contactKey(responderID, requesterID), &reciprocal)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return err
		}
		reciprocal.Status = string(domain.ContactAccepted)
		accepted = true
		return setRecord(txn, contactKey(responderID, requesterID), reciprocal)
	})
	if err != nil {
		return false, wrapStoreErr("accept contact", err)
	}
	return accepted, nil
}

// Decline removes the pending request of requesterID. It reports false when
// no pending request exists.
func (c ContactRepository) Decline(requesterID, responderID string) (bool, error) {
	declined := false
	err := updateWithRetry(c.db, func(txn *badger.Txn) error {
		declined = false
		var request DiskContact
		err := getRecord(txn, contactKey(requesterID, responderID), &request)
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if domain.ContactStatus(request.Status) != domain.ContactPending {
			return nil
		}
		declined = true
		return txn.Delete([]byte(contactKey(requesterID, responderID)))
	})
	if err != nil {
		return false, wrapStoreErr("decline contact", err)
	}
	return declined, nil
}
