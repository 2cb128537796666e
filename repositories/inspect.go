package repositories

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Record kinds reported by DescribeRecord.
const (
	KindMessage      = "MESSAGE"
	KindIndex        = "INDEX"
	KindConversation = "CONVERSATION"
	KindContact      = "CONTACT"
	KindCall         = "CALL"
	KindSequence     = "SEQUENCE"
	KindUnknown      = "UNKNOWN"
)

// RecordView is a flat, printable rendering of one stored entry.
type RecordView struct {
	Kind   string
	At     time.Time
	Owner  string
	Detail string
}

// DescribeRecord decodes a raw store entry by its key prefix.
// Unknown prefixes are reported as KindUnknown with the value size.
func DescribeRecord(key string, val []byte) (RecordView, error) {
	switch {
	case strings.HasPrefix(key, "msgid:"):
		return RecordView{Kind: KindIndex, Detail: string(val)}, nil
	case strings.HasPrefix(key, "msg:"):
		var d DiskMessage
		if err := unmarshal(val, &d); err != nil {
			return RecordView{Kind: KindMessage}, err
		}
		return RecordView{
			Kind:   KindMessage,
			At:     fromUnixNano(d.CreatedAt),
			Owner:  d.SenderID,
			Detail: fmt.Sprintf("#%d [%s] %s", d.Seq, d.Type, d.Content),
		}, nil
	case strings.HasPrefix(key, "conv:"):
		var d DiskConversation
		if err := unmarshal(val, &d); err != nil {
			return RecordView{Kind: KindConversation}, err
		}
		detail := strings.Join(d.Participants, ",")
		if d.GroupName != "" {
			detail = d.GroupName + ": " + detail
		}
		return RecordView{
			Kind:   KindConversation,
			At:     fromUnixNano(d.LastActivity),
			Owner:  d.CreatedBy,
			Detail: detail,
		}, nil
	case strings.HasPrefix(key, "contact:"):
		var d DiskContact
		if err := unmarshal(val, &d); err != nil {
			return RecordView{Kind: KindContact}, err
		}
		return RecordView{
			Kind:   KindContact,
			At:     fromUnixNano(d.AddedAt),
			Owner:  d.UserID,
			Detail: fmt.Sprintf("-> %s [%s]", d.ContactID, d.Status),
		}, nil
	case strings.HasPrefix(key, "call:"):
		var d DiskCall
		if err := unmarshal(val, &d); err != nil {
			return RecordView{Kind: KindCall}, err
		}
		return RecordView{
			Kind:   KindCall,
			At:     fromUnixNano(d.StartedAt),
			Owner:  d.CallerID,
			Detail: fmt.Sprintf("-> %s %s [%s] %s", d.ReceiverID, d.Media, d.Phase, time.Duration(d.Duration)),
		}, nil
	case strings.HasPrefix(key, "seq:"):
		if len(val) != 8 {
			return RecordView{Kind: KindSequence}, fmt.Errorf("sequence %q has %d bytes", key, len(val))
		}
		return RecordView{Kind: KindSequence, Detail: fmt.Sprintf("leased up to %d", binary.BigEndian.Uint64(val))}, nil
	default:
		return RecordView{Kind: KindUnknown, Detail: fmt.Sprintf("%d bytes", len(val))}, nil
	}
}

// ScanRecords walks every key under prefix in a read-only transaction.
// Decoding failures are handed to fn and do not stop the scan.
func ScanRecords(db *badger.DB, prefix string, fn func(key string, view RecordView, err error)) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				view, err := DescribeRecord(key, val)
				fn(key, view, err)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
