// Package storage is the badger-backed durability collaborator. The relay
// notifies it synchronously before fan-out; losing the journal never
// blocks delivery. Message history as an API surface stays with the
// external CRUD store, this journal only feeds operational tooling and
// last-seen lookups.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/dgraph-io/badger/v4"
	"github.com/gabriel-vasile/mimetype"
)

var _ contract.Recorder = (*Journal)(nil)

type Journal struct {
	db  *badger.DB
	log *slog.Logger
}

func NewJournal(db *badger.DB, log *slog.Logger) *Journal {
	return &Journal{db: db, log: log}
}

// Record is the persisted shape of one relayed message.
type Record struct {
	ID          string    `json:"id"`
	Room        string    `json:"room,omitempty"`
	Target      string    `json:"target,omitempty"`
	Sender      string    `json:"sender"`
	ContentType string    `json:"content_type"`
	Payload     []byte    `json:"payload"`
	At          time.Time `json:"at"`
}

// RecordRoomMessage journals a room message under
// "room:{room_id}:{timestamp_padded}:{uuid}". The 19-digit zero padding
// keeps keys chronologically sorted lexicographically; the uuid suffix
// disambiguates two messages landing on the same nanosecond.
func (j *Journal) RecordRoomMessage(_ context.Context, e event.RoomMessage) error {
	key := fmt.Sprintf("room:%s:%019d:%s", e.Room, e.At.UnixNano(), e.ID)
	rec := Record{
		ID:          e.ID.String(),
		Room:        string(e.Room),
		Sender:      string(e.Sender),
		ContentType: mimetype.Detect(e.Payload).String(),
		Payload:     e.Payload,
		At:          e.At,
	}
	return j.put(key, rec)
}

// RecordDirectMessage journals a direct message under the target user.
func (j *Journal) RecordDirectMessage(_ context.Context, e event.DirectMessage) error {
	key := fmt.Sprintf("direct:%s:%019d:%s", e.Target, e.At.UnixNano(), e.ID)
	rec := Record{
		ID:          e.ID.String(),
		Target:      string(e.Target),
		Sender:      string(e.Sender),
		ContentType: mimetype.Detect(e.Payload).String(),
		Payload:     e.Payload,
		At:          e.At,
	}
	return j.put(key, rec)
}

// RecordLastSeen persists when a user last went offline.
func (j *Journal) RecordLastSeen(_ context.Context, user domain.UserID, at time.Time) error {
	key := fmt.Sprintf("seen:%s", user)
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

// LastSeen reads back a user's last offline transition. The zero time and
// false mean the user was never seen going offline.
func (j *Journal) LastSeen(user domain.UserID) (time.Time, bool, error) {
	var at time.Time
	found := false
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf("seen:%s", user)))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			parsed, err := time.Parse(time.RFC3339Nano, string(v))
			if err != nil {
				return err
			}
			at, found = parsed, true
			return nil
		})
	})
	return at, found, err
}

// RoomHistory scans a room's journal in chronological order, up to limit
// records (0 means no limit). Used by the inspect tool and tests.
func (j *Journal) RoomHistory(room domain.RoomID, limit int) ([]Record, error) {
	var records []Record
	prefix := []byte(fmt.Sprintf("room:%s:", room))

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(records) == limit {
				j.log.Debug(fmt.Sprintf("Maximum of %d records reached", limit))
				break
			}
			err := it.Item().Value(func(v []byte) error {
				var rec Record
				if err := json.Unmarshal(v, &rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

func (j *Journal) put(key string, rec Record) error {
	bytes, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}
