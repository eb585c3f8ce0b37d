// Package alerts keeps a journal of monitor alerts in bbolt so the parent
// monitor can load the history of the current session after reconnecting.
package alerts

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/zhouzirui/chat-monitor/backend/internal/model/monitor"
)

var bucketAlerts = []byte("alerts")

// Store persists alerts in insertion order.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a bbolt database at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAlerts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create alerts bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores an alert after the previously stored ones.
func (s *Store) Append(alert monitor.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAlerts)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), data)
	})
}

// List returns stored alerts oldest first. A positive limit keeps only the
// most recent limit alerts.
func (s *Store) List(limit int) ([]monitor.Alert, error) {
	var out []monitor.Alert

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAlerts).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) == limit {
				break
			}
			var alert monitor.Alert
			if err := json.Unmarshal(v, &alert); err != nil {
				return fmt.Errorf("unmarshal alert %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, alert)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Clear removes every stored alert.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketAlerts); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketAlerts)
		return err
	})
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
