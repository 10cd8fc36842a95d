// Package history keeps summaries of completed runs in a small bbolt
// database under the user's home directory.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const bucketRuns = "runs"

// Entry is one completed monitoring run.
type Entry struct {
	ID              string    `json:"id"`
	FinishedAt      time.Time `json:"finished_at"`
	Server          string    `json:"server"`
	Database        string    `json:"database"`
	Samples         int       `json:"samples"`
	Errors          int       `json:"errors"`
	DurationMinutes int       `json:"duration_minutes"`
	IntervalSeconds int       `json:"interval_seconds"`
	OutputPath      string    `json:"output_path"`
}

type Store struct {
	db *bbolt.DB
}

// DefaultPath is $HOME/.sqlpulse/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sqlpulse", "history.db"), nil
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists an entry, assigning an ID when absent. Keys sort by
// finish time so listing newest-first is a reverse cursor walk.
func (s *Store) Save(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}

	return e, s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		key := e.FinishedAt.UTC().Format(time.RFC3339Nano) + "/" + e.ID
		return b.Put([]byte(key), data)
	})
}

// List returns entries newest first.
func (s *Store) List() ([]Entry, error) {
	var items []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			items = append(items, e)
		}
		return nil
	})
	return items, err
}

func (s *Store) Get(id string) (*Entry, error) {
	var found *Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.ID == id {
				found = &e
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return found, nil
}
