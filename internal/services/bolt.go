package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the draft journal using a BoltDB backend. Every finished generation is stored as one
// models.Draft so the user can find and copy earlier replies. Stored drafts are never sent back to the model.
type BoltDB struct {
	db *bolt.DB
}

// ErrDraftNotFound is returned by Draft when no draft has the requested ID.
var ErrDraftNotFound = errors.New("draft not found")

var draftsBucket = []byte("drafts")

// openTimeout bounds the wait for the file lock held by another draftwriter process.
const openTimeout = time.Second

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database with the
// drafts bucket and returns an error if the database cannot be opened or initialized. The database file is
// created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(draftsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create drafts bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// AddDraft stores a finished draft. It generates the stored ID by prefixing the draft's ID with a zero-padded
// sequence number, so keys sort in insertion order, and returns that ID.
func (b BoltDB) AddDraft(_ context.Context, draft models.Draft) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(draftsBucket)

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%010d-%s", seq, draft.ID)
		draft.ID = newID

		v, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("failed to marshal draft: %w", err)
		}

		return bk.Put([]byte(newID), v)
	})
	if err != nil {
		return "", err
	}

	return newID, nil
}

// Drafts returns up to limit stored drafts, newest first. A limit of zero or less returns all drafts.
func (b BoltDB) Drafts(_ context.Context, limit int) ([]models.Draft, error) {
	var drafts []models.Draft
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(draftsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(drafts) >= limit {
				break
			}
			var draft models.Draft
			if err := json.Unmarshal(v, &draft); err != nil {
				return fmt.Errorf("failed to unmarshal draft %s: %w", k, err)
			}
			drafts = append(drafts, draft)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return drafts, nil
}

// Draft returns the draft stored under id, or ErrDraftNotFound.
func (b BoltDB) Draft(_ context.Context, id string) (models.Draft, error) {
	var draft models.Draft
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(draftsBucket).Get([]byte(id))
		if v == nil {
			return ErrDraftNotFound
		}
		if err := json.Unmarshal(v, &draft); err != nil {
			return fmt.Errorf("failed to unmarshal draft: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Draft{}, err
	}

	return draft, nil
}

// DeleteDraft removes the draft stored under id. Deleting a missing draft is not an error.
func (b BoltDB) DeleteDraft(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(draftsBucket).Delete([]byte(id))
	})
}
