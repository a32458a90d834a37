// Package cache persists transcripts and downloaded artifacts in badger so
// a finished session can be reviewed after its download window closes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"go.aimuz.me/meetstream/transcript"
)

// DefaultTTL is how long archived sessions are kept.
const DefaultTTL = 30 * 24 * time.Hour

// Key prefixes.
const (
	prefixTranscript = "transcript/"
	prefixArtifact   = "artifact/"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("cache: closed")

// Entry is one archived session.
type Entry struct {
	IntegrationID string             `json:"integrationId"`
	SessionID     string             `json:"sessionId"`
	Entries       []transcript.Entry `json:"entries,omitempty"`
	Artifact      []byte             `json:"artifact,omitempty"`
	ContentType   string             `json:"contentType,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// Cache is a badger-backed key/value store.
type Cache struct {
	db *badger.DB
}

// New opens (or creates) a cache at path.
func New(path string) (*Cache, error) {
	return open(badger.DefaultOptions(path))
}

// NewInMemory opens a cache that lives only in memory.
func NewInMemory() (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Cache, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GenerateKey hashes parts into a fixed-length key.
func GenerateKey(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

// SessionKey identifies a session across integrations.
func SessionKey(integrationID, sessionID string) string {
	return GenerateKey(integrationID, sessionID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcripts
// ─────────────────────────────────────────────────────────────────────────────

// PutTranscript stores the transcript snapshot of a session.
func (c *Cache) PutTranscript(e *Entry, ttl time.Duration) error {
	return c.set(prefixTranscript+SessionKey(e.IntegrationID, e.SessionID), e, ttl)
}

// Transcript returns the archived transcript of a session.
func (c *Cache) Transcript(integrationID, sessionID string) (*Entry, bool) {
	return c.get(prefixTranscript + SessionKey(integrationID, sessionID))
}

// Transcripts lists every archived transcript.
func (c *Cache) Transcripts() ([]*Entry, error) {
	return c.scan(prefixTranscript)
}

// ─────────────────────────────────────────────────────────────────────────────
// Artifacts
// ─────────────────────────────────────────────────────────────────────────────

// PutArtifact stores a downloaded final transcript.
func (c *Cache) PutArtifact(e *Entry, ttl time.Duration) error {
	return c.set(prefixArtifact+SessionKey(e.IntegrationID, e.SessionID), e, ttl)
}

// Artifact returns a stored final transcript.
func (c *Cache) Artifact(integrationID, sessionID string) (*Entry, bool) {
	return c.get(prefixArtifact + SessionKey(integrationID, sessionID))
}

// Delete removes both the transcript and the artifact of a session.
func (c *Cache) Delete(integrationID, sessionID string) error {
	key := SessionKey(integrationID, sessionID)
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefixTranscript + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixArtifact + key))
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (c *Cache) set(key string, e *Entry, ttl time.Duration) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		be := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			be = be.WithTTL(ttl)
		}
		return txn.SetEntry(be)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	return nil
}

func (c *Cache) get(key string) (*Entry, bool) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		return nil, false
	}
	return &e, true
}

func (c *Cache) scan(prefix string) ([]*Entry, error) {
	var out []*Entry
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan cache: %w", err)
	}
	return out, nil
}
