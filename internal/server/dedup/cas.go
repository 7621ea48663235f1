// Package dedup is a content-addressable cache of chunk fingerprints,
// recording which chunk payloads the server has already seen from any
// transfer. It stores fingerprints only, never payload bytes.
package dedup

import (
	"encoding/binary"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/zeebo/blake3"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

var bucketChunks = []byte("chunks")

// Fingerprint returns the content-addressable key for a chunk payload.
// BLAKE3 is used instead of the transfer's own CRC32/SHA-256 so a cache
// hit never depends on a per-chunk checksum computed for a different
// purpose.
func Fingerprint(payload []byte) [32]byte {
	return blake3.Sum256(payload)
}

// Cache is a BoltDB-backed store of chunk fingerprints seen so far.
type Cache struct {
	db *bolt.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(filepath.Clean(path), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "open dedup cache", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketChunks)
		return e
	})
	if err != nil {
		db.Close()
		return nil, ftserrors.Wrap(ftserrors.KindInternalError, "initialize dedup cache bucket", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Has reports whether a chunk with this fingerprint has already been
// stored.
func (c *Cache) Has(fingerprint [32]byte) bool {
	var ok bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if b == nil {
			return nil
		}
		ok = b.Get(fingerprint[:]) != nil
		return nil
	})
	return ok
}

// Put records a chunk fingerprint as seen, for later GC.
func (c *Cache) Put(fingerprint [32]byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Unix()))
		return b.Put(fingerprint[:], buf)
	})
}

// GC removes fingerprints last seen more than maxAge ago, returning how
// many were evicted.
func (c *Cache) GC(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		cur := b.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if len(v) < 8 {
				continue
			}
			if int64(binary.BigEndian.Uint64(v)) < cutoff {
				if err := cur.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, ftserrors.Wrap(ftserrors.KindInternalError, "dedup cache gc", err)
	}
	return removed, nil
}
