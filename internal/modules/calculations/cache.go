// Package calculations caches computed analysis results between runs.
package calculations

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache is a key/value store with expiration backed by the cache database.
// Values are encoded with msgpack.
type Cache struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewCache creates a new cache instance.
func NewCache(db *sql.DB, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		log: log.With().Str("component", "calculation_cache").Logger(),
		now: time.Now,
	}
}

// Get decodes the value stored under key into dest. It reports false when the key is
// missing or expired.
func (c *Cache) Get(key string, dest interface{}) (bool, error) {
	var value []byte
	var expiresAt int64
	err := c.db.QueryRow("SELECT value, expires_at FROM cache WHERE key = ?", key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if c.now().Unix() >= expiresAt {
		return false, nil
	}
	if err := msgpack.Unmarshal(value, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key for ttl.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache key %s: %w", key, err)
	}
	expiresAt := c.now().Add(ttl).Unix()

	_, err = c.db.Exec(`
		INSERT INTO cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, data, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	c.log.Debug().Str("key", key).Int("bytes", len(data)).Dur("ttl", ttl).Msg("Cached result")
	return nil
}

// Delete removes a cache entry.
func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

// DeleteByPrefix removes all cache entries matching a prefix.
func (c *Cache) DeleteByPrefix(prefix string) error {
	_, err := c.db.Exec("DELETE FROM cache WHERE key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	return err
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (c *Cache) PurgeExpired() (int64, error) {
	res, err := c.db.Exec("DELETE FROM cache WHERE expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

// Fingerprint returns a short stable hash of v's msgpack encoding, for use in cache keys.
// Map keys are sorted so that equal maps hash equally.
func Fingerprint(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode fingerprint input: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:8]), nil
}
