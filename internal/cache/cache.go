// Package cache stores per-file analysis reports between runs. An entry is
// valid while the source file's content hash matches and the TTL has not
// elapsed; a config change is folded into the key so stale settings never
// resurface old findings.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/varflow/varflow/pkg/models"
)

// Cache is a directory-backed report cache.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry is one serialized cache record.
type Entry struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

// New creates a cache rooted at dir. A disabled cache is a no-op.
func New(dir string, ttlHours int, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
	}, nil
}

// HashFile computes the BLAKE3 hash of a file's contents.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes returns the hex BLAKE3 hash of data.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// GetReport retrieves the cached unit report for a key when the stored
// content hash matches and the entry has not expired.
func (c *Cache) GetReport(key, hash string) (models.UnitReport, bool) {
	var report models.UnitReport
	if !c.enabled {
		return report, false
	}

	data, err := os.ReadFile(c.keyPath(key))
	if err != nil {
		return report, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return report, false
	}
	if entry.Hash != hash {
		return report, false
	}
	if time.Since(entry.Timestamp) > c.ttl {
		os.Remove(c.keyPath(key))
		return report, false
	}

	if err := json.Unmarshal(entry.Data, &report); err != nil {
		return report, false
	}
	return report, true
}

// PutReport stores a unit report under key, validated by hash.
func (c *Cache) PutReport(key, hash string, report models.UnitReport) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	entry := Entry{Hash: hash, Timestamp: time.Now(), Data: data}
	entryData, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(key), entryData, 0600)
}

// Invalidate removes one entry.
func (c *Cache) Invalidate(key string) error {
	if !c.enabled {
		return nil
	}
	return os.Remove(c.keyPath(key))
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

func (c *Cache) keyPath(key string) string {
	hash := blake3.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}
