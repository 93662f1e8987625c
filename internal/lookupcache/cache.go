// Package lookupcache persists metadata lookup results keyed by disc ID so
// repeated inspections of the same master do not hit the network.
package lookupcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/binaryphile/ddp-inspect/internal/logging"
	"github.com/binaryphile/ddp-inspect/internal/musicbrainz"
)

// DefaultNegativeTTL bounds how long a no-match result is trusted.
const DefaultNegativeTTL = 7 * 24 * time.Hour

// Entry is one cached lookup.
type Entry struct {
	DiscID   string             `json:"disc_id"`
	Result   musicbrainz.Result `json:"result"`
	CachedAt time.Time          `json:"cached_at"`
}

// Negative reports whether the entry records a lookup that found nothing.
func (e Entry) Negative() bool {
	return e.Result.Outcome == musicbrainz.OutcomeNoMatch
}

// Covers reports whether the entry can answer a lookup in the given mode.
// A match found by stopping at the first method says nothing about the
// methods that never ran, so it does not cover an exhaustive lookup.
func (e Entry) Covers(exhaustive bool) bool {
	if !exhaustive || e.Result.Exhaustive {
		return true
	}
	return e.Result.Outcome != musicbrainz.OutcomeMatched
}

// Cache provides thread-safe access to the lookup cache file.
type Cache struct {
	fs          afero.Fs
	path        string
	logger      *slog.Logger
	negativeTTL time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithNegativeTTL sets how long no-match entries stay valid. Zero keeps
// them forever.
func WithNegativeTTL(d time.Duration) Option {
	return func(c *Cache) {
		c.negativeTTL = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New opens the cache at path on fsys. An empty path yields a cache whose
// operations are no-ops. The file is created on first Store.
func New(fsys afero.Fs, path string, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		fs:          fsys,
		path:        path,
		logger:      logging.NewComponentLogger(logger, "lookupcache"),
		negativeTTL: DefaultNegativeTTL,
		now:         time.Now,
		entries:     make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}

	if path == "" {
		return c
	}
	if err := c.load(); err != nil {
		c.logger.Warn("failed to load lookup cache; starting empty",
			logging.String(logging.FieldFile, path),
			logging.Error(err))
	}
	return c
}

// Lookup returns the cached entry for discID. Expired negative entries are
// reported as absent.
func (c *Cache) Lookup(discID string) (Entry, bool) {
	discID = strings.TrimSpace(discID)
	if discID == "" || c.path == "" {
		return Entry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[discID]
	if !ok {
		return Entry{}, false
	}
	if entry.Negative() && c.negativeTTL > 0 && c.now().Sub(entry.CachedAt) > c.negativeTTL {
		return Entry{}, false
	}
	return entry, true
}

// Store records a lookup result. Only matched and no-match outcomes are
// cached; an unavailable result says nothing about the disc.
func (c *Cache) Store(result musicbrainz.Result) error {
	discID := strings.TrimSpace(result.DiscID)
	if discID == "" {
		return errors.New("disc ID cannot be empty")
	}
	if result.Outcome == musicbrainz.OutcomeUnavailable {
		return nil
	}
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[discID] = Entry{DiscID: discID, Result: result, CachedAt: c.now()}
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	c.logger.Debug("cached lookup result",
		logging.String(logging.FieldDiscID, discID),
		logging.String("outcome", string(result.Outcome)),
		logging.Int("matches", len(result.Matches)))
	return nil
}

// Remove deletes the entry for discID.
func (c *Cache) Remove(discID string) error {
	discID = strings.TrimSpace(discID)
	if discID == "" {
		return errors.New("disc ID cannot be empty")
	}
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[discID]; !ok {
		return fmt.Errorf("disc ID %q not found in cache", discID)
	}
	delete(c.entries, discID)

	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// List returns all entries, newest first.
func (c *Cache) List() []Entry {
	if c.path == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sorted()
}

// Clear removes every entry and persists the empty cache.
func (c *Cache) Clear() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.logger.Debug("cleared lookup cache")
	return nil
}

// Count returns the number of entries, expired or not.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) sorted() []Entry {
	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CachedAt.Equal(entries[j].CachedAt) {
			return entries[i].CachedAt.After(entries[j].CachedAt)
		}
		return entries[i].DiscID < entries[j].DiscID
	})
	return entries
}

func (c *Cache) load() error {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	for _, e := range entries {
		if strings.TrimSpace(e.DiscID) != "" {
			c.entries[e.DiscID] = e
		}
	}
	c.logger.Debug("loaded lookup cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String(logging.FieldFile, c.path))
	return nil
}

// save writes the cache atomically through a temp file and rename.
func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := afero.WriteFile(c.fs, tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := c.fs.Rename(tmpPath, c.path); err != nil {
		_ = c.fs.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
