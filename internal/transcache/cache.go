package transcache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tubescan/internal/fileutil"
	"tubescan/internal/logging"
	"tubescan/internal/services"
)

const (
	filePrefix = "transcription_"
	fileSuffix = ".json"
)

// Entry is one cached transcript.
type Entry struct {
	VideoRef   string  `json:"url"`
	Title      string  `json:"title"`
	Transcript string  `json:"transcript"`
	Timestamp  float64 `json:"timestamp"`
}

// CachedAt converts the stored unix-seconds timestamp.
func (e Entry) CachedAt() time.Time {
	if e.Timestamp <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(e.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Cache provides access to the transcription cache directory. It is safe for
// concurrent use by multiple goroutines and processes: every write replaces a
// single entry file atomically.
type Cache struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a cache rooted at dir. The directory is created lazily on the
// first Store call.
func New(dir string, logger *slog.Logger) *Cache {
	return &Cache{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "transcache"),
		now:    time.Now,
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Fingerprint returns the hex md5 of the reference string.
func Fingerprint(videoRef string) string {
	sum := md5.Sum([]byte(videoRef)) //nolint:gosec // file naming, not security
	return hex.EncodeToString(sum[:])
}

// Path returns the entry file path for videoRef.
func (c *Cache) Path(videoRef string) string {
	return filepath.Join(c.dir, filePrefix+Fingerprint(videoRef)+fileSuffix)
}

// Lookup returns the cached entry for videoRef. Missing, unreadable, or
// colliding entries are reported as a miss; read failures are logged.
func (c *Cache) Lookup(videoRef string) (Entry, bool) {
	if strings.TrimSpace(videoRef) == "" || c.dir == "" {
		return Entry{}, false
	}
	entry, err := c.read(c.Path(videoRef))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(c.logger, "transcription cache read failed", "cache_read_failed",
				logging.String(logging.FieldVideoRef, videoRef),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the entry with `tubescan cache remove`"),
				logging.String(logging.FieldImpact, "video will be transcribed again"))
		}
		return Entry{}, false
	}
	if entry.VideoRef != videoRef {
		c.logger.Debug("cache fingerprint collision",
			logging.String(logging.FieldVideoRef, videoRef),
			logging.String("stored_ref", entry.VideoRef))
		return Entry{}, false
	}
	return entry, true
}

// Store writes or overwrites the entry for videoRef.
func (c *Cache) Store(videoRef, title, transcript string) error {
	if strings.TrimSpace(videoRef) == "" {
		return services.Wrap(services.ErrValidation, "transcache", "store", "video reference cannot be empty", nil)
	}
	if c.dir == "" {
		return nil
	}
	entry := Entry{
		VideoRef:   videoRef,
		Title:      title,
		Transcript: transcript,
		Timestamp:  float64(c.now().UnixNano()) / 1e9,
	}
	if err := fileutil.WriteJSONAtomic(c.Path(videoRef), entry); err != nil {
		return services.Wrap(services.ErrCacheIO, "transcache", "store", "persist entry", err)
	}
	c.logger.Debug("cached transcript",
		logging.String(logging.FieldVideoRef, videoRef),
		logging.String("title", title),
		logging.Int("transcript_chars", len(transcript)))
	return nil
}

// Remove deletes the entry for videoRef.
func (c *Cache) Remove(videoRef string) error {
	if strings.TrimSpace(videoRef) == "" {
		return services.Wrap(services.ErrValidation, "transcache", "remove", "video reference cannot be empty", nil)
	}
	if err := os.Remove(c.Path(videoRef)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("video %q not found in cache", videoRef)
		}
		return services.Wrap(services.ErrCacheIO, "transcache", "remove", "delete entry", err)
	}
	c.logger.Debug("removed cached transcript", logging.String(logging.FieldVideoRef, videoRef))
	return nil
}

// List returns all readable entries sorted by timestamp descending (newest
// first). Unreadable files are skipped and logged.
func (c *Cache) List() ([]Entry, error) {
	paths, err := c.entryFiles()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		entry, err := c.read(path)
		if err != nil {
			c.logger.Debug("skipping unreadable cache entry", logging.String("path", path), logging.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	return entries, nil
}

// Clear removes every entry file and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	paths, err := c.entryFiles()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, services.Wrap(services.ErrCacheIO, "transcache", "clear", "delete entry", err)
		}
		removed++
	}
	c.logger.Debug("cleared transcription cache", logging.Int("removed", removed))
	return removed, nil
}

func (c *Cache) entryFiles() ([]string, error) {
	if c.dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(c.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, services.Wrap(services.ErrCacheIO, "transcache", "list", "scan directory", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (c *Cache) read(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, err
		}
		return Entry{}, services.Wrap(services.ErrCacheIO, "transcache", "read", path, err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, services.Wrap(services.ErrCacheIO, "transcache", "parse", path, err)
	}
	return entry, nil
}
