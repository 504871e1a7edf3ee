package textures

import (
	"sort"
	"time"

	"github.com/bryanwahyu/texture-automaton/internal/domain/ai"
)

// Metadata is a snapshot of the image header taken at analysis time.
type Metadata struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`
	Mode      string `json:"mode"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
}

// UnknownMetadata is returned for files that cannot be decoded.
func UnknownMetadata() Metadata {
	return Metadata{Mode: "unknown", Format: "unknown"}
}

// Record is the persisted analysis of one texture file.
type Record struct {
	Path          string         `json:"path"`
	RelativePath  string         `json:"relative_path"`
	Metadata      Metadata       `json:"metadata"`
	Description   ai.Description `json:"ai_description"`
	ContentSHA256 string         `json:"content_sha256,omitempty"`
	LastAnalyzed  string         `json:"last_analyzed"`
}

// timestampLayouts covers files we wrote ourselves plus naive ISO timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// AnalyzedAt parses LastAnalyzed.
func (r *Record) AnalyzedAt() (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, r.LastAnalyzed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t the way records and the update flag store it.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// Store maps relative path to its latest analysis record.
type Store map[string]*Record

// Keys returns the relative paths in sorted order.
func (s Store) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
