package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title    string
	Link     string
	ImageURL string
	Language string
}

// Item is one raw entry as extracted from the document. Empty fields were
// absent or unmatched in the source; nothing here is validated.
type Item struct {
	GUID          string
	Title         string
	Link          string
	Description   string
	PublishedDate string // raw text, parsed by the normalizer
	EnclosureURL  string
	ImageURL      string
	Duration      string
	Episode       string
}

// Record is a normalized episode ready for the content store.
type Record struct {
	Title       string
	Slug        string
	Content     string
	Excerpt     string
	PublishedAt time.Time
	AudioURL    *string
	Source      string
	Tags        []string

	Link     string
	GUID     string
	ImageURL string
	Duration string
	Episode  string
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled      bool     `yaml:"enabled"`
	SyncInterval int      `yaml:"sync_interval"` // seconds
	Timeout      int      `yaml:"timeout"`       // seconds
	ItemDelayMs  int      `yaml:"item_delay_ms"` // pause after each upsert
	Tags         []string `yaml:"tags"`
}

// ConfigFilter drops items whose field matches an exclude pattern or, when
// includes are set, matches none of them. Matching is case-insensitive
// substring search.
type ConfigFilter struct {
	Field    string   `yaml:"field"` // title, description, link or guid
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
