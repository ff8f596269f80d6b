package feed

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	SourceRSS = "rss"

	MinContentLength = 10
	MinSlugLength    = 3
	MaxSlugLength    = 100
	ExcerptLength    = 200
	ExcerptMarker    = "..."
)

// Skip reasons. Items rejected with one of these are counted as skipped.
var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrContentTooShort      = errors.New("content too short")
	ErrInvalidSlug          = errors.New("invalid slug")
	ErrInvalidDate          = errors.New("invalid date")
)

var (
	hyphenRuns = regexp.MustCompile(`-+`)
	spaceRuns  = regexp.MustCompile(` +`)
	tagPattern = regexp.MustCompile(`<[^>]*>`)
	zoneSuffix = regexp.MustCompile(`\s([A-Za-z]{1,3})$`)
)

var dateLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
}

// RFC 2822 zone names. time.Parse only knows the offset of a zone
// abbreviation when it matches the parsing location, so these are
// rewritten to numeric offsets first.
var namedZones = map[string]string{
	"UT":  "+0000",
	"UTC": "+0000",
	"GMT": "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

type Normalizer struct {
	tags []string
}

func NewNormalizer(tags []string) *Normalizer {
	return &Normalizer{tags: append([]string(nil), tags...)}
}

// Run validates item and derives its record. It has no side effects.
func (n *Normalizer) Run(item Item) (*Record, error) {
	var missing []string
	if item.Title == "" {
		missing = append(missing, "title")
	}
	if item.Description == "" {
		missing = append(missing, "description")
	}
	if item.PublishedDate == "" {
		missing = append(missing, "published date")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredField, strings.Join(missing, ", "))
	}

	content := StripMarkup(item.Description)
	if runeCount := len([]rune(content)); runeCount < MinContentLength {
		return nil, fmt.Errorf("%w: %d characters", ErrContentTooShort, runeCount)
	}

	slug := Slugify(item.Title)
	if len(slug) < MinSlugLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}

	publishedAt, err := ParseDate(item.PublishedDate)
	if err != nil {
		return nil, err
	}

	record := &Record{
		Title:       item.Title,
		Slug:        slug,
		Content:     content,
		Excerpt:     Excerpt(content),
		PublishedAt: publishedAt,
		Source:      SourceRSS,
		Tags:        append([]string(nil), n.tags...),
		Link:        item.Link,
		GUID:        item.GUID,
		ImageURL:    item.ImageURL,
		Duration:    item.Duration,
		Episode:     item.Episode,
	}

	if item.EnclosureURL != "" {
		audioURL := item.EnclosureURL
		record.AudioURL = &audioURL
	}

	return record, nil
}

// Slugify lowercases title, folds accents to ASCII, keeps only [a-z0-9-],
// turns spaces into single hyphens and truncates to MaxSlugLength.
func Slugify(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))

	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(folder, lowered); err == nil {
		lowered = folded
	}

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	slug := spaceRuns.ReplaceAllString(b.String(), "-")
	slug = hyphenRuns.ReplaceAllString(slug, "-")

	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}

	return slug
}

// StripMarkup returns the text content of an HTML fragment, trimmed.
func StripMarkup(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(tagPattern.ReplaceAllString(fragment, ""))
	}

	doc.Find("script, style").Remove()

	return strings.TrimSpace(doc.Text())
}

// Excerpt returns the first ExcerptLength characters of content, marking
// truncation with ExcerptMarker.
func Excerpt(content string) string {
	r := []rune(content)
	if len(r) <= ExcerptLength {
		return content
	}
	return string(r[:ExcerptLength]) + ExcerptMarker
}

// ParseDate reads a feed date into UTC. RFC-2822 forms are tried first,
// then anything dateparse recognises.
func ParseDate(value string) (time.Time, error) {
	value = numericZone(strings.TrimSpace(value))

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}

	return t.UTC(), nil
}

// numericZone replaces a trailing RFC 2822 zone name with its offset.
func numericZone(value string) string {
	m := zoneSuffix.FindStringSubmatchIndex(value)
	if m == nil {
		return value
	}
	if offset, ok := namedZones[strings.ToUpper(value[m[2]:m[3]])]; ok {
		return value[:m[2]] + offset
	}
	return value
}
