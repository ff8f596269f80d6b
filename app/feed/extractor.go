package feed

import (
	"bytes"
	"cmp"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Extractor turns a raw feed document into per-entry items in document order.
// gofeed handles well-formed RSS/Atom; documents it rejects go through the
// tag-matching fallback so one broken entry does not hide the others.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Run(data []byte) (*Metadata, []Item) {
	// gofeed.Parser keeps per-parse state, so each run gets its own.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		slog.Warn("Structured feed parse failed, using tag fallback", "error", err)
		return extractFallback(data)
	}

	metadata := &Metadata{
		Title:    strings.TrimSpace(parsed.Title),
		Link:     strings.TrimSpace(parsed.Link),
		Language: strings.TrimSpace(parsed.Language),
	}
	if parsed.Image != nil {
		metadata.ImageURL = strings.TrimSpace(parsed.Image.URL)
	} else if parsed.ITunesExt != nil {
		metadata.ImageURL = strings.TrimSpace(parsed.ITunesExt.Image)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}
		items = append(items, e.convertItem(entry, parsed.FeedType == "atom"))
	}

	return metadata, items
}

func (e *Extractor) convertItem(entry *gofeed.Item, atom bool) Item {
	item := Item{
		GUID:          strings.TrimSpace(entry.GUID),
		Title:         strings.TrimSpace(entry.Title),
		Link:          strings.TrimSpace(entry.Link),
		Description:   strings.TrimSpace(entry.Description),
		PublishedDate: strings.TrimSpace(cmp.Or(entry.Published, entry.Updated)),
	}

	// Atom entries carry the body in <content> when <summary> is absent.
	if atom && item.Description == "" {
		item.Description = strings.TrimSpace(entry.Content)
	}

	// RSS 2.0 allows one enclosure per item; take the first.
	if len(entry.Enclosures) > 0 && entry.Enclosures[0] != nil {
		item.EnclosureURL = strings.TrimSpace(entry.Enclosures[0].URL)
	}

	if entry.Image != nil {
		item.ImageURL = strings.TrimSpace(entry.Image.URL)
	}

	if entry.ITunesExt != nil {
		item.ImageURL = cmp.Or(item.ImageURL, strings.TrimSpace(entry.ITunesExt.Image))
		item.Duration = strings.TrimSpace(entry.ITunesExt.Duration)
		item.Episode = strings.TrimSpace(entry.ITunesExt.Episode)
	}

	return item
}

var (
	itemPattern      = regexp.MustCompile(`(?is)<item(?:\s[^>]*)?>(.*?)</item>`)
	entryPattern     = regexp.MustCompile(`(?is)<entry(?:\s[^>]*)?>(.*?)</entry>`)
	enclosurePattern = regexp.MustCompile(`(?is)<enclosure\b[^>]*?\burl\s*=\s*["']([^"']*)["']`)

	fieldPatterns = buildFieldPatterns(
		"title", "description", "summary", "content",
		"pubDate", "published", "updated", "link", "guid", "id",
	)
)

type fieldPattern struct {
	cdata *regexp.Regexp
	bare  *regexp.Regexp
}

func buildFieldPatterns(tags ...string) map[string]fieldPattern {
	patterns := make(map[string]fieldPattern, len(tags))
	for _, tag := range tags {
		quoted := regexp.QuoteMeta(tag)
		patterns[tag] = fieldPattern{
			cdata: regexp.MustCompile(`(?is)<` + quoted + `(?:\s[^>]*)?>\s*<!\[CDATA\[(.*?)\]\]>\s*</` + quoted + `>`),
			bare:  regexp.MustCompile(`(?is)<` + quoted + `(?:\s[^>]*)?>(.*?)</` + quoted + `>`),
		}
	}
	return patterns
}

// extractField reads the first of tags present in fragment. A CDATA-wrapped
// value wins over bare text; bare text has its XML entities decoded.
func extractField(fragment string, tags ...string) string {
	for _, tag := range tags {
		p, ok := fieldPatterns[tag]
		if !ok {
			continue
		}
		if m := p.cdata.FindStringSubmatch(fragment); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
		if m := p.bare.FindStringSubmatch(fragment); m != nil {
			if v := strings.TrimSpace(html.UnescapeString(m[1])); v != "" {
				return v
			}
		}
	}
	return ""
}

func extractAttribute(pattern *regexp.Regexp, fragment string) string {
	if m := pattern.FindStringSubmatch(fragment); m != nil {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}

func extractFallback(data []byte) (*Metadata, []Item) {
	doc := string(data)

	metadata := &Metadata{}
	fragments := itemPattern.FindAllStringSubmatch(doc, -1)
	if len(fragments) == 0 {
		fragments = entryPattern.FindAllStringSubmatch(doc, -1)
	}

	// Channel title is whatever <title> precedes the first entry.
	head := doc
	if loc := itemPattern.FindStringIndex(doc); loc != nil {
		head = doc[:loc[0]]
	} else if loc := entryPattern.FindStringIndex(doc); loc != nil {
		head = doc[:loc[0]]
	}
	metadata.Title = extractField(head, "title")
	metadata.Link = extractField(head, "link")

	items := make([]Item, 0, len(fragments))
	for _, m := range fragments {
		fragment := m[1]
		items = append(items, Item{
			GUID:          extractField(fragment, "guid", "id"),
			Title:         extractField(fragment, "title"),
			Link:          extractField(fragment, "link"),
			Description:   extractField(fragment, "description", "summary", "content"),
			PublishedDate: extractField(fragment, "pubDate", "published", "updated"),
			EnclosureURL:  extractAttribute(enclosurePattern, fragment),
		})
	}

	return metadata, items
}
