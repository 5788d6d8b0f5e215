// Package feed parses RSS and Atom bodies into a loose entry list. Both
// formats are coerced to the one Entry shape; deciding whether an entry is
// representable belongs to the normalizer, not here.
package feed

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// Entry is a single feed item before normalization. Any field may be empty.
type Entry struct {
	GUID      string
	Link      string
	Title     string
	Author    string
	FeedTitle string
	Published *time.Time
	Updated   *time.Time
}

type Parser struct {
	parser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{parser: gofeed.NewParser()}
}

// Parse decodes a raw feed body in document order. Order is preserved:
// fetchers treat it as freshness order.
func (p *Parser) Parse(body []byte) ([]Entry, error) {
	parsed, err := p.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entry := Entry{
			GUID:      item.GUID,
			Link:      item.Link,
			Title:     item.Title,
			FeedTitle: parsed.Title,
			Published: item.PublishedParsed,
			Updated:   item.UpdatedParsed,
		}
		if item.Author != nil {
			entry.Author = item.Author.Name
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
