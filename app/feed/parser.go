package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed bytes. The second return value is the RSS channel-level
// <ttl> in minutes; gofeed's universal model drops it, so it is probed from
// the raw document.
func (p *Parser) Run(data []byte) (*gofeed.Feed, string, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse feed: %w", err)
	}

	ttl := ""
	if parsed.FeedType == "rss" {
		ttl = probeTTL(data)
	}

	return parsed, ttl, nil
}

// probeTTL scans for the first channel-level <ttl> element.
func probeTTL(data []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false

	depth := 0
	inTTL := false
	for {
		tok, err := decoder.Token()
		if err != nil {
			return ""
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			// rss > channel > ttl
			if depth == 3 && strings.EqualFold(t.Name.Local, "ttl") {
				inTTL = true
			}
			if depth > 3 {
				// items and such; ttl only lives directly under channel
				if err := decoder.Skip(); err != nil {
					return ""
				}
				depth--
			}
		case xml.EndElement:
			depth--
			inTTL = false
		case xml.CharData:
			if inTTL {
				return strings.TrimSpace(string(t))
			}
		}
	}
}

// StripHTMLSpace collapses runs of whitespace (including non-breaking spaces)
// into single spaces and trims the result.
func StripHTMLSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
