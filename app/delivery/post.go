package delivery

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/rss-monitor/app/database"
	"github.com/lysyi3m/rss-monitor/app/feed"
)

// Post is a rendered entry ready for delivery.
type Post struct {
	Title     string
	FeedTitle string
	FeedLink  string
	Link      string
	Author    string
	HTML      string // body without the "via" footer
}

// render appends the source footer, using displayTitle in place of the feed
// title when a subscription overrides it.
func (p *Post) render(displayTitle string) string {
	if displayTitle == "" {
		displayTitle = p.FeedTitle
	}
	if displayTitle == "" {
		return p.HTML
	}
	footer := fmt.Sprintf("via <a href=%q>%s</a>", p.FeedLink, html.EscapeString(displayTitle))
	if p.HTML == "" {
		return footer
	}
	return p.HTML + "\n\n" + footer
}

// Renderer turns feed entries into posts. When extractContent is enabled,
// entries with no usable body get their content extracted from the linked
// page via readability.
type Renderer struct {
	httpClient     *http.Client
	userAgent      string
	extractContent bool
}

func NewRenderer(httpClient *http.Client, userAgent string, extractContent bool) *Renderer {
	return &Renderer{
		httpClient:     httpClient,
		userAgent:      userAgent,
		extractContent: extractContent,
	}
}

func (r *Renderer) FromEntry(ctx context.Context, entry *gofeed.Item, feedTitle, feedLink string) (*Post, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry is nil")
	}

	content := strings.TrimSpace(entry.Content)
	if content == "" {
		content = strings.TrimSpace(entry.Description)
	}
	if content == "" && r.extractContent && entry.Link != "" {
		extracted, err := r.extractFromPage(ctx, entry.Link)
		if err != nil {
			slog.Debug("Content extraction failed", "link", entry.Link, "error", err)
		} else {
			content = extracted
		}
	}

	title := feed.StripHTMLSpace(entry.Title)

	var author string
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		author = entry.Authors[0].Name
	}

	var b strings.Builder
	if title != "" {
		if entry.Link != "" {
			fmt.Fprintf(&b, "<b><a href=%q>%s</a></b>", entry.Link, html.EscapeString(title))
		} else {
			fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(title))
		}
	}
	if content != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
	}

	return &Post{
		Title:     title,
		FeedTitle: feedTitle,
		FeedLink:  feedLink,
		Link:      entry.Link,
		Author:    author,
		HTML:      b.String(),
	}, nil
}

func (r *Renderer) extractFromPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(data)), parsed)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if article.Content == "" {
		return "", fmt.Errorf("no content extracted")
	}

	return article.Content, nil
}

// ErrorPost builds an operator-facing report. No footer: the message itself
// names the feed.
func ErrorPost(message, feedTitle, link string) *Post {
	return &Post{
		Title: "Error: " + feedTitle,
		Link:  link,
		HTML:  message,
	}
}

// SendFormattedPost delivers the post to an arbitrary chat.
func (p *Post) SendFormattedPost(ctx context.Context, bot Transport, chatID int64, silent bool) error {
	return bot.SendMessage(ctx, chatID, p.render(""), silent)
}

// SendFormattedPostAccordingToSub delivers the post honoring the
// subscription's title override and notification preference.
func (p *Post) SendFormattedPostAccordingToSub(ctx context.Context, bot Transport, sub database.Sub) error {
	return bot.SendMessage(ctx, sub.UserID, p.render(sub.Title), !sub.Notify)
}
