package delivery

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/rss-monitor/app/database"
)

func newTestRenderer() *Renderer {
	return NewRenderer(&http.Client{Timeout: time.Second}, "test-agent", false)
}

func TestFromEntryWithContent(t *testing.T) {
	r := newTestRenderer()
	entry := &gofeed.Item{
		Title:   "A  Title",
		Link:    "https://example.com/post",
		Content: "<p>full content</p>",
		Authors: []*gofeed.Person{{Name: "Author Name"}},
	}

	post, err := r.FromEntry(context.Background(), entry, "Feed", "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if post.Title != "A Title" {
		t.Errorf("Expected normalized title, got %q", post.Title)
	}
	if post.Author != "Author Name" {
		t.Errorf("Expected author, got %q", post.Author)
	}
	if !strings.Contains(post.HTML, "full content") {
		t.Errorf("Expected content in the body: %s", post.HTML)
	}
	if !strings.Contains(post.HTML, `href="https://example.com/post"`) {
		t.Errorf("Expected the title linked: %s", post.HTML)
	}
	if strings.Contains(post.HTML, "via") {
		t.Errorf("Expected no footer in the raw body: %s", post.HTML)
	}
}

func TestFromEntryFallsBackToDescription(t *testing.T) {
	r := newTestRenderer()
	entry := &gofeed.Item{Title: "T", Description: "summary only"}

	post, err := r.FromEntry(context.Background(), entry, "Feed", "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(post.HTML, "summary only") {
		t.Errorf("Expected the description used as body: %s", post.HTML)
	}
}

func TestFromEntryNil(t *testing.T) {
	r := newTestRenderer()
	if _, err := r.FromEntry(context.Background(), nil, "Feed", "link"); err == nil {
		t.Error("Expected an error for a nil entry")
	}
}

func TestFromEntryEscapesTitle(t *testing.T) {
	r := newTestRenderer()
	entry := &gofeed.Item{Title: "a <b> & c", Link: "https://example.com/p"}

	post, err := r.FromEntry(context.Background(), entry, "Feed", "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(post.HTML, "a &lt;b&gt; &amp; c") {
		t.Errorf("Expected the title escaped: %s", post.HTML)
	}
}

func TestRenderFooter(t *testing.T) {
	post := &Post{
		FeedTitle: "Feed <Title>",
		FeedLink:  "https://example.com/feed.xml",
		HTML:      "body",
	}

	got := post.render("")
	if !strings.Contains(got, `via <a href="https://example.com/feed.xml">Feed &lt;Title&gt;</a>`) {
		t.Errorf("Expected escaped footer: %s", got)
	}
	if !strings.HasPrefix(got, "body\n\n") {
		t.Errorf("Expected the body before the footer: %s", got)
	}

	got = post.render("Override")
	if !strings.Contains(got, ">Override</a>") {
		t.Errorf("Expected the override title in the footer: %s", got)
	}
	if strings.Contains(got, "Feed &lt;Title&gt;") {
		t.Errorf("Expected the feed title replaced: %s", got)
	}
}

func TestRenderWithoutFeedTitle(t *testing.T) {
	post := &Post{HTML: "body"}

	if got := post.render(""); got != "body" {
		t.Errorf("Expected no footer without a feed title, got %q", got)
	}
}

func TestErrorPostHasNoFooter(t *testing.T) {
	post := ErrorPost("something broke", "Feed", "https://example.com/p")

	got := post.render("")
	if strings.Contains(got, "via ") {
		t.Errorf("Expected no footer on an error post: %s", got)
	}
	if !strings.Contains(got, "something broke") {
		t.Errorf("Expected the message in the body: %s", got)
	}
}

func TestSendFormattedPostAccordingToSub(t *testing.T) {
	bot := &MockTransport{}
	post := &Post{
		FeedTitle: "Feed",
		FeedLink:  "https://example.com/feed.xml",
		HTML:      "body",
	}

	err := post.SendFormattedPostAccordingToSub(context.Background(), bot,
		database.Sub{ID: 1, UserID: 300, Title: "Named", Notify: false})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	sent := bot.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(sent))
	}
	if sent[0].chatID != 300 {
		t.Errorf("Expected chat 300, got %d", sent[0].chatID)
	}
	if !sent[0].silent {
		t.Error("Expected a silent delivery for a muted sub")
	}
	if !strings.Contains(sent[0].html, "Named") {
		t.Errorf("Expected the sub title in the footer: %s", sent[0].html)
	}
}
