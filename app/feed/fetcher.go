package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
	}
}

// FeedGet performs a conditional fetch of url. Failures never surface as a Go
// error: the returned WebFeed carries a nil Feed and a WebError instead, so
// the caller can treat every outcome uniformly.
func (f *Fetcher) FeedGet(ctx context.Context, url string, headers map[string]string) *WebFeed {
	wf := &WebFeed{URL: url}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		wf.Error = &WebError{Msg: "failed to create request", Err: err}
		return wf
	}

	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		wf.Error = &WebError{Msg: "fetch failed", Err: err}
		return wf
	}
	defer resp.Body.Close()

	wf.Status = resp.StatusCode
	wf.URL = resp.Request.URL.String()
	wf.CFCacheStatus = resp.Header.Get("cf-cache-status")
	wf.Response = parseWebResponse(resp)

	if resp.StatusCode == http.StatusNotModified {
		return wf
	}

	if resp.StatusCode != http.StatusOK {
		wf.Error = &WebError{Code: resp.StatusCode, Msg: "HTTP error"}
		return wf
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		wf.Error = &WebError{Msg: "failed to read response body", Err: err}
		return wf
	}

	parsed, ttl, err := f.parser.Run(data)
	if err != nil {
		wf.Error = &WebError{Msg: "failed to parse feed", Err: err}
		return wf
	}

	slog.Debug("Feed fetched", "url", wf.URL, "status", wf.Status, "entries", len(parsed.Items))

	wf.Feed = parsed
	wf.TTLMinutes = ttl
	return wf
}

func parseWebResponse(resp *http.Response) *WebResponse {
	wr := &WebResponse{
		ETag: resp.Header.Get("ETag"),
	}

	if v := resp.Header.Get("Expires"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			wr.Expires = &t
		}
	}

	if v := resp.Header.Get("Last-Modified"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			wr.LastModified = &t
		}
	}

	if maxAge := parseMaxAge(resp.Header.Get("Cache-Control")); maxAge != nil {
		wr.MaxAge = maxAge
	}

	return wr
}

func parseMaxAge(cacheControl string) *int {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if rest, ok := strings.CutPrefix(directive, "max-age="); ok {
			if seconds, err := strconv.Atoi(rest); err == nil && seconds >= 0 {
				return &seconds
			}
		}
	}
	return nil
}

// FormatHTTPDate renders t for If-Modified-Since and friends.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
