package delivery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/rss-monitor/app/database"
	"github.com/lysyi3m/rss-monitor/app/i18n"
	"github.com/lysyi3m/rss-monitor/app/locks"
	"github.com/lysyi3m/rss-monitor/app/observability"
)

// blockedTolerance is the number of consecutive blocked-style failures after
// which the user is considered to have blocked the bot.
const blockedTolerance = 5

// Notifier fans a new entry out to every subscriber of a feed. Blocked-user
// bookkeeping and the per-user unsubscribe locks are process-wide.
type Notifier struct {
	bot         Transport
	renderer    *Renderer
	subRepo     database.SubRepository
	userRepo    database.UserRepository
	feedRepo    database.FeedRepository
	flood       *locks.Registry
	catalog     *i18n.Catalog
	errorChat   int64
	sendTimeout time.Duration

	blockedMu      sync.Mutex
	blockedCounter map[int64]int

	unsubMu    sync.Mutex
	unsubLocks map[int64]*sync.Mutex
}

func NewNotifier(bot Transport, renderer *Renderer, subRepo database.SubRepository,
	userRepo database.UserRepository, feedRepo database.FeedRepository,
	flood *locks.Registry, catalog *i18n.Catalog, errorChat int64,
	sendTimeout time.Duration) *Notifier {
	return &Notifier{
		bot:            bot,
		renderer:       renderer,
		subRepo:        subRepo,
		userRepo:       userRepo,
		feedRepo:       feedRepo,
		flood:          flood,
		catalog:        catalog,
		errorChat:      errorChat,
		sendTimeout:    sendTimeout,
		blockedCounter: make(map[int64]int),
		unsubLocks:     make(map[int64]*sync.Mutex),
	}
}

// NotifyAll renders entry and delivers it to each sub concurrently. Per-sub
// failures are handled inside the send path; only timeouts are reported here
// (logged and swallowed) while genuinely unexpected errors propagate.
func (n *Notifier) NotifyAll(ctx context.Context, f *database.Feed, subs []database.Sub, entry *gofeed.Item) error {
	post, err := n.renderer.FromEntry(ctx, entry, f.Title, f.Link)
	if err != nil {
		entryLink := ""
		if entry != nil {
			entryLink = entry.Link
		}
		slog.Error("Failed to render post", "link", entryLink, "feed", f.Link, "error", err)
		n.reportToOperator(ctx, fmt.Sprintf(
			"Something went wrong while parsing the post %s (feed: %s). Please check:<br><br>%s",
			html.EscapeString(entryLink), html.EscapeString(f.Link), html.EscapeString(err.Error())),
			f.Title, entryLink)
		return nil
	}

	errs := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub database.Sub) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
			defer cancel()
			errs[i] = n.send(sendCtx, sub, post)
		}(i, sub)
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) {
			observability.DeliveryFailures.WithLabelValues("timeout").Inc()
			slog.Error("Failed to send post due to timeout",
				"link", post.Link, "feed", post.FeedLink, "user", subs[i].UserID)
			continue
		}
		// Cancellation, and anything the send path does not classify,
		// propagates so the worker can classify it.
		return err
	}

	return nil
}

// send delivers post to a single subscriber and absorbs every failure class
// it understands.
func (n *Notifier) send(ctx context.Context, sub database.Sub, post *Post) error {
	userID := sub.UserID

	if err := n.bot.ResolveEntity(ctx, userID); err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			n.lockedUnsubAllAndLeaveChat(ctx, userID, "EntityNotFound")
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		n.reportSendFailure(ctx, sub, post, err)
		return nil
	}

	if err := n.flood.UserFloodLock(userID).Wait(ctx); err != nil {
		return err
	}

	err := post.SendFormattedPostAccordingToSub(ctx, n.bot, sub)
	if err == nil {
		n.clearBlockedCounter(userID)
		return nil
	}

	if reason, blocked := isUserBlocked(err); blocked {
		observability.DeliveryFailures.WithLabelValues("blocked").Inc()
		n.lockedUnsubAllAndLeaveChat(ctx, userID, reason)
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	n.reportSendFailure(ctx, sub, post, err)
	return nil
}

func (n *Notifier) reportSendFailure(ctx context.Context, sub database.Sub, post *Post, err error) {
	observability.DeliveryFailures.WithLabelValues("error").Inc()
	slog.Error("Failed to send post", "link", post.Link, "feed", post.FeedLink, "user", sub.UserID, "error", err)
	n.reportToOperator(ctx, fmt.Sprintf(
		"Something went wrong while sending this post (feed: %s, user: %d). Please check:<br><br>%s",
		html.EscapeString(post.FeedLink), sub.UserID, html.EscapeString(err.Error())),
		post.FeedTitle, post.Link)
}

// reportToOperator sends an error post to the operator chat, best effort.
func (n *Notifier) reportToOperator(ctx context.Context, message, feedTitle, link string) {
	if n.errorChat == 0 {
		return
	}
	errorPost := ErrorPost(message, feedTitle, link)
	if err := errorPost.SendFormattedPost(ctx, n.bot, n.errorChat, false); err != nil {
		slog.Error("Failed to send error report", "link", link, "error", err)
		if err := n.bot.SendMessage(ctx, n.errorChat, "An error report cannot be sent, please check the logs.", false); err != nil {
			slog.Error("Failed to send error report notice", "error", err)
		}
	}
}

func (n *Notifier) userUnsubLock(userID int64) *sync.Mutex {
	n.unsubMu.Lock()
	defer n.unsubMu.Unlock()

	mu, ok := n.unsubLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		n.unsubLocks[userID] = mu
	}
	return mu
}

func (n *Notifier) clearBlockedCounter(userID int64) {
	n.blockedMu.Lock()
	defer n.blockedMu.Unlock()
	delete(n.blockedCounter, userID)
}

// lockedUnsubAllAndLeaveChat escalates a blocked-style failure. Concurrent
// calls for the same user coalesce on the per-user try-lock; the counter
// tolerates transient failures until blockedTolerance is reached.
func (n *Notifier) lockedUnsubAllAndLeaveChat(ctx context.Context, userID int64, reason string) {
	mu := n.userUnsubLock(userID)
	if !mu.TryLock() {
		return // an unsubscribe for this user is already underway
	}
	defer mu.Unlock()

	n.blockedMu.Lock()
	count := n.blockedCounter[userID] + 1
	if count < blockedTolerance {
		n.blockedCounter[userID] = count
		n.blockedMu.Unlock()
		return
	}
	delete(n.blockedCounter, userID)
	n.blockedMu.Unlock()

	slog.Error("User blocked", "reason", reason, "user", userID)

	if _, err := n.subRepo.DeactivateUserSubs(userID); err != nil {
		slog.Error("Failed to deactivate user subs", "user", userID, "error", err)
		return
	}
	if err := n.bot.LeaveChat(ctx, userID); err != nil {
		slog.Error("Failed to leave chat", "user", userID, "error", err)
	}
}

// DeactivateFeedAndNotifyAll deactivates the feed and tells every subscriber
// in their own language why.
func (n *Notifier) DeactivateFeedAndNotifyAll(ctx context.Context, f *database.Feed, subs []database.Sub, reason string) error {
	if err := n.feedRepo.DeactivateFeed(f); err != nil {
		return fmt.Errorf("failed to deactivate feed: %w", err)
	}

	if len(subs) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub database.Sub) {
			defer wg.Done()

			lang, err := n.userRepo.GetLang(sub.UserID)
			if err != nil {
				slog.Error("Failed to resolve user language", "user", sub.UserID, "error", err)
			}

			title := sub.Title
			if title == "" {
				title = f.Title
			}
			body := fmt.Sprintf("<a href=%q>%s</a>\n%s", f.Link, html.EscapeString(title),
				n.catalog.Get(lang, "feed_deactivated_warn"))
			if reason != "" {
				body += "\n" + html.EscapeString(reason)
			}

			sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
			defer cancel()

			notice := &Post{FeedLink: f.Link, Link: f.Link, HTML: body}
			if err := notice.SendFormattedPost(sendCtx, n.bot, sub.UserID, !sub.Notify); err != nil {
				slog.Error("Failed to send deactivation notice", "feed", f.Link, "user", sub.UserID, "error", err)
			}
		}(sub)
	}
	wg.Wait()

	return nil
}
