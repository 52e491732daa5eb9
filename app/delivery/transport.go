package delivery

import (
	"context"
	"errors"
	"fmt"
)

// Transport abstracts the messaging platform the posts are delivered through.
type Transport interface {
	// ResolveEntity verifies that chatID can be addressed at all. Returns
	// ErrEntityNotFound (possibly wrapped) when it cannot, which is treated
	// as the user having blocked the bot.
	ResolveEntity(ctx context.Context, chatID int64) error
	SendMessage(ctx context.Context, chatID int64, html string, silent bool) error
	LeaveChat(ctx context.Context, chatID int64) error
}

// ErrEntityNotFound is returned by ResolveEntity when the peer is unknown.
var ErrEntityNotFound = errors.New("entity not found")

// UserBlockedError is any platform error meaning the user has blocked the bot
// or the chat is otherwise permanently unreachable.
type UserBlockedError struct {
	Reason string
}

func (e *UserBlockedError) Error() string {
	return fmt.Sprintf("user blocked: %s", e.Reason)
}

// BadRequestError is a generic request rejection carrying the platform's
// message verbatim.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request: %s", e.Message)
}

// TopicClosed is the bad-request message treated as a blocked-user signal.
const TopicClosed = "TOPIC_CLOSED"

func isUserBlocked(err error) (string, bool) {
	var blocked *UserBlockedError
	if errors.As(err, &blocked) {
		return blocked.Reason, true
	}

	var badRequest *BadRequestError
	if errors.As(err, &badRequest) && badRequest.Message == TopicClosed {
		return badRequest.Message, true
	}

	return "", false
}
