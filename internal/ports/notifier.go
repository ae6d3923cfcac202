package ports

import "context"

// PostResult reports the outcome of one transport-level send attempt.
type PostResult struct {
	OK          bool
	RateLimited bool
}

// NotificationTransport is the outbound chat boundary. Post delivers text to
// a concrete channel; a rate-limited rejection is reported in the result, not
// as an error.
type NotificationTransport interface {
	Post(ctx context.Context, channel, text string) (PostResult, error)
}
