package channel

import "time"

// DefaultID is the identifier of the channel created at first startup.
// It can never be deleted.
const DefaultID = "default"

// DefaultMaxPosts is the retention limit applied when a channel is
// created without one.
const DefaultMaxPosts = 100

// Channel is a named partition that owns a bounded, ordered collection
// of posts. The token authorizes submissions to this channel and is
// generated once at creation.
type Channel struct {
	ID          string
	Name        string
	Description string
	Theme       string
	Language    string
	MaxPosts    int
	Token       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Update carries the fields a channel update may change. Nil fields are
// left untouched. The token is deliberately absent: it is immutable
// after creation and a caller-supplied value must never be applied.
type Update struct {
	Name        *string
	Description *string
	Theme       *string
	Language    *string
	MaxPosts    *int
}

// Empty reports whether the update would change no field. An empty
// update is not an error; it still refreshes the updated timestamp.
func (u Update) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Theme == nil &&
		u.Language == nil && u.MaxPosts == nil
}
