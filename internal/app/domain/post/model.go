package post

import "time"

// Post is an immutable content record belonging to exactly one channel.
// Content holds the rendered HTML; ContentMarkdown retains the original
// submission for reference. Posts are never updated after creation; the
// only mutation the system performs is deletion through retention
// eviction or a channel cascade.
type Post struct {
	ID              string
	ChannelID       string
	Title           string
	Link            string
	Content         string
	ContentMarkdown string
	Summary         string
	Author          string
	Tags            []string
	IdempotencyKey  string
	PubDate         time.Time

	// Seq is a monotonically increasing insertion sequence assigned by
	// the store. It breaks publish-date ties in listing and eviction so
	// retention behavior stays reproducible.
	Seq int64
}

// InsertResult reports the outcome of an insert. Created is false when
// an idempotency key matched an existing post, in which case PostID is
// the identity of that post and no new row was written.
type InsertResult struct {
	PostID  string
	Created bool
}
