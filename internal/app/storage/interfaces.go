package storage

import (
	"context"

	"github.com/agent2rss/agent2rss/internal/app/domain/channel"
	"github.com/agent2rss/agent2rss/internal/app/domain/post"
)

// ChannelStore persists channel records.
type ChannelStore interface {
	// CreateChannel persists a fully populated channel. It fails with
	// ErrAlreadyExists when the id or the token is already taken.
	CreateChannel(ctx context.Context, ch channel.Channel) (channel.Channel, error)
	GetChannel(ctx context.Context, id string) (channel.Channel, error)
	ListChannels(ctx context.Context) ([]channel.Channel, error)
	// UpdateChannel applies the non-nil fields of upd and refreshes the
	// updated timestamp even when upd is empty.
	UpdateChannel(ctx context.Context, id string, upd channel.Update) (channel.Channel, error)
	// DeleteChannel removes a channel and cascades to its posts and
	// their tags. Deleting the default channel fails with ErrForbidden.
	DeleteChannel(ctx context.Context, id string) error
}

// PostStore persists posts and their tags.
type PostStore interface {
	// InsertPost atomically writes a post with its tags, then evicts the
	// oldest posts beyond the owning channel's retention limit. When the
	// post carries an idempotency key already stored for the channel, no
	// row is written and the existing post's identity is returned with
	// Created=false. The check, insert and eviction are one unit of
	// work: a failure leaves no partial state behind.
	InsertPost(ctx context.Context, p post.Post) (post.InsertResult, error)
	// ListPosts returns the channel's posts ordered by publish date
	// descending, ties broken by insertion sequence.
	ListPosts(ctx context.Context, channelID string) ([]post.Post, error)
	// ListAllPosts returns every post across channels, same ordering.
	ListAllPosts(ctx context.Context) ([]post.Post, error)
	// FindByIdempotencyKey returns the post stored for the exact
	// (channel, key) pair, or ErrNotFound.
	FindByIdempotencyKey(ctx context.Context, channelID, key string) (post.Post, error)
	CountPosts(ctx context.Context, channelID string) (int, error)
}
