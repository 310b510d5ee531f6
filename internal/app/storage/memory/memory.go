package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agent2rss/agent2rss/internal/app/domain/channel"
	"github.com/agent2rss/agent2rss/internal/app/domain/post"
	"github.com/agent2rss/agent2rss/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is
// safe for concurrent use and is primarily intended for tests and local
// development without a database.
type Store struct {
	mu           sync.RWMutex
	nextSeq      int64
	channels     map[string]channel.Channel
	channelOrder []string
	tokens       map[string]string
	posts        map[string]post.Post
}

var _ storage.ChannelStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextSeq:  1,
		channels: make(map[string]channel.Channel),
		tokens:   make(map[string]string),
		posts:    make(map[string]post.Post),
	}
}

// ChannelStore implementation ------------------------------------------------

func (s *Store) CreateChannel(_ context.Context, ch channel.Channel) (channel.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.channels[ch.ID]; exists {
		return channel.Channel{}, storage.AlreadyExists("channel", ch.ID)
	}
	if owner, taken := s.tokens[ch.Token]; taken && owner != ch.ID {
		return channel.Channel{}, storage.ErrTokenCollision
	}

	now := time.Now().UTC()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	if ch.MaxPosts <= 0 {
		ch.MaxPosts = channel.DefaultMaxPosts
	}

	s.channels[ch.ID] = ch
	s.channelOrder = append(s.channelOrder, ch.ID)
	s.tokens[ch.Token] = ch.ID
	return ch, nil
}

func (s *Store) GetChannel(_ context.Context, id string) (channel.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[id]
	if !ok {
		return channel.Channel{}, storage.NotFound("channel", id)
	}
	return ch, nil
}

func (s *Store) ListChannels(_ context.Context) ([]channel.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]channel.Channel, 0, len(s.channelOrder))
	for _, id := range s.channelOrder {
		result = append(result, s.channels[id])
	}
	return result, nil
}

func (s *Store) UpdateChannel(_ context.Context, id string, upd channel.Update) (channel.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[id]
	if !ok {
		return channel.Channel{}, storage.NotFound("channel", id)
	}

	if upd.Name != nil {
		ch.Name = *upd.Name
	}
	if upd.Description != nil {
		ch.Description = *upd.Description
	}
	if upd.Theme != nil {
		ch.Theme = *upd.Theme
	}
	if upd.Language != nil {
		ch.Language = *upd.Language
	}
	if upd.MaxPosts != nil {
		ch.MaxPosts = *upd.MaxPosts
	}
	ch.UpdatedAt = time.Now().UTC()

	s.channels[id] = ch
	return ch, nil
}

func (s *Store) DeleteChannel(_ context.Context, id string) error {
	if id == channel.DefaultID {
		return storage.ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[id]
	if !ok {
		return storage.NotFound("channel", id)
	}

	delete(s.channels, id)
	delete(s.tokens, ch.Token)
	for i, cid := range s.channelOrder {
		if cid == id {
			s.channelOrder = append(s.channelOrder[:i], s.channelOrder[i+1:]...)
			break
		}
	}
	for pid, p := range s.posts {
		if p.ChannelID == id {
			delete(s.posts, pid)
		}
	}
	return nil
}

// PostStore implementation ---------------------------------------------------

func (s *Store) InsertPost(_ context.Context, p post.Post) (post.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[p.ChannelID]
	if !ok {
		return post.InsertResult{}, storage.NotFound("channel", p.ChannelID)
	}

	if p.IdempotencyKey != "" {
		for _, existing := range s.posts {
			if existing.ChannelID == p.ChannelID && existing.IdempotencyKey == p.IdempotencyKey {
				return post.InsertResult{PostID: existing.ID, Created: false}, nil
			}
		}
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PubDate.IsZero() {
		p.PubDate = time.Now().UTC()
	}
	p.Seq = s.nextSeq
	s.nextSeq++
	p.Tags = cloneTags(p.Tags)
	s.posts[p.ID] = p

	s.evictLocked(ch.ID, ch.MaxPosts)
	return post.InsertResult{PostID: p.ID, Created: true}, nil
}

// evictLocked removes the oldest posts of the channel until the count is
// within the limit. Oldest means smallest publish date, ties broken by
// insertion sequence.
func (s *Store) evictLocked(channelID string, limit int) {
	if limit <= 0 {
		limit = channel.DefaultMaxPosts
	}

	owned := s.postsOfLocked(channelID)
	excess := len(owned) - limit
	if excess <= 0 {
		return
	}

	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].PubDate.Equal(owned[j].PubDate) {
			return owned[i].PubDate.Before(owned[j].PubDate)
		}
		return owned[i].Seq < owned[j].Seq
	})
	for _, victim := range owned[:excess] {
		delete(s.posts, victim.ID)
	}
}

func (s *Store) postsOfLocked(channelID string) []post.Post {
	var owned []post.Post
	for _, p := range s.posts {
		if p.ChannelID == channelID {
			owned = append(owned, p)
		}
	}
	return owned
}

func (s *Store) ListPosts(_ context.Context, channelID string) ([]post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.postsOfLocked(channelID)
	sortNewestFirst(result)
	for i := range result {
		result[i].Tags = cloneTags(result[i].Tags)
	}
	return result, nil
}

func (s *Store) ListAllPosts(_ context.Context) ([]post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]post.Post, 0, len(s.posts))
	for _, p := range s.posts {
		p.Tags = cloneTags(p.Tags)
		result = append(result, p)
	}
	sortNewestFirst(result)
	return result, nil
}

func (s *Store) FindByIdempotencyKey(_ context.Context, channelID, key string) (post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key != "" {
		for _, p := range s.posts {
			if p.ChannelID == channelID && p.IdempotencyKey == key {
				p.Tags = cloneTags(p.Tags)
				return p, nil
			}
		}
	}
	return post.Post{}, storage.NotFound("post", key)
}

func (s *Store) CountPosts(_ context.Context, channelID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.postsOfLocked(channelID)), nil
}

func sortNewestFirst(posts []post.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].PubDate.Equal(posts[j].PubDate) {
			return posts[i].PubDate.After(posts[j].PubDate)
		}
		return posts[i].Seq > posts[j].Seq
	})
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
