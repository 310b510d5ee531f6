package channels

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/agent2rss/agent2rss/internal/app/domain/channel"
	"github.com/agent2rss/agent2rss/internal/app/storage"
	"github.com/agent2rss/agent2rss/pkg/logger"
)

// tokenAttempts bounds regeneration when a generated token collides
// with an existing channel's token.
const tokenAttempts = 5

// Service manages channel records. It owns token generation; the store
// only enforces uniqueness.
type Service struct {
	store storage.ChannelStore
	posts storage.PostStore
	log   *logger.Logger
}

// New constructs a channel service.
func New(store storage.ChannelStore, posts storage.PostStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("channels")
	}
	return &Service{store: store, posts: posts, log: log}
}

// Create persists a new channel with a freshly generated token. The
// returned channel includes the token; this is the only time it is
// handed out.
func (s *Service) Create(ctx context.Context, ch channel.Channel) (channel.Channel, error) {
	if strings.TrimSpace(ch.ID) == "" {
		return channel.Channel{}, fmt.Errorf("channel id is required")
	}
	if ch.MaxPosts <= 0 {
		ch.MaxPosts = channel.DefaultMaxPosts
	}

	var created channel.Channel
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := generateToken()
		if err != nil {
			return channel.Channel{}, err
		}
		ch.Token = token

		created, err = s.store.CreateChannel(ctx, ch)
		if err == nil {
			s.log.WithField("channel_id", created.ID).Info("channel created")
			return created, nil
		}
		// A token collision is retried with a fresh token; an id
		// collision is the caller's error.
		if errors.Is(err, storage.ErrTokenCollision) {
			continue
		}
		return channel.Channel{}, err
	}
	return channel.Channel{}, fmt.Errorf("generate channel token: exhausted %d attempts", tokenAttempts)
}

// Get returns a channel by id.
func (s *Service) Get(ctx context.Context, id string) (channel.Channel, error) {
	return s.store.GetChannel(ctx, id)
}

// List returns all channels.
func (s *Service) List(ctx context.Context) ([]channel.Channel, error) {
	return s.store.ListChannels(ctx)
}

// PostCount returns the number of posts a channel currently holds.
func (s *Service) PostCount(ctx context.Context, id string) (int, error) {
	return s.posts.CountPosts(ctx, id)
}

// Update applies a partial update. The token cannot be changed through
// this path; Update has no token field to apply.
func (s *Service) Update(ctx context.Context, id string, upd channel.Update) (channel.Channel, error) {
	updated, err := s.store.UpdateChannel(ctx, id, upd)
	if err != nil {
		return channel.Channel{}, err
	}
	s.log.WithField("channel_id", id).Info("channel updated")
	return updated, nil
}

// Delete removes a channel and all of its posts. The default channel
// is protected by the store.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteChannel(ctx, id); err != nil {
		return err
	}
	s.log.WithField("channel_id", id).Info("channel deleted")
	return nil
}

// EnsureDefault creates the default channel if it does not exist yet
// and reports whether it was created. The token is logged exactly once,
// at creation, so the operator can record it.
func (s *Service) EnsureDefault(ctx context.Context) (channel.Channel, bool, error) {
	existing, err := s.store.GetChannel(ctx, channel.DefaultID)
	if err == nil {
		return existing, false, nil
	}
	if !storage.IsNotFound(err) {
		return channel.Channel{}, false, err
	}

	created, err := s.Create(ctx, channel.Channel{
		ID:          channel.DefaultID,
		Name:        "AI Briefing",
		Description: "Daily news summaries powered by AI",
		MaxPosts:    channel.DefaultMaxPosts,
	})
	if err != nil {
		return channel.Channel{}, false, err
	}
	s.log.WithField("channel_id", created.ID).
		WithField("token", created.Token).
		Warn("default channel created; record this token for webhook auth")
	return created, true, nil
}

// generateToken produces an opaque channel token: a "ch_" prefix over
// 128 bits of randomness.
func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "ch_" + hex.EncodeToString(buf), nil
}
