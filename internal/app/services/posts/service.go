package posts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agent2rss/agent2rss/internal/app/domain/post"
	"github.com/agent2rss/agent2rss/internal/app/storage"
	"github.com/agent2rss/agent2rss/pkg/logger"
)

// ContentType names how a submission's content field is interpreted.
const (
	ContentTypeMarkdown = "markdown"
	ContentTypeHTML     = "html"
)

// Renderer is the rendering collaborator: it supplies the rendered HTML
// and the plain-text summary at submission time. The service stores its
// output verbatim and never re-renders persisted posts.
type Renderer interface {
	Render(markdown, theme string) (string, error)
	Summarize(html string, maxLength int) string
}

// Submission is an externally submitted content item bound for a
// channel. Shape validation happens at the request layer; the service
// enforces business invariants only.
type Submission struct {
	ChannelID      string
	Title          string
	Link           string
	Content        string
	ContentType    string
	Theme          string
	Description    string
	Author         string
	Tags           []string
	IdempotencyKey string
}

// Service ingests submissions into the post store.
type Service struct {
	channels      storage.ChannelStore
	store         storage.PostStore
	renderer      Renderer
	baseURL       string
	defaultTheme  string
	summaryLength int
	log           *logger.Logger
}

// New constructs a post service. baseURL is the public feed URL used to
// build canonical links for submissions that carry none.
func New(channels storage.ChannelStore, store storage.PostStore, renderer Renderer, baseURL, defaultTheme string, summaryLength int, log *logger.Logger) *Service {
	if summaryLength <= 0 {
		summaryLength = 150
	}
	if log == nil {
		log = logger.NewDefault("posts")
	}
	return &Service{
		channels:      channels,
		store:         store,
		renderer:      renderer,
		baseURL:       strings.TrimRight(baseURL, "/"),
		defaultTheme:  defaultTheme,
		summaryLength: summaryLength,
		log:           log,
	}
}

// Submit renders and persists a submission. When the submission's
// idempotency key matches a post already stored for the channel, the
// existing post is returned with created=false and nothing is written.
func (s *Service) Submit(ctx context.Context, sub Submission) (post.Post, bool, error) {
	ch, err := s.channels.GetChannel(ctx, sub.ChannelID)
	if err != nil {
		return post.Post{}, false, err
	}

	html := sub.Content
	if sub.ContentType != ContentTypeHTML {
		theme := firstNonEmpty(sub.Theme, ch.Theme, s.defaultTheme)
		if html, err = s.renderer.Render(sub.Content, theme); err != nil {
			return post.Post{}, false, err
		}
	}

	summary := sub.Description
	if summary == "" {
		summary = s.renderer.Summarize(html, s.summaryLength)
	}

	p := post.Post{
		ID:              uuid.NewString(),
		ChannelID:       ch.ID,
		Title:           sub.Title,
		Content:         html,
		ContentMarkdown: sub.Content,
		Summary:         summary,
		Author:          sub.Author,
		Tags:            normalizeTags(sub.Tags),
		IdempotencyKey:  sub.IdempotencyKey,
		PubDate:         time.Now().UTC(),
	}
	p.Link = sub.Link
	if p.Link == "" {
		p.Link = fmt.Sprintf("%s/channels/%s/posts/%s", s.baseURL, ch.ID, p.ID)
	}

	result, err := s.store.InsertPost(ctx, p)
	if err != nil {
		return post.Post{}, false, err
	}

	if !result.Created {
		existing, err := s.store.FindByIdempotencyKey(ctx, ch.ID, sub.IdempotencyKey)
		if err != nil {
			return post.Post{}, false, err
		}
		s.log.WithField("channel_id", ch.ID).
			WithField("post_id", existing.ID).
			Info("duplicate submission matched by idempotency key")
		return existing, false, nil
	}

	p.ID = result.PostID
	s.log.WithField("channel_id", ch.ID).
		WithField("post_id", p.ID).
		WithField("tags", len(p.Tags)).
		Info("post stored")
	return p, true, nil
}

// ListChannel returns a channel's posts, newest first.
func (s *Service) ListChannel(ctx context.Context, channelID string) ([]post.Post, error) {
	return s.store.ListPosts(ctx, channelID)
}

// ListAll returns every post across channels, newest first.
func (s *Service) ListAll(ctx context.Context) ([]post.Post, error) {
	return s.store.ListAllPosts(ctx)
}

// normalizeTags drops empty and duplicate tags while keeping the result
// deterministic. Comparison is case-sensitive.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
