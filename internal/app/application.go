package app

import (
	"context"

	"github.com/agent2rss/agent2rss/internal/app/auth"
	"github.com/agent2rss/agent2rss/internal/app/services/channels"
	"github.com/agent2rss/agent2rss/internal/app/services/posts"
	"github.com/agent2rss/agent2rss/internal/app/storage"
	"github.com/agent2rss/agent2rss/internal/app/storage/memory"
	"github.com/agent2rss/agent2rss/internal/render"
	"github.com/agent2rss/agent2rss/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Channels storage.ChannelStore
	Posts    storage.PostStore
}

// Options carries the application-level configuration the services
// need. Zero values pick sensible defaults.
type Options struct {
	AdminToken    string
	FeedURL       string
	DefaultTheme  string
	SummaryLength int
	Themes        *render.Catalog
}

// Application ties the content services together and manages their
// lifecycle.
type Application struct {
	log *logger.Logger

	Channels *channels.Service
	Posts    *posts.Service
	Auth     *auth.Resolver
	Renderer *render.Renderer
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Channels == nil || stores.Posts == nil {
		mem := memory.New()
		if stores.Channels == nil {
			stores.Channels = mem
		}
		if stores.Posts == nil {
			stores.Posts = mem
		}
	}
	if opts.Themes == nil {
		opts.Themes = render.DefaultCatalog()
	}
	if opts.DefaultTheme == "" {
		opts.DefaultTheme = render.FallbackTheme
	}

	renderer := render.NewRenderer(opts.Themes, opts.DefaultTheme)

	return &Application{
		log:      log,
		Channels: channels.New(stores.Channels, stores.Posts, log.WithField("service", "channels")),
		Posts:    posts.New(stores.Channels, stores.Posts, renderer, opts.FeedURL, opts.DefaultTheme, opts.SummaryLength, log.WithField("service", "posts")),
		Auth:     auth.NewResolver(opts.AdminToken, stores.Channels),
		Renderer: renderer,
	}, nil
}

// Start bootstraps runtime state: the default channel is created on
// first run.
func (a *Application) Start(ctx context.Context) error {
	_, created, err := a.Channels.EnsureDefault(ctx)
	if err != nil {
		return err
	}
	if !created {
		a.log.Debug("default channel already present")
	}
	return nil
}

// Stop releases application resources. The stores are owned by the
// caller and closed there.
func (a *Application) Stop(context.Context) error {
	return nil
}
