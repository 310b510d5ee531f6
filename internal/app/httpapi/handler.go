// Package httpapi exposes the REST and feed endpoints. It validates
// request shape, runs the authorization resolver before every mutation
// and maps the typed errors of the core onto HTTP statuses.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	app "github.com/agent2rss/agent2rss/internal/app"
	"github.com/agent2rss/agent2rss/internal/app/auth"
	"github.com/agent2rss/agent2rss/internal/app/domain/channel"
	"github.com/agent2rss/agent2rss/internal/app/services/posts"
	"github.com/agent2rss/agent2rss/internal/app/storage"
	"github.com/agent2rss/agent2rss/internal/config"
	"github.com/agent2rss/agent2rss/internal/feed"
	"github.com/agent2rss/agent2rss/internal/middleware"
	"github.com/agent2rss/agent2rss/pkg/logger"
)

// handler bundles the HTTP endpoints over the application services.
type handler struct {
	app *app.Application
	cfg config.Config
	log *logger.Logger
}

// NewHandler returns the routed API.
func NewHandler(application *app.Application, cfg config.Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, cfg: cfg, log: log}

	r := chi.NewRouter()
	r.Get("/", h.info)
	r.Post("/api/webhook", h.webhook)
	r.Get("/rss.xml", h.allFeed)
	r.Get("/channels/{id}/rss.xml", h.channelFeed)
	r.Get("/api/channels", h.listChannels)
	r.Post("/api/channels", h.createChannel)
	r.Get("/api/channels/{id}", h.getChannel)
	r.Put("/api/channels/{id}", h.updateChannel)
	r.Delete("/api/channels/{id}", h.deleteChannel)
	return r
}

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Agent2RSS Service",
		"endpoints": map[string]string{
			"webhook":       "POST /api/webhook",
			"rss":           "GET /rss.xml",
			"channelRss":    "GET /channels/{id}/rss.xml",
			"channels":      "GET /api/channels",
			"createChannel": "POST /api/channels",
			"updateChannel": "PUT /api/channels/{id}",
			"deleteChannel": "DELETE /api/channels/{id}",
		},
	})
}

// --- ingestion --------------------------------------------------------------

type webhookRequest struct {
	Title          string   `json:"title"`
	Link           string   `json:"link,omitempty"`
	Content        string   `json:"content"`
	Channel        string   `json:"channel"`
	ContentType    string   `json:"contentType,omitempty"`
	Theme          string   `json:"theme,omitempty"`
	Description    string   `json:"description,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Author         string   `json:"author,omitempty"`
	IdempotencyKey string   `json:"idempotencyKey,omitempty"`
}

type webhookResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Created bool        `json:"created"`
	Post    postSummary `json:"post"`
}

type postSummary struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Channel string    `json:"channel"`
	PubDate time.Time `json:"pubDate"`
}

func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Title == "" || req.Content == "" || req.Channel == "" {
		writeError(w, http.StatusBadRequest, errors.New("title, content and channel are required"))
		return
	}
	switch req.ContentType {
	case "", posts.ContentTypeMarkdown, posts.ContentTypeHTML:
	default:
		writeError(w, http.StatusBadRequest, errors.New("contentType must be markdown or html"))
		return
	}

	if !h.authorize(w, r, req.Channel) {
		return
	}

	p, created, err := h.app.Posts.Submit(r.Context(), posts.Submission{
		ChannelID:      req.Channel,
		Title:          req.Title,
		Link:           req.Link,
		Content:        req.Content,
		ContentType:    req.ContentType,
		Theme:          req.Theme,
		Description:    req.Description,
		Author:         req.Author,
		Tags:           req.Tags,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	message := "post added to channel " + req.Channel
	if !created {
		message = "submission already stored for channel " + req.Channel
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Success: true,
		Message: message,
		Created: created,
		Post: postSummary{
			ID:      p.ID,
			Title:   p.Title,
			Channel: p.ChannelID,
			PubDate: p.PubDate,
		},
	})
}

// --- feeds ------------------------------------------------------------------

func (h *handler) allFeed(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Posts.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	xml, err := feed.RSS(feed.Meta{
		Title:       h.cfg.FeedTitle,
		Description: h.cfg.FeedDescription,
		Link:        h.cfg.FeedURL,
		FeedLink:    h.cfg.FeedURL + "/rss.xml",
		Language:    h.cfg.FeedLanguage,
	}, all, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeXML(w, xml)
}

func (h *handler) channelFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ch, err := h.app.Channels.Get(r.Context(), id)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	channelPosts, err := h.app.Posts.ListChannel(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	language := ch.Language
	if language == "" {
		language = h.cfg.FeedLanguage
	}
	xml, err := feed.RSS(feed.Meta{
		Title:       ch.Name,
		Description: ch.Description,
		Link:        h.cfg.FeedURL + "/channels/" + id,
		FeedLink:    h.cfg.FeedURL + "/channels/" + id + "/rss.xml",
		Language:    language,
	}, channelPosts, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeXML(w, xml)
}

// --- channel management -----------------------------------------------------

// channelView is the public shape of a channel. The token is excluded
// everywhere except the creation response.
type channelView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Theme       string    `json:"theme,omitempty"`
	Language    string    `json:"language,omitempty"`
	MaxPosts    int       `json:"maxPosts"`
	PostCount   int       `json:"postCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type createdChannelView struct {
	channelView
	Token string `json:"token"`
}

func (h *handler) listChannels(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Channels.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]channelView, 0, len(list))
	for _, ch := range list {
		count, err := h.app.Channels.PostCount(r.Context(), ch.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		views = append(views, viewOf(ch, count))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) getChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch, err := h.app.Channels.Get(r.Context(), id)
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	count, err := h.app.Channels.PostCount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ch, count))
}

type createChannelRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Theme       string `json:"theme,omitempty"`
	Language    string `json:"language,omitempty"`
	MaxPosts    int    `json:"maxPosts,omitempty"`
}

func (h *handler) createChannel(w http.ResponseWriter, r *http.Request) {
	// Private mode restricts channel creation to the super-admin.
	if h.cfg.ChannelCreationMode == config.CreationModePrivate {
		credential := middleware.CredentialFromRequest(r)
		grant, err := h.app.Auth.Verify(r.Context(), credential, "")
		if err != nil || !grant.Admin() {
			writeError(w, http.StatusUnauthorized, errors.New("channel creation requires the admin token"))
			return
		}
	}

	var req createChannelRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("id and name are required"))
		return
	}

	created, err := h.app.Channels.Create(r.Context(), channel.Channel{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Theme:       req.Theme,
		Language:    req.Language,
		MaxPosts:    req.MaxPosts,
	})
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdChannelView{
		channelView: viewOf(created, 0),
		Token:       created.Token,
	})
}

type updateChannelRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Theme       *string `json:"theme,omitempty"`
	Language    *string `json:"language,omitempty"`
	MaxPosts    *int    `json:"maxPosts,omitempty"`
}

func (h *handler) updateChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}

	var req updateChannelRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Channels.Update(r.Context(), id, channel.Update{
		Name:        req.Name,
		Description: req.Description,
		Theme:       req.Theme,
		Language:    req.Language,
		MaxPosts:    req.MaxPosts,
	})
	if err != nil {
		h.writeStorageError(w, err)
		return
	}
	count, err := h.app.Channels.PostCount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(updated, count))
}

func (h *handler) deleteChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}

	if err := h.app.Channels.Delete(r.Context(), id); err != nil {
		h.writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "channel deleted",
	})
}

// --- helpers ----------------------------------------------------------------

// authorize runs the resolver for the request's credential against the
// target channel and writes the failure response itself. Returns true
// when the caller may proceed.
func (h *handler) authorize(w http.ResponseWriter, r *http.Request, channelID string) bool {
	credential := middleware.CredentialFromRequest(r)
	_, err := h.app.Auth.Verify(r.Context(), credential, channelID)
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, auth.ErrCredentialMissing), errors.Is(err, auth.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, auth.ErrChannelRequired):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, auth.ErrChannelNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
	return false
}

func (h *handler) writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case storage.IsNotFound(err):
		writeError(w, http.StatusNotFound, err)
	case storage.IsAlreadyExists(err):
		writeError(w, http.StatusConflict, err)
	case storage.IsForbidden(err):
		writeError(w, http.StatusForbidden, err)
	default:
		h.log.WithError(err).Error("storage operation failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func viewOf(ch channel.Channel, postCount int) channelView {
	return channelView{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Theme:       ch.Theme,
		Language:    ch.Language,
		MaxPosts:    ch.MaxPosts,
		PostCount:   postCount,
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
