package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/agent2rss/agent2rss/internal/app"
	"github.com/agent2rss/agent2rss/internal/app/domain/channel"
	"github.com/agent2rss/agent2rss/internal/config"
)

const adminToken = "admin-secret"

func newTestServer(t *testing.T, mode string) (http.Handler, *app.Application) {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Options{
		AdminToken: adminToken,
		FeedURL:    "https://feeds.example.com",
	}, nil)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start app: %v", err)
	}

	cfg := config.Config{
		FeedURL:             "https://feeds.example.com",
		FeedTitle:           "Agent2RSS",
		FeedDescription:     "Aggregated channel feed",
		FeedLanguage:        "zh-CN",
		ChannelCreationMode: mode,
	}
	return NewHandler(application, cfg, nil), application
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createChannel(t *testing.T, application *app.Application, id string) channel.Channel {
	t.Helper()
	ch, err := application.Channels.Create(context.Background(), channel.Channel{ID: id, Name: id})
	if err != nil {
		t.Fatalf("create channel %s: %v", id, err)
	}
	return ch
}

func TestWebhookRequiresCredential(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePublic)

	rec := doJSON(t, h, http.MethodPost, "/api/webhook", "", map[string]string{
		"title": "t", "content": "c", "channel": "default",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookRejectsWrongChannelToken(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	createChannel(t, application, "tech")
	other := createChannel(t, application, "news")

	rec := doJSON(t, h, http.MethodPost, "/api/webhook", other.Token, map[string]string{
		"title": "t", "content": "c", "channel": "tech",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookUnknownChannel(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePublic)

	rec := doJSON(t, h, http.MethodPost, "/api/webhook", adminToken, map[string]string{
		"title": "t", "content": "c", "channel": "ghost",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookMissingFields(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePublic)

	rec := doJSON(t, h, http.MethodPost, "/api/webhook", adminToken, map[string]string{
		"title": "t", "channel": "default",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookStoresPost(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	ch := createChannel(t, application, "tech")

	rec := doJSON(t, h, http.MethodPost, "/api/webhook", ch.Token, map[string]interface{}{
		"title":   "Release notes",
		"content": "# v1.0\n\nShipped.",
		"channel": "tech",
		"tags":    []string{"release"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp webhookResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || !resp.Created {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Post.Channel != "tech" || resp.Post.ID == "" {
		t.Fatalf("unexpected post: %+v", resp.Post)
	}

	posts, err := application.Posts.ListChannel(context.Background(), "tech")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 1 || !strings.Contains(posts[0].Content, "<h1") {
		t.Fatalf("post not rendered and stored: %+v", posts)
	}
}

func TestWebhookIdempotentReplay(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	ch := createChannel(t, application, "tech")

	body := map[string]string{
		"title": "once", "content": "c", "channel": "tech", "idempotencyKey": "k1",
	}
	first := doJSON(t, h, http.MethodPost, "/api/webhook", ch.Token, body)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	second := doJSON(t, h, http.MethodPost, "/api/webhook", ch.Token, body)
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d", second.Code)
	}

	var a, b webhookResponse
	if err := json.NewDecoder(first.Body).Decode(&a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.NewDecoder(second.Body).Decode(&b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if !a.Created || b.Created {
		t.Fatalf("created flags wrong: %v %v", a.Created, b.Created)
	}
	if a.Post.ID != b.Post.ID {
		t.Fatalf("replay must return the original id: %s != %s", a.Post.ID, b.Post.ID)
	}
}

func TestAllFeedContentType(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePublic)

	req := httptest.NewRequest(http.MethodGet, "/rss.xml", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<title>Agent2RSS</title>") {
		t.Fatalf("feed title missing: %s", rec.Body.String())
	}
}

func TestChannelFeed(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	ch := createChannel(t, application, "tech")

	rec := doJSON(t, h, http.MethodPost, "/api/webhook", ch.Token, map[string]string{
		"title": "Post", "content": "body", "channel": "tech",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/channels/tech/rss.xml", nil)
	feedRec := httptest.NewRecorder()
	h.ServeHTTP(feedRec, req)

	if feedRec.Code != http.StatusOK {
		t.Fatalf("status = %d", feedRec.Code)
	}
	body := feedRec.Body.String()
	if !strings.Contains(body, "<title>tech</title>") || !strings.Contains(body, "<title>Post</title>") {
		t.Fatalf("feed incomplete: %s", body)
	}
	// The channel has no language of its own, so the service default
	// applies.
	if !strings.Contains(body, "<language>zh-CN</language>") {
		t.Fatalf("language fallback missing: %s", body)
	}
}

func TestChannelFeedUnknownChannel(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePublic)

	req := httptest.NewRequest(http.MethodGet, "/channels/ghost/rss.xml", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateChannelPublicMode(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePublic)

	rec := doJSON(t, h, http.MethodPost, "/api/channels", "", map[string]string{
		"id": "tech", "name": "Tech",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created createdChannelView
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(created.Token, "ch_") {
		t.Fatalf("creation response must include the token: %+v", created)
	}
}

func TestCreateChannelPrivateMode(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePrivate)

	rec := doJSON(t, h, http.MethodPost, "/api/channels", "", map[string]string{
		"id": "tech", "name": "Tech",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create should fail, status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/channels", adminToken, map[string]string{
		"id": "tech", "name": "Tech",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateChannelDuplicate(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	createChannel(t, application, "tech")

	rec := doJSON(t, h, http.MethodPost, "/api/channels", "", map[string]string{
		"id": "tech", "name": "Again",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestListChannelsHidesTokens(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	ch := createChannel(t, application, "tech")

	req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), ch.Token) {
		t.Fatal("tokens must never appear in listings")
	}
}

func TestUpdateChannelByOwner(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	ch := createChannel(t, application, "tech")

	rec := doJSON(t, h, http.MethodPut, "/api/channels/tech", ch.Token, map[string]string{
		"name": "Tech Weekly",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var view channelView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Name != "Tech Weekly" {
		t.Fatalf("name = %q", view.Name)
	}
}

func TestUpdateChannelRejectsTokenField(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	ch := createChannel(t, application, "tech")

	rec := doJSON(t, h, http.MethodPut, "/api/channels/tech", ch.Token, map[string]string{
		"token": "new-token",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("token updates must be rejected, status = %d", rec.Code)
	}

	got, err := application.Channels.Get(context.Background(), "tech")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Token != ch.Token {
		t.Fatal("token changed")
	}
}

func TestDeleteChannelByOwner(t *testing.T) {
	h, application := newTestServer(t, config.CreationModePublic)
	ch := createChannel(t, application, "tech")

	rec := doJSON(t, h, http.MethodDelete, "/api/channels/tech", ch.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	getRec := doJSON(t, h, http.MethodGet, "/api/channels/tech", "", nil)
	if getRec.Code != http.StatusNotFound {
		t.Fatalf("channel should be gone, status = %d", getRec.Code)
	}
}

func TestDeleteDefaultChannelForbidden(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePublic)

	rec := doJSON(t, h, http.MethodDelete, "/api/channels/default", adminToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestServiceInfo(t *testing.T) {
	h, _ := newTestServer(t, config.CreationModePublic)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "webhook") {
		t.Fatalf("endpoint listing missing: %s", rec.Body.String())
	}
}
