package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/agent2rss/agent2rss/internal/app/domain/channel"
	"github.com/agent2rss/agent2rss/internal/app/domain/post"
	"github.com/agent2rss/agent2rss/internal/platform/migrations"
)

// openIntegrationDB connects to the database named by TEST_POSTGRES_DSN
// and applies the schema. Tests are skipped when the variable is unset.
func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE channels CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func TestIntegrationPostLifecycle(t *testing.T) {
	db := openIntegrationDB(t)
	store := New(db)
	ctx := context.Background()

	if _, err := store.CreateChannel(ctx, channel.Channel{
		ID:       "tech",
		Name:     "Tech",
		Token:    "tok_tech",
		MaxPosts: 2,
	}); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		res, err := store.InsertPost(ctx, post.Post{
			ChannelID: "tech",
			Title:     "post",
			Tags:      []string{"go"},
			PubDate:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		ids = append(ids, res.PostID)
	}

	posts, err := store.ListPosts(ctx, "tech")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected eviction down to 2 posts, got %d", len(posts))
	}
	if posts[0].ID != ids[2] || posts[1].ID != ids[1] {
		t.Fatalf("wrong survivors: %v", posts)
	}
	if len(posts[0].Tags) != 1 || posts[0].Tags[0] != "go" {
		t.Fatalf("tags lost: %v", posts[0].Tags)
	}

	if err := store.DeleteChannel(ctx, "tech"); err != nil {
		t.Fatalf("delete channel: %v", err)
	}
	count, err := store.CountPosts(ctx, "tech")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("cascade failed, %d posts remain", count)
	}
}

func TestIntegrationIdempotencyReplay(t *testing.T) {
	db := openIntegrationDB(t)
	store := New(db)
	ctx := context.Background()

	if _, err := store.CreateChannel(ctx, channel.Channel{ID: "tech", Name: "Tech", Token: "tok_tech"}); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	first, err := store.InsertPost(ctx, post.Post{ChannelID: "tech", Title: "a", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	replay, err := store.InsertPost(ctx, post.Post{ChannelID: "tech", Title: "b", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Created || replay.PostID != first.PostID {
		t.Fatalf("replay mismatch: %+v vs %+v", replay, first)
	}

	found, err := store.FindByIdempotencyKey(ctx, "tech", "k1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Title != "a" {
		t.Fatalf("replay must keep the original post, got %q", found.Title)
	}
}
