package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/agent2rss/agent2rss/internal/app/domain/channel"
	"github.com/agent2rss/agent2rss/internal/app/domain/post"
	"github.com/agent2rss/agent2rss/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
//
// Mutating operations serialize behind writeMu so the check-then-act
// sequences (idempotency lookup, count-then-evict) never interleave.
// Reads go straight to the database and observe only committed state.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

var _ storage.ChannelStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- ChannelStore -----------------------------------------------------------

func (s *Store) CreateChannel(ctx context.Context, ch channel.Channel) (channel.Channel, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	if ch.MaxPosts <= 0 {
		ch.MaxPosts = channel.DefaultMaxPosts
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, name, description, theme, language, max_posts, token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ch.ID, ch.Name, ch.Description, ch.Theme, ch.Language, ch.MaxPosts, ch.Token, ch.CreatedAt, ch.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "channels_token_key") {
			return channel.Channel{}, storage.ErrTokenCollision
		}
		if isUniqueViolation(err, "") {
			return channel.Channel{}, storage.AlreadyExists("channel", ch.ID)
		}
		return channel.Channel{}, storage.Failure("create channel", err)
	}
	return ch, nil
}

func (s *Store) GetChannel(ctx context.Context, id string) (channel.Channel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, theme, language, max_posts, token, created_at, updated_at
		FROM channels
		WHERE id = $1
	`, id)

	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return channel.Channel{}, storage.NotFound("channel", id)
	}
	if err != nil {
		return channel.Channel{}, storage.Failure("get channel", err)
	}
	return ch, nil
}

func (s *Store) ListChannels(ctx context.Context) ([]channel.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, theme, language, max_posts, token, created_at, updated_at
		FROM channels
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, storage.Failure("list channels", err)
	}
	defer rows.Close()

	var result []channel.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, storage.Failure("list channels", err)
		}
		result = append(result, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Failure("list channels", err)
	}
	return result, nil
}

func (s *Store) UpdateChannel(ctx context.Context, id string, upd channel.Update) (channel.Channel, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	set := []string{"updated_at = $2"}
	args := []interface{}{id, time.Now().UTC()}
	appendField := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		appendField("name", *upd.Name)
	}
	if upd.Description != nil {
		appendField("description", *upd.Description)
	}
	if upd.Theme != nil {
		appendField("theme", *upd.Theme)
	}
	if upd.Language != nil {
		appendField("language", *upd.Language)
	}
	if upd.MaxPosts != nil {
		appendField("max_posts", *upd.MaxPosts)
	}

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE channels SET %s WHERE id = $1", strings.Join(set, ", ")),
		args...)
	if err != nil {
		return channel.Channel{}, storage.Failure("update channel", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return channel.Channel{}, storage.NotFound("channel", id)
	}
	return s.GetChannel(ctx, id)
}

func (s *Store) DeleteChannel(ctx context.Context, id string) error {
	if id == channel.DefaultID {
		return storage.ErrForbidden
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return storage.Failure("delete channel", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.NotFound("channel", id)
	}
	return nil
}

// --- PostStore --------------------------------------------------------------

func (s *Store) InsertPost(ctx context.Context, p post.Post) (post.InsertResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return post.InsertResult{}, storage.Failure("begin insert", err)
	}
	defer tx.Rollback()

	var maxPosts int
	err = tx.QueryRowContext(ctx, `SELECT max_posts FROM channels WHERE id = $1`, p.ChannelID).Scan(&maxPosts)
	if errors.Is(err, sql.ErrNoRows) {
		return post.InsertResult{}, storage.NotFound("channel", p.ChannelID)
	}
	if err != nil {
		return post.InsertResult{}, storage.Failure("check channel", err)
	}
	if maxPosts <= 0 {
		maxPosts = channel.DefaultMaxPosts
	}

	if p.IdempotencyKey != "" {
		var existingID string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM posts WHERE channel_id = $1 AND idempotency_key = $2
		`, p.ChannelID, p.IdempotencyKey).Scan(&existingID)
		if err == nil {
			return post.InsertResult{PostID: existingID, Created: false}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return post.InsertResult{}, storage.Failure("idempotency lookup", err)
		}
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PubDate.IsZero() {
		p.PubDate = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (id, channel_id, title, link, content, content_markdown, summary, author, idempotency_key, pub_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.ChannelID, p.Title, p.Link, p.Content, p.ContentMarkdown, p.Summary, p.Author, toNullString(p.IdempotencyKey), p.PubDate)
	if err != nil {
		return post.InsertResult{}, storage.Failure("insert post", err)
	}

	for _, tag := range p.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_tags (post_id, tag) VALUES ($1, $2)
		`, p.ID, tag); err != nil {
			return post.InsertResult{}, storage.Failure("insert tag", err)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE channel_id = $1`, p.ChannelID).Scan(&count); err != nil {
		return post.InsertResult{}, storage.Failure("count posts", err)
	}
	if excess := count - maxPosts; excess > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM posts
			WHERE id IN (
				SELECT id FROM posts
				WHERE channel_id = $1
				ORDER BY pub_date ASC, seq ASC
				LIMIT $2
			)
		`, p.ChannelID, excess); err != nil {
			return post.InsertResult{}, storage.Failure("evict posts", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return post.InsertResult{}, storage.Failure("commit insert", err)
	}
	return post.InsertResult{PostID: p.ID, Created: true}, nil
}

func (s *Store) ListPosts(ctx context.Context, channelID string) ([]post.Post, error) {
	return s.queryPosts(ctx, `
		SELECT id, channel_id, title, link, content, content_markdown, summary, author, idempotency_key, pub_date, seq
		FROM posts
		WHERE channel_id = $1
		ORDER BY pub_date DESC, seq DESC
	`, channelID)
}

func (s *Store) ListAllPosts(ctx context.Context) ([]post.Post, error) {
	return s.queryPosts(ctx, `
		SELECT id, channel_id, title, link, content, content_markdown, summary, author, idempotency_key, pub_date, seq
		FROM posts
		ORDER BY pub_date DESC, seq DESC
	`)
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, channelID, key string) (post.Post, error) {
	if key == "" {
		return post.Post{}, storage.NotFound("post", key)
	}

	posts, err := s.queryPosts(ctx, `
		SELECT id, channel_id, title, link, content, content_markdown, summary, author, idempotency_key, pub_date, seq
		FROM posts
		WHERE channel_id = $1 AND idempotency_key = $2
	`, channelID, key)
	if err != nil {
		return post.Post{}, err
	}
	if len(posts) == 0 {
		return post.Post{}, storage.NotFound("post", key)
	}
	return posts[0], nil
}

func (s *Store) CountPosts(ctx context.Context, channelID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE channel_id = $1`, channelID).Scan(&count); err != nil {
		return 0, storage.Failure("count posts", err)
	}
	return count, nil
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...interface{}) ([]post.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Failure("query posts", err)
	}
	defer rows.Close()

	var (
		result []post.Post
		ids    []string
	)
	for rows.Next() {
		var (
			p   post.Post
			key sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.ChannelID, &p.Title, &p.Link, &p.Content, &p.ContentMarkdown, &p.Summary, &p.Author, &key, &p.PubDate, &p.Seq); err != nil {
			return nil, storage.Failure("scan post", err)
		}
		p.IdempotencyKey = key.String
		p.PubDate = p.PubDate.UTC()
		result = append(result, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Failure("query posts", err)
	}
	if len(result) == 0 {
		return result, nil
	}

	tags, err := s.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Tags = tags[result[i].ID]
	}
	return result, nil
}

func (s *Store) tagsFor(ctx context.Context, postIDs []string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, tag FROM post_tags WHERE post_id = ANY($1) ORDER BY post_id, tag
	`, pq.Array(postIDs))
	if err != nil {
		return nil, storage.Failure("query tags", err)
	}
	defer rows.Close()

	tags := make(map[string][]string)
	for rows.Next() {
		var postID, tag string
		if err := rows.Scan(&postID, &tag); err != nil {
			return nil, storage.Failure("scan tag", err)
		}
		tags[postID] = append(tags[postID], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Failure("query tags", err)
	}
	return tags, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChannel(row rowScanner) (channel.Channel, error) {
	var ch channel.Channel
	if err := row.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.Theme, &ch.Language, &ch.MaxPosts, &ch.Token, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
		return channel.Channel{}, err
	}
	ch.CreatedAt = ch.CreatedAt.UTC()
	ch.UpdatedAt = ch.UpdatedAt.UTC()
	return ch, nil
}

func toNullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
