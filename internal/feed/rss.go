// Package feed serializes stored posts as RSS 2.0. It relies on the
// store's ordering contract (newest first) and never re-sorts.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/agent2rss/agent2rss/internal/app/domain/post"
)

// Meta describes the feed-level metadata, either the service-wide feed
// or a single channel's display metadata.
type Meta struct {
	Title       string
	Description string
	Link        string
	FeedLink    string
	Language    string
}

// RSS renders posts as an RSS 2.0 document. The feed's update time is
// the newest post's publish date, or now for an empty feed.
func RSS(meta Meta, posts []post.Post, now time.Time) (string, error) {
	updated := now
	if len(posts) > 0 {
		updated = posts[0].PubDate
	}

	rss := &feeds.RssFeed{
		Title:         meta.Title,
		Link:          meta.Link,
		Description:   meta.Description,
		Language:      meta.Language,
		Copyright:     fmt.Sprintf("All rights reserved %d", now.Year()),
		LastBuildDate: updated.Format(time.RFC1123Z),
		PubDate:       updated.Format(time.RFC1123Z),
		Generator:     "agent2rss",
	}

	for _, p := range posts {
		item := &feeds.RssItem{
			Title:       p.Title,
			Link:        p.Link,
			Description: p.Summary,
			Content:     &feeds.RssContent{Content: p.Content},
			Author:      p.Author,
			Guid:        &feeds.RssGuid{Id: p.ID, IsPermaLink: "false"},
			PubDate:     p.PubDate.Format(time.RFC1123Z),
		}
		if len(p.Tags) > 0 {
			item.Category = strings.Join(p.Tags, ",")
		}
		rss.Items = append(rss.Items, item)
	}

	return feeds.ToXML(rss)
}
