package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/zombar/socialpulse/internal/models"
)

// defaultFeedLimit caps how many items one Collect call takes from a feed
// when the caller does not say how many it wants.
const defaultFeedLimit = 20

// FeedCollector turns RSS/Atom feed items into posts. One collector reads
// one feed; companies with several feeds get several collectors.
type FeedCollector struct {
	parser  *gofeed.Parser
	feedURL string
}

func NewFeedCollector(feedURL string) *FeedCollector {
	return &FeedCollector{
		parser:  gofeed.NewParser(),
		feedURL: feedURL,
	}
}

// Collect fetches and parses the feed, returning up to n items as posts.
// Items without a usable identifier or title are dropped.
func (f *FeedCollector) Collect(ctx context.Context, company string, n int) ([]models.Post, error) {
	if n <= 0 {
		n = defaultFeedLimit
	}

	feed, err := f.parser.ParseURLWithContext(f.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", f.feedURL, err)
	}

	lang := feedLanguage(feed.Language)
	posts := make([]models.Post, 0, n)
	for _, item := range feed.Items {
		if len(posts) >= n {
			break
		}
		post, ok := f.itemToPost(item, company, lang)
		if !ok {
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (f *FeedCollector) itemToPost(item *gofeed.Item, company, lang string) (models.Post, bool) {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	title := strings.TrimSpace(item.Title)
	if id == "" || title == "" {
		return models.Post{}, false
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	content := title
	if stripped := stripHTML(body); stripped != "" {
		content = title + ". " + stripped
	}

	var author string
	if item.Author != nil {
		author = item.Author.Name
	}

	createdAt := time.Now().UTC()
	if item.PublishedParsed != nil {
		createdAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		createdAt = item.UpdatedParsed.UTC()
	}

	return models.Post{
		ID:        id,
		Author:    author,
		Content:   content,
		Language:  lang,
		CreatedAt: createdAt,
		Source:    SourceFeed,
		Company:   company,
		Hashtags:  item.Categories,
	}, true
}

// feedLanguage normalizes values like "en-US" to a two-letter code
func feedLanguage(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if len(raw) >= 2 {
		return raw[:2]
	}
	return ""
}

func stripHTML(text string) string {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	s := b.String()
	for entity, replacement := range map[string]string{
		"&nbsp;": " ",
		"&amp;":  "&",
		"&lt;":   "<",
		"&gt;":   ">",
		"&quot;": `"`,
		"&#39;":  "'",
	} {
		s = strings.ReplaceAll(s, entity, replacement)
	}
	return strings.Join(strings.Fields(s), " ")
}
