package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/air23zj/pal-sub001/internal/item"
)

const (
	defaultMaxPerFeed = 20
	fetchTimeout      = 15 * time.Second
)

// RSSSource reads one RSS/Atom feed and normalizes its entries to post
// items. When FullContent is set, entries with thin summaries get their
// linked page fetched and run through readability extraction.
type RSSSource struct {
	name        string
	feedURL     string
	fullContent bool
	maxItems    int
	parser      *gofeed.Parser
	client      *http.Client
}

// NewRSSSource creates a connector for one feed. name becomes the module
// id on every item the feed produces.
func NewRSSSource(name, feedURL string, fullContent bool) *RSSSource {
	return &RSSSource{
		name:        name,
		feedURL:     feedURL,
		fullContent: fullContent,
		maxItems:    defaultMaxPerFeed,
		parser:      gofeed.NewParser(),
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Name implements Source.
func (s *RSSSource) Name() string { return s.name }

// Fetch implements Source.
func (s *RSSSource) Fetch(ctx context.Context) ([]item.NormalizedItem, error) {
	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", s.feedURL, err)
	}

	var items []item.NormalizedItem
	for _, entry := range feed.Items {
		if len(items) >= s.maxItems {
			break
		}
		norm := s.normalize(ctx, entry)
		if norm == nil {
			continue
		}
		items = append(items, *norm)
	}
	return items, nil
}

func (s *RSSSource) normalize(ctx context.Context, entry *gofeed.Item) *item.NormalizedItem {
	sourceID := entry.GUID
	if sourceID == "" {
		sourceID = entry.Link
	}
	if sourceID == "" || entry.Title == "" {
		return nil
	}

	ts := time.Now().UTC()
	if entry.PublishedParsed != nil {
		ts = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		ts = entry.UpdatedParsed.UTC()
	}

	body := strings.TrimSpace(entry.Content)
	if body == "" {
		body = strings.TrimSpace(entry.Description)
	}
	if s.fullContent && len(body) < 200 && entry.Link != "" {
		if full := s.fetchReadable(ctx, entry.Link); full != "" {
			body = full
		}
	}

	var entities []item.Entity
	for _, cat := range entry.Categories {
		if cat = strings.TrimSpace(cat); cat != "" {
			entities = append(entities, item.Entity{Kind: item.EntityTopic, Name: cat})
		}
	}

	from := ""
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		from = entry.Authors[0].Name
	}

	return &item.NormalizedItem{
		Module:    s.name,
		SourceID:  sourceID,
		Type:      item.TypePost,
		Title:     entry.Title,
		Body:      body,
		From:      from,
		Entities:  entities,
		Timestamp: ts,
	}
}

// fetchReadable pulls the linked page and extracts its main text. Any
// failure just means the entry keeps its feed summary.
func (s *RSSSource) fetchReadable(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "daybrief/1.0 (personal briefing)")

	resp, err := s.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("content fetch for %s returned %d", pageURL, resp.StatusCode)
		return ""
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < 100 {
		return ""
	}
	if len(text) > 4000 {
		text = text[:4000]
	}
	return text
}
