package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"vietnam-stock-trader/observability"
)

// NewsArticle is one headline pulled from a financial RSS feed, tagged with
// the watchlist symbols it mentions.
type NewsArticle struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Symbols     []string  `json:"symbols"`
}

// rssFeed names one upstream RSS source.
type rssFeed struct {
	Name string
	URL  string
}

// defaultFeeds are the Vietnamese financial news sources polled each tick.
var defaultFeeds = []rssFeed{
	{Name: "CafeF Chung Khoan", URL: "https://cafef.vn/rss/chung-khoan.rss"},
	{Name: "CafeF Kinh Doanh", URL: "https://cafef.vn/rss/kinh-doanh.rss"},
	{Name: "VnExpress Kinh Doanh", URL: "https://vnexpress.net/rss/kinh-doanh.rss"},
	{Name: "VietStock", URL: "https://vietstock.vn/rss/tin-tuc.rss"},
}

// maxArticlesPerFeed caps how much of each feed is considered per poll.
const maxArticlesPerFeed = 20

// NewsService fetches headlines from Vietnamese financial RSS feeds and
// matches them against traded symbols.
type NewsService struct {
	client *resty.Client
	feeds  []rssFeed
}

// NewNewsService creates a news service polling the default feeds.
func NewNewsService() *NewsService {
	return &NewsService{
		client: resty.New().SetTimeout(30 * time.Second),
		feeds:  defaultFeeds,
	}
}

// rss mirrors the subset of RSS 2.0 the feeds emit.
type rss struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// FetchAll polls every configured feed and returns the merged articles,
// newest first. A feed that fails to fetch is logged and skipped; one dead
// source must not blank out the others.
func (s *NewsService) FetchAll(ctx context.Context, symbols []string) ([]NewsArticle, error) {
	metrics := observability.GetMetrics()

	var all []NewsArticle
	for _, feed := range s.feeds {
		metrics.RecordExternalAPIRequest("newsfeed", "fetch")
		timer := metrics.NewTimer()

		articles, err := s.fetchFeed(ctx, feed, symbols)
		timer.ObserveExternalAPI("newsfeed", "fetch")
		if err != nil {
			metrics.RecordExternalAPIError("newsfeed", "fetch", "transient")
			observability.Warn("news feed fetch failed", "feed", feed.Name, "error", err)
			continue
		}
		all = append(all, articles...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	return all, nil
}

// ForSymbol returns recent articles mentioning symbol.
func (s *NewsService) ForSymbol(ctx context.Context, symbol string) ([]NewsArticle, error) {
	all, err := s.FetchAll(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	var matched []NewsArticle
	for _, a := range all {
		for _, sym := range a.Symbols {
			if sym == symbol {
				matched = append(matched, a)
				break
			}
		}
	}
	return matched, nil
}

// Headlines returns the titles of recent articles mentioning symbol.
func (s *NewsService) Headlines(ctx context.Context, symbol string) ([]string, error) {
	articles, err := s.ForSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(articles))
	for _, a := range articles {
		titles = append(titles, a.Title)
	}
	return titles, nil
}

func (s *NewsService) fetchFeed(ctx context.Context, feed rssFeed, symbols []string) ([]NewsArticle, error) {
	result, err := GetGlobalRegistry().Execute(ctx, BreakerNewsFeed, func() (any, error) {
		resp, err := s.client.R().SetContext(ctx).Get(feed.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", feed.Name, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%s returned status %d", feed.Name, resp.StatusCode())
		}
		return resp.Body(), nil
	})
	if err != nil {
		return nil, err
	}

	var doc rss
	if err := xml.Unmarshal(result.([]byte), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s feed: %w", feed.Name, err)
	}

	items := doc.Channel.Items
	if len(items) > maxArticlesPerFeed {
		items = items[:maxArticlesPerFeed]
	}

	articles := make([]NewsArticle, 0, len(items))
	for _, item := range items {
		articles = append(articles, NewsArticle{
			Title:       strings.TrimSpace(item.Title),
			Summary:     strings.TrimSpace(item.Description),
			URL:         item.Link,
			Source:      feed.Name,
			PublishedAt: parsePubDate(item.PubDate),
			Symbols:     extractSymbols(item.Title+" "+item.Description, symbols),
		})
	}
	return articles, nil
}

// parsePubDate parses the pubDate formats the feeds actually use. An
// unparseable date falls back to now so sorting stays stable.
func parsePubDate(s string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Now()
}

// extractSymbols finds which symbols appear as whole uppercase words in
// text. Ticker symbols are short, so a substring match would false-positive
// inside ordinary words.
func extractSymbols(text string, symbols []string) []string {
	var found []string
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[w] = true
	}
	for _, sym := range symbols {
		if present[sym] {
			found = append(found, sym)
		}
	}
	return found
}
