package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

const rssPayload = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<item>
<title>FPT trúng thầu dự án lớn</title>
<link>https://example.com/fpt</link>
<description>Cổ phiếu FPT tăng mạnh sau tin trúng thầu</description>
<pubDate>Fri, 21 Aug 2026 09:30:00 +0700</pubDate>
</item>
<item>
<title>Thị trường đi ngang</title>
<link>https://example.com/market</link>
<description>VNM và HPG giằng co quanh tham chiếu</description>
<pubDate>Fri, 21 Aug 2026 08:00:00 +0700</pubDate>
</item>
</channel>
</rss>`

func newsServiceFor(urls ...string) *NewsService {
	s := NewNewsService()
	s.feeds = nil
	for _, u := range urls {
		s.feeds = append(s.feeds, rssFeed{Name: "test", URL: u})
	}
	return s
}

func TestFetchAllParsesAndSorts(t *testing.T) {
	resetBreakers(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssPayload))
	}))
	defer srv.Close()

	svc := newsServiceFor(srv.URL)
	articles, err := svc.FetchAll(context.Background(), []string{"FPT", "VNM", "HPG"})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("articles = %d, want 2", len(articles))
	}

	// Newest first.
	if !articles[0].PublishedAt.After(articles[1].PublishedAt) {
		t.Error("articles not sorted newest first")
	}
	if got := articles[0].Symbols; !reflect.DeepEqual(got, []string{"FPT"}) {
		t.Errorf("first article symbols = %v, want [FPT]", got)
	}
	if got := articles[1].Symbols; !reflect.DeepEqual(got, []string{"VNM", "HPG"}) {
		t.Errorf("second article symbols = %v, want [VNM HPG]", got)
	}
}

func TestFetchAllSkipsDeadFeeds(t *testing.T) {
	resetBreakers(t)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssPayload))
	}))
	defer good.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer dead.Close()

	svc := newsServiceFor(dead.URL, good.URL)
	articles, err := svc.FetchAll(context.Background(), []string{"FPT"})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(articles) != 2 {
		t.Errorf("articles = %d, want the 2 from the healthy feed", len(articles))
	}
}

func TestHeadlinesFiltersBySymbol(t *testing.T) {
	resetBreakers(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssPayload))
	}))
	defer srv.Close()

	svc := newsServiceFor(srv.URL)
	titles, err := svc.Headlines(context.Background(), "FPT")
	if err != nil {
		t.Fatalf("Headlines() error = %v", err)
	}
	if len(titles) != 1 || titles[0] != "FPT trúng thầu dự án lớn" {
		t.Errorf("Headlines() = %v, want the single FPT headline", titles)
	}
}

func TestExtractSymbols(t *testing.T) {
	watch := []string{"FPT", "VNM", "HPG"}
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"whole word match", "Cổ phiếu FPT tăng trần, VNM giảm nhẹ", []string{"FPT", "VNM"}},
		{"substring does not match", "FPTS công bố kết quả kinh doanh", nil},
		{"lowercase does not match", "fpt và vnm cùng tăng", nil},
		{"punctuation boundaries", "Khuyến nghị mua HPG: giá mục tiêu 30.000", []string{"HPG"}},
		{"no symbols", "Thị trường chờ tin vĩ mô", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractSymbols(tt.text, watch)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractSymbols() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePubDate(t *testing.T) {
	got := parsePubDate("Fri, 21 Aug 2026 09:30:00 +0700")
	want := time.Date(2026, 8, 21, 9, 30, 0, 0, time.FixedZone("", 7*3600))
	if !got.Equal(want) {
		t.Errorf("parsePubDate() = %v, want %v", got, want)
	}

	// An unparseable date falls back to roughly now.
	before := time.Now()
	fallback := parsePubDate("yesterday-ish")
	if fallback.Before(before.Add(-time.Minute)) {
		t.Errorf("fallback date = %v, want close to now", fallback)
	}
}
