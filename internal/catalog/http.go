package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/knowledge-engine/recommender/internal/config"
)

// maxFeedBytes caps how much of a remote feed is read
const maxFeedBytes = 64 << 20

// HTTPSource downloads the catalog from a product feed URL. The feed is a JSON
// array of products, or CSV when the response or URL says so.
type HTTPSource struct {
	feedURL       string
	userAgent     string
	respectRobots bool
	maxBytes      int64
	client        *http.Client
}

func NewHTTPSource(cfg config.CatalogConfig) *HTTPSource {
	return &HTTPSource{
		feedURL:       cfg.URL,
		userAgent:     cfg.UserAgent,
		respectRobots: cfg.RespectRobots,
		maxBytes:      maxFeedBytes,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (s *HTTPSource) Name() string {
	return "http:" + s.feedURL
}

// Products fetches and decodes the feed
func (s *HTTPSource) Products(ctx context.Context) ([]RawProduct, error) {
	feed, err := url.Parse(s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}

	if s.respectRobots {
		allowed, err := s.isAllowed(ctx, feed)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("feed %s blocked by robots.txt", s.feedURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json, text/csv;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("feed exceeds %d bytes", s.maxBytes)
	}

	body := bytes.NewReader(data)
	if isCSVFeed(resp.Header.Get("Content-Type"), feed.Path) {
		return decodeCSV(ctx, body)
	}
	return decodeJSON(ctx, body)
}

// isAllowed checks robots.txt on the feed host. An unreachable robots.txt allows the request.
func (s *HTTPSource) isAllowed(ctx context.Context, feed *url.URL) (bool, error) {
	robotsURL := url.URL{Scheme: feed.Scheme, Host: feed.Host, Path: "/robots.txt"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return true, nil
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return false, fmt.Errorf("failed to parse robots.txt: %w", err)
	}

	feedPath := feed.EscapedPath()
	if feedPath == "" {
		feedPath = "/"
	}
	return robots.TestAgent(feedPath, s.userAgent), nil
}

func isCSVFeed(contentType, urlPath string) bool {
	if strings.Contains(strings.ToLower(contentType), "csv") {
		return true
	}
	return strings.EqualFold(path.Ext(urlPath), ".csv")
}
