package prober

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// PageContent is the readable text pulled from a listing page.
type PageContent struct {
	Title    string
	Markdown string
}

// Extractor fetches a listing page and reduces it to readable markdown for
// the leverage scanner.
type Extractor struct {
	client         *http.Client
	userAgent      string
	maxContentSize int64
	converter      *md.Converter
}

// NewExtractor creates a page extractor.
func NewExtractor(client *http.Client, userAgent string, maxContentSize int64) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Extractor{
		client:         client,
		userAgent:      userAgent,
		maxContentSize: maxContentSize,
		converter:      converter,
	}
}

// Extract fetches the page and returns its readable content. Readability
// isolates the article body; pages it cannot parse fall back to a whole-page
// conversion.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*PageContent, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	body, err := e.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	content := body
	title := ""
	if article, err := readability.FromReader(bytes.NewReader(body), parsed); err == nil && article.Content != "" {
		content = []byte(article.Content)
		title = article.Title
	}
	if title == "" {
		title = htmlTitle(body)
	}

	markdown, err := e.converter.ConvertString(string(content))
	if err != nil {
		return nil, fmt.Errorf("convert page: %w", err)
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n"))

	return &PageContent{Title: title, Markdown: markdown}, nil
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	limitReader := io.LimitReader(resp.Body, e.maxContentSize+1)
	body, err := io.ReadAll(limitReader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > e.maxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", e.maxContentSize)
	}
	return body, nil
}

// htmlTitle extracts the <title> text from raw HTML.
func htmlTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			walk(c)
		}
	}
	walk(doc)
	return title
}
