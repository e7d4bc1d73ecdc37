package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<!DOCTYPE html>
<html>
<head><title>101 Main St - For Sale</title></head>
<body>
<nav>Home | Search | Contact</nav>
<article>
<h1>101 Main St, Austin TX</h1>
<p>Charming 3 bed 2 bath home. Price reduced! Now 75 days on market.</p>
<p>Sold as-is, seller relocating out of state.</p>
</article>
<footer>Copyright</footer>
</body>
</html>`

func TestExtractProducesMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client(), "test-agent", 1024*1024)
	page, err := e.Extract(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, page.Markdown, "101 Main St")
	assert.Contains(t, page.Markdown, "75 days on market")
	assert.Contains(t, page.Markdown, "as-is")
}

func TestExtractFeedsLeverageScanner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client(), "test-agent", 1024*1024)
	page, err := e.Extract(context.Background(), srv.URL)
	require.NoError(t, err)

	report := Analyze(page.Markdown)
	require.NotEmpty(t, report.Findings)
	assert.Greater(t, report.LeverageScore, 0.0)
}

func TestExtractRejectsNonHTTP(t *testing.T) {
	e := NewExtractor(nil, "test-agent", 1024)
	_, err := e.Extract(context.Background(), "ftp://example.com/listing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestExtractEnforcesSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body>" + strings.Repeat("x", 4096) + "</body></html>"))
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client(), "test-agent", 1024)
	_, err := e.Extract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestExtractPropagatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client(), "test-agent", 1024)
	_, err := e.Extract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
