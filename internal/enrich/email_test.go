package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/fetcher"
)

func newTestEmailExtractor(t *testing.T, srv *httptest.Server, opts EmailExtractorOptions) *EmailExtractor {
	t.Helper()
	client := fetcher.New(fetcher.Options{
		UserAgent:  "Mozilla/5.0 (compatible; LeadScoutBot/1.0)",
		HTTPClient: srv.Client(),
	})
	return NewEmailExtractor(client, opts)
}

func TestScrapeMailtoAndBodyEmails(t *testing.T) {
	page := `<html><body>
		<a href="mailto:A@B.com">email us</a>
		<p>Or write to c@d.com directly.</p>
		<p>Ignore demo@company.com and logo.png@cdn.com.</p>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(page)) //nolint:errcheck
	}))
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{MaxPages: 5, MaxDepth: 2, RespectRobots: true})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.True(t, res.RobotsAllowed)
	assert.Equal(t, 1, res.PagesScraped)
	require.Len(t, res.Emails, 2)

	byAddr := map[string]FoundEmail{}
	for _, fe := range res.Emails {
		byAddr[fe.Email] = fe
	}
	require.Contains(t, byAddr, "a@b.com")
	assert.Equal(t, confidenceMailto, byAddr["a@b.com"].Confidence)
	assert.Equal(t, "scraped", byAddr["a@b.com"].Source)
	require.Contains(t, byAddr, "c@d.com")
	assert.Equal(t, confidenceBody, byAddr["c@d.com"].Confidence)
}

func TestScrapeDeduplicatesKeepingHigherConfidence(t *testing.T) {
	// Same address as mailto target and body text: the mailto entry wins.
	page := `<html><body>
		<a href="mailto:info@biz.com?subject=hi">contact</a>
		<p>info@biz.com</p>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page)) //nolint:errcheck
	}))
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{})
	res := ext.Scrape(context.Background(), srv.URL)

	require.Len(t, res.Emails, 1)
	assert.Equal(t, "info@biz.com", res.Emails[0].Email)
	assert.Equal(t, confidenceMailto, res.Emails[0].Confidence)
}

func TestScrapeFollowsContactPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/contact-us">Contact</a>
			<a href="/about">About</a>
			<a href="https://other.example/contact">elsewhere</a>
		</body></html>`)) //nolint:errcheck
	})
	mux.HandleFunc("/contact-us", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="mailto:sales@biz.com">sales</a>`)) //nolint:errcheck
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<p>Reach support@biz.com.</p>`)) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{MaxPages: 5, MaxDepth: 2})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.Equal(t, 3, res.PagesScraped)
	addrs := make([]string, 0, len(res.Emails))
	for _, fe := range res.Emails {
		addrs = append(addrs, fe.Email)
	}
	assert.ElementsMatch(t, []string{"sales@biz.com", "support@biz.com"}, addrs)
}

func TestScrapeRespectsMaxPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/contact">1</a>
			<a href="/contact-us">2</a>
			<a href="/about">3</a>
			<a href="/about-us">4</a>
		</body></html>`)) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{MaxPages: 2, MaxDepth: 2})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.Equal(t, 2, res.PagesScraped)
}

func TestScrapeRobotsDisallowRoot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /\n")) //nolint:errcheck
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("page fetched despite robots disallow")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{RespectRobots: true})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.False(t, res.RobotsAllowed)
	assert.Zero(t, res.PagesScraped)
	assert.Empty(t, res.Emails)
}

func TestScrapeRobotsDisallowSubpath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /contact\n")) //nolint:errcheck
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/contact">contact</a><p>root@biz.com</p>`)) //nolint:errcheck
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		t.Error("disallowed path fetched")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{RespectRobots: true})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.True(t, res.RobotsAllowed)
	assert.Equal(t, 1, res.PagesScraped)
	require.Len(t, res.Emails, 1)
	assert.Equal(t, "root@biz.com", res.Emails[0].Email)
}

func TestScrapeRobotsIgnoredWhenDisabled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /\n")) //nolint:errcheck
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<p>open@biz.com</p>`)) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{RespectRobots: false})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.True(t, res.RobotsAllowed)
	assert.Equal(t, 1, res.PagesScraped)
	require.Len(t, res.Emails, 1)
}

func TestScrapeRobotsMatchesBotNameNotHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: LeadScoutBot\nDisallow: /\n")) //nolint:errcheck
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("page fetched despite bot-named robots disallow")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// The fetcher sends a browser-style User-Agent header, but the robots
	// group lookup must use the bare bot token or sections addressed to
	// the bot by name would never apply.
	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{RespectRobots: true})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.False(t, res.RobotsAllowed)
	assert.Zero(t, res.PagesScraped)
}

func TestScrapeRobotsRetriesTransientStatus(t *testing.T) {
	var robotsHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&robotsHits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("User-agent: *\nDisallow: /\n")) //nolint:errcheck
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("page fetched despite robots disallow")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{RespectRobots: true})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.Equal(t, int32(2), atomic.LoadInt32(&robotsHits))
	assert.False(t, res.RobotsAllowed)
}

func TestScrapeDepthZeroStopsAfterRootHit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/contact">contact</a><p>root@biz.com</p>`)) //nolint:errcheck
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		t.Error("depth 0 should stop at the root page")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ext := newTestEmailExtractor(t, srv, EmailExtractorOptions{MaxDepth: 0, MaxPages: 5})
	res := ext.Scrape(context.Background(), srv.URL)

	assert.Equal(t, 1, res.PagesScraped)
	require.Len(t, res.Emails, 1)
}

func TestScrapeUnreachableSite(t *testing.T) {
	client := fetcher.New(fetcher.Options{Timeout: time.Second})
	ext := NewEmailExtractor(client, EmailExtractorOptions{Timeout: time.Second})

	res := ext.Scrape(context.Background(), "http://192.0.2.1:9/")
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, res.PagesScraped)
	assert.Empty(t, res.Emails)
}

func TestValidEmail(t *testing.T) {
	valid := []string{"info@biz.com", "first.last@sub.domain.co", "a+tag@b.io"}
	for _, e := range valid {
		assert.True(t, ValidEmail(e), e)
	}

	invalid := []string{
		"",
		"a@b.",
		"a@b",
		"ab.com",
		"two@@b.com",
		"logo.png@cdn.com",
		"sprite.svg@assets.example",
		"test@company.com",
		"demo@company.com",
		"noreply@company.com",
		"no-reply@company.com",
		"example@company.com",
		"user@localhost",
		"user@test.example",
	}
	for _, e := range invalid {
		assert.False(t, ValidEmail(e), e)
	}
}
