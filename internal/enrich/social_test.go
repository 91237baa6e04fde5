package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/fetcher"
)

func TestExtractSocialLinksNormalization(t *testing.T) {
	html := `<html><body>
		<a href="facebook.com/MyBiz?ref=bookmarks">fb</a>
		<a href="https://www.instagram.com/mybiz/">ig</a>
		<a href="http://linkedin.com/company/my-biz/">li</a>
	</body></html>`

	links := ExtractSocialLinks(html)
	assert.Equal(t, "https://www.facebook.com/MyBiz", links.FacebookURL)
	assert.Equal(t, "https://www.instagram.com/mybiz", links.InstagramURL)
	assert.Equal(t, "https://www.linkedin.com/company/my-biz", links.LinkedInURL)
	assert.Equal(t, 3, links.Count())
}

func TestExtractSocialLinksFbDotCom(t *testing.T) {
	links := ExtractSocialLinks(`visit fb.com/AcmePlumbing today`)
	assert.Equal(t, "https://www.facebook.com/AcmePlumbing", links.FacebookURL)
}

func TestExtractSocialLinksFacebookPages(t *testing.T) {
	links := ExtractSocialLinks(`<a href="https://www.facebook.com/pages/Plumbers/AcmePlumbing">fb</a>`)
	assert.Equal(t, "https://www.facebook.com/AcmePlumbing", links.FacebookURL)
}

func TestExtractSocialLinksRejectsGenericPaths(t *testing.T) {
	html := `
		<a href="https://www.facebook.com/home">a</a>
		<a href="https://www.facebook.com/login">b</a>
		<a href="https://www.instagram.com/explore">c</a>
		<a href="https://www.instagram.com/reels">d</a>
		<a href="https://www.linkedin.com/feed/update/123">e</a>
	`
	links := ExtractSocialLinks(html)
	assert.Empty(t, links.FacebookURL)
	assert.Empty(t, links.InstagramURL)
	assert.Empty(t, links.LinkedInURL)
	assert.Zero(t, links.Count())
}

func TestExtractSocialLinksLinkedInProfiles(t *testing.T) {
	links := ExtractSocialLinks(`<a href="https://www.linkedin.com/in/jane-doe">me</a>`)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe", links.LinkedInURL)
}

func TestExtractSocialLinksFirstValidWins(t *testing.T) {
	html := `
		<a href="https://www.facebook.com/login">skip</a>
		<a href="https://www.facebook.com/FirstBiz">first</a>
		<a href="https://www.facebook.com/SecondBiz">second</a>
	`
	links := ExtractSocialLinks(html)
	assert.Equal(t, "https://www.facebook.com/FirstBiz", links.FacebookURL)
}

func TestSocialScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<a href="https://www.instagram.com/mybiz">ig</a>`)) //nolint:errcheck
	}))
	defer srv.Close()

	s := NewSocialScraper(fetcher.New(fetcher.Options{HTTPClient: srv.Client()}), 10*time.Second)
	res := s.Scrape(context.Background(), srv.URL)

	assert.Empty(t, res.Error)
	assert.Equal(t, 1, res.FoundURLs)
	assert.Equal(t, "https://www.instagram.com/mybiz", res.InstagramURL)
}

func TestSocialScrapeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSocialScraper(fetcher.New(fetcher.Options{HTTPClient: srv.Client()}), 10*time.Second)
	res := s.Scrape(context.Background(), srv.URL)

	require.NotEmpty(t, res.Error)
	assert.Contains(t, res.Error, "503")
	assert.Zero(t, res.FoundURLs)
}

func TestSocialScrapeNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"instagram": "https://www.instagram.com/mybiz"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	s := NewSocialScraper(fetcher.New(fetcher.Options{HTTPClient: srv.Client()}), 10*time.Second)
	res := s.Scrape(context.Background(), srv.URL)

	require.NotEmpty(t, res.Error)
	assert.Contains(t, res.Error, "not html")
	assert.Zero(t, res.FoundURLs)
}

func TestSocialScrapeFetchError(t *testing.T) {
	s := NewSocialScraper(fetcher.New(fetcher.Options{Timeout: time.Second}), time.Second)

	res := s.Scrape(context.Background(), "http://192.0.2.1:9/")
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, res.FoundURLs)
}

func TestIsSocialOnly(t *testing.T) {
	withLinks := SocialLinks{FacebookURL: "https://www.facebook.com/biz"}

	assert.True(t, IsSocialOnly(false, withLinks))
	assert.False(t, IsSocialOnly(true, withLinks))
	assert.False(t, IsSocialOnly(false, SocialLinks{}))
}
