package enrich

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscout/internal/fetcher"
	"github.com/sells-group/leadscout/internal/resilience"
)

const (
	// Mailto links are near-certain contact addresses; regex hits in the
	// raw body are weaker.
	confidenceMailto = 90
	confidenceBody   = 70
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	placeholderLocals = map[string]bool{
		"test": true, "demo": true, "noreply": true, "no-reply": true, "example": true,
	}
	fileExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js", ".ico"}

	contactPathKeywords = []string{"/contact", "/contact-us", "/about", "/about-us"}
)

// FoundEmail is one validated candidate address with provenance.
type FoundEmail struct {
	Email      string `json:"email"`
	Source     string `json:"source"`
	Confidence int    `json:"confidence"`
}

// EmailResult reports an extraction run. Error is informational: an
// unreachable site yields an empty result, not a failed job.
type EmailResult struct {
	Emails        []FoundEmail `json:"emails"`
	PagesScraped  int          `json:"pagesScraped"`
	RobotsAllowed bool         `json:"robotsAllowed"`
	Error         string       `json:"error,omitempty"`
}

// EmailExtractorOptions configures a crawl. Unset MaxPages, Timeout, and
// BotName take the defaults; MaxDepth 0 means root page only, and
// RespectRobots false skips the robots.txt check entirely.
type EmailExtractorOptions struct {
	MaxPages      int
	MaxDepth      int
	Timeout       time.Duration
	RespectRobots bool

	// BotName is the identity matched against robots.txt User-agent
	// groups. It must be the bare bot token, not the full browser-style
	// User-Agent header (robots group matching is by name prefix); the
	// header itself is the fetcher client's concern.
	BotName string
}

func (o *EmailExtractorOptions) applyDefaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.BotName == "" {
		o.BotName = "LeadScoutBot"
	}
}

// EmailExtractor crawls a small set of pages on one site and extracts
// contact email addresses.
type EmailExtractor struct {
	client *fetcher.Client
	opts   EmailExtractorOptions
}

func NewEmailExtractor(client *fetcher.Client, opts EmailExtractorOptions) *EmailExtractor {
	opts.applyDefaults()
	return &EmailExtractor{client: client, opts: opts}
}

// Scrape crawls the root page plus same-origin contact/about pages, up to
// MaxPages total, and returns every validated email found.
func (e *EmailExtractor) Scrape(ctx context.Context, rawURL string) EmailResult {
	root, err := url.Parse(NormalizeWebsiteURL(rawURL))
	if err != nil || root == nil || root.Host == "" {
		return EmailResult{RobotsAllowed: true, Error: "invalid url"}
	}

	robots := e.loadRobots(ctx, root)
	if !e.pathAllowed(robots, "/") {
		zap.L().Info("root path disallowed by robots.txt", zap.String("host", root.Host))
		return EmailResult{RobotsAllowed: false}
	}

	result := EmailResult{RobotsAllowed: true}
	found := map[string]FoundEmail{}

	body, err := e.fetchPage(ctx, root.String())
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.PagesScraped = 1
	collectEmails(body, found)

	// A depth of zero means the root page only, as soon as it yields
	// anything.
	if e.opts.MaxDepth == 0 && len(found) > 0 {
		result.Emails = sortedEmails(found)
		return result
	}

	links := harvestContactLinks(body, root)
	budget := e.opts.MaxPages - 1
	if len(links) > budget {
		links = links[:budget]
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, link := range links {
		if !e.pathAllowed(robots, link.Path) {
			continue
		}
		pageURL := link.String()
		g.Go(func() error {
			pageBody, err := e.fetchPage(gctx, pageURL)
			if err != nil {
				zap.L().Debug("contact page fetch failed",
					zap.String("url", pageURL), zap.Error(err))
				return nil
			}
			mu.Lock()
			result.PagesScraped++
			collectEmails(pageBody, found)
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	result.Emails = sortedEmails(found)
	return result
}

func (e *EmailExtractor) fetchPage(ctx context.Context, pageURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	resp, err := e.client.Get(fetchCtx, pageURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}
	return string(resp.Body), nil
}

// loadRobots fetches and parses robots.txt for the origin. Any fetch or
// parse problem defaults to allowed.
func (e *EmailExtractor) loadRobots(ctx context.Context, root *url.URL) *robotstxt.RobotsData {
	if !e.opts.RespectRobots {
		return nil
	}

	robotsURL := *root
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""

	var data *robotstxt.RobotsData
	err := resilience.Do(ctx, resilience.RetryConfig{MaxAttempts: 2}, func(ctx context.Context) error {
		fetchCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()

		resp, err := e.client.Get(fetchCtx, robotsURL.String())
		if err != nil {
			return err
		}
		if resp.StatusCode != 200 {
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(fmt.Errorf("robots.txt http %d", resp.StatusCode), resp.StatusCode)
			}
			return nil
		}
		parsed, parseErr := robotstxt.FromBytes(resp.Body)
		if parseErr != nil {
			return nil
		}
		data = parsed
		return nil
	})
	if err != nil {
		zap.L().Debug("robots.txt fetch failed, defaulting to allowed",
			zap.String("host", root.Host), zap.Error(err))
		return nil
	}
	return data
}

func (e *EmailExtractor) pathAllowed(robots *robotstxt.RobotsData, p string) bool {
	if robots == nil {
		return true
	}
	group := robots.FindGroup(e.opts.BotName)
	if group == nil {
		return true
	}
	return group.Test(p)
}

// collectEmails merges mailto and body-text candidates into found, keeping
// the higher-confidence entry per lowercase address.
func collectEmails(body string, found map[string]FoundEmail) {
	add := func(email string, confidence int) {
		email = strings.ToLower(strings.TrimSpace(email))
		if !ValidEmail(email) {
			return
		}
		if existing, ok := found[email]; ok && existing.Confidence >= confidence {
			return
		}
		found[email] = FoundEmail{Email: email, Source: "scraped", Confidence: confidence}
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
			href := strings.TrimPrefix(sel.AttrOr("href", ""), "mailto:")
			// Strip mailto query parts like ?subject=.
			if i := strings.IndexByte(href, '?'); i >= 0 {
				href = href[:i]
			}
			add(href, confidenceMailto)
		})
	}

	for _, match := range emailPattern.FindAllString(body, -1) {
		add(match, confidenceBody)
	}
}

// ValidEmail rejects malformed addresses and known false positives (asset
// filenames matched by the regex, placeholder locals, test domains).
func ValidEmail(email string) bool {
	if len(email) < 5 || len(email) > 254 {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') {
		return false
	}
	local, domain := email[:at], email[at+1:]

	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	if len(domain)-dot-1 < 2 {
		return false
	}

	for _, ext := range fileExtensions {
		if strings.HasSuffix(local, ext) {
			return false
		}
	}
	if placeholderLocals[local] {
		return false
	}
	if domain == "localhost" || strings.HasPrefix(domain, "test.") {
		return false
	}
	return true
}

// harvestContactLinks returns same-origin links whose path contains a
// contact/about keyword, deduplicated, in order of appearance.
func harvestContactLinks(body string, root *url.URL) []*url.URL {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := sel.AttrOr("href", "")
		resolved, err := root.Parse(href)
		if err != nil {
			return
		}
		if resolved.Host != root.Host {
			return
		}
		p := strings.ToLower(strings.TrimSuffix(resolved.Path, "/"))
		matched := false
		for _, kw := range contactPathKeywords {
			if strings.Contains(p, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}
		resolved.Fragment = ""
		key := resolved.String()
		if seen[key] || key == root.String() {
			return
		}
		seen[key] = true
		links = append(links, resolved)
	})
	return links
}

func sortedEmails(found map[string]FoundEmail) []FoundEmail {
	emails := make([]FoundEmail, 0, len(found))
	for _, fe := range found {
		emails = append(emails, fe)
	}
	sort.Slice(emails, func(i, j int) bool {
		if emails[i].Confidence != emails[j].Confidence {
			return emails[i].Confidence > emails[j].Confidence
		}
		return emails[i].Email < emails[j].Email
	})
	return emails
}
