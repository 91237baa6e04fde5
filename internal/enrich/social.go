package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/leadscout/internal/fetcher"
)

// SocialLinks holds the normalized profile URL per platform. Empty string
// means not found.
type SocialLinks struct {
	FacebookURL  string `json:"facebookUrl,omitempty"`
	InstagramURL string `json:"instagramUrl,omitempty"`
	LinkedInURL  string `json:"linkedinUrl,omitempty"`
}

// SocialResult is the outcome of scraping one page for social profiles.
type SocialResult struct {
	SocialLinks
	FoundURLs int    `json:"foundUrls"`
	Error     string `json:"error,omitempty"`
}

var (
	facebookPattern  = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:facebook\.com|fb\.com)(/[A-Za-z0-9_.\-/]+)`)
	instagramPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?instagram\.com(/[A-Za-z0-9_.\-/]+)`)
	linkedinPattern  = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com(/[A-Za-z0-9_.\-/]+)`)

	facebookGenericPaths  = map[string]bool{"home": true, "login": true, "signup": true, "marketplace": true, "groups": true}
	instagramGenericPaths = map[string]bool{"explore": true, "accounts": true, "direct": true, "stories": true, "tv": true, "reels": true}
)

// ExtractSocialLinks scans HTML for social profile URLs and normalizes the
// first valid candidate per platform.
func ExtractSocialLinks(html string) SocialLinks {
	var links SocialLinks
	links.FacebookURL = firstMatch(facebookPattern, html, normalizeFacebookPath)
	links.InstagramURL = firstMatch(instagramPattern, html, normalizeInstagramPath)
	links.LinkedInURL = firstMatch(linkedinPattern, html, normalizeLinkedInPath)
	return links
}

// Count reports how many platform fields are set.
func (s SocialLinks) Count() int {
	n := 0
	for _, u := range []string{s.FacebookURL, s.InstagramURL, s.LinkedInURL} {
		if u != "" {
			n++
		}
	}
	return n
}

// SocialScraper fetches a page and extracts social profile links from it.
type SocialScraper struct {
	client  *fetcher.Client
	timeout time.Duration
}

func NewSocialScraper(client *fetcher.Client, timeout time.Duration) *SocialScraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SocialScraper{client: client, timeout: timeout}
}

// Scrape fetches the URL and runs ExtractSocialLinks on its body. Non-2xx
// responses and non-HTML content yield an error with zero found URLs.
func (s *SocialScraper) Scrape(ctx context.Context, rawURL string) SocialResult {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Get(fetchCtx, NormalizeWebsiteURL(rawURL))
	if err != nil {
		return SocialResult{Error: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SocialResult{Error: fmt.Sprintf("http %d", resp.StatusCode)}
	}
	if !fetcher.IsHTML(resp.ContentType) {
		return SocialResult{Error: fmt.Sprintf("not html: %s", resp.ContentType)}
	}

	links := ExtractSocialLinks(string(resp.Body))
	return SocialResult{SocialLinks: links, FoundURLs: links.Count()}
}

// IsSocialOnly is true when a lead has no working website but at least one
// social profile was discovered.
func IsSocialOnly(hasWorkingWebsite bool, links SocialLinks) bool {
	return !hasWorkingWebsite && links.Count() > 0
}

func firstMatch(pattern *regexp.Regexp, html string, normalizePath func(string) string) string {
	for _, m := range pattern.FindAllStringSubmatch(html, -1) {
		if normalized := normalizePath(cleanMatchedPath(m[1])); normalized != "" {
			return normalized
		}
	}
	return ""
}

// cleanMatchedPath strips query, fragment, and the trailing slash from a
// regex-captured path.
func cleanMatchedPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.TrimSuffix(p, "/")
}

func normalizeFacebookPath(p string) string {
	segs := pathSegments(p)
	if len(segs) == 0 {
		return ""
	}
	// Page URLs like /pages/Category/slug carry the real identifier last.
	if strings.EqualFold(segs[0], "pages") {
		if len(segs) < 2 {
			return ""
		}
		segs = segs[len(segs)-1:]
	}
	if facebookGenericPaths[strings.ToLower(segs[0])] {
		return ""
	}
	return "https://www.facebook.com/" + strings.Join(segs, "/")
}

func normalizeInstagramPath(p string) string {
	segs := pathSegments(p)
	if len(segs) == 0 {
		return ""
	}
	if instagramGenericPaths[strings.ToLower(segs[0])] {
		return ""
	}
	return "https://www.instagram.com/" + strings.Join(segs, "/")
}

func normalizeLinkedInPath(p string) string {
	segs := pathSegments(p)
	if len(segs) < 2 {
		return ""
	}
	head := strings.ToLower(segs[0])
	if head != "company" && head != "in" {
		return ""
	}
	return "https://www.linkedin.com/" + strings.Join(segs, "/")
}

func pathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
