// Package enrich holds the enrichment leaf components (website validation,
// email extraction, social profile extraction) and the job processor that
// dispatches claimed jobs to them.
package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/fetcher"
	"github.com/sells-group/leadscout/internal/model"
)

// defaultSlowLoad marks a page load as an issue once it exceeds this.
const defaultSlowLoad = 5000 * time.Millisecond

// ValidationResult is the full website health report. Status is the label
// persisted to the lead; Issues keeps every detected problem even when only
// one decides the label.
type ValidationResult struct {
	Status            model.WebsiteStatus `json:"status"`
	ResponseCode      int                 `json:"responseCode,omitempty"`
	LoadTimeMs        int64               `json:"loadTimeMs,omitempty"`
	HasSSL            bool                `json:"hasSsl"`
	HasMobileViewport bool                `json:"hasMobileViewport"`
	Issues            []string            `json:"issues,omitempty"`
}

// ValidatorOptions configures validation thresholds. Zero values take the
// defaults.
type ValidatorOptions struct {
	Timeout  time.Duration
	SlowLoad time.Duration
}

// Validator fetches a lead's website and classifies its health.
type Validator struct {
	client   *fetcher.Client
	timeout  time.Duration
	slowLoad time.Duration
}

func NewValidator(client *fetcher.Client, opts ValidatorOptions) *Validator {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.SlowLoad <= 0 {
		opts.SlowLoad = defaultSlowLoad
	}
	return &Validator{client: client, timeout: opts.Timeout, slowLoad: opts.SlowLoad}
}

// NormalizeWebsiteURL trims, lowercases, and defaults the scheme to https.
// Returns "" for input that cannot be a website address.
func NormalizeWebsiteURL(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.String()
}

// Validate fetches the URL and classifies it. Expected failure modes
// (timeouts, DNS errors, 4xx/5xx) are encoded in the result, never returned
// as errors.
func (v *Validator) Validate(ctx context.Context, rawURL string) ValidationResult {
	normalized := NormalizeWebsiteURL(rawURL)
	if normalized == "" {
		return ValidationResult{Status: model.WebsiteStatusNoWebsite}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.Get(fetchCtx, normalized)
	if err != nil {
		if fetcher.IsTimeout(err) {
			return ValidationResult{
				Status: model.WebsiteStatusBroken,
				Issues: []string{"Request timed out"},
			}
		}
		return ValidationResult{
			Status: model.WebsiteStatusBroken,
			Issues: []string{fmt.Sprintf("Network error: %s", err.Error())},
		}
	}

	result := ValidationResult{
		ResponseCode: resp.StatusCode,
		LoadTimeMs:   resp.Elapsed.Milliseconds(),
		HasSSL:       resp.UsedTLS,
	}

	if resp.StatusCode >= 400 {
		result.Status = model.WebsiteStatusBroken
		result.Issues = []string{fmt.Sprintf("HTTP %d error", resp.StatusCode)}
		return result
	}

	result.HasMobileViewport = hasResponsiveViewport(string(resp.Body))
	result.Issues = collectIssues(result.HasSSL, result.HasMobileViewport, resp.Elapsed, v.slowLoad)
	result.Status = classify(result.Issues)

	zap.L().Debug("website validated",
		zap.String("url", normalized),
		zap.String("status", string(result.Status)),
		zap.Int("responseCode", result.ResponseCode),
		zap.Int64("loadTimeMs", result.LoadTimeMs),
		zap.Strings("issues", result.Issues))
	return result
}

func collectIssues(hasSSL, hasViewport bool, elapsed, slowLoad time.Duration) []string {
	var issues []string
	if !hasSSL {
		issues = append(issues, "No HTTPS/SSL")
	}
	if elapsed > slowLoad {
		issues = append(issues, fmt.Sprintf("Slow page load (%dms)", elapsed.Milliseconds()))
	}
	if !hasViewport {
		issues = append(issues, "No mobile viewport meta tag")
	}
	return issues
}

// classify maps accumulated issues to a status label. Missing SSL or a slow
// load marks the site outdated; a missing viewport alone only counts as a
// technical issue.
func classify(issues []string) model.WebsiteStatus {
	if len(issues) == 0 {
		return model.WebsiteStatusAcceptable
	}
	for _, issue := range issues {
		if issue == "No HTTPS/SSL" || strings.HasPrefix(issue, "Slow page load") {
			return model.WebsiteStatusOutdated
		}
	}
	return model.WebsiteStatusTechnicalIssues
}

func hasResponsiveViewport(body string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return false
	}
	found := false
	doc.Find(`meta[name="viewport"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		content := strings.ToLower(sel.AttrOr("content", ""))
		if strings.Contains(content, "width=device-width") || strings.Contains(content, "initial-scale") {
			found = true
			return false
		}
		return true
	})
	return found
}
