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
	"github.com/sells-group/leadscout/internal/model"
)

const viewportPage = `<html><head>
<meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>hello</body></html>`

const plainPage = `<html><head><title>old site</title></head><body>hello</body></html>`

func newTestValidator(t *testing.T, srv *httptest.Server) *Validator {
	t.Helper()
	client := fetcher.New(fetcher.Options{
		UserAgent:  "LeadScoutBot/test",
		HTTPClient: srv.Client(),
	})
	return NewValidator(client, ValidatorOptions{Timeout: 10 * time.Second})
}

func TestNormalizeWebsiteURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM", "https://example.com"},
		{"  https://example.com/About  ", "https://example.com/about"},
		{"http://example.com", "http://example.com"},
		{"", ""},
		{"   ", ""},
		{"ht tp://bad url", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeWebsiteURL(tc.in), "input %q", tc.in)
	}
}

func TestValidateEmptyURL(t *testing.T) {
	v := NewValidator(fetcher.New(fetcher.Options{}), ValidatorOptions{Timeout: time.Second})

	res := v.Validate(context.Background(), "")
	assert.Equal(t, model.WebsiteStatusNoWebsite, res.Status)
	assert.Empty(t, res.Issues)
}

func TestValidate404IsBroken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res := newTestValidator(t, srv).Validate(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusBroken, res.Status)
	assert.Equal(t, 404, res.ResponseCode)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0], "404")
}

func TestValidateUnreachableIsBroken(t *testing.T) {
	v := NewValidator(fetcher.New(fetcher.Options{}), ValidatorOptions{Timeout: 2 * time.Second})

	// Reserved TEST-NET-1 address, nothing listens there.
	res := v.Validate(context.Background(), "http://192.0.2.1:9/")
	assert.Equal(t, model.WebsiteStatusBroken, res.Status)
	require.Len(t, res.Issues, 1)
	assert.True(t,
		res.Issues[0] == "Request timed out" ||
			len(res.Issues[0]) > len("Network error: "),
		"unexpected issue %q", res.Issues[0])
}

func TestValidateNoTLSWithViewportIsOutdated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(viewportPage)) //nolint:errcheck
	}))
	defer srv.Close()

	res := newTestValidator(t, srv).Validate(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusOutdated, res.Status)
	assert.False(t, res.HasSSL)
	assert.True(t, res.HasMobileViewport)
	assert.Contains(t, res.Issues, "No HTTPS/SSL")
}

func TestValidateHTTPSWithViewportIsAcceptable(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(viewportPage)) //nolint:errcheck
	}))
	defer srv.Close()

	res := newTestValidator(t, srv).Validate(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusAcceptable, res.Status)
	assert.True(t, res.HasSSL)
	assert.True(t, res.HasMobileViewport)
	assert.Empty(t, res.Issues)
}

func TestValidateMissingViewportIsTechnicalIssues(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(plainPage)) //nolint:errcheck
	}))
	defer srv.Close()

	res := newTestValidator(t, srv).Validate(context.Background(), srv.URL)
	assert.Equal(t, model.WebsiteStatusTechnicalIssues, res.Status)
	assert.False(t, res.HasMobileViewport)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0], "viewport")
}

func TestClassifyPrecedence(t *testing.T) {
	assert.Equal(t, model.WebsiteStatusAcceptable, classify(nil))
	assert.Equal(t, model.WebsiteStatusOutdated, classify([]string{"No HTTPS/SSL", "No mobile viewport meta tag"}))
	assert.Equal(t, model.WebsiteStatusOutdated, classify([]string{"Slow page load (6200ms)"}))
	assert.Equal(t, model.WebsiteStatusTechnicalIssues, classify([]string{"No mobile viewport meta tag"}))
}

func TestHasResponsiveViewport(t *testing.T) {
	assert.True(t, hasResponsiveViewport(`<meta name="viewport" content="width=device-width">`))
	assert.True(t, hasResponsiveViewport(`<meta name="viewport" content="initial-scale=1.0">`))
	assert.False(t, hasResponsiveViewport(`<meta name="viewport" content="width=1024">`))
	assert.False(t, hasResponsiveViewport(plainPage))
}
