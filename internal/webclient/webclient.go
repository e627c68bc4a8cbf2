// Package webclient issues the discovery GET and submission POST against the
// remote model service.
//
// A Session owns a cookie jar so that state the server sets on first contact
// survives into the submission. Each model invocation should use its own
// Session; there is no process-wide state.
package webclient

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"aimclient/internal/metrics"
)

// DefaultUserAgent mirrors a desktop browser; the remote service rejects or
// degrades some generic client strings.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"

// maxErrBody bounds how much of a non-2xx response body is kept in the error.
const maxErrBody = 4096

// Config holds the endpoint and header configuration for a Session.
type Config struct {
	// PageURL is the model page fetched for discovery; it is also sent as
	// the Referer of the submission POST.
	PageURL string

	// UserAgent overrides DefaultUserAgent when non-empty.
	UserAgent string

	// Timeout applies per request. Zero means no timeout beyond ctx.
	Timeout time.Duration

	// JobName labels HTTP metrics recorded by the Session. Empty means "aim".
	JobName string
}

// StatusError reports a non-2xx HTTP response, carrying a bounded excerpt of
// the body for debugging.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Session is one discovery+submission exchange with cookie continuity.
type Session struct {
	client *http.Client
	cfg    Config
}

// PageURL reports the model page this session was configured with.
func (s *Session) PageURL() string {
	return s.cfg.PageURL
}

// NewSession builds a Session around base's transport with a fresh cookie
// jar. base may be nil, in which case default transport settings are used.
// The base client itself is never mutated.
func NewSession(base *http.Client, cfg Config) *Session {
	jar, _ := cookiejar.New(nil) // only errors on bad PublicSuffixList options

	client := &http.Client{Jar: jar}
	if base != nil {
		client.Transport = base.Transport
		client.CheckRedirect = base.CheckRedirect
	}

	return &Session{client: client, cfg: cfg}
}

// FetchPage GETs the configured model page and returns its decoded body.
//
// Errors:
//   - transport failures and timeouts, wrapped
//   - *StatusError for non-2xx responses
func (s *Session) FetchPage(ctx context.Context) (string, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.cfg.PageURL, nil)
	if err != nil {
		return "", err
	}
	return s.do(req)
}

// Submit POSTs payload to actionURL as application/x-www-form-urlencoded,
// with the model page as Referer, and returns the decoded response body.
func (s *Session) Submit(ctx context.Context, actionURL string, payload map[string]string) (string, error) {
	values := make(url.Values, len(payload))
	for k, v := range payload {
		values.Set(k, v)
	}

	req, err := s.newRequest(ctx, http.MethodPost, actionURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", s.cfg.PageURL)

	return s.do(req)
}

func (s *Session) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	ua := s.cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	return req, nil
}

func (s *Session) jobName() string {
	if s.cfg.JobName != "" {
		return s.cfg.JobName
	}
	return "aim"
}

func (s *Session) do(req *http.Request) (string, error) {
	if s.cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), s.cfg.Timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordHTTP(s.jobName(), 0, err, time.Since(start))
		return "", fmt.Errorf("%s %s: %w", strings.ToLower(req.Method), req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		metrics.RecordHTTP(s.jobName(), resp.StatusCode, statusErr, time.Since(start))
		return "", statusErr
	}
	metrics.RecordHTTP(s.jobName(), resp.StatusCode, nil, time.Since(start))

	b, err := io.ReadAll(decodeBody(resp))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

// decodeBody converts legacy single-byte responses to UTF-8. The model
// service predates UTF-8 defaults and still serves ISO-8859-1 on some pages.
func decodeBody(resp *http.Response) io.Reader {
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return resp.Body
	}

	switch strings.ToLower(params["charset"]) {
	case "iso-8859-1", "latin1", "latin-1":
		return transform.NewReader(resp.Body, charmap.ISO8859_1.NewDecoder())
	case "windows-1252":
		return transform.NewReader(resp.Body, charmap.Windows1252.NewDecoder())
	default:
		return resp.Body
	}
}
