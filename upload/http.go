package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/whereissushi/zpravodaj-api/flipbook"
	"github.com/whereissushi/zpravodaj-api/observability"
)

// HTTPUploader publishes bundles by PUTting each file to
// {base}/{prefix}/{path} with its content type.
type HTTPUploader struct {
	baseURL string
	token   string
	client  *http.Client
	policy  Policy
	logger  observability.Logger
}

// HTTPOption configures an HTTPUploader.
type HTTPOption func(*HTTPUploader)

// WithToken sends the given bearer token with every request.
func WithToken(token string) HTTPOption {
	return func(u *HTTPUploader) { u.token = token }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(u *HTTPUploader) { u.client = c }
}

// WithPolicy replaces the default backoff retry policy.
func WithPolicy(p Policy) HTTPOption {
	return func(u *HTTPUploader) { u.policy = p }
}

// WithLogger attaches a logger for retry visibility.
func WithLogger(l observability.Logger) HTTPOption {
	return func(u *HTTPUploader) { u.logger = l }
}

// NewHTTPUploader validates the base URL and applies options.
func NewHTTPUploader(baseURL string, opts ...HTTPOption) (*HTTPUploader, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("upload base URL %q is not an absolute URL", baseURL)
	}
	u := &HTTPUploader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		policy:  NewBackoffPolicy(),
		logger:  observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

func (u *HTTPUploader) Upload(ctx context.Context, b *flipbook.Bundle, prefix string) (*Manifest, error) {
	prefix = strings.Trim(prefix, "/")
	base := u.baseURL
	if prefix != "" {
		base += "/" + prefix
	}
	m := &Manifest{BaseURL: base, URLs: make(map[string]string, len(b.Files()))}
	for _, f := range b.Files() {
		target := base + "/" + f.Path
		if err := u.put(ctx, target, f.Path, f.Data); err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Path, err)
		}
		m.URLs[f.Path] = target
		m.Bytes += int64(len(f.Data))
	}
	m.Files = len(b.Files())
	u.logger.Info("bundle uploaded",
		observability.String("base", base),
		observability.Int("files", m.Files),
		observability.Int64("bytes", m.Bytes))
	return m, nil
}

func (u *HTTPUploader) put(ctx context.Context, target, path string, data []byte) error {
	for attempt := 1; ; attempt++ {
		status, err := u.tryPut(ctx, target, path, data)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if u.policy.OnError(attempt, status, err) == ActionFail {
			return err
		}
		u.logger.Warn("retrying upload",
			observability.String("path", path),
			observability.Int("attempt", attempt),
			observability.Error("error", err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(u.policy.Delay(attempt)):
		}
	}
}

func (u *HTTPUploader) tryPut(ctx context.Context, target, path string, data []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", flipbook.ContentType(path))
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("server returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}
