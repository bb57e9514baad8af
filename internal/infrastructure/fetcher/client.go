package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"feedingest/internal/domain"
	"feedingest/internal/ports"
)

const maxBodyBytes = 16 << 20

// DefaultHeaders mimic a desktop browser navigating to a page.
var DefaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "ru,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, zstd",
	"Sec-Fetch-Dest":  "document",
	"Sec-Fetch-Mode":  "navigate",
	"Sec-Fetch-Site":  "cross-site",
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
}

// Options configures a Client.
type Options struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	Headers           map[string]string
	RequestsPerSecond float64
}

// Client performs browser-like GET requests for feeds and article pages.
type Client struct {
	http    *http.Client
	timeout time.Duration
	headers http.Header
	limiter *rate.Limiter
}

var _ ports.PageFetcher = (*Client)(nil)

// New builds a Client; timeout defaults to 20 seconds and headers to DefaultHeaders.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	src := opts.Headers
	if len(src) == 0 {
		src = DefaultHeaders
	}
	headers := make(http.Header, len(src))
	for k, v := range src {
		headers.Set(k, v)
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{http: client, timeout: timeout, headers: headers, limiter: limiter}
}

// Fetch returns the page body converted to UTF-8.
func (c *Client) Fetch(ctx context.Context, pageURL string) (string, error) {
	body, contentType, err := c.Get(ctx, pageURL)
	if err != nil {
		return "", err
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("decode charset of %s: %w", pageURL, err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}
	return string(decoded), nil
}

// Get issues the request and returns the decompressed body with its content type.
// Non-2xx responses yield a *domain.FetchError.
func (c *Client) Get(ctx context.Context, target string) ([]byte, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("rate limit: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header = c.headers.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &domain.FetchError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := decompress(resp)
	if err != nil {
		return nil, "", fmt.Errorf("decompress %s: %w", target, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// decompress is needed because the transport only decodes gzip when it set
// Accept-Encoding itself.
func decompress(resp *http.Response) ([]byte, error) {
	raw := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.Uncompressed {
		return io.ReadAll(raw)
	}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.ReadAll(raw)
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(io.LimitReader(zr, maxBodyBytes))
	case "deflate":
		zr, err := zlib.NewReader(raw)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(io.LimitReader(zr, maxBodyBytes))
	case "zstd":
		zr, err := zstd.NewReader(raw)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(io.LimitReader(zr, maxBodyBytes))
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
