// Package httpclient builds the HTTP clients tools use to reach targets.
package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/config"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
)

type Config struct {
	Timeout         time.Duration
	UserAgent       string
	Proxy           string
	EnableSSRF      bool // block private and loopback destinations
	FollowRedirects bool
	MaxRedirects    int
	// InsecureTLS skips certificate verification. Only ssl-check uses it, to
	// inspect certificates that would otherwise fail the handshake.
	InsecureTLS bool
}

func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		UserAgent:       config.DefaultUserAgent,
		FollowRedirects: true,
		MaxRedirects:    10,
	}
}

// FromConfig derives client settings from the process configuration.
func FromConfig(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.Timeout = cfg.TimeoutDuration()
	c.UserAgent = cfg.UserAgent
	c.Proxy = cfg.Proxy
	return c
}

// New creates a client enforcing the timeout, proxy, user agent and
// redirect policy in c.
func New(c Config) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: c.Timeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if c.EnableSSRF {
				if err := validateAddress(ctx, addr); err != nil {
					return nil, fmt.Errorf("SSRF protection: %w", err)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: c.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if c.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	if c.Proxy != "" {
		proxyURL, err := url.Parse(c.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", c.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Timeout:   c.Timeout,
		Transport: &userAgentTransport{base: transport, userAgent: c.UserAgent},
	}

	switch {
	case !c.FollowRedirects:
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case c.MaxRedirects > 0:
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", c.MaxRedirects)
			}
			if c.EnableSSRF {
				if err := validateAddress(req.Context(), req.URL.Host); err != nil {
					return fmt.Errorf("SSRF protection on redirect: %w", err)
				}
			}
			return nil
		}
	}

	return client, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

func validateAddress(ctx context.Context, addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip.IP) {
			return fmt.Errorf("blocked private IP: %s (%s)", ip.IP, host)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() ||
		ip.IsUnspecified()
}

// DoWithRetry sends req up to retries+1 times, retrying only transport
// errors and 5xx responses. The request must have no body or a rewindable one.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, retries int) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			logger.FromContext(ctx).Debugw("Retrying request",
				"url", req.URL.Redacted(),
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * 250 * time.Millisecond):
			}
		}

		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		resp, err := client.Do(r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 && attempt < retries {
			CloseBody(resp)
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// ReadBody reads at most limit bytes of the response body.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// CloseBody drains and closes a response body so the connection is reused.
func CloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
