package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// HookFunc is a function that can modify the request before it's sent
type HookFunc func(req *http.Request) error

// BearerAuth sets the Authorization header on every request.
func BearerAuth(token string) HookFunc {
	return func(req *http.Request) error {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		return nil
	}
}

// UserAgent sets the User-Agent header on every request.
func UserAgent(ua string) HookFunc {
	return func(req *http.Request) error {
		req.Header.Set("User-Agent", ua)
		return nil
	}
}

// requestModifier wraps an http.RoundTripper to apply hooks to each request
type requestModifier struct {
	http.RoundTripper
	hooks []HookFunc
}

func (t *requestModifier) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request
	req = req.Clone(req.Context())
	for _, hook := range t.hooks {
		if err := hook(req); err != nil {
			return nil, err
		}
	}
	return t.RoundTripper.RoundTrip(req)
}

// Options configures a client built by New.
type Options struct {
	ProxyURL string
	// Timeout bounds the whole exchange, including reading a streamed body.
	Timeout time.Duration
	Hooks   []HookFunc
}

// New creates a dedicated HTTP client. The shared http.DefaultClient is never
// returned because callers set per-provider timeouts.
func New(opts Options) *http.Client {
	var transport http.RoundTripper = transportWithProxy(opts.ProxyURL)
	if len(opts.Hooks) > 0 {
		transport = &requestModifier{RoundTripper: transport, hooks: opts.Hooks}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}
}

// transportWithProxy creates a transport with proxy support
func transportWithProxy(proxyURL string) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL == "" {
		return transport
	}

	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		logrus.Errorf("Failed to parse proxy URL %s: %v, connecting directly", proxyURL, err)
		return transport
	}

	switch parsedURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	case "socks5":
		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, nil, proxy.Direct)
		if err != nil {
			logrus.Errorf("Failed to create SOCKS5 proxy dialer: %v, connecting directly", err)
			return transport
		}
		dialContext, ok := dialer.(proxy.ContextDialer)
		if !ok {
			logrus.Errorf("SOCKS5 dialer does not support contexts, connecting directly")
			return transport
		}
		transport.Proxy = nil
		transport.DialContext = dialContext.DialContext
	default:
		logrus.Errorf("Unsupported proxy scheme %s, supported schemes are http, https, socks5", parsedURL.Scheme)
	}

	return transport
}
