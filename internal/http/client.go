package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/syncbrowse/syncbrowse/internal/config"
)

// CreateClient creates the HTTP client shared by the event feed and the snapshot API.
//
// Key features:
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - HTTP/2 for https daemons, with runtime toggle (DISABLE_HTTP2 env var)
//   - No client-wide timeout; callers bound each request with a context
//
// If cfg is nil, proxy settings are read from environment variables
// (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func CreateClient(cfg *config.Config) (*nethttp.Client, error) {
	if cfg == nil {
		cfg = config.NewConfig()
		cfg.ProxyMode = "system"
	}

	client, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Set DISABLE_HTTP2=true to force HTTP/1.1
	if os.Getenv("DISABLE_HTTP2") == "true" || cfg.ProxyMode == "basic" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return client, nil
}
