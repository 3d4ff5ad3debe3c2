// Package http builds the transport shared by the API client and classifies
// transfer errors for retry.
package http

import (
	"crypto/tls"
	"net"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/vaultfm/vaultfm/internal/constants"
)

// NewClient returns an HTTP client tuned for API calls and file uploads.
//
//   - Proxy from HTTP_PROXY / HTTPS_PROXY / NO_PROXY
//   - Connection reuse across the JSON calls and the chunk PUTs of a batch
//   - HTTP/2 via x/net/http2, disabled with VAULTFM_DISABLE_HTTP2=true or when a proxy is set
//   - No overall timeout; each operation bounds itself through its context
func NewClient() *nethttp.Client {
	return &nethttp.Client{Transport: NewTransport()}
}

// NewTransport returns the tuned transport used by NewClient.
func NewTransport() *nethttp.Transport {
	dialer := &net.Dialer{
		Timeout:   constants.HTTPDialTimeout,
		KeepAlive: constants.HTTPKeepAlive,
	}
	tr := &nethttp.Transport{
		Proxy:                 nethttp.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
	}

	_ = http2.ConfigureTransport(tr)

	if os.Getenv(constants.EnvPrefix+"DISABLE_HTTP2") == "true" || proxyActive() {
		// Proxies often break HTTP/2 multiplexing mid-transfer
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}
	return tr
}

func proxyActive() bool {
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}
