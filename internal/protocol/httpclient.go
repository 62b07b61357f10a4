package protocol

import (
	"net"
	"net/http"
	"time"
)

// newHTTPClient returns a pooled HTTP client suitable for long-lived SSE
// responses. No client-level timeout is set: the per-call context ceiling is
// the sole cancellation authority, and a client timeout would also cut off
// legitimate slow streams.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}
