package utils

import (
	"crypto/tls"
	"net/http"
	"time"

	"cashly-copilot/pkg/logger"
)

// NewHTTPClient builds the client used for webhook calls. A zero timeout
// leaves the request bounded only by the caller's context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &loggingTransport{
			base: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// loggingTransport records every outbound call at debug level.
type loggingTransport struct {
	base http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		logger.Debugf("%s %s failed after %s: %v", req.Method, req.URL.Redacted(), elapsed, err)
		return nil, err
	}

	logger.Debugf("%s %s -> %d in %s", req.Method, req.URL.Redacted(), resp.StatusCode, elapsed)
	return resp, nil
}
