// Package remote talks to a datalogger's HTTP log directory: listing which
// per-day captures exist and building the URLs the cache manager fetches.
package remote

import "net/http"

// CaptureSuffix is the fixed filename suffix of a per-day capture in the
// logger's /log/ directory.
const CaptureSuffix = "_packets.vbus"

// Doer issues a single HTTP request. *http.Client satisfies it; tests
// substitute stubs with call counters.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultClient is the baseline transport: no timeout, single attempt.
var DefaultClient Doer = &http.Client{}

// IndexURL returns the log directory listing URL for a host. Loggers serve
// plain HTTP on port 80.
func IndexURL(host string) string {
	return "http://" + host + "/log/"
}

// CaptureURL returns the capture URL for one datecode.
func CaptureURL(host, datecode string) string {
	return "http://" + host + "/log/" + datecode + CaptureSuffix
}
