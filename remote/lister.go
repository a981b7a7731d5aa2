package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/solarlog/vbusmirror/pkg/model"
)

// ListDateCodes fetches the host's log directory listing and extracts the
// datecodes of every capture link it references.
//
// The logger's embedded HTTP server emits two anchor encodings depending on
// firmware: a quote-delimited href (`<a href="20210601_packets.vbus">`) and a
// root-relative apostrophe-delimited href (`<a href='/log/20210601_packets.vbus'>`).
// Both are accepted. Anchors that do not carry an 8-character datecode
// immediately followed by "_packets.vbus" are unrelated directory entries and
// are skipped without error. The result preserves the order of first
// appearance, without duplicates.
func ListDateCodes(ctx context.Context, client Doer, host string) ([]model.DateCode, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, IndexURL(host), nil)
	if err != nil {
		return nil, &model.TransportError{Host: host, Op: "list", Err: err}
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, &model.TransportError{Host: host, Op: "list", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &model.TransportError{Host: host, Op: "list", Err: fmt.Errorf("status %s", res.Status)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &model.TransportError{Host: host, Op: "list", Err: err}
	}

	return extractDateCodes(string(body))
}

func extractDateCodes(body string) ([]model.DateCode, error) {
	const anchor = `<a href=`

	var codes []model.DateCode
	seen := make(map[string]bool)

	for idx := 0; ; {
		rel := strings.Index(body[idx:], anchor)
		if rel < 0 {
			break
		}
		idx += rel + len(anchor)

		rest := body[idx:]
		var start int
		switch {
		case strings.HasPrefix(rest, `'/log/`):
			start = idx + 6
		case strings.HasPrefix(rest, `"`):
			start = idx + 1
		default:
			continue
		}

		end := start + 8 + len(CaptureSuffix)
		if end > len(body) {
			continue
		}
		if body[start+8:end] != CaptureSuffix {
			continue
		}

		raw := body[start : start+8]
		dc, err := model.ParseDateCode(raw)
		if err != nil {
			return nil, err
		}
		if !seen[raw] {
			seen[raw] = true
			codes = append(codes, dc)
		}
	}

	return codes, nil
}
