package analysis

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// urlDisplayMax is the length above which a URL gets shortened for display.
const urlDisplayMax = 50

// URLVerifier checks whether URLs are reachable. Verification is an
// orthogonal toggle to shortening and must not block analysis when disabled.
type URLVerifier interface {
	Verify(urls []string) []string
}

// URLExtractor finds http(s) URLs with order-preserving deduplication.
type URLExtractor struct {
	config   Config
	verifier URLVerifier
}

func NewURLExtractor(config Config) *URLExtractor {
	return &URLExtractor{config: config}
}

// WithVerifier attaches a liveness verifier, used only when the
// url_verify_alive toggle is on.
func (e *URLExtractor) WithVerifier(v URLVerifier) *URLExtractor {
	e.verifier = v
	return e
}

// Extract returns deduplicated URLs in order of first appearance.
func (e *URLExtractor) Extract(text string) []string {
	if !e.config.URLExtractionEnabled {
		return nil
	}

	found := urlPattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(found))
	urls := found[:0]
	for _, u := range found {
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}

	if e.config.URLVerifyAlive && e.verifier != nil {
		urls = e.verifier.Verify(urls)
	}

	if e.config.URLShorten {
		for i, u := range urls {
			urls[i] = shortenURL(u, urlDisplayMax)
		}
	}

	return urls
}

// shortenURL keeps scheme and host and collapses the path to a short tail.
func shortenURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}

	parts := strings.SplitN(url, "/", 4)
	if len(parts) >= 4 {
		tail := parts[3]
		if len(tail) > 20 {
			tail = tail[len(tail)-20:]
		}
		return parts[0] + "//" + parts[2] + "/.../" + tail
	}
	return url[:maxLen] + "..."
}
