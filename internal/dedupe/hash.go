package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Hash derives the content identity key for an article. The same article is
// frequently syndicated with tracking query parameters appended, so the URL
// is reduced to scheme://host/path before hashing, and the title is
// lower-cased with whitespace collapsed.
func Hash(title, rawURL string) string {
	h := sha256.New()
	h.Write([]byte(normalizeTitle(title)))
	h.Write([]byte{'\n'})
	h.Write([]byte(CanonicalURL(rawURL)))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalURL strips query string and fragment and lower-cases the host.
// Malformed URLs are returned trimmed as-is so they still hash stably.
func CanonicalURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return rawURL
	}

	canonical := url.URL{
		Scheme: strings.ToLower(parsed.Scheme),
		Host:   strings.ToLower(parsed.Host),
		Path:   strings.TrimSuffix(parsed.Path, "/"),
	}
	return canonical.String()
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
