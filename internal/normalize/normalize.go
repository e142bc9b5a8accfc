// Package normalize folds business names and website URLs into the stable
// forms used for dedup keys and guessed email addresses.
package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Name case-folds a display name, strips accents and collapses every run of
// non-alphanumeric characters to a single space. "Café  Olé, LLC" becomes
// "cafe ole llc".
func Name(s string) string {
	folded := fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// Slug returns Name with separators removed and only ASCII letters and
// digits kept, suitable for a host label. It may be empty.
func Slug(s string) string {
	var b strings.Builder
	for _, r := range Name(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Email lower-cases and trims an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Domain extracts the bare host from a website URL, without "www.". A URL
// without a scheme is accepted. Malformed input yields "".
func Domain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// IsDirectory reports whether the URL belongs to a listing or social site
// on the blocklist rather than the business's own website.
func IsDirectory(rawURL string, blocklist []string) bool {
	host := Domain(rawURL)
	if host == "" {
		return false
	}
	for _, blocked := range blocklist {
		blocked = strings.ToLower(strings.TrimSpace(blocked))
		if blocked == "" {
			continue
		}
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// OwnDomain returns the domain of a business website, or "" when the URL is
// missing, malformed or points at a directory.
func OwnDomain(rawURL string, blocklist []string) string {
	if IsDirectory(rawURL, blocklist) {
		return ""
	}
	return Domain(rawURL)
}
