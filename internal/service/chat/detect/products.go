package detect

import (
	"net/url"
	"regexp"
	"strings"

	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
)

var markdownLink = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)`)

var bareLink = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)

// productPathHints mark URLs that plausibly point at a purchasable item
// rather than a homepage or blog post.
var productPathHints = []string{
	"/products/", "/product/", "/collections/", "/shop/", "/store/",
	"/item/", "/p/", "/dp/",
}

// ExtractProductLinks scans the combined visible and reasoning text for
// commerce links that represent genuine recommendations. Links the user
// already pasted into their own messages are references, not
// recommendations, and are skipped; so are links on the brand's own domain.
// Extraction never fails: malformed URLs are dropped and the worst case is
// an empty list.
func ExtractProductLinks(text, reasoning string, userMessages []string, brandDomain string) []chatModels.ProductLink {
	combined := text + "\n" + reasoning
	if strings.TrimSpace(combined) == "" {
		return nil
	}

	userURLs := make(map[string]bool)
	for _, msg := range userMessages {
		for _, raw := range bareLink.FindAllString(msg, -1) {
			userURLs[normalizeURL(raw)] = true
		}
	}
	brandHost := normalizeHost(brandDomain)

	seen := make(map[string]bool)
	var links []chatModels.ProductLink

	add := func(rawURL, title string) {
		norm := normalizeURL(rawURL)
		if norm == "" || seen[norm] || userURLs[norm] {
			return
		}
		u, err := url.Parse(norm)
		if err != nil || u.Host == "" {
			return
		}
		if brandHost != "" && normalizeHost(u.Host) == brandHost {
			return
		}
		if !looksLikeProduct(u) {
			return
		}
		seen[norm] = true
		links = append(links, chatModels.ProductLink{URL: norm, Title: title})
	}

	for _, m := range markdownLink.FindAllStringSubmatch(combined, -1) {
		add(m[2], strings.TrimSpace(m[1]))
	}
	// Bare links second so a markdown title wins for the same URL.
	for _, raw := range bareLink.FindAllString(combined, -1) {
		add(raw, "")
	}

	return links
}

func looksLikeProduct(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	for _, hint := range productPathHints {
		if strings.Contains(path, hint) {
			return true
		}
	}
	return false
}

// normalizeURL strips trailing punctuation that regex capture drags in and
// lowercases the scheme/host so dedup keys match.
func normalizeURL(raw string) string {
	raw = strings.TrimRight(raw, ".,;:!?")
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}
