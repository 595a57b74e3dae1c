package wordpress

import (
	"net/url"
	"strings"
)

const apiPath = "/wp-json/wp/v2"

// NormalizeSiteURL canonicalizes a site root as scheme://host[/path] without a
// trailing slash, query, or fragment.
func NormalizeSiteURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ValidationError{Field: "site_url", Reason: "is empty"}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", &ValidationError{Field: "site_url", Reason: "is not a valid URL: " + err.Error()}
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &ValidationError{Field: "site_url", Reason: "must start with http:// or https://"}
	}
	if parsed.Host == "" {
		return "", &ValidationError{Field: "site_url", Reason: "has no host"}
	}
	path := strings.TrimRight(parsed.EscapedPath(), "/")
	return scheme + "://" + strings.ToLower(parsed.Host) + path, nil
}

// APIBase returns the wp/v2 REST base for a site root.
func APIBase(siteURL string) (string, error) {
	normalized, err := NormalizeSiteURL(siteURL)
	if err != nil {
		return "", err
	}
	return normalized + apiPath, nil
}
