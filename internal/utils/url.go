package utils

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrInvalidURL     = errors.New("invalid url")
	ErrUntrustedHost  = errors.New("untrusted host")
	AttachmentDomains = map[string]struct{}{
		"cdn.discordapp.com":   {},
		"media.discordapp.net": {},
	}
)

// NormalizeLinkURL returns the canonical https form of an external link
// together with its ASCII host. Credentials and fragments are dropped.
func NormalizeLinkURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", ErrInvalidURL
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return "", "", ErrInvalidURL
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", "", ErrInvalidURL
	}
	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil || asciiHost == "" {
		return "", "", ErrInvalidURL
	}
	if port := parsed.Port(); port != "" {
		parsed.Host = asciiHost + ":" + port
	} else {
		parsed.Host = asciiHost
	}

	parsed.Scheme = "https"
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.User = nil
	return parsed.String(), asciiHost, nil
}

// NormalizeAttachmentURL is NormalizeLinkURL restricted to the Discord CDN.
// Query strings are kept since the CDN signs them.
func NormalizeAttachmentURL(raw string) (string, string, error) {
	normalized, host, err := NormalizeLinkURL(raw)
	if err != nil {
		return "", host, err
	}
	if !DomainAllowed(host, AttachmentDomains) {
		return "", host, ErrUntrustedHost
	}
	return normalized, host, nil
}

func DomainAllowed(domain string, allowlist map[string]struct{}) bool {
	_, ok := allowlist[strings.ToLower(domain)]
	return ok
}
