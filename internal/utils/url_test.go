package utils

import (
	"errors"
	"testing"
)

func TestNormalizeAttachmentURL(t *testing.T) {
	normalized, host, err := NormalizeAttachmentURL("https://CDN.discordapp.com/attachments/1/2/proof.png?ex=abc&is=def#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "cdn.discordapp.com" {
		t.Fatalf("unexpected host: %s", host)
	}
	if normalized != "https://cdn.discordapp.com/attachments/1/2/proof.png?ex=abc&is=def" {
		t.Fatalf("unexpected normalized url: %s", normalized)
	}
}

func TestNormalizeAttachmentURLRejects(t *testing.T) {
	if _, _, err := NormalizeAttachmentURL("http://cdn.discordapp.com/a.png"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL for plain http, got %v", err)
	}
	if _, _, err := NormalizeAttachmentURL("https://example.com/a.png"); !errors.Is(err, ErrUntrustedHost) {
		t.Fatalf("expected ErrUntrustedHost, got %v", err)
	}
	if _, _, err := NormalizeAttachmentURL(""); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL for empty input, got %v", err)
	}
}

func TestDomainAllowed(t *testing.T) {
	if !DomainAllowed("Media.Discordapp.net", AttachmentDomains) {
		t.Fatalf("expected media host to be allowed")
	}
	if DomainAllowed("discordapp.com.evil.io", AttachmentDomains) {
		t.Fatalf("expected lookalike host to be rejected")
	}
}

func TestNormalizeLinkURL(t *testing.T) {
	normalized, host, err := NormalizeLinkURL("  https://user:pw@Bücher.example/download?v=2#top ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "xn--bcher-kva.example" {
		t.Fatalf("unexpected host: %s", host)
	}
	if normalized != "https://xn--bcher-kva.example/download?v=2" {
		t.Fatalf("unexpected normalized url: %s", normalized)
	}

	normalized, _, err = NormalizeLinkURL("https://files.example:8443/v1.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if normalized != "https://files.example:8443/v1.zip" {
		t.Fatalf("port not kept: %s", normalized)
	}
}

func TestNormalizeLinkURLRejects(t *testing.T) {
	for _, raw := range []string{"", "javascript:alert(1)", "http://files.example/a.zip", "https:///nohost", "ftp://files.example/a"} {
		if _, _, err := NormalizeLinkURL(raw); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("%q: expected ErrInvalidURL, got %v", raw, err)
		}
	}
}
