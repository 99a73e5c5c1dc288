package domains

import (
	"strings"
	"testing"
)

func TestValidateAccepts(t *testing.T) {
	cases := []string{
		"example.com",
		"Example.COM",
		"  example.org  ",
		"sub.domain.example.co.uk",
		"a1.b2.c3",
		"xn--bcher-kva.example",
	}
	for _, c := range cases {
		if !IsValid(c) {
			t.Errorf("expected %q to be valid", c)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"example",
		"-bad.com",
		"bad-.com",
		"bad..com",
		".bad.com",
		"under_score.com",
		"spaces in.com",
		strings.Repeat("a", 63) + "x.com", // 64-char label
		strings.Repeat("a63.", 70) + "com", // > 255 total
	}
	for _, c := range cases {
		if IsValid(c) {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

func TestValidateCanonicalizes(t *testing.T) {
	got, err := Validate("  Example.COM ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got != "example.com" {
		t.Fatalf("expected canonical example.com, got %q", got)
	}

	// Case-insensitive equivalence: both spellings validate identically.
	if IsValid("Example.COM") != IsValid("example.com") {
		t.Fatal("canonicalization must make validation case-insensitive")
	}
}

func TestValidateMaxLabelLength(t *testing.T) {
	// 63-char label is the limit.
	ok := strings.Repeat("a", 63) + ".com"
	if !IsValid(ok) {
		t.Errorf("63-char label should be valid")
	}
}
