package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ada.lovelace@example.org", "ad***@example.org"},
		{"ab@example.org", "***@example.org"},
		{"not-an-email", "***@***"},
		{"a@b@c", "***@***"},
	}
	for _, c := range cases {
		if got := RedactEmail(c.in); got != c.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRedactValueByKey(t *testing.T) {
	got := redactValue("recipient", "ada.lovelace@example.org")
	if got != "ad***@example.org" {
		t.Errorf("recipient key not redacted: %q", got)
	}
}

func TestRedactValueKeepsNonEmailValues(t *testing.T) {
	// Counts and ids logged under sensitive-sounding keys stay readable.
	cases := []struct {
		key, val string
	}{
		{"recipients", "120"},
		{"recipient_count", "50"},
		{"subscriber_id", "sub-42"},
	}
	for _, c := range cases {
		if got := redactValue(c.key, c.val); got != c.val {
			t.Errorf("redactValue(%q, %q) = %q, want value unchanged", c.key, c.val, got)
		}
	}
}

func TestRedactValueEmbeddedEmail(t *testing.T) {
	got := redactValue("error", "send failed for ada.lovelace@example.org: timeout")
	if got != "send failed for ad***@example.org: timeout" {
		t.Errorf("embedded email not redacted: %q", got)
	}
}
