package storage

import "testing"

func TestDocumentKey(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "bylaws.pdf", "orgs/org-1/documents/doc-1/bylaws.pdf"},
		{"path stripped", "../../etc/passwd", "orgs/org-1/documents/doc-1/passwd"},
		{"windows path stripped", "..\\..\\secret.docx", "orgs/org-1/documents/doc-1/secret.docx"},
		{"empty", "", "orgs/org-1/documents/doc-1/file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DocumentKey("org-1", "doc-1", tc.filename); got != tc.want {
				t.Errorf("DocumentKey(%q) = %q, want %q", tc.filename, got, tc.want)
			}
		})
	}
}
