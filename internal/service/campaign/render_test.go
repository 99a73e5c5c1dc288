package campaign

import (
	"testing"

	"github.com/opencivic/memberhub/internal/domain"
)

func TestRender(t *testing.T) {
	sub := &domain.Subscriber{Email: "pat@example.org", FirstName: "Pat", LastName: "Jones"}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"all tags", "Hi {{first_name}} {{last_name}} <{{email}}>", "Hi Pat Jones <pat@example.org>"},
		{"repeated tag", "{{first_name}}, yes you {{first_name}}", "Pat, yes you Pat"},
		{"unknown tag verbatim", "Hi {{first_name}}, use code {{promo_code}}", "Hi Pat, use code {{promo_code}}"},
		{"no tags", "plain text", "plain text"},
		{"empty", "", ""},
		{"case sensitive", "{{FIRST_NAME}}", "{{FIRST_NAME}}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.in, sub); got != tc.want {
				t.Errorf("Render(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRenderEmptyFields(t *testing.T) {
	sub := &domain.Subscriber{Email: "pat@example.org"}
	if got := Render("Hi {{first_name}}!", sub); got != "Hi !" {
		t.Errorf("empty field should substitute empty string, got %q", got)
	}
}
