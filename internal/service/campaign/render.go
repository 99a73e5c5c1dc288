package campaign

import (
	"strings"

	"github.com/opencivic/memberhub/internal/domain"
)

// Render substitutes merge tags in campaign content for one recipient.
//
// Supported tags are {{first_name}}, {{last_name}}, and {{email}},
// replaced literally everywhere they appear. Any other {{...}} sequence
// is left verbatim; authors sometimes ship literal braces and a template
// engine that errors on them would fail the whole recipient.
func Render(content string, sub *domain.Subscriber) string {
	if content == "" {
		return content
	}
	r := strings.NewReplacer(
		"{{first_name}}", sub.FirstName,
		"{{last_name}}", sub.LastName,
		"{{email}}", sub.Email,
	)
	return r.Replace(content)
}
