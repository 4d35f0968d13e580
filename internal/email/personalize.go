package email

import (
	"sort"
	"strings"

	"PulseMail/internal/models"
)

// Personalize replaces every {key} in text with values[key]. Unknown
// placeholders are left as they are.
func Personalize(text string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(text, "{") {
		return text
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", values[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Normalize trims addresses, drops entries without one and defaults the
// display name to the address.
func Normalize(recipients []models.Recipient) []models.Recipient {
	out := make([]models.Recipient, 0, len(recipients))
	for _, r := range recipients {
		r.Email = strings.TrimSpace(r.Email)
		if r.Email == "" {
			continue
		}
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			r.Name = r.Email
		}
		out = append(out, r)
	}
	return out
}
