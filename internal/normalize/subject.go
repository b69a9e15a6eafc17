package normalize

import "strings"

// DefaultSubjectPrefixes are stripped when no override is configured.
var DefaultSubjectPrefixes = []string{"Re:", "Fwd:", "FW:", "RE:", "FWD:"}

// Subject strips reply/forward prefixes from the start of a subject,
// case-insensitively and repeatedly, so "Re: Fwd: X" becomes "X". A nil
// prefix list means DefaultSubjectPrefixes.
func Subject(subject string, prefixes []string) string {
	if prefixes == nil {
		prefixes = DefaultSubjectPrefixes
	}
	s := strings.TrimSpace(subject)
	for {
		stripped := false
		for _, p := range prefixes {
			p = strings.TrimSpace(p)
			if p == "" || len(s) < len(p) {
				continue
			}
			if strings.EqualFold(s[:len(p)], p) {
				s = strings.TrimSpace(s[len(p):])
				stripped = true
			}
		}
		if !stripped {
			return s
		}
	}
}
