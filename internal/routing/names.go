package routing

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxNameLength caps names captured from free text.
const MaxNameLength = 100

// freeMailDomains never identify an organization.
var freeMailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"outlook.com":    true,
	"hotmail.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"me.com":         true,
	"aol.com":        true,
	"proton.me":      true,
	"protonmail.com": true,
}

// secondLevelLabels precede a country code in domains like acme.co.uk.
var secondLevelLabels = map[string]bool{
	"co": true, "com": true, "org": true, "net": true, "ac": true, "gov": true,
}

var (
	reSubjectBracket = regexp.MustCompile(`\[([^\]]{2,60})\]`)
	reSubjectColon   = regexp.MustCompile(`^([^:]{2,60}):\s*\S`)
	reSignatureOrg   = regexp.MustCompile(`(?m)\|[ \t]*([A-Za-z0-9][^|\n]{1,60}?)[ \t]*$`)
	reSpaces         = regexp.MustCompile(`\s+`)
)

// subjectLabels are colon-delimited subject words that label content
// rather than name an organization.
var subjectLabels = map[string]bool{
	"account": true, "company": true, "client": true, "customer": true,
	"organization": true, "org": true, "opportunity": true, "deal": true,
	"project": true, "engagement": true, "lead": true, "proposal": true,
	"meeting": true, "invoice": true, "reminder": true, "update": true,
	"question": true, "urgent": true, "action required": true,
}

// cleanName trims captured text down to a usable record name.
func cleanName(s string) string {
	s = reSpaces.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.Trim(s, " .!?:;\"'*")
	if len(s) > MaxNameLength {
		s = strings.TrimSpace(s[:MaxNameLength])
	}
	return s
}

// usableDomain reports whether a sender domain can stand for an
// organization: not free mail and not one of the organization's own.
func usableDomain(domain string, internal []string, orgDomain string) bool {
	if domain == "" || freeMailDomains[domain] {
		return false
	}
	if orgDomain != "" && strings.EqualFold(domain, orgDomain) {
		return false
	}
	for _, d := range internal {
		if strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(d), "@"), domain) {
			return false
		}
	}
	return true
}

// nameFromDomain turns "beta-industries.com" into "Beta Industries".
func nameFromDomain(domain string) string {
	labels := strings.Split(strings.ToLower(domain), ".")
	if len(labels) < 2 {
		return ""
	}
	label := labels[len(labels)-2]
	if len(labels) >= 3 && secondLevelLabels[label] && len(labels[len(labels)-1]) == 2 {
		label = labels[len(labels)-3]
	}
	label = strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(label))
	if label == "" {
		return ""
	}
	return cases.Title(language.English).String(label)
}

// nameFromSubject returns a bracketed token ("[Acme] pricing") or the text
// before the first colon ("Acme Corp: pricing").
func nameFromSubject(subject string) string {
	if m := reSubjectBracket.FindStringSubmatch(subject); m != nil {
		if n := cleanName(m[1]); n != "" {
			return n
		}
	}
	if m := reSubjectColon.FindStringSubmatch(strings.TrimSpace(subject)); m != nil {
		if n := cleanName(m[1]); !subjectLabels[strings.ToLower(n)] {
			return n
		}
	}
	return ""
}

// nameFromSignature finds an organization in a signature line such as
// "Jane Doe | Acme Inc.".
// Quoted reply lines are ignored.
func nameFromSignature(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		if m := reSignatureOrg.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			return cleanName(m[1])
		}
	}
	return ""
}
