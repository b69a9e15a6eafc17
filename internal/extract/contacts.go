package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/intake-cli/internal/model"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+'-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// (555) 123-4567, 555-123-4567, 555.123.4567
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\(\d{3}\)[ \t]?\d{3}-\d{4}\b`),
		regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
		regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{4}\b`),
	}

	nameRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)+\b`)
)

// nameStopWords rejects capitalized runs that are salutations, sign-offs,
// calendar words or business terms rather than people.
var nameStopWords = map[string]bool{
	"dear": true, "hi": true, "hello": true, "hey": true, "thanks": true,
	"thank": true, "best": true, "regards": true, "kind": true, "warm": true,
	"sincerely": true, "cheers": true, "please": true, "sent": true,
	"account": true, "company": true, "client": true, "customer": true,
	"organization": true, "opportunity": true, "deal": true, "project": true,
	"proposal": true, "engagement": true, "lead": true, "team": true,
	"inc": true, "llc": true, "corp": true, "ltd": true, "group": true,
	"action": true, "item": true, "items": true, "meeting": true,
	"follow": true, "reminder": true, "subject": true, "re": true, "fw": true,
	"fwd": true, "from": true, "to": true, "the": true, "original": true,
	"message": true, "forwarded": true, "new": true, "good": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// FindContacts returns emails (de-duplicated case-insensitively, original
// case kept), phones (de-duplicated exactly) and candidate person names.
func FindContacts(text string) model.Contacts {
	c := model.Contacts{Emails: []string{}, Phones: []string{}, Names: []string{}}

	seenEmail := make(map[string]bool)
	for _, e := range emailRe.FindAllString(text, -1) {
		e = strings.TrimRight(e, ".")
		key := strings.ToLower(e)
		if seenEmail[key] {
			continue
		}
		seenEmail[key] = true
		c.Emails = append(c.Emails, e)
	}

	seenPhone := make(map[string]bool)
	for _, re := range phonePatterns {
		for _, p := range re.FindAllString(text, -1) {
			if seenPhone[p] {
				continue
			}
			seenPhone[p] = true
			c.Phones = append(c.Phones, p)
		}
	}

	seenName := make(map[string]bool)
	for _, run := range nameRe.FindAllString(text, -1) {
		for _, n := range splitOnStopWords(run) {
			if seenName[n] {
				continue
			}
			seenName[n] = true
			c.Names = append(c.Names, n)
		}
	}
	return c
}

// splitOnStopWords breaks a capitalized run at stop words and keeps the
// pieces that still have two or more words ("Thanks Jane Doe" -> "Jane Doe").
func splitOnStopWords(run string) []string {
	var out, cur []string
	flush := func() {
		if len(cur) >= 2 {
			out = append(out, strings.Join(cur, " "))
		}
		cur = cur[:0]
	}
	for _, w := range strings.Fields(run) {
		if nameStopWords[strings.ToLower(w)] {
			flush()
			continue
		}
		cur = append(cur, w)
	}
	flush()
	return out
}

// FilterInternal drops emails on internal domains or matching an internal
// address. Phones and names are kept.
func FilterInternal(c model.Contacts, domains, addresses []string) model.Contacts {
	if len(domains) == 0 && len(addresses) == 0 {
		return c
	}
	dom := make(map[string]bool, len(domains))
	for _, d := range domains {
		dom[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))] = true
	}
	addr := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		addr[strings.ToLower(strings.TrimSpace(a))] = true
	}

	kept := make([]string, 0, len(c.Emails))
	for _, e := range c.Emails {
		lower := strings.ToLower(e)
		if addr[lower] {
			continue
		}
		if at := strings.LastIndex(lower, "@"); at >= 0 && dom[lower[at+1:]] {
			continue
		}
		kept = append(kept, e)
	}
	c.Emails = kept
	return c
}
