// Package forward recognizes mail forwarded into the shared intake mailbox
// and recovers the original participants and body.
package forward

import (
	"regexp"
	"strings"

	"github.com/sells-group/intake-cli/internal/model"
)

// Intake identifies the shared mailbox that staff forward mail into.
type Intake struct {
	Address   string
	OrgDomain string
}

// Unwrapped is the original message recovered from a forward.
type Unwrapped struct {
	From    model.Address
	To      []string
	Body    string
	Wrapper string // text the forwarder wrote above the forwarded section
}

var (
	reSectionStart = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^[ \t]*-{2,}[ \t]*original message[ \t]*-{2,}`),
		regexp.MustCompile(`(?im)^[ \t]*-{2,}[ \t]*forwarded message[ \t]*-{2,}`),
		regexp.MustCompile(`(?im)^[ \t]*\*?from:\*?[ \t]`),
		regexp.MustCompile(`(?im)^[ \t]*on[ \t].+wrote:[ \t]*$`),
	}

	reFrom = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^[ \t]*\*?from:\*?[ \t]*"?([^"<\n]*?)"?[ \t]*<([^>\s]+@[^>\s]+)>`),
		regexp.MustCompile(`(?im)^[ \t]*\*?from:\*?[ \t]*<?([^\s<>]+@[^\s<>]+?)>?[ \t]*$`),
		regexp.MustCompile(`(?im)^[ \t]*on[ \t].*?<([^>\s]+@[^>\s]+)>[ \t]*wrote:`),
	}
	reToLine = regexp.MustCompile(`(?im)^[ \t]*\*?to:\*?[ \t]*(.+)$`)
	reEmail  = regexp.MustCompile(`[\w.+'-]+@[\w-]+(?:\.[\w-]+)+`)

	reBoundaryHeader = regexp.MustCompile(`(?i)^\*?(subject|date):`)
	reAnyHeader      = regexp.MustCompile(`(?i)^\*?(from|to|cc|bcc|sent|date|subject|reply-to):`)
	reMarkerLine     = regexp.MustCompile(`(?i)^-{2,}\s*(original|forwarded) message\s*-{2,}$|^on\s.+wrote:$`)
)

// IsForwarded reports whether a message was forwarded into the intake
// mailbox: the subject starts with "fw:" and the only recipient is the
// intake address (or a crm address on the organization's domain).
func IsForwarded(subject string, to []string, intake Intake) bool {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "fw:") {
		return false
	}
	if len(to) != 1 {
		return false
	}
	r := strings.ToLower(strings.TrimSpace(to[0]))
	if m := reEmail.FindString(r); m != "" {
		r = m
	}

	if addr := strings.ToLower(strings.TrimSpace(intake.Address)); addr != "" && r == addr {
		return true
	}
	if domain := strings.ToLower(strings.TrimSpace(intake.OrgDomain)); domain != "" &&
		strings.Contains(r, "crm") && strings.Contains(r, domain) {
		return true
	}
	return r == "crm"
}

// Unwrap splits body at the earliest forwarded-section marker and extracts
// the original From, To and body. It returns nil when neither From nor To
// can be recovered.
func Unwrap(body string) *Unwrapped {
	body = strings.ReplaceAll(body, "\r\n", "\n")

	start := -1
	for _, re := range reSectionStart {
		if loc := re.FindStringIndex(body); loc != nil && (start < 0 || loc[0] < start) {
			start = loc[0]
		}
	}
	if start < 0 {
		return nil
	}
	section := body[start:]

	u := &Unwrapped{
		From:    parseFrom(section),
		To:      parseTo(section),
		Wrapper: strings.TrimSpace(body[:start]),
	}
	if u.From.Email == "" && len(u.To) == 0 {
		return nil
	}
	u.Body = originalBody(section)
	return u
}

func parseFrom(section string) model.Address {
	for i, re := range reFrom {
		m := re.FindStringSubmatch(section)
		if m == nil {
			continue
		}
		if i == 0 {
			return model.Address{Name: strings.TrimSpace(m[1]), Email: m[2]}
		}
		return model.Address{Email: m[1]}
	}
	return model.Address{}
}

func parseTo(section string) []string {
	m := reToLine.FindStringSubmatch(section)
	if m == nil {
		return nil
	}
	return reEmail.FindAllString(m[1], -1)
}

// originalBody returns everything after the header block's last
// Subject:/Date: line and the blank line closing the block. Without a clean
// boundary it strips header-looking lines instead.
func originalBody(section string) string {
	lines := strings.Split(section, "\n")
	lastBoundary := -1
	for i, line := range lines {
		s := strings.TrimSpace(line)
		switch {
		case s == "":
			if lastBoundary >= 0 {
				return strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			}
		case reBoundaryHeader.MatchString(s):
			lastBoundary = i
		case reAnyHeader.MatchString(s), reMarkerLine.MatchString(s):
		default:
			return stripHeaders(lines)
		}
	}
	return stripHeaders(lines)
}

func stripHeaders(lines []string) string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if reAnyHeader.MatchString(s) || reMarkerLine.MatchString(s) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
