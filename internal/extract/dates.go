package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type datePattern struct {
	re    *regexp.Regexp
	parse func(m []string, now time.Time) (time.Time, bool)
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Date patterns, tried in order; invalid calendar dates are dropped.
var datePatterns = []datePattern{
	// 05/01/2026
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), func(m []string, _ time.Time) (time.Time, bool) {
		return civil(m[3], m[1], m[2])
	}},
	// 2026-05-01
	{regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`), func(m []string, _ time.Time) (time.Time, bool) {
		return civil(m[1], m[2], m[3])
	}},
	// March 3, March 3rd 2026, Sept. 14
	{regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?[ \t]+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?[ \t]+(\d{4})\b)?`),
		func(m []string, now time.Time) (time.Time, bool) {
			year := m[3]
			if year == "" {
				year = strconv.Itoa(now.Year())
			}
			mon := months[strings.ToLower(m[1])[:3]]
			return civil(year, strconv.Itoa(int(mon)), m[2])
		}},
	{regexp.MustCompile(`(?i)\btoday\b`), func(_ []string, now time.Time) (time.Time, bool) {
		return now, true
	}},
	{regexp.MustCompile(`(?i)\btomorrow\b`), func(_ []string, now time.Time) (time.Time, bool) {
		return now.Add(24 * time.Hour), true
	}},
	// "deadline 5/1", "meeting on 4/15", "follow up by 6/2/26"
	{regexp.MustCompile(`(?i)\b(?:deadline|due date|due|meeting|follow[ -]up)[ \t]*(?:on|by|is|:)?[ \t]*(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?\b`),
		func(m []string, now time.Time) (time.Time, bool) {
			year := m[3]
			switch len(year) {
			case 0:
				year = strconv.Itoa(now.Year())
			case 2:
				year = "20" + year
			}
			return civil(year, m[1], m[2])
		}},
}

// Dates returns the dates found in text, relative to now.
func Dates(text string, now time.Time) []time.Time {
	out := []time.Time{}
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			t, ok := p.parse(m, now)
			if !ok || containsTime(out, t) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// civil builds a UTC midnight date, rejecting values time.Date would
// normalize (e.g. 2/30).
func civil(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	mo, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != time.Month(mo) {
		return time.Time{}, false
	}
	return t, true
}

func containsTime(list []time.Time, t time.Time) bool {
	for _, x := range list {
		if x.Equal(t) {
			return true
		}
	}
	return false
}
