// ABOUTME: Field-level validators for contact and activity forms
// ABOUTME: Pure predicates plus FieldError types that callers surface to users
package validation

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Length caps for free-text fields.
const (
	MaxCompany             = 100
	MaxJobTitle            = 100
	MaxAddress             = 200
	MaxRelationshipNotes   = 1000
	MaxContactNotes        = 1000
	MaxActivityDescription = 500
	MaxActivityContent     = 1000
	maxPhoneDigits         = 16
)

// InteractionSkew is how far into the future an interaction date may be.
const InteractionSkew = time.Minute

var (
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneSeparators  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	digitsPattern    = regexp.MustCompile(`^\+?[0-9]+$`)
	twitterPattern   = regexp.MustCompile(`^@[A-Za-z0-9_]{1,15}$`)
	instagramPattern = regexp.MustCompile(`^@[A-Za-z0-9._]{1,30}$`)
)

// Email reports whether s looks like local@domain.tld.
func Email(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	return emailPattern.MatchString(s)
}

// Phone accepts 1-16 digits with an optional leading +, ignoring separators.
func Phone(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	stripped := phoneSeparators.Replace(s)
	if !digitsPattern.MatchString(stripped) {
		return false
	}
	return len(strings.TrimPrefix(stripped, "+")) <= maxPhoneDigits
}

// URL accepts http(s) URLs, assuming https when no scheme is given. The host
// must contain a dot and no empty labels.
func URL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return false
		}
	}
	return true
}

// Birthday validates MM/DD/YYYY against the current year.
func Birthday(s string) bool {
	return BirthdayAt(s, time.Now())
}

// BirthdayAt validates MM/DD/YYYY as a real calendar date between 1900 and
// now's year.
func BirthdayAt(s string, now time.Time) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 || len(parts[0]) != 2 || len(parts[1]) != 2 || len(parts[2]) != 4 {
		return false
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	if year < 1900 || year > now.Year() || month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Month() == time.Month(month) && t.Day() == day
}

// TwitterHandle accepts @handle or a profile URL.
func TwitterHandle(s string) bool {
	return handle(s, twitterPattern)
}

// InstagramHandle accepts @handle or a profile URL.
func InstagramHandle(s string) bool {
	return handle(s, instagramPattern)
}

func handle(s string, pattern *regexp.Regexp) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "@") {
		return pattern.MatchString(s)
	}
	return URL(s)
}

// MaxLength reports whether s has at most n characters.
func MaxLength(s string, n int) bool {
	return utf8.RuneCountInString(s) <= n
}

// InteractionDateAllowed rejects interaction dates more than a minute ahead.
func InteractionDateAllowed(date, now time.Time) bool {
	return !date.After(now.Add(InteractionSkew))
}

// ReminderDateAllowed requires a reminder to be due strictly after now.
func ReminderDateAllowed(date, now time.Time) bool {
	return date.After(now)
}
