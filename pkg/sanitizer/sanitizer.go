package sanitizer

import (
	"net/url"
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reRegistrationJunk = regexp.MustCompile(`[^A-Z0-9 -]+`)
	reMultiSeparator   = regexp.MustCompile(`[ -]*-[ -]*`)
)

func SanitizeRegistrationNumber(input string) string {
	p := Pipeline{
		strings.ToUpper,
		func(s string) string { return reRegistrationJunk.ReplaceAllString(s, "") },
		TrimAndNormalize,
		func(s string) string { return reMultiSeparator.ReplaceAllString(s, "-") },
		func(s string) string { return strings.Trim(s, " -") },
	}
	return p.Apply(input)
}

func SanitizeFeature(input string) string {
	return strings.ToLower(TrimAndNormalize(input))
}

func SanitizeSlice(values []string, strategy Strategy) []string {
	seen := make(map[string]struct{})
	out := []string{}

	for _, v := range values {
		s := strategy(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}

// SanitizeURL lowercases scheme and host and strips utm_* parameters. Paths keep
// their case since object stores treat them as case-sensitive keys.
func SanitizeURL(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}

	lowered := strings.ToLower(s)
	if !strings.HasPrefix(lowered, "http://") && !strings.HasPrefix(lowered, "https://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}
