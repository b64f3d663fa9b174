package reference

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "dclid": true, "msclkid": true,
	"mc_cid": true, "mc_eid": true, "ref": true, "ref_src": true,
}

// NormalizeURL returns a comparison form of rawURL and its domain: host lower-cased
// without "www.", no fragment, no trailing slash and no tracking parameters.
func NormalizeURL(rawURL string) (normalized, domain string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing host in %q", rawURL)
	}

	domain = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	port := u.Port()
	u.Host = domain
	if port != "" {
		u.Host = domain + ":" + port
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") || trackingParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), domain, nil
}

var (
	urlYearPattern  = regexp.MustCompile(`/((?:19|20)\d{2})/`)
	textYearPattern = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

// yearFromURL returns a /yyyy/ path year.
func yearFromURL(rawURL string, now time.Time) (int, bool) {
	return plausibleYear(urlYearPattern.FindStringSubmatch(rawURL), now)
}

// yearFromText returns the first four-digit year in s.
func yearFromText(s string, now time.Time) (int, bool) {
	return plausibleYear(textYearPattern.FindStringSubmatch(s), now)
}

func plausibleYear(m []string, now time.Time) (int, bool) {
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil || y < 1950 || y > now.Year()+1 {
		return 0, false
	}
	return y, true
}
