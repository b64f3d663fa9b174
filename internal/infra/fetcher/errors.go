package fetcher

import "errors"

var (
	// ErrInvalidURL is returned for unparseable URLs or unsupported schemes.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrPrivateIP is returned when a URL resolves to a private address and DenyPrivateIPs is set.
	ErrPrivateIP = errors.New("URL resolves to private IP address")

	// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTooManyRedirects is returned when a redirect chain exceeds Config.MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrNoTiers is returned when a fetch has no network path to try.
	ErrNoTiers = errors.New("no fetch tiers configured")

	// ErrReadabilityFailed is returned when no article could be extracted from a page.
	ErrReadabilityFailed = errors.New("readability extraction failed")
)
