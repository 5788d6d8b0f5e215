// Package urlutil reduces URLs to stable dedup keys. Equivalent URLs that
// differ only in tracking parameters, parameter order, or fragment must
// canonicalize to the same string.
package urlutil

import (
	"net/url"
	"strings"
)

// trackingParams are advertising and analytics parameters stripped during
// canonicalization. They never affect the content behind the URL.
var trackingParams = map[string]struct{}{
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"fbclid":  {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"igshid":  {},
	"ref_src": {},
}

// Canonicalize normalizes a URL for identity comparison: tracking parameters
// are stripped, remaining query keys are sorted lexicographically, and the
// fragment is dropped. Canonicalization is best effort, not validation: on
// parse failure the input is returned unchanged. The function is
// deterministic and idempotent.
func Canonicalize(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.RawQuery = cleanQuery(parsed.Query())

	return parsed.String()
}

// cleanQuery drops tracking parameters and re-encodes the rest.
// url.Values.Encode sorts keys, which gives the lexicographic ordering.
func cleanQuery(values url.Values) string {
	for key := range values {
		if isTrackingParam(key) {
			delete(values, key)
		}
	}

	return values.Encode()
}

func isTrackingParam(key string) bool {
	if strings.HasPrefix(strings.ToLower(key), "utm_") {
		return true
	}
	_, ok := trackingParams[strings.ToLower(key)]
	return ok
}
