package shopapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"
)

// ParseCacheMaxAge extracts max-age from a Cache-Control header.
//
// The header is parsed as an RFC 8941 dictionary, which covers what S3 and
// the API gateway send ("max-age=300, private", "no-store"). no-store and
// no-cache yield (0, true): the value must not be reused.
//
// Returns ok=false when the header is absent, unparseable, or carries no
// freshness information.
func ParseCacheMaxAge(header string) (time.Duration, bool) {
	header = strings.ToLower(strings.TrimSpace(header))
	if header == "" {
		return 0, false
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return 0, false
	}

	for _, directive := range []string{"no-store", "no-cache"} {
		if _, ok := dict.Get(directive); ok {
			return 0, true
		}
	}

	member, ok := dict.Get("max-age")
	if !ok {
		return 0, false
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return 0, false
	}
	seconds, ok := item.Value.(int64)
	if !ok || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// cacheMaxAge reads Cache-Control from resp.
func cacheMaxAge(resp *http.Response) (time.Duration, bool) {
	return ParseCacheMaxAge(resp.Header.Get("Cache-Control"))
}
