// Package sign implements the per-provider request authentication schemes:
// plain API keys, OAuth2 client-credentials token exchange with a cached
// single-flight token source, HMAC request signing (host/date and
// sorted-query canonical forms), AK/SK nonce signing, and AWS Signature
// Version 4 presigned URLs.
//
// Every signature in this package is computed over byte-exact canonical
// strings; URIEscape applies the RFC 3986 normalization the upstream
// services verify against (space as %20, '*' as %2A, '~' unescaped).
package sign

import (
	"net/url"
	"strings"
)

// URIEscape percent-encodes s for inclusion in a canonical query string or
// URI path. Unlike url.QueryEscape it emits %20 for space, %2A for '*', and
// leaves '~' bare; any deviation from this form invalidates HMAC and SigV4
// signatures computed over the result.
func URIEscape(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	e = strings.ReplaceAll(e, "*", "%2A")
	e = strings.ReplaceAll(e, "%7E", "~")
	return e
}

// CanonicalQuery renders query parameters as a canonical string: keys sorted
// bytewise, keys and values URIEscaped, pairs joined with '&'. Multi-valued
// keys keep their insertion order after the key sort.
func CanonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sortStrings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range params[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(URIEscape(k))
			b.WriteByte('=')
			b.WriteString(URIEscape(v))
		}
	}
	return b.String()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
