package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"
)

// HostDateAuthorization builds the iFlytek-style signed-request credential:
// the canonical string is the host header, an RFC1123 GMT date header, and
// the request line, newline-joined; its HMAC-SHA256 is base64-encoded and
// wrapped in a key/algorithm/headers/signature descriptor which is itself
// base64-encoded for transport as an `authorization` query parameter.
//
// The date must be the exact string sent with the request; re-formatting it
// on either side breaks the signature.
func HostDateAuthorization(apiKey, apiSecret, host, path, date string) string {
	canonical := fmt.Sprintf("host: %s\ndate: %s\nGET %s HTTP/1.1", host, date, path)

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(canonical))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	origin := fmt.Sprintf(
		`api_key="%s", algorithm="%s", headers="%s", signature="%s"`,
		apiKey, "hmac-sha256", "host date request-line", signature,
	)
	return base64.StdEncoding.EncodeToString([]byte(origin))
}

// HostDateQuery assembles the full signed query string for a host/date
// authorized WebSocket dial: authorization, date, and host parameters with
// the date percent-encoded to survive the URL round trip.
func HostDateQuery(apiKey, apiSecret, host, path string, now time.Time) string {
	date := now.UTC().Format(time.RFC1123)
	// RFC1123 renders the zone as "UTC"; the wire format requires "GMT".
	date = date[:len(date)-3] + "GMT"

	auth := HostDateAuthorization(apiKey, apiSecret, host, path, date)
	v := url.Values{}
	v.Set("authorization", auth)
	v.Set("date", date)
	v.Set("host", host)
	return v.Encode()
}

// SortedQuerySignature builds the Tencent-style signed-request value: the
// canonical string is the bare request line (method, host, path) followed by
// '?' and the alphabetically sorted unencoded key=value pairs; the
// HMAC-SHA1 digest is base64-encoded. Callers percent-encode the result when
// embedding it as a `signature` query parameter.
func SortedQuerySignature(secretKey, method, host, path string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sortStrings(keys)

	canonical := method + host + path + "?"
	for i, k := range keys {
		if i > 0 {
			canonical += "&"
		}
		canonical += k + "=" + params.Get(k)
	}

	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
