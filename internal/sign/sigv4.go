package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	v4Algorithm  = "AWS4-HMAC-SHA256"
	v4Terminator = "aws4_request"

	// DefaultPresignExpiry bounds how long a presigned URL stays valid.
	DefaultPresignExpiry = 300 * time.Second
)

// emptyPayloadHash is the SHA-256 of the empty string; presigned WebSocket
// upgrades carry no body.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// V4Presigner produces AWS Signature Version 4 presigned URLs for the
// transcribe streaming WebSocket endpoint.
type V4Presigner struct {
	AccessKey string
	SecretKey string
	Region    string
	Service   string
	// Expiry is the presigned URL validity window; zero means
	// DefaultPresignExpiry.
	Expiry time.Duration
	// Now is overridable for deterministic signing in tests; nil means
	// time.Now.
	Now func() time.Time
}

// PresignURL signs a GET request for endpoint (scheme://host[:port]/path)
// carrying query, returning the full URL with the X-Amz-* parameters and
// hex signature appended.
func (p *V4Presigner) PresignURL(endpoint string, query url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	t := now().UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	expiry := p.Expiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	scope := strings.Join([]string{dateStamp, p.Region, p.Service, v4Terminator}, "/")

	signed := url.Values{}
	for k, vs := range query {
		signed[k] = append([]string(nil), vs...)
	}
	signed.Set("X-Amz-Algorithm", v4Algorithm)
	signed.Set("X-Amz-Credential", p.AccessKey+"/"+scope)
	signed.Set("X-Amz-Date", amzDate)
	signed.Set("X-Amz-Expires", strconv.Itoa(int(expiry.Seconds())))
	signed.Set("X-Amz-SignedHeaders", "host")

	canonicalQuery := CanonicalQuery(signed)
	canonicalRequest := canonicalRequest(u.Host, u.Path, canonicalQuery)

	stringToSign := strings.Join([]string{
		v4Algorithm,
		amzDate,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	key := DeriveKey(p.SecretKey, dateStamp, p.Region, p.Service)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return u.Scheme + "://" + u.Host + u.EscapedPath() +
		"?" + canonicalQuery + "&X-Amz-Signature=" + signature, nil
}

// canonicalRequest assembles the GET canonical form: method, encoded path,
// canonical query, canonical headers (host only), signed-header list, and
// the payload hash, newline-joined.
func canonicalRequest(host, path, canonicalQuery string) string {
	if path == "" {
		path = "/"
	}
	return strings.Join([]string{
		"GET",
		encodePath(path),
		canonicalQuery,
		"host:" + host + "\n",
		"host",
		emptyPayloadHash,
	}, "\n")
}

// encodePath URI-encodes each path segment while preserving separators.
func encodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = URIEscape(s)
	}
	return strings.Join(segments, "/")
}

// DeriveKey performs the four chained HMAC-SHA256 steps that scope the
// secret to a date, region, and service:
// date → region → service → "aws4_request".
func DeriveKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, v4Terminator)
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
