package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NonceCredential is one AK/SK query-string credential set: the access key,
// a millisecond timestamp, a fresh nonce, a fresh request id, and the
// signature over their concatenation. Every call mints a new one.
type NonceCredential struct {
	AccessKey string
	Timestamp string
	Nonce     string
	RequestID string
	Signature string
}

// NewNonceCredential signs accessKey+timestamp+nonce with HMAC-SHA256 and
// hex-encodes the digest (the AK_SK family).
func NewNonceCredential(accessKey, secretKey string, now time.Time) NonceCredential {
	c := NonceCredential{
		AccessKey: accessKey,
		Timestamp: strconv.FormatInt(now.UnixMilli(), 10),
		Nonce:     uuid.NewString(),
		RequestID: uuid.NewString(),
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(c.AccessKey + c.Timestamp + c.Nonce))
	c.Signature = hex.EncodeToString(mac.Sum(nil))
	return c
}

// NewSignedNonceCredential signs accessKey+timestamp+nonce with HMAC-SHA1
// and base64-encodes the digest (the AK_SK_SIGNED family).
func NewSignedNonceCredential(accessKey, secretKey string, now time.Time) NonceCredential {
	c := NonceCredential{
		AccessKey: accessKey,
		Timestamp: strconv.FormatInt(now.UnixMilli(), 10),
		Nonce:     uuid.NewString(),
		RequestID: uuid.NewString(),
	}
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(c.AccessKey + c.Timestamp + c.Nonce))
	c.Signature = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return c
}

// Query renders the credential as URL parameters. The signature is escaped
// with URIEscape so base64 padding and '+' survive verification upstream.
func (c NonceCredential) Query() string {
	return fmt.Sprintf("appkey=%s&time=%s&nonce=%s&requestId=%s&sign=%s",
		url.QueryEscape(c.AccessKey), c.Timestamp, c.Nonce, c.RequestID, URIEscape(c.Signature))
}

// Verify recomputes the HMAC-SHA256 hex form and compares.
func (c NonceCredential) Verify(secretKey string) bool {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(c.AccessKey + c.Timestamp + c.Nonce))
	return hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(c.Signature))
}

// VerifySigned recomputes the HMAC-SHA1 base64 form and compares.
func (c NonceCredential) VerifySigned(secretKey string) bool {
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(c.AccessKey + c.Timestamp + c.Nonce))
	return hmac.Equal([]byte(base64.StdEncoding.EncodeToString(mac.Sum(nil))), []byte(c.Signature))
}
