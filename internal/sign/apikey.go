package sign

import "net/http"

// APIKey attaches a literal key to requests, either as a header (with an
// optional scheme prefix such as "Bearer " or "Token ") or as a query
// parameter. The zero Header defaults to Authorization.
type APIKey struct {
	Key    string
	Header string // header name; ignored when Query is set
	Prefix string // prepended verbatim to the key, e.g. "Bearer "
	Query  string // query parameter name; header attachment when empty
}

// Apply adds the key to req.
func (a APIKey) Apply(req *http.Request) {
	if a.Query != "" {
		q := req.URL.Query()
		q.Set(a.Query, a.Key)
		req.URL.RawQuery = q.Encode()
		return
	}
	header := a.Header
	if header == "" {
		header = "Authorization"
	}
	req.Header.Set(header, a.Prefix+a.Key)
}
