package speech

// AuthType names the authentication family a provider signs requests with.
type AuthType string

const (
	// AuthAPIKey attaches one key as a bearer-style header or query param.
	AuthAPIKey AuthType = "API_KEY"
	// AuthAPIKeyHeader attaches one key under a provider-specific header
	// name, not necessarily with a scheme prefix.
	AuthAPIKeyHeader AuthType = "API_KEY_HEADER"
	// AuthAPIKeySecret exchanges an id/secret pair for a bearer token
	// (OAuth2 client credentials).
	AuthAPIKeySecret AuthType = "API_KEY_SECRET"
	// AuthServiceAccountOrAPIKey accepts either a service-account credential
	// or a plain API key.
	AuthServiceAccountOrAPIKey AuthType = "SERVICE_ACCOUNT_OR_API_KEY"
	// AuthSubscriptionKeyRegion pairs a subscription key with a region that
	// selects the endpoint host.
	AuthSubscriptionKeyRegion AuthType = "SUBSCRIPTION_KEY_REGION"
	// AuthAWSIAM signs with SigV4 presigned URLs.
	AuthAWSIAM AuthType = "AWS_IAM"
	// AuthIBMIAM exchanges an API key for an IAM bearer token.
	AuthIBMIAM AuthType = "IBM_IAM"
	// AuthAKSK signs accessKey+timestamp+nonce with HMAC-SHA256/hex.
	AuthAKSK AuthType = "AK_SK"
	// AuthAKSKSigned signs accessKey+timestamp+nonce with HMAC-SHA1/base64
	// plus a per-call request id.
	AuthAKSKSigned AuthType = "AK_SK_SIGNED"
	// AuthSignedRequest signs a canonical request string (host/date/request-
	// line or sorted query parameters).
	AuthSignedRequest AuthType = "SIGNED_REQUEST"
)

// Credentials is the flat per-provider secret-field record supplied by the
// credential store. The gateway only reads it; which fields matter depends on
// the provider's AuthType.
type Credentials struct {
	APIKey    string `json:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty"`
	AppID     string `json:"app_id,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Region    string `json:"region,omitempty"`
	// ServiceURL overrides the provider's default endpoint (IBM instances
	// carry per-account URLs).
	ServiceURL string `json:"service_url,omitempty"`
	ProjectID  string `json:"project_id,omitempty"`
	// ServiceAccount holds a service-account credential blob for providers
	// that accept one in place of an API key.
	ServiceAccount string `json:"service_account,omitempty"`
}

// HasRequired reports whether creds carries every field the auth family
// needs. It is a pure field-presence predicate; it never performs network
// activity. Registry uses it as the configuration gate.
func HasRequired(auth AuthType, creds Credentials) bool {
	switch auth {
	case AuthAPIKey, AuthAPIKeyHeader:
		return creds.APIKey != ""
	case AuthAPIKeySecret:
		return creds.APIKey != "" && creds.APISecret != ""
	case AuthServiceAccountOrAPIKey:
		return creds.APIKey != "" || creds.ServiceAccount != ""
	case AuthSubscriptionKeyRegion:
		return creds.APIKey != "" && creds.Region != ""
	case AuthAWSIAM:
		return creds.AccessKey != "" && creds.SecretKey != "" && creds.Region != ""
	case AuthIBMIAM:
		return creds.APIKey != "" && creds.ServiceURL != ""
	case AuthAKSK:
		return creds.AccessKey != "" && creds.SecretKey != ""
	case AuthAKSKSigned:
		return creds.AccessKey != "" && creds.SecretKey != "" && creds.AppID != ""
	case AuthSignedRequest:
		return creds.AppID != "" && creds.APIKey != "" && creds.APISecret != ""
	default:
		return false
	}
}
