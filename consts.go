package inngestgo

import "net/http"

const (
	SDKAuthor   = "inngest"
	SDKLanguage = "go"
	SDKVersion  = "0.7.4"

	HeaderValueSDK = "go:" + SDKVersion

	SyncKindInBand    = "in_band"
	SyncKindOutOfBand = "out_of_band"
)

const (
	defaultAPIOrigin      = "https://api.inngest.com"
	defaultEventAPIOrigin = "https://inn.gs"
	devServerOrigin       = "http://127.0.0.1:8288"

	defaultRegisterURL = "https://api.inngest.com/fn/register"
)

const (
	HeaderKeyContentType        = "Content-Type"
	HeaderKeyEnv                = "X-Inngest-Env"
	HeaderKeyEventIDSeed        = "X-Inngest-Event-Id-Seed"
	HeaderKeyExpectedServerKind = "X-Inngest-Expected-Server-Kind"
	HeaderKeyNoRetry            = "X-Inngest-No-Retry"
	HeaderKeyPlatform           = "X-Inngest-Platform"
	HeaderKeyRetryAfter         = "Retry-After"
	HeaderKeySDK                = "X-Inngest-SDK"
	HeaderKeyServerKind         = "X-Inngest-Server-Kind"
	HeaderKeySignature          = "X-Inngest-Signature"
	HeaderKeySyncKind           = "X-Inngest-Sync-Kind"
)

// SetBasicResponseHeaders sets the headers every SDK response should carry,
// identifying this process as an Inngest SDK server.
func SetBasicResponseHeaders(w http.ResponseWriter) {
	w.Header().Set(HeaderKeyContentType, "application/json")
	w.Header().Set(HeaderKeySDK, HeaderValueSDK)
}

// SetBasicRequestHeaders sets the headers every outgoing SDK request (eg.
// registration) should carry.
func SetBasicRequestHeaders(r *http.Request) {
	r.Header.Set(HeaderKeyContentType, "application/json")
	r.Header.Set(HeaderKeySDK, HeaderValueSDK)
}
