package inngestgo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

// signatureReplayWindow bounds how old an incoming request's timestamp may
// be before its signature is rejected, regardless of whether the HMAC
// itself matches (spec §4.5: 5-minute replay protection window).
const signatureReplayWindow = 5 * time.Minute

// Sign produces the value of the X-Inngest-Signature header for body,
// signed with key at time t: "t=<unix>&s=<hex hmac>". body is passed
// through canonical JSON first (see canonicalize).
func Sign(ctx context.Context, t time.Time, key []byte, body []byte) string {
	return signWithoutJCS(ctx, t, key, canonicalize(body))
}

// signWithoutJCS signs body as-is, without first passing it through
// canonical JSON. Used for probe/introspection signing, where the signed
// payload may be a non-JSON empty byte slice.
func signWithoutJCS(ctx context.Context, t time.Time, key []byte, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	mac.Write([]byte(fmt.Sprintf("%d", t.Unix())))
	sum := mac.Sum(nil)
	return fmt.Sprintf("t=%d&s=%s", t.Unix(), hex.EncodeToString(sum))
}

// canonicalize runs body through RFC 8785 JSON canonicalization before
// signing/verifying, so whitespace or key-order differences between
// sender and receiver never break a signature.
func canonicalize(body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	canon, err := jcs.Transform(body)
	if err != nil {
		// Not JSON (eg. a probe's empty body): sign/verify the raw bytes.
		return body
	}
	return canon
}

func parseSignature(sig string) (ts int64, mac string, err error) {
	parts := strings.Split(sig, "&")
	vals := map[string]string{}
	for _, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		vals[kv[0]] = kv[1]
	}

	tsStr, ok := vals["t"]
	if !ok {
		return 0, "", fmt.Errorf("missing timestamp in signature")
	}
	ts, err = strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid timestamp in signature: %w", err)
	}

	mac, ok = vals["s"]
	if !ok {
		return 0, "", fmt.Errorf("missing signature value")
	}
	return ts, mac, nil
}

func verifyWithKey(sig string, key, body []byte) (bool, error) {
	if key == nil {
		return false, nil
	}

	ts, mac, err := parseSignature(sig)
	if err != nil {
		return false, err
	}

	if time.Since(time.Unix(ts, 0)).Abs() > signatureReplayWindow {
		return false, fmt.Errorf("signature timestamp outside replay window")
	}

	expectedSig := Sign(context.Background(), time.Unix(ts, 0), key, canonicalize(body))
	_, expectedMac, err := parseSignature(expectedSig)
	if err != nil {
		return false, err
	}

	return hmac.Equal([]byte(mac), []byte(expectedMac)), nil
}

// ValidateRequestSignature validates an incoming request's signature
// against signingKey, then signingKeyFallback if the primary doesn't
// match, letting key rotation happen without downtime. It returns the key
// that validated (for re-signing the response) alongside the result.
func ValidateRequestSignature(
	ctx context.Context,
	sig string,
	signingKey string,
	signingKeyFallback string,
	body []byte,
) (bool, string, error) {
	if signingKey == "" && signingKeyFallback == "" {
		// No keys configured: dev mode allows unsigned requests.
		return true, "", nil
	}

	if ok, err := verifyWithKey(sig, []byte(signingKey), body); ok {
		return true, signingKey, nil
	} else if err != nil && signingKeyFallback == "" {
		return false, "", err
	}

	if signingKeyFallback != "" {
		if ok, err := verifyWithKey(sig, []byte(signingKeyFallback), body); ok {
			return true, signingKeyFallback, nil
		} else if err != nil {
			return false, "", err
		}
	}

	return false, "", fmt.Errorf("signature mismatch")
}

// ValidateSignature is an alias for ValidateRequestSignature, named to
// match the handler's call sites that validate both incoming requests and
// trust probes with the same logic.
func ValidateSignature(
	ctx context.Context,
	sig string,
	signingKey string,
	signingKeyFallback string,
	body []byte,
) (bool, string, error) {
	return ValidateRequestSignature(ctx, sig, signingKey, signingKeyFallback, body)
}

// ValidateResponseSignature validates a response signature the same way a
// request is validated, against signingKey alone (no fallback key).
func ValidateResponseSignature(ctx context.Context, sig string, signingKey string, body []byte) (bool, error) {
	ok, _, err := ValidateRequestSignature(ctx, sig, signingKey, "", body)
	return ok, err
}

// hashedSigningKey returns the sha256 hex digest of a signing key, used to
// fingerprint which key a request validated against without ever exposing
// the key itself (eg. in introspection responses).
func hashedSigningKey(key []byte) ([]byte, error) {
	sum := sha256.Sum256(key)
	return []byte(hex.EncodeToString(sum[:])), nil
}

// hashCanonicalJSON returns the hex-sha256 digest of v's canonical JSON
// encoding (RFC 8785), used to fingerprint a payload (eg. a registration
// body) independent of field order or whitespace (spec §6: re-registering
// the same functions must yield an identical payload hash).
func hashCanonicalJSON(v any) (string, error) {
	byt, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload for hashing: %w", err)
	}
	sum := sha256.Sum256(canonicalize(byt))
	return hex.EncodeToString(sum[:]), nil
}

// fetchWithAuthFallback performs an HTTP request built by newReq, retrying
// once with the fallback signing key if the primary key is rejected
// (401/403), supporting zero-downtime signing key rotation.
func fetchWithAuthFallback(
	newReq func() (*http.Request, error),
	signingKey string,
	signingKeyFallback string,
) (*http.Response, error) {
	req, err := newReq()
	if err != nil {
		return nil, err
	}
	if signingKey != "" {
		req.Header.Set("Authorization", "Bearer "+signingKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && signingKeyFallback != "" {
		_ = resp.Body.Close()

		retryReq, err := newReq()
		if err != nil {
			return nil, err
		}
		retryReq.Header.Set("Authorization", "Bearer "+signingKeyFallback)
		return http.DefaultClient.Do(retryReq)
	}

	return resp, nil
}
