package inngestgo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func devClient(t *testing.T) *apiClient {
	t.Helper()
	t.Setenv("INNGEST_DEV", "1")
	return &apiClient{ClientOpts: ClientOpts{AppID: "test-app"}}
}

func TestIntrospectGET(t *testing.T) {
	c := devClient(t)
	_, err := CreateFunction(c, FunctionOpts{Name: "fn-a"}, EventTrigger("test/event", nil), func(ctx context.Context, input Input[any]) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	h := newHandler(c)
	req := httptest.NewRequest(http.MethodGet, "/api/inngest", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var payload insecureIntrospection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, 1, payload.FunctionCount)
	require.Equal(t, "dev", payload.Mode)
	require.Equal(t, schemaVersion, payload.SchemaVersion)
	require.Nil(t, payload.AuthenticationSucceeded)
}

func TestIntrospectGETWithSigningKeyIsSecure(t *testing.T) {
	c := &apiClient{ClientOpts: ClientOpts{
		AppID:      "test-app",
		SigningKey: Ptr("signkey-test-12345678"),
	}}

	h := newHandler(c)
	req := httptest.NewRequest(http.MethodGet, "/api/inngest", nil)
	sig := Sign(context.Background(), time.Now(), []byte("signkey-test-12345678"), []byte{})
	req.Header.Set(HeaderKeySignature, sig)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var payload secureIntrospection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.True(t, *payload.AuthenticationSucceeded)
	require.Equal(t, "test-app", payload.AppID)
	require.NotNil(t, payload.SigningKeyHash)
}

func TestRegisterOutOfBand(t *testing.T) {
	var received RegisterRequest
	orchestrator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer orchestrator.Close()

	c := devClient(t)
	c.ClientOpts.APIBaseURL = Ptr(orchestrator.URL)
	_, err := CreateFunction(c, FunctionOpts{Name: "fn-a"}, EventTrigger("test/event", nil), func(ctx context.Context, input Input[any]) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	h := newHandler(c)
	req := httptest.NewRequest(http.MethodPut, "/api/inngest", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, received.Functions, 1)
	require.NotEmpty(t, received.Hash)
	require.Equal(t, "v1", received.Capabilities.TrustProbe)
	require.Equal(t, "v1", received.Capabilities.InBandSync)
}

func TestRegisterOutOfBandHashIsStableAcrossCalls(t *testing.T) {
	var hashes []string
	orchestrator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		hashes = append(hashes, body.Hash)
		w.WriteHeader(http.StatusOK)
	}))
	defer orchestrator.Close()

	c := devClient(t)
	c.ClientOpts.APIBaseURL = Ptr(orchestrator.URL)
	_, err := CreateFunction(c, FunctionOpts{Name: "fn-a"}, EventTrigger("test/event", nil), func(ctx context.Context, input Input[any]) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	h := newHandler(c)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPut, "/api/inngest", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	require.Len(t, hashes, 2)
	require.Equal(t, hashes[0], hashes[1])
}

func TestRegisterInBand(t *testing.T) {
	c := devClient(t)
	c.ClientOpts.AllowInBandSync = Ptr(true)
	_, err := CreateFunction(c, FunctionOpts{Name: "fn-a"}, EventTrigger("test/event", nil), func(ctx context.Context, input Input[any]) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	h := newHandler(c)
	body := `{"url":"https://host.example/api/inngest"}`
	req := httptest.NewRequest(http.MethodPut, "/api/inngest", strings.NewReader(body))
	req.Header.Set(HeaderKeySyncKind, SyncKindInBand)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, SyncKindInBand, w.Header().Get(HeaderKeySyncKind))

	var resp inBandSynchronizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "test-app", resp.AppID)
	require.Len(t, resp.Functions, 1)
	require.Contains(t, resp.Functions[0].Steps["step"].Runtime["url"], "https://host.example/api/inngest")
	require.NotNil(t, resp.Inspection)
}

func TestRegisterInBandRejectsUnsignedRequestOutsideDevMode(t *testing.T) {
	c := &apiClient{ClientOpts: ClientOpts{
		AppID:           "test-app",
		SigningKey:      Ptr("signkey-test-12345678"),
		AllowInBandSync: Ptr(true),
	}}

	h := newHandler(c)
	body := `{"url":"https://host.example/api/inngest"}`
	req := httptest.NewRequest(http.MethodPut, "/api/inngest", strings.NewReader(body))
	req.Header.Set(HeaderKeySyncKind, SyncKindInBand)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterFallsBackToOutOfBandWhenNotAllowed(t *testing.T) {
	var called bool
	orchestrator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer orchestrator.Close()

	c := devClient(t)
	c.ClientOpts.APIBaseURL = Ptr(orchestrator.URL)
	// AllowInBandSync left unset/false.

	h := newHandler(c)
	req := httptest.NewRequest(http.MethodPut, "/api/inngest", nil)
	req.Header.Set(HeaderKeySyncKind, SyncKindInBand)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, called, "expected the out-of-band path to run since in-band sync isn't allowed")
}

func TestInvokeStepLessFunctionReturns200WithResult(t *testing.T) {
	c := devClient(t)
	sf, err := CreateFunction(c, FunctionOpts{Name: "fn-a"}, EventTrigger("test/event", nil), func(ctx context.Context, input Input[any]) (any, error) {
		return map[string]any{"ok": true}, nil
	})
	require.NoError(t, err)

	h := newHandler(c)
	body := `{"event":{"name":"test/event","data":{}},"events":[{"name":"test/event","data":{}}],"ctx":{"fn_id":"` + sf.ID() + `","run_id":"run-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/inngest?fnId="+sf.ID(), strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Equal(t, true, result["ok"])
}

func TestInvokeUnknownFunctionReturns410(t *testing.T) {
	c := devClient(t)
	h := newHandler(c)
	body := `{"event":{"name":"test/event","data":{}},"ctx":{"fn_id":"missing","run_id":"run-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/inngest?fnId=missing", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusGone, w.Code)
}
