package wanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcsc-project/tcsc/pkg/clock"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/logging"
)

func newTestClient(t *testing.T, url string, options ClientOptions) *Client {
	t.Helper()
	client, err := NewClient(url, options, logging.NewNopLogger())
	require.NoError(t, err)
	return client
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"http://localhost:4000", "http://localhost:4000", false},
		{"http://localhost:4000/", "http://localhost:4000", false},
		{"localhost:4000", "http://localhost:4000", false},
		{"  https://wanda.example.com/base/?x=1 ", "https://wanda.example.com/base", false},
		{"", "", true},
		{"http://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.input)
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_FetchReturnsRawResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors":[{"title":"Not Found","detail":"The requested resource cannot be found."}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, ClientOptions{AccessKey: "secret"})
	resp, err := client.Fetch(context.Background(), ExecutionPath("abc"))
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, []string{"Not Found"}, resp.ErrorTitles())
}

func TestClient_SubmitEncodesPayload(t *testing.T) {
	var got ExecutionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, StartExecutionPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, ClientOptions{})
	req := ExecutionRequest{
		Env:         map[string]string{"provider": "azure"},
		ExecutionID: "e1",
		GroupID:     "g1",
		Targets:     []Target{{AgentID: "a1", Checks: []string{"156F64"}}},
		TargetType:  "cluster",
	}
	resp, err := client.Submit(context.Background(), StartExecutionPath, req)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, req, got)
}

func TestClient_StartExecution(t *testing.T) {
	status := int32(http.StatusAccepted)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StartExecutionPath, r.URL.Path)
		w.WriteHeader(int(atomic.LoadInt32(&status)))
		fmt.Fprint(w, `{"errors":[{"title":"Unprocessable Entity","detail":"no_checks_selected"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, ClientOptions{})
	req := ExecutionRequest{ExecutionID: "e1", GroupID: "g1", TargetType: "host"}
	require.NoError(t, client.StartExecution(context.Background(), req))

	atomic.StoreInt32(&status, http.StatusUnprocessableEntity)
	err := client.StartExecution(context.Background(), req)
	assert.True(t, errors.IsConnectionError(err))
	assert.Contains(t, err.Error(), "422")
}

func TestClient_TypedHelpers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(CatalogPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":"156F64","group":"Corosync"}]}`)
	})
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"database":"pass"}`)
	})
	mux.HandleFunc(ReadinessPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ready":true}`)
	})
	mux.HandleFunc(ExecutionsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, ClientOptions{})
	ctx := context.Background()

	catalog, err := client.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog.Items, 1)
	assert.Equal(t, "156F64", catalog.Items[0]["id"])

	assert.True(t, client.Operational(ctx))

	_, err = client.Executions(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsConnectionError(err))
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_OperationalFalseOnFailures(t *testing.T) {
	tests := []struct {
		name      string
		health    string
		readiness string
	}{
		{"database_failing", `{"database":"fail"}`, `{"ready":true}`},
		{"not_ready", `{"database":"pass"}`, `{"ready":false}`},
		{"garbage", `not json`, `{"ready":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, tt.health) })
			mux.HandleFunc(ReadinessPath, func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, tt.readiness) })
			server := httptest.NewServer(mux)
			defer server.Close()

			client := newTestClient(t, server.URL, ClientOptions{})
			assert.False(t, client.Operational(context.Background()))
		})
	}

	client := newTestClient(t, "http://127.0.0.1:1", ClientOptions{})
	assert.False(t, client.Operational(context.Background()))
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := newTestClient(t, url, ClientOptions{})
	_, err := client.Fetch(context.Background(), CatalogPath)
	require.Error(t, err)
	assert.True(t, errors.IsConnectionError(err))
}

func TestClient_LogsRequestsThatFailToConnect(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var debug []string
	logger := logging.NewLogger("", logging.LogFuncs{
		Debugf: func(format string, args ...interface{}) { debug = append(debug, fmt.Sprintf(format, args...)) },
	})
	client, err := NewClient(url, ClientOptions{AccessKey: "topsecret"}, logger)
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), StartExecutionPath, map[string]string{"execution_id": "e1"})
	require.Error(t, err)
	assert.True(t, errors.IsConnectionError(err))

	require.NotEmpty(t, debug)
	assert.Contains(t, debug[0], "POST REQUEST")
	assert.Contains(t, debug[0], url+StartExecutionPath)
	assert.Contains(t, debug[0], "Bearer ***")
	assert.Contains(t, debug[0], `"execution_id":"e1"`)
	for _, line := range debug {
		assert.NotContains(t, line, "topsecret")
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "admin",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestClient_SessionTokenIsCachedUntilExpiry(t *testing.T) {
	fake := clock.Fake(time.Now())
	var sessions int32
	var token atomic.Value
	token.Store(signedToken(t, fake.Now().Add(time.Minute)))

	mux := http.NewServeMux()
	mux.HandleFunc(SessionPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sessions, 1)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "admin", r.PostForm.Get("username"))
		assert.Equal(t, "s3cret", r.PostForm.Get("password"))
		fmt.Fprintf(w, `{"access_token":%q}`, token.Load().(string))
	})
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token.Load().(string), r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"database":"pass"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, ClientOptions{
		Credentials: &Credentials{URL: server.URL, Username: "admin", Password: "s3cret"},
		Clock:       fake,
	})
	ctx := context.Background()

	_, err := client.Health(ctx)
	require.NoError(t, err)
	_, err = client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sessions))

	fake.Advance(2 * time.Minute)
	token.Store(signedToken(t, fake.Now().Add(time.Minute)))
	_, err = client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&sessions))
}

func TestClient_OpaqueTokenIsReused(t *testing.T) {
	var sessions int32
	mux := http.NewServeMux()
	mux.HandleFunc(SessionPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sessions, 1)
		fmt.Fprint(w, `{"access_token":"opaque"}`)
	})
	mux.HandleFunc(ReadinessPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ready":true}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, ClientOptions{
		Credentials: &Credentials{URL: server.URL, Username: "u", Password: "p"},
	})
	for i := 0; i < 3; i++ {
		_, err := client.Readiness(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&sessions))
}

func TestClient_AuthFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"invalid credentials"}`},
		{"no_token", http.StatusOK, `{}`},
		{"garbage", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, ClientOptions{
				Credentials: &Credentials{URL: server.URL, Username: "u", Password: "p"},
			})
			_, err := client.Catalog(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsAuthError(err))
		})
	}
}

func TestNewClient_IncompleteCredentials(t *testing.T) {
	_, err := NewClient("http://localhost:4000", ClientOptions{
		Credentials: &Credentials{URL: "http://trento"},
	}, logging.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username, password")
}

func TestResponse_Errors(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusUnprocessableEntity,
		Body: []byte(`{"error":{"detail":"no_checks_selected"},
			"errors":[{"title":"Unprocessable Entity","detail":"bad","source":{"pointer":"/targets"}}]}`),
	}
	assert.Equal(t, "no_checks_selected", resp.ErrorDetail())
	subs := resp.SubErrors()
	require.Len(t, subs, 1)
	assert.Equal(t, `Unprocessable Entity: bad: {"pointer":"/targets"}`, subs[0].String())

	var out map[string]interface{}
	err := (&Response{StatusCode: 200, Body: []byte("nope")}).Decode(&out)
	assert.True(t, errors.IsResponseError(err))
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer topsecret")
	assert.NotContains(t, redactHeaders(h), "topsecret")
	assert.Contains(t, redactHeaders(h), "Bearer ***")
}
