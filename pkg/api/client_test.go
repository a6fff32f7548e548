package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/apperrors"
	"github.com/datatram-io/datatram-go/pkg/auth"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens auth.TokenSource) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, tokens, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("not a url", nil, nil)
	assert.Error(t, err)
	_, err = New("", nil, nil)
	assert.Error(t, err)
}

func TestGet_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotReqID, gotAccept string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"ok":true}`))
	}, auth.Static("session-token"))

	_, err := c.Get(context.Background(), "/sources/all")
	require.NoError(t, err)
	assert.Equal(t, "Bearer session-token", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "application/json", gotAccept)
}

func TestGet_NoTokenSendsUnauthenticated(t *testing.T) {
	var gotAuth string
	sawHeader := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, sawHeader = r.Header["Authorization"]
		w.Write([]byte(`[]`))
	}, auth.Static(""))

	_, err := c.Get(context.Background(), "/connections/all")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
	assert.False(t, sawHeader, "no Authorization header at all without a session")
}

func TestGet_TokenSourceErrorStopsRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, auth.TokenSourceFunc(func(context.Context) (string, error) {
		return "", errors.New("identity provider down")
	}))

	_, err := c.Get(context.Background(), "/sources/all")
	assert.Error(t, err)
	assert.False(t, called, "request must not go out without a token decision")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{"not found with message", 404, `{"message":"source not found"}`, apperrors.ErrNotFound, "source not found"},
		{"error-shaped body", 400, `{"error":"name is required"}`, apperrors.ErrValidation, "name is required"},
		{"unauthorized", 401, `{"message":"missing token"}`, apperrors.ErrUnauthorized, "missing token"},
		{"plain text body", 500, `boom`, nil, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, auth.Static("tok"))

			_, err := c.Get(context.Background(), "/sources/1")
			require.Error(t, err)

			var apiErr *apperrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestPostJSON_RoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/connections", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		assert.JSONEq(t, `{"sourceId":1,"destinationId":2}`, string(body))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":10,"sourceId":1,"destinationId":2}`))
	}, auth.Static("tok"))

	var out struct {
		ID int `json:"id"`
	}
	err := c.PostJSON(context.Background(), "/connections",
		map[string]int{"sourceId": 1, "destinationId": 2}, &out)
	require.NoError(t, err)
	assert.Equal(t, 10, out.ID)
}

func TestPostForm_SetsMultipartContentType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Acme BQ", r.FormValue("name"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":3}`))
	}, auth.Static("tok"))

	form := NewForm().Field("name", "Acme BQ")
	var out struct {
		ID int `json:"id"`
	}
	require.NoError(t, c.PostForm(context.Background(), "/destinations", form, &out))
	assert.Equal(t, 3, out.ID)
}

func TestDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/sources/42", r.URL.Path)
		w.Write([]byte(`{"success":true}`))
	}, auth.Static("tok"))

	assert.NoError(t, c.Delete(context.Background(), "/sources/42"))
}

func TestBuildURL_PreservesBasePath(t *testing.T) {
	c, err := New("http://localhost:8000/api", auth.Static(""), nil)
	require.NoError(t, err)

	endpoint, err := c.buildURL("/sources/all")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/sources/all", endpoint)
}

func TestBuildURL_KeepsQueryString(t *testing.T) {
	c, err := New("http://localhost:8000", auth.Static(""), nil)
	require.NoError(t, err)

	endpoint, err := c.buildURL("/connection-histories/all?userId=user-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/connection-histories/all?userId=user-1", endpoint)
}
