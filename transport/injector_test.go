package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tuniway/tuniway-web/store"
	"github.com/tuniway/tuniway-web/transport"
)

// recordingTransport captures the request it is handed.
type recordingTransport struct {
	got *http.Request
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r.got = req
	return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody, Request: req}, nil
}

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestInjector(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		url        string
		wantHeader string
	}{
		{name: "token present adds bearer", token: "abc", url: "http://backend/api/tours", wantHeader: "Bearer abc"},
		{name: "oauth2 path untouched with token", token: "abc", url: "http://backend/oauth2/authorization/google", wantHeader: ""},
		{name: "nested oauth2 path untouched", token: "abc", url: "http://backend/api/oauth2/callback", wantHeader: ""},
		{name: "no token leaves request", token: "", url: "http://backend/api/tours", wantHeader: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			if tt.token != "" {
				require.NoError(t, s.Set(store.KeyToken, tt.token))
			}
			rec := &recordingTransport{}
			inj := transport.NewInjector(s, rec)

			req := newRequest(t, tt.url)
			_, err := inj.RoundTrip(req)
			require.NoError(t, err)

			require.Equal(t, tt.wantHeader, rec.got.Header.Get("Authorization"))
			// The caller's request is never mutated
			require.Empty(t, req.Header.Get("Authorization"))
			if tt.wantHeader == "" {
				require.Same(t, req, rec.got)
			} else {
				require.NotSame(t, req, rec.got)
			}
		})
	}
}

func TestInjectorSurfaces401(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(store.KeyToken, "expired"))

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "Bearer expired", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	res, err := transport.NewInjector(s, nil).Client().Get(srv.URL + "/api/users/7")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, 1, calls)
}

func TestInjectorWebSocketHandshake(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(store.KeyToken, "abc"))

	gotAuth := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "chat", path: "/ws-chat", want: "Bearer abc"},
		{name: "handoff text in query", path: "/ws-chat?next=/oauth2/redirect", want: "Bearer abc"},
		{name: "handoff path", path: "/oauth2/ws", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + tt.path
			conn, _, err := transport.NewInjector(s, nil).DialWebSocket(context.Background(), nil, wsURL)
			require.NoError(t, err)
			conn.Close()

			require.Equal(t, tt.want, <-gotAuth)
		})
	}

	_, _, err := transport.NewInjector(s, nil).DialWebSocket(context.Background(), nil, "ws://[::1")
	require.Error(t, err)
}

func TestInjectorHeaderSkipsHandoff(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(store.KeyToken, "abc"))
	inj := transport.NewInjector(s, nil)

	require.Empty(t, inj.Header("/oauth2/redirect").Get("Authorization"))
	require.Equal(t, "Bearer abc", inj.Header("/ws-chat").Get("Authorization"))
}
