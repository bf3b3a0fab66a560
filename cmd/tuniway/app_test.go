package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tuniway/tuniway-web/internal/config"
	"github.com/tuniway/tuniway-web/store"
	"github.com/tuniway/tuniway-web/transport"
	"github.com/tuniway/tuniway-web/users"
)

func TestOpenStore(t *testing.T) {
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "s.json"))

	for _, kind := range []string{config.StoreMemory, config.StoreFile} {
		t.Run(kind, func(t *testing.T) {
			t.Setenv("STORE_KIND", kind)
			cfg, err := config.Load("")
			require.NoError(t, err)

			s, closeFn, err := openStore(cfg)
			require.NoError(t, err)
			require.NoError(t, s.Set(store.KeyToken, "t"))
			require.NoError(t, closeFn())
		})
	}

	t.Setenv("STORE_KIND", "floppy")
	cfg, err := config.Load("")
	require.NoError(t, err)
	_, _, err = openStore(cfg)
	require.Error(t, err)
}

func TestAppSharesStoreAcrossCommands(t *testing.T) {
	fake, err := newSeededBackend("secret")
	require.NoError(t, err)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	t.Setenv("ENV", "TEST")
	t.Setenv("BACKEND_URL", srv.URL+"/api")
	t.Setenv("STORE_KIND", config.StoreFile)
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "session.json"))

	first, err := newApp("")
	require.NoError(t, err)
	record, err := first.manager.Login(context.Background(), users.Credentials{Username: "guide", Password: demoPassword})
	require.NoError(t, err)
	first.Close()

	second, err := newApp("")
	require.NoError(t, err)
	defer second.Close()

	current, ok := second.manager.Current()
	require.True(t, ok)
	require.Equal(t, record, current)
	require.True(t, second.manager.IsGuide())

	url, err := second.handoff.ProviderLoginURL("google")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/oauth2/authorization/google", url)
}

func TestWebsocketURL(t *testing.T) {
	u, err := websocketURL("http://localhost:8083/api", "/ws")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8083/ws", u)

	u, err = websocketURL("https://tuniway.example/api/", "/chat")
	require.NoError(t, err)
	require.Equal(t, "wss://tuniway.example/chat", u)

	_, err = websocketURL("ftp://tuniway.example/api", "/ws")
	require.Error(t, err)
}

func TestRunChat(t *testing.T) {
	gotAuth := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, append([]byte("echo: "), msg...)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := store.NewMemoryStore()
	require.NoError(t, s.Set(store.KeyToken, "abc"))

	wsURL, err := websocketURL(srv.URL+"/api", "/ws")
	require.NoError(t, err)

	var out bytes.Buffer
	err = runChat(context.Background(), transport.NewInjector(s, nil), wsURL, strings.NewReader("hola\nsalam\n"), &out)
	require.NoError(t, err)

	require.Equal(t, "Bearer abc", <-gotAuth)
	require.Equal(t, "echo: hola\necho: salam\n", out.String())
}
