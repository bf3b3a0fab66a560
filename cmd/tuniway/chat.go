package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/tuniway/tuniway-web/handoff"
	"github.com/tuniway/tuniway-web/transport"
)

const defaultChatPath = "/ws"

func chatCmd(load func() (*app, error)) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat socket with the stored session",
		Long: `Open the backend chat socket. Lines read from stdin are sent as text
messages and every message received is printed. Closing stdin ends the chat.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.manager.IsLoggedIn() {
				warn("Not logged in, connecting anonymously")
			}

			wsURL, err := websocketURL(a.config.GetBackendURL(), path)
			if err != nil {
				return err
			}
			info("Connecting to %s", wsURL)
			return runChat(cmd.Context(), a.injector, wsURL, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&path, "path", defaultChatPath, "chat socket path on the backend")

	return cmd
}

// websocketURL maps the backend base URL onto the ws or wss socket at path.
// The socket lives outside the /api prefix.
func websocketURL(backendURL, path string) (string, error) {
	u, err := url.Parse(handoff.BackendOrigin(backendURL))
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("backend url %q: unsupported scheme %q", backendURL, u.Scheme)
	}
	u.Path = path
	return u.String(), nil
}

func runChat(ctx context.Context, injector *transport.Injector, wsURL string, in io.Reader, out io.Writer) error {
	conn, resp, err := injector.DialWebSocket(ctx, nil, wsURL)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("chat rejected the session, run tuniway login: %w", err)
		}
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			fmt.Fprintf(out, "%s\n", msg)
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := conn.WriteMessage(websocket.TextMessage, scanner.Bytes()); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	// Input is exhausted; ask the server to hang up and drain what it still sends
	if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	select {
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
