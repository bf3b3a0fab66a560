package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tuniway/tuniway-web/backend/backendfake"
	"github.com/tuniway/tuniway-web/server"
	"github.com/tuniway/tuniway-web/users"
)

func serveCmd(load func() (*app, error)) *cobra.Command {
	var fakeBackend string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local web front",
		Long: `Run the local web front: login and registration, the identity provider
redirect, the guarded profile and admin views, and the /api proxy that
attaches the stored token.

With --fake-backend the Tuniway REST backend is replaced by an in-process
stand-in listening on the given address, seeded with demo accounts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fakeBackend != "" {
				addr := fakeBackend
				if _, _, err := net.SplitHostPort(addr); err != nil {
					return fmt.Errorf("--fake-backend %q: %w", addr, err)
				}
				os.Setenv("BACKEND_URL", "http://"+hostForURL(addr)+"/api")
			}

			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			return run(a, fakeBackend)
		},
	}
	cmd.Flags().StringVar(&fakeBackend, "fake-backend", "", "serve an in-process backend on this address, e.g. localhost:8083")

	return cmd
}

func run(a *app, fakeBackendAddr string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(a.config.GetAppName())

	servers := make([]*http.Server, 0, 2)
	if fakeBackendAddr != "" {
		fake, err := newSeededBackend(a.config.GetFakeBackendSecret())
		if err != nil {
			return err
		}
		servers = append(servers, &http.Server{Addr: fakeBackendAddr, Handler: fake})
	}

	front, err := server.New(a.config, server.Deps{
		Store:    a.store,
		Manager:  a.manager,
		Profiles: a.backend,
		Handoff:  a.handoff,
		Injector: a.injector,
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}
	defer front.Close()

	servers = append(servers, &http.Server{
		Addr:         a.config.GetPort(),
		Handler:      front,
		ReadTimeout:  a.config.GetReadTimeout(),
		WriteTimeout: a.config.GetWriteTimeout(),
		IdleTimeout:  a.config.GetIdleTimeout(),
	})

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			errs <- listenAndServe(srv)
		}(srv)
	}

	select {
	case err := <-errs:
		returnError = err
	case <-waitForStopSignal():
	}

	for _, srv := range servers {
		if err := shutdown(srv); err != nil {
			returnError = errors.Join(returnError, err)
		}
	}
	log.Info().Msg("server stopped")
	return returnError
}

func listenAndServe(srv *http.Server) error {
	log.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

// demoAccounts seed the fake backend. All share the same password.
var demoAccounts = []users.Record{
	{Username: "admin", Email: "admin@tuniway.test", Role: users.RoleAdmin},
	{Username: "guide", Email: "guide@tuniway.test", Role: users.RoleGuide},
	{Username: "client", Email: "client@tuniway.test", Role: users.RoleClient},
}

const demoPassword = "tuniway"

func newSeededBackend(secret string) (*backendfake.Server, error) {
	fake := backendfake.New(secret)
	for _, record := range demoAccounts {
		seeded, err := fake.Seed(record, demoPassword)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", record.Username, err)
		}
		log.Info().Int64("id", seeded.ID).Str("username", seeded.Username).Str("role", string(seeded.Role)).Msg("fake backend account")
	}
	return fake, nil
}

// hostForURL turns a listen address into something dialable.
func hostForURL(addr string) string {
	host, port, _ := net.SplitHostPort(addr)
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
