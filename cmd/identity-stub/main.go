// Command identity-stub serves the in-memory identity service for local
// development against orgunitctl.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/t11e/go-identity/internal/config"
	"github.com/t11e/go-identity/internal/fakeapi"
)

var empty = flag.Bool("empty", false, "Start without the demo organization")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "identity-stub: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	s := fakeapi.New(fakeapi.WithLogger(logger), fakeapi.WithAccessToken(cfg.AccessToken))
	if !*empty {
		s.SeedDemo()
	}

	srv := &http.Server{
		Addr:              cfg.StubAddr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(srv) }()
	logger.Infow("identity stub listening", "addr", cfg.StubAddr, "units", len(s.Units()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func listenAndServe(srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
