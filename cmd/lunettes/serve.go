package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2005czq/lunettes"
	"github.com/2005czq/lunettes/bionic"
	"github.com/2005czq/lunettes/db"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the wait for keep-alive browser connections on exit.
const shutdownTimeout = 5 * time.Second

var (
	serveAddress string
	servePort    string
	serveChrome  bool
	serveURL     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the styling proxy",
	Long: `Serve runs the proxy until interrupted.

HTTPS pages are intercepted with a local certificate authority created in the
config dir on first run. Browsers can download it from http://lunettes.cert/
through the proxy, or use --chrome to start an isolated Chrome that trusts it.

Settings changed from another lunettes process apply to the next page load.

Examples:
  lunettes serve
  lunettes serve --port 9090
  lunettes serve --chrome --url https://example.com`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveChrome, "chrome", false, "Start Chrome configured to use the proxy")
	serveCmd.Flags().StringVar(&serveURL, "url", "", "Page Chrome opens with --chrome")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a := current
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	proxy, err := lunettes.New(
		lunettes.WithLogger(a.logger),
		lunettes.WithConfigDir(a.configDir),
		lunettes.WithRepo(a.repo),
		lunettes.WithTLS(),
		lunettes.WithSettings(a.settings),
		lunettes.WithBuilder(bionic.StylesheetBuilder(a.fonts)),
		lunettes.WithDefaultModifiers(),
	)
	if err != nil {
		return fmt.Errorf("creating proxy : %w", err)
	}

	address, port := a.config.ListenAddress, a.config.ListenPort
	if serveAddress != "" {
		address = serveAddress
	}
	if servePort != "" {
		port = servePort
	}
	listener, err := proxy.GetListener(address, port)
	if err != nil {
		return err
	}

	go func() {
		if err := watchDatabase(ctx); err != nil {
			a.logger.Warn("watching database, changes from other processes are ignored", "error", err)
		}
	}()
	go a.fonts.Warm(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- proxy.Serve(listener)
	}()
	a.logger.Info("proxy listening", "url", proxy.URL(), "spki", proxy.SPKIHash)

	if serveChrome {
		if err := proxy.StartChrome(serveURL); err != nil {
			a.logger.Error("starting chrome", "error", err)
		}
	}

	select {
	case <-ctx.Done():
		listener.Close()
		closed := make(chan struct{})
		go func() {
			proxy.Close()
			close(closed)
		}()
		select {
		case <-closed:
		case <-time.After(shutdownTimeout):
			a.logger.Warn("client connections still open, exiting anyway")
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("serving proxy : %w", err)
	}
}

// watchDatabase syncs the settings storage with writes made by other processes
// until ctx is done.
func watchDatabase(ctx context.Context) error {
	return db.Watch(ctx, current.config.DatabasePath(), db.DefaultWatchDebounce, func() {
		if err := current.storage.Sync(); err != nil {
			current.logger.Warn("syncing settings", "error", err)
		}
	})
}
