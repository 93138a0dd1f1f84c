// Package main provides the lunettes command line: the styling proxy and the tools
// to inspect and change its settings.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/2005czq/lunettes"
	"github.com/2005czq/lunettes/db"
	"github.com/2005czq/lunettes/fonts"
	"github.com/2005czq/lunettes/settings"
	"github.com/2005czq/lunettes/storage"
	"github.com/spf13/cobra"
)

// Build information set via ldflags
var version = "dev"

// app holds the collaborators shared by the subcommands.
type app struct {
	configDir string
	config    *lunettes.Config
	logger    *slog.Logger
	repo      *db.Repository
	storage   *storage.Store
	settings  *settings.Store
	fonts     *fonts.Cache
}

func newApp(configDir string, logger *slog.Logger) (*app, error) {
	cfg, err := lunettes.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config : %w", err)
	}
	repo, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database %s : %w", cfg.DatabasePath(), err)
	}
	store, err := storage.New(repo, storage.WithLogger(logger))
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("creating storage : %w", err)
	}

	a := &app{
		configDir: configDir,
		config:    cfg,
		logger:    logger,
		repo:      repo,
		storage:   store,
		settings:  settings.NewStore(store, settings.WithLogger(logger)),
	}
	a.fonts = fonts.New(store,
		fonts.WithHTTPClient(&http.Client{Timeout: cfg.Fonts.FetchTimeout}),
		fonts.WithSources(cfg.FontSources()),
		fonts.WithLogger(logger),
	)
	return a, nil
}

func (a *app) Close() error {
	a.settings.Close()
	return a.repo.Close()
}

var (
	current   *app
	configDir string
	verbose   bool

	rootCmd = &cobra.Command{
		Use:   "lunettes",
		Short: "Bionic reading fonts for every page you browse",
		Long: `Lunettes is a local proxy that restyles HTML pages with bionic reading fonts.

Point your browser at the proxy (or let 'lunettes serve --chrome' start one)
and every page that passes the site filter gets a stylesheet mapping your
configured sans-serif and serif families to the bionic fonts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			var err error
			current, err = newApp(configDir, logger)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if current != nil {
				_ = current.Close()
			}
		},
	}
)

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".lunettes"
	}
	return filepath.Join(dir, "lunettes")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", defaultConfigDir(), "Directory holding config.yaml, the database and the CA")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
