package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/2005czq/lunettes"
	"github.com/2005czq/lunettes/bionic"
	"github.com/2005czq/lunettes/compass"
	"github.com/2005czq/lunettes/domain"
	"github.com/2005czq/lunettes/fonts"
	"github.com/2005czq/lunettes/rawhttp"
	"github.com/spf13/cobra"
)

var fontsCmd = &cobra.Command{
	Use:   "fonts",
	Short: "Manage the bionic font cache",
}

var fontsWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Download the bionic fonts into the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for category, src := range current.fonts.Warm(cmd.Context()) {
			state := "cached"
			if !fonts.IsDataURL(src) {
				state = "remote " + src
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s\n", category, state)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Report whether a page would be styled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := url.Parse(args[0])
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%q is not an absolute url", args[0])
		}
		s := current.settings.Get()

		out := cmd.OutOrStdout()
		for _, pattern := range s.ActiveList() {
			if compass.Matches(u, pattern) {
				fmt.Fprintf(out, "matches %s pattern %s\n", s.FilterMode, pattern)
			}
		}
		if compass.IsSiteFiltered(s, u) {
			fmt.Fprintln(out, "filtered")
		} else {
			fmt.Fprintln(out, "styled")
		}
		return nil
	},
}

var (
	injectURL    string
	injectPretty bool
)

var injectCmd = &cobra.Command{
	Use:   "inject <file>",
	Short: "Print an HTML file with the bionic style injected",
	Long: `Inject applies the current settings to a saved HTML or XHTML page, as if
it had been loaded from --url through the proxy, and prints the result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		u, err := url.Parse(injectURL)
		if err != nil {
			return fmt.Errorf("parsing --url : %w", err)
		}

		kind := rawhttp.Classify(nil, body)
		styled, _, ok, err := lunettes.StyleDocument(cmd.Context(), u, kind, body, current.settings, bionic.StylesheetBuilder(current.fonts), current.logger)
		if err != nil {
			return err
		}
		if !ok {
			current.logger.Info("page left unchanged", "url", u.String())
		}
		if injectPretty {
			if styled, err = rawhttp.Prettify(styled); err != nil {
				return err
			}
		}
		_, err = cmd.OutOrStdout().Write(styled)
		return err
	},
}

var watchOut string

var watchCmd = &cobra.Command{
	Use:   "watch <url>",
	Short: "Keep a user stylesheet for a page in sync with the settings",
	Long: `Watch writes the bionic stylesheet for the page at <url> to --out and rewrites
or removes it whenever the settings change, until interrupted. The file is
removed on exit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := bionic.NewFileDocument(args[0], watchOut)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		orchestrator := bionic.New(doc, current.settings, bionic.StylesheetBuilder(current.fonts), bionic.WithLogger(current.logger))
		stop := orchestrator.Start(ctx)
		defer stop()

		go func() {
			err := watchDatabase(ctx)
			if err != nil {
				current.logger.Warn("watching database", "error", err)
			}
		}()
		current.logger.Info("watching settings", "url", args[0], "out", doc.Path())
		<-ctx.Done()
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configuration and database state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		entries, err := current.repo.CountEntries()
		if err != nil {
			return err
		}
		cachedFonts, err := current.repo.CountCachedFonts()
		if err != nil {
			return err
		}
		logs, err := current.repo.CountLogs()
		if err != nil {
			return err
		}
		spki, err := current.repo.GetSPKI()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config dir:   %s\n", current.configDir)
		fmt.Fprintf(out, "database:     %s\n", current.config.DatabasePath())
		fmt.Fprintf(out, "listen:       %s:%s\n", current.config.ListenAddress, current.config.ListenPort)
		fmt.Fprintf(out, "entries:      %d\n", entries)
		fmt.Fprintf(out, "cached fonts: %d/%d\n", cachedFonts, len(domain.FontCategories))
		fmt.Fprintf(out, "logs:         %d\n", logs)
		if spki == "" {
			spki = "not created yet, run lunettes serve"
		}
		fmt.Fprintf(out, "ca spki:      %s\n", spki)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fontsCmd, checkCmd, injectCmd, watchCmd, statusCmd)
	fontsCmd.AddCommand(fontsWarmCmd)

	injectCmd.Flags().StringVar(&injectURL, "url", "https://example.com/", "URL the page is treated as coming from")
	injectCmd.Flags().BoolVar(&injectPretty, "pretty", false, "Indent the resulting document")

	watchCmd.Flags().StringVarP(&watchOut, "out", "o", "lunettes.css", "Stylesheet file to keep updated")
}
