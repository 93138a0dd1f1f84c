package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/2005czq/lunettes/domain"
	"github.com/2005czq/lunettes/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the styling settings",
	Long: `Settings are stored in the lunettes database and picked up by a running
proxy without a restart.

Examples:
  lunettes settings show
  lunettes settings mode whitelist
  lunettes settings add whitelist '*://news.example.com/*'
  lunettes settings remove blacklist '*://chatgpt.com/*'
  lunettes settings fonts sans Inter Arial
  lunettes settings reset`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := settings.Encode(current.settings.Get())
		if err != nil {
			return err
		}
		var out bytes.Buffer
		if err := json.Indent(&out, []byte(raw), "", "  "); err != nil {
			return fmt.Errorf("formatting settings : %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.String())
		return nil
	},
}

var settingsModeCmd = &cobra.Command{
	Use:       "mode <blacklist|whitelist>",
	Short:     "Select which site list applies",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.FilterModeBlacklist), string(domain.FilterModeWhitelist)},
	RunE: func(_ *cobra.Command, args []string) error {
		mode, err := settings.ParseFilterMode(args[0])
		if err != nil {
			return err
		}
		return current.settings.SetFilterMode(mode)
	},
}

var settingsAddCmd = &cobra.Command{
	Use:   "add <blacklist|whitelist> <pattern>...",
	Short: "Add site patterns to a list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return updateSiteList(args[0], func(list []string) []string {
			for _, pattern := range args[1:] {
				pattern = strings.TrimSpace(pattern)
				if pattern != "" && !slices.Contains(list, pattern) {
					list = append(list, pattern)
				}
			}
			return list
		})
	},
}

var settingsRemoveCmd = &cobra.Command{
	Use:   "remove <blacklist|whitelist> <pattern>...",
	Short: "Remove site patterns from a list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return updateSiteList(args[0], func(list []string) []string {
			return slices.DeleteFunc(list, func(pattern string) bool {
				return slices.Contains(args[1:], pattern)
			})
		})
	},
}

var settingsFontsCmd = &cobra.Command{
	Use:   "fonts <sans|serif> <family>...",
	Short: "Set the font families mapped to a bionic font",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		switch domain.FontCategory(args[0]) {
		case domain.FontSans:
			return current.settings.SetSansSerifFonts(args[1:])
		case domain.FontSerif:
			return current.settings.SetSerifFonts(args[1:])
		default:
			return fmt.Errorf("unknown font category %q, expected sans or serif", args[0])
		}
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return current.settings.Reset()
	},
}

func updateSiteList(name string, fn func([]string) []string) error {
	mode, err := settings.ParseFilterMode(name)
	if err != nil {
		return err
	}
	return current.settings.Update(func(s domain.Settings) domain.Settings {
		if mode == domain.FilterModeBlacklist {
			s.Blacklist = fn(s.Blacklist)
		} else {
			s.Whitelist = fn(s.Whitelist)
		}
		return s
	})
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsModeCmd, settingsAddCmd, settingsRemoveCmd, settingsFontsCmd, settingsResetCmd)
}
