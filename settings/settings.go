// Package settings owns the user settings: factory defaults, the JSON form
// persisted in storage, and a Store that keeps a current snapshot in sync
// with other processes and broadcasts every change.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/2005czq/lunettes/domain"
)

var (
	// ErrSaveFailed is returned when the storage rejected a write. The new
	// settings are still in effect for this process.
	ErrSaveFailed = errors.New("saving settings failed")

	// ErrInvalidFilterMode is returned by ParseFilterMode for unknown modes.
	ErrInvalidFilterMode = errors.New("invalid filter mode")
)

// Defaults returns the factory settings.
func Defaults() domain.Settings {
	return domain.Settings{
		Locale:             "en",
		Theme:              domain.ThemeSystem,
		ShowFloatingButton: true,
		SansSerifFonts:     []string{"Arial", "Helvetica", "Calibri", "Roboto", "Open Sans", "Sans-Serif"},
		SerifFonts:         []string{"Times New Roman", "Georgia", "Palatino", "Serif"},
		FilterMode:         domain.FilterModeBlacklist,
		Blacklist:          []string{"*://chatgpt.com/*", "*://gemini.google.com/*"},
		Whitelist:          []string{"*://www.cnn.com/*", "*://www.bbc.com/*"},
	}
}

// Parse decodes stored settings. Fields missing from raw keep their default
// value, fields present replace it entirely.
func Parse(raw string) (domain.Settings, error) {
	settings := Defaults()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return Defaults(), fmt.Errorf("parsing settings : %w", err)
	}
	return settings, nil
}

// Encode returns the JSON form persisted in storage.
func Encode(settings domain.Settings) (string, error) {
	encoded, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("encoding settings : %w", err)
	}
	return string(encoded), nil
}

// ParseFilterMode validates a filter mode given by a user.
func ParseFilterMode(mode string) (domain.FilterMode, error) {
	switch m := domain.FilterMode(strings.ToLower(strings.TrimSpace(mode))); m {
	case domain.FilterModeBlacklist, domain.FilterModeWhitelist:
		return m, nil
	default:
		return "", fmt.Errorf("%w : %q", ErrInvalidFilterMode, mode)
	}
}
