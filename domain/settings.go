package domain

// FilterMode selects how the site list is interpreted.
type FilterMode string

const (
	// FilterModeBlacklist excludes pages that match the blacklist.
	FilterModeBlacklist FilterMode = "blacklist"
	// FilterModeWhitelist only styles pages that match the whitelist.
	FilterModeWhitelist FilterMode = "whitelist"
)

// Theme is the UI theme stored alongside the settings. The styling pipeline ignores it.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeSystem Theme = "system"
	ThemeDark   Theme = "dark"
)

// Settings is the user configuration persisted under SettingsKey.
//
// Only FilterMode, Blacklist, Whitelist, SansSerifFonts and SerifFonts are read
// by the styling pipeline. The remaining fields are carried so that a round trip
// through storage does not lose them.
type Settings struct {
	Locale             string     `json:"locale"`
	Theme              Theme      `json:"theme"`
	ShowFloatingButton bool       `json:"showFloatingButton"`
	SansSerifFonts     []string   `json:"sansSerifFonts"`
	SerifFonts         []string   `json:"serifFonts"`
	FilterMode         FilterMode `json:"filterMode"`
	Blacklist          []string   `json:"blacklist"`
	Whitelist          []string   `json:"whitelist"`
}

// Clone returns a deep copy of the settings so callers can hand out snapshots
// without sharing the underlying slices.
func (s Settings) Clone() Settings {
	clone := s
	clone.SansSerifFonts = append([]string(nil), s.SansSerifFonts...)
	clone.SerifFonts = append([]string(nil), s.SerifFonts...)
	clone.Blacklist = append([]string(nil), s.Blacklist...)
	clone.Whitelist = append([]string(nil), s.Whitelist...)
	return clone
}

// ActiveList returns the pattern list selected by the filter mode.
func (s Settings) ActiveList() []string {
	if s.FilterMode == FilterModeBlacklist {
		return s.Blacklist
	}
	return s.Whitelist
}

// SettingsSource provides settings snapshots and change notifications.
type SettingsSource interface {
	// Get returns the current settings snapshot.
	Get() Settings
	// OnChange registers handler to be called with every new snapshot.
	// The returned function removes the registration.
	OnChange(handler func(Settings)) (unsubscribe func())
}
