package paste

import (
	"time"
)

// Override adjusts the chain for one application
type Override struct {
	// PreferMenu enables menu invocation for plain-text entries too
	PreferMenu bool `yaml:"prefer_menu" json:"prefer_menu"`
	// MenuItems replaces the paste menu item titles tried, in order
	MenuItems []string `yaml:"menu_items" json:"menu_items,omitempty"`
	// Disabled lists strategy names never tried for the application
	Disabled []string `yaml:"disabled" json:"disabled,omitempty"`
	// Key and KeyModifiers replace the Command-V shortcut
	Key          string   `yaml:"key" json:"key,omitempty"`
	KeyModifiers []string `yaml:"key_modifiers" json:"key_modifiers,omitempty"`
	// ExtraSettle is added to the activation settle delay
	ExtraSettle time.Duration `yaml:"extra_settle" json:"extra_settle,omitempty"`
}

// Overrides maps bundle identifiers to overrides
type Overrides map[string]Override

const (
	defaultKey  = "v"
	defaultMenu = "Edit"
)

var defaultMenuItems = []string{"Paste with Formatting", "Paste"}

// BuiltinOverrides covers applications known to need special handling.
// Emacs yanks with Control-Y; terminals take the keystroke only.
func BuiltinOverrides() Overrides {
	return Overrides{
		"org.gnu.Emacs":             {Key: "y", KeyModifiers: []string{"ctrl"}, Disabled: []string{StrategyMenu}},
		"com.apple.Terminal":        {Disabled: []string{StrategyMenu, StrategyResponder}},
		"com.googlecode.iterm2":     {Disabled: []string{StrategyMenu, StrategyResponder}},
		"com.mitchellh.ghostty":     {Disabled: []string{StrategyMenu, StrategyResponder}},
		"net.kovidgoyal.kitty":      {Disabled: []string{StrategyMenu, StrategyResponder}},
		"com.microsoft.Word":        {PreferMenu: true, MenuItems: []string{"Paste"}},
		"com.microsoft.Excel":       {PreferMenu: true, MenuItems: []string{"Paste"}},
		"com.microsoft.VSCode":      {Disabled: []string{StrategyMenu}},
		"com.google.Chrome":         {ExtraSettle: 100 * time.Millisecond},
		"org.mozilla.firefox":       {ExtraSettle: 100 * time.Millisecond},
		"com.apple.Safari":          {MenuItems: []string{"Paste and Match Style", "Paste"}},
		"com.tinyspeck.slackmacgap": {ExtraSettle: 150 * time.Millisecond},
	}
}

// Merge returns o with extra layered on top
func (o Overrides) Merge(extra Overrides) Overrides {
	out := make(Overrides, len(o)+len(extra))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Lookup returns the override for bundleID, or the zero override
func (o Overrides) Lookup(bundleID string) Override {
	if bundleID == "" {
		return Override{}
	}
	return o[bundleID]
}

func (ov Override) disables(name string) bool {
	for _, d := range ov.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

func (ov Override) key() string {
	if ov.Key != "" {
		return ov.Key
	}
	return defaultKey
}

func (ov Override) modifiers() []string {
	if len(ov.KeyModifiers) > 0 {
		return ov.KeyModifiers
	}
	return []string{"cmd"}
}

func (ov Override) menuItems() []string {
	if len(ov.MenuItems) > 0 {
		return ov.MenuItems
	}
	return defaultMenuItems
}
