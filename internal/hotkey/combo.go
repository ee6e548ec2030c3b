package hotkey

import (
	"sort"
	"strings"
)

// Canonical modifier names, in precedence order.
const (
	ModControl = "control"
	ModShift   = "shift"
	ModAlt     = "alt"
	ModCmd     = "cmd"
)

var modifierRank = map[string]int{
	ModControl: 0,
	ModShift:   1,
	ModAlt:     2,
	ModCmd:     3,
}

// keyAliases maps the spellings users and hook backends produce onto the
// canonical key names.
var keyAliases = map[string]string{
	"ctrl":     ModControl,
	"lctrl":    ModControl,
	"rctrl":    ModControl,
	"lcontrol": ModControl,
	"rcontrol": ModControl,
	"lshift":   ModShift,
	"rshift":   ModShift,
	"menu":     ModAlt,
	"lmenu":    ModAlt,
	"rmenu":    ModAlt,
	"lalt":     ModAlt,
	"ralt":     ModAlt,
	"option":   ModAlt,
	"win":      ModCmd,
	"lwin":     ModCmd,
	"rwin":     ModCmd,
	"windows":  ModCmd,
	"super":    ModCmd,
	"meta":     ModCmd,
	"command":  ModCmd,
	"return":   "enter",
	"escape":   "esc",
	"spacebar": "space",
}

// NormalizeKey lower-cases a single key name and resolves aliases.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// IsModifier reports whether a normalized key name is a modifier.
func IsModifier(key string) bool {
	_, ok := modifierRank[key]
	return ok
}

// Canonicalize turns a human combo description such as "Shift+Ctrl+C" into
// its canonical form "control+shift+c". Two descriptions of the same combo
// always canonicalize to the same string, and the result is a fixed point.
func Canonicalize(combo string) string {
	return CanonicalizeKeys(strings.Split(combo, "+"))
}

// CanonicalizeKeys applies the canonical ordering to a set of key names.
// Modifiers come first in control, shift, alt, cmd order, then the
// remaining keys sorted by name. Duplicates and empty names are dropped.
func CanonicalizeKeys(keys []string) string {
	seen := make(map[string]struct{}, len(keys))
	var mods, rest []string

	for _, raw := range keys {
		k := NormalizeKey(raw)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		if IsModifier(k) {
			mods = append(mods, k)
		} else {
			rest = append(rest, k)
		}
	}

	sort.Slice(mods, func(i, j int) bool {
		return modifierRank[mods[i]] < modifierRank[mods[j]]
	})
	sort.Strings(rest)

	return strings.Join(append(mods, rest...), "+")
}
