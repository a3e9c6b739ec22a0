// Package hotkey detects a global activation chord from system-wide key events.
package hotkey

import (
	"fmt"
	"sort"
	"strings"

	hook "github.com/robotn/gohook"
)

// Chord is an unordered set of modifier keys plus one primary key.
//
// Equality is set equality; the chord is immutable once parsed.
type Chord struct {
	raw   string
	codes map[uint16]string
}

// keyAliases maps common spellings to the names gohook's keycode table uses.
var keyAliases = map[string]string{
	"control":  "ctrl",
	"super":    "cmd",
	"win":      "cmd",
	"windows":  "cmd",
	"meta":     "cmd",
	"option":   "alt",
	"return":   "enter",
	"escape":   "esc",
	"spacebar": "space",
}

// ParseChord parses a "+"-separated key combination such as "ctrl+shift+space".
//
// The last component is the primary key, everything before it a modifier;
// matching treats the whole chord as a key set so component order is
// irrelevant.
func ParseChord(spec string) (Chord, error) {
	parts := strings.Split(spec, "+")
	codes := make(map[uint16]string, len(parts))

	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return Chord{}, fmt.Errorf("chord %q contains an empty key", spec)
		}
		if alias, ok := keyAliases[name]; ok {
			name = alias
		}
		code, ok := hook.Keycode[name]
		if !ok {
			return Chord{}, fmt.Errorf("chord %q: unknown key %q", spec, name)
		}
		codes[code] = name
	}

	if len(codes) == 0 {
		return Chord{}, fmt.Errorf("chord %q has no keys", spec)
	}

	return Chord{raw: strings.TrimSpace(spec), codes: codes}, nil
}

// Contains reports whether the chord includes the given keycode.
func (c Chord) Contains(code uint16) bool {
	_, ok := c.codes[code]
	return ok
}

// SatisfiedBy reports whether every chord key is present in the pressed set.
func (c Chord) SatisfiedBy(pressed map[uint16]struct{}) bool {
	if len(c.codes) == 0 {
		return false
	}
	for code := range c.codes {
		if _, ok := pressed[code]; !ok {
			return false
		}
	}
	return true
}

// Equal reports set equality between two chords.
func (c Chord) Equal(other Chord) bool {
	if len(c.codes) != len(other.codes) {
		return false
	}
	for code := range c.codes {
		if !other.Contains(code) {
			return false
		}
	}
	return true
}

// Len returns the number of keys in the chord.
func (c Chord) Len() int {
	return len(c.codes)
}

// String renders the chord in canonical sorted form.
func (c Chord) String() string {
	names := make([]string, 0, len(c.codes))
	for _, name := range c.codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}
