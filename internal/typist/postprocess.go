// Package typist post-processes recognized text and emits it into the
// focused window as synthetic keystrokes or a clipboard paste.
package typist

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// sanitizeReplacer swaps space variants and fraction glyphs that misrender in
// some target applications.
var sanitizeReplacer = strings.NewReplacer(
	" ", " ", // narrow no-break space
	" ", " ", // no-break space
	"½", "1/2",
	"¼", "1/4",
	"¾", "3/4",
)

// typingReplacer additionally folds glyphs that legacy targets cannot accept
// as per-key input. Only applied on the key-event path, never before pasting.
var typingReplacer = strings.NewReplacer(
	"½", "1/2",
	"¼", "1/4",
	"¾", "3/4",
	"–", "-",
	"—", "-",
	"…", "...",
)

// Options selects the post-processing steps applied to every transcript.
type Options struct {
	Lowercase     bool
	TrailingSpace bool
}

// Process applies the fixed pipeline: sanitize, trim, case transform,
// trailing-space append. An all-whitespace transcript collapses to "".
func Process(text string, opts Options) string {
	text = Sanitize(text)
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if opts.Lowercase {
		text = strings.ToLower(text)
	}
	if opts.TrailingSpace {
		text += " "
	}
	return text
}

// Sanitize normalizes text for robust cross-app output: NFC composition plus
// replacement of space variants that commonly mojibake.
func Sanitize(text string) string {
	return sanitizeReplacer.Replace(norm.NFC.String(text))
}

// TransliterateForTyping conservatively folds problem glyphs to ASCII for the
// per-key typing path.
func TransliterateForTyping(text string) string {
	return typingReplacer.Replace(text)
}
