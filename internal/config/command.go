package config

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseCommand turns one command setting (output.type_command,
// output.clipboard_command, output.paste_command) into its stored form. An
// empty or commented-out value yields a disabled command with a nil argv.
func ParseCommand(raw string) (CommandConfig, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return CommandConfig{Raw: raw}, nil
	}

	argv, err := splitCommand(trimmed)
	if err != nil {
		return CommandConfig{}, err
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

// splitCommand tokenizes a command value with shell-like quoting: single
// quotes, double quotes, and backslash escapes. Nothing is expanded or
// substituted; the argv is handed to exec verbatim. Quoted empty strings
// survive as empty arguments so a paste command can pass "" through.
func splitCommand(value string) ([]string, error) {
	var (
		argv     []string
		word     []rune
		open     bool
		inSingle bool
		inDouble bool
		escaped  bool
	)

	for _, r := range value {
		if escaped {
			word = append(word, r)
			escaped = false
			continue
		}

		switch {
		case r == '\\' && !inSingle:
			escaped = true
			open = true
		case inSingle:
			if r == '\'' {
				inSingle = false
			} else {
				word = append(word, r)
			}
		case inDouble:
			if r == '"' {
				inDouble = false
			} else {
				word = append(word, r)
			}
		case r == '\'':
			inSingle = true
			open = true
		case r == '"':
			inDouble = true
			open = true
		case unicode.IsSpace(r):
			if open || len(word) > 0 {
				argv = append(argv, string(word))
				word = word[:0]
				open = false
			}
		default:
			word = append(word, r)
			open = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("command %q ends mid-escape", value)
	}
	if inSingle || inDouble {
		return nil, fmt.Errorf("command %q has an unterminated quote", value)
	}
	if open || len(word) > 0 {
		argv = append(argv, string(word))
	}

	return argv, nil
}

// mustCommand backs Default(); the built-in command strings always parse.
func mustCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}
