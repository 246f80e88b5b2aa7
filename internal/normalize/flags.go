package normalize

import (
	"strings"
)

// DefaultSpecialFlags expands the abbreviated global flags into their long form
var DefaultSpecialFlags = map[string]string{
	"--o": "--overwrite",
	"--q": "--quiet",
	"--v": "--verbose",
}

// ReplaceSpecialFlags rewrites every unquoted word of command that is a key of
// flags into its value. Quoted text and whitespace are left as they are.
func ReplaceSpecialFlags(command string, flags map[string]string) string {
	if len(flags) == 0 {
		return command
	}

	words := scanWords(command)
	if len(words) == 0 {
		return command
	}

	var out strings.Builder
	out.Grow(len(command))
	for _, w := range words {
		out.WriteString(command[w.gapStart:w.start])
		text := command[w.start:w.end]
		if repl, ok := flags[text]; ok {
			text = repl
		}
		out.WriteString(text)
	}
	out.WriteString(command[words[len(words)-1].end:])
	return out.String()
}

// word is the byte range of one shell word and of the whitespace before it
type word struct {
	gapStart, start, end int
}

// scanWords splits command into shell words without unquoting them.
// An unterminated quote simply runs to the end of the string; Split reports it.
func scanWords(command string) []word {
	var words []word
	var quote byte
	inWord := false
	escaped := false
	gapStart := 0
	start := 0

	for i := 0; i < len(command); i++ {
		c := command[i]
		if escaped {
			escaped = false
			continue
		}
		if !inWord {
			if isSpace(c) {
				continue
			}
			inWord = true
			start = i
		}
		switch {
		case c == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case isSpace(c):
			words = append(words, word{gapStart: gapStart, start: start, end: i})
			inWord = false
			gapStart = i
		}
	}
	if inWord {
		words = append(words, word{gapStart: gapStart, start: start, end: len(command)})
	}
	return words
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
