package normalize

import (
	"github.com/kballard/go-shellquote"
)

// Split tokenizes command with POSIX shell quoting rules: words are separated
// by unquoted whitespace, quotes group words and backslash escapes. No
// expansion of any kind happens. Malformed quoting yields a *ParseError.
func Split(command string) ([]string, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, &ParseError{Text: command, Err: err}
	}
	return words, nil
}
