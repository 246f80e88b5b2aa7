// Package normalize turns a recorded command into the token list handed to
// the execution layer.
package normalize

import (
	"strings"
	"sync"
)

// Outcome is the result of normalizing one command.
// Ignored outcomes carry the tokens of the original, unrewritten command.
type Outcome struct {
	Ignored bool
	Tokens  []string
}

// Normalizer runs the ignored-pattern check, map algebra expansion, special
// flag rewriting and tokenization, in that order.
type Normalizer struct {
	mu      sync.RWMutex
	ignored Matcher
	flags   map[string]string
}

// Option is a functional option for configuring the Normalizer
type Option func(*Normalizer)

// WithIgnoredPattern sets the matcher for commands that must not be dispatched
func WithIgnoredPattern(m Matcher) Option {
	return func(n *Normalizer) {
		n.ignored = m
	}
}

// WithSpecialFlags replaces the special flag table
func WithSpecialFlags(flags map[string]string) Option {
	return func(n *Normalizer) {
		n.flags = flags
	}
}

// New creates a Normalizer with no ignored pattern and DefaultSpecialFlags
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		ignored: Never,
		flags:   DefaultSpecialFlags,
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.ignored == nil {
		n.ignored = Never
	}
	return n
}

// SetIgnored swaps the ignored-command matcher; nil disables it
func (n *Normalizer) SetIgnored(m Matcher) {
	if m == nil {
		m = Never
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ignored = m
}

// Normalize prepares command for dispatch. Malformed quoting returns a *ParseError.
func (n *Normalizer) Normalize(command string) (Outcome, error) {
	n.mu.RLock()
	ignored, flags := n.ignored, n.flags
	n.mu.RUnlock()

	if ignored.MatchString(command) && !hasInterfaceFlag(command) {
		tokens, err := Split(command)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Ignored: true, Tokens: tokens}, nil
	}

	if IsMapcalc(command) {
		// ParseMapcalc re-quotes the expression, which would hide broken quoting
		if _, err := Split(command); err != nil {
			return Outcome{}, err
		}
		command = ParseMapcalc(command)
	}
	command = ReplaceSpecialFlags(command, flags)

	tokens, err := Split(command)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Tokens: tokens}, nil
}

// hasInterfaceFlag reports whether command asks for help or the tool dialog,
// which always overrides the ignored pattern
func hasInterfaceFlag(command string) bool {
	for _, f := range strings.Fields(command) {
		if f == "--help" || f == "--ui" {
			return true
		}
	}
	return false
}
