package normalize

import (
	"fmt"
	"regexp"
	"sync"
)

// Matcher classifies a command string. *regexp.Regexp satisfies it.
type Matcher interface {
	MatchString(s string) bool
}

type never struct{}

func (never) MatchString(string) bool { return false }

// Never is a Matcher that matches nothing
var Never Matcher = never{}

var compiled = struct {
	sync.Mutex
	m map[string]Matcher
}{m: make(map[string]Matcher)}

// Compile returns a cached Matcher for the regular expression pattern.
// The empty pattern yields Never.
func Compile(pattern string) (Matcher, error) {
	if pattern == "" {
		return Never, nil
	}

	compiled.Lock()
	defer compiled.Unlock()

	if m, ok := compiled.m[pattern]; ok {
		return m, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	compiled.m[pattern] = re
	return re, nil
}

// MustCompile is like Compile but panics on an invalid pattern
func MustCompile(pattern string) Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}
