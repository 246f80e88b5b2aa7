package normalize

import (
	"regexp"
	"strings"
)

// mapcalcTool matches the raster and 3D raster map algebra tools
var mapcalcTool = MustCompile(`^r3?\.mapcalc$`)

var (
	shortFlag = regexp.MustCompile(`^-[a-zA-Z]+$`)
	longFlag  = regexp.MustCompile(`^--[a-zA-Z][a-zA-Z-]*$`)
)

// mapcalcOptions are the map algebra parameters that are not part of the expression
var mapcalcOptions = []string{"file=", "region=", "seed=", "nprocs="}

// IsMapcalc reports whether the leading word of command is a map algebra tool
func IsMapcalc(command string) bool {
	words := scanWords(command)
	if len(words) == 0 {
		return false
	}
	return mapcalcTool.MatchString(command[words[0].start:words[0].end])
}

// ParseMapcalc rewrites a map algebra invocation into the form
//
//	r.mapcalc [flags] [file=/region=/seed=/nprocs=...] expression="..."
//
// Everything that is not a flag or one of those options is part of the
// expression, so both `r.mapcalc a = b + 1` and `r.mapcalc expression=a=b+1`
// become a single expression option. A fully quoted expression keeps its quotes.
func ParseMapcalc(command string) string {
	words := scanWords(command)
	if len(words) < 2 {
		return command
	}

	text := func(w word) string { return command[w.start:w.end] }

	var flags, options, expr []string
	for _, w := range words[1:] {
		t := text(w)
		switch {
		case longFlag.MatchString(t), len(expr) == 0 && shortFlag.MatchString(t):
			flags = append(flags, t)
		case isMapcalcOption(t):
			options = append(options, t)
		default:
			expr = append(expr, t)
		}
	}

	parts := []string{text(words[0])}
	parts = append(parts, flags...)
	parts = append(parts, options...)
	if len(expr) > 0 {
		parts = append(parts, "expression="+quoteExpression(strings.Join(expr, " ")))
	}
	return strings.Join(parts, " ")
}

func isMapcalcOption(t string) bool {
	for _, prefix := range mapcalcOptions {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// quoteExpression strips an expression= prefix and makes the rest a single shell word
func quoteExpression(expr string) string {
	expr = strings.TrimPrefix(expr, "expression=")
	if isQuotedWord(expr) {
		return expr
	}

	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(expr); i++ {
		switch c := expr[i]; c {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// isQuotedWord reports whether s is one shell word wrapped in matching quotes
func isQuotedWord(s string) bool {
	if len(s) < 2 {
		return false
	}
	first, last := s[0], s[len(s)-1]
	if (first != '"' && first != '\'') || first != last {
		return false
	}
	words := scanWords(s)
	return len(words) == 1 && words[0].start == 0 && words[0].end == len(s)
}
