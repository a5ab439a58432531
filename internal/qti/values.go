package qti

import "strings"

// Pair is one directed pair taken from a serialized multi-value container.
type Pair struct {
	First  string
	Second string
}

// IsEmptyContainer reports whether a raw value is an empty response:
// an empty string or an empty multiple/ordered container literal.
func IsEmptyContainer(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "", "[]", "<>":
		return true
	}
	return false
}

// ParseIdentifiers decodes a serialized multi-value container of identifiers,
// e.g. "['choice_1'; 'choice_3']" (multiple) or "<'a'; 'b'>" (ordered).
// Token order is preserved. ok is false when raw is not a container.
func ParseIdentifiers(raw string) ([]string, bool) {
	tokens, ok := containerTokens(raw)
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		ids = append(ids, unquote(tok))
	}
	return ids, true
}

// ParsePairs decodes a serialized multi-value container of pairs, e.g.
// "[choice_1 gap_2; choice_3 gap_1]". Tokens that do not hold exactly two
// identifiers are skipped.
func ParsePairs(raw string) ([]Pair, bool) {
	tokens, ok := containerTokens(raw)
	if !ok {
		return nil, false
	}
	pairs := make([]Pair, 0, len(tokens))
	for _, tok := range tokens {
		fields := strings.Fields(tok)
		if len(fields) != 2 {
			continue
		}
		pairs = append(pairs, Pair{First: unquote(fields[0]), Second: unquote(fields[1])})
	}
	return pairs, true
}

// containerTokens strips the container brackets and splits the payload on
// semicolons. An empty container yields zero tokens.
func containerTokens(raw string) ([]string, bool) {
	s := strings.TrimSpace(raw)
	if len(s) < 2 {
		return nil, false
	}

	var inner string
	switch {
	case s[0] == '[' && s[len(s)-1] == ']':
		inner = s[1 : len(s)-1]
	case s[0] == '<' && s[len(s)-1] == '>':
		inner = s[1 : len(s)-1]
	default:
		return nil, false
	}

	inner = strings.TrimSpace(inner)
	if inner == "" {
		return nil, true
	}

	parts := strings.Split(inner, ";")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens, true
}

func unquote(s string) string {
	return strings.Trim(s, "'")
}
