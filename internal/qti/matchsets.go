package qti

// MatchStrategy classifies how a pairwise interaction maps onto columns.
type MatchStrategy int

const (
	// MatchByColumn means every choice of set 0 accepts at most one match:
	// one column per set-0 choice, cell holds the matched set-1 position.
	MatchByColumn MatchStrategy = iota
	// MatchByRow is the symmetric case keyed on set 1.
	MatchByRow
	// MatchMatrix is the many-to-many case: one 0/1 column per pair.
	MatchMatrix
)

func (s MatchStrategy) String() string {
	switch s {
	case MatchByColumn:
		return "column"
	case MatchByRow:
		return "row"
	default:
		return "matrix"
	}
}

// MatchSets derives the ordered choice identifier set(s) of an interaction
// node. Match interactions yield two sets, gap-match yields gaps then source
// choices, hottext yields the hot elements, choice-like kinds yield their
// declared choices. An interaction without declared choices yields no sets.
func MatchSets(n *Node) [][]string {
	if n == nil {
		return nil
	}

	switch kindByClass[n.Class] {
	case KindMatch:
		if len(n.ChoiceSets) < 2 {
			return nil
		}
		return [][]string{
			choiceIdentifiers(n.ChoiceSets[0]),
			choiceIdentifiers(n.ChoiceSets[1]),
		}

	case KindGapMatch:
		if n.Body == nil {
			return nil
		}
		var gaps []string
		for _, el := range n.Body.Elements {
			if el.Class == "gap" {
				gaps = append(gaps, choiceIdentifier(el))
			}
		}
		var sources []string
		for _, set := range n.ChoiceSets {
			sources = append(sources, choiceIdentifiers(set)...)
		}
		return [][]string{gaps, sources}

	case KindHottext:
		if n.Body == nil {
			return nil
		}
		var hots []string
		for _, el := range n.Body.Elements {
			if el.Class == "hottext" {
				hots = append(hots, choiceIdentifier(el))
			}
		}
		return [][]string{hots}

	case KindChoice, KindInlineChoice, KindOrder:
		var ids []string
		for _, set := range n.ChoiceSets {
			ids = append(ids, choiceIdentifiers(set)...)
		}
		return [][]string{ids}
	}
	return nil
}

func choiceIdentifiers(set []*Node) []string {
	ids := make([]string, 0, len(set))
	for _, choice := range set {
		ids = append(ids, choiceIdentifier(choice))
	}
	return ids
}

// choiceIdentifier prefers the serialized top-level identifier and falls back
// to the attribute form used by body elements and gap-match choices.
func choiceIdentifier(n *Node) string {
	if n.Identifier != "" {
		return n.Identifier
	}
	return n.Attributes.Identifier
}

// IsMatchByColumn reports whether every choice of a match interaction's
// set 0 accepts at most one match.
func IsMatchByColumn(n *Node) bool {
	return matchSideSingular(n, 0)
}

// IsMatchByRow is the set 1 counterpart of IsMatchByColumn.
func IsMatchByRow(n *Node) bool {
	return matchSideSingular(n, 1)
}

func matchSideSingular(n *Node, side int) bool {
	if n == nil || kindByClass[n.Class] != KindMatch || len(n.ChoiceSets) <= side {
		return false
	}
	set := n.ChoiceSets[side]
	if len(set) == 0 {
		return false
	}
	for _, choice := range set {
		if choice.Attributes.MatchMax == nil || *choice.Attributes.MatchMax != 1 {
			return false
		}
	}
	return true
}

// StrategyOf resolves the column mapping strategy of a match interaction.
// The column check runs before the row check: when both sides qualify,
// column wins.
func StrategyOf(n *Node) MatchStrategy {
	if IsMatchByColumn(n) {
		return MatchByColumn
	}
	if IsMatchByRow(n) {
		return MatchByRow
	}
	return MatchMatrix
}

// MatchSetIndex returns the position of identifier within the first set that
// contains it, searching sets in order, or -1 when absent.
func MatchSetIndex(identifier string, sets [][]string) int {
	for _, set := range sets {
		for i, id := range set {
			if id == identifier {
				return i
			}
		}
	}
	return -1
}

// LetterSuffix returns the stable per-choice column suffix for a zero-based
// position: a..z, then aa..az, ba and so on.
func LetterSuffix(i int) string {
	if i < 0 {
		return ""
	}
	var buf []byte
	for {
		buf = append([]byte{byte('a' + i%26)}, buf...)
		i = i/26 - 1
		if i < 0 {
			return string(buf)
		}
	}
}
