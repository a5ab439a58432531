package qti

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func matchNode(matchMax0, matchMax1 []int) *Node {
	set := func(prefix string, maxes []int) []*Node {
		nodes := make([]*Node, 0, len(maxes))
		for i, m := range maxes {
			nodes = append(nodes, &Node{
				Class:      "simpleAssociableChoice",
				Identifier: prefix + string(rune('1'+i)),
				Attributes: Attributes{MatchMax: intp(m)},
			})
		}
		return nodes
	}
	return &Node{
		Class:      "matchInteraction",
		Attributes: Attributes{ResponseIdentifier: "RESPONSE"},
		ChoiceSets: [][]*Node{set("row_", matchMax0), set("col_", matchMax1)},
	}
}

func TestIsMatchByColumn(t *testing.T) {
	// matchMax uniformly 1 on set 0: must resolve by column.
	n := matchNode([]int{1, 1, 1}, []int{2, 2})
	assert.True(t, IsMatchByColumn(n))
	assert.False(t, IsMatchByRow(n))
	assert.Equal(t, MatchByColumn, StrategyOf(n))

	sets := MatchSets(n)
	require.Len(t, sets, 2)
	assert.Equal(t, []string{"row_1", "row_2", "row_3"}, sets[0])
}

func TestStrategyOf_TieBreakAndMatrix(t *testing.T) {
	// Both sides singular: column wins.
	both := matchNode([]int{1, 1}, []int{1, 1})
	assert.Equal(t, MatchByColumn, StrategyOf(both))

	// Set 1 singular only.
	rows := matchNode([]int{3, 1}, []int{1, 1})
	assert.Equal(t, MatchByRow, StrategyOf(rows))

	// Neither side singular.
	matrix := matchNode([]int{2, 1}, []int{0, 1})
	assert.Equal(t, MatchMatrix, StrategyOf(matrix))
}

func TestIsMatchByColumn_RequiresEverySingular(t *testing.T) {
	// A singular first choice must not mask a later many-match choice.
	n := matchNode([]int{1, 4}, []int{2})
	assert.False(t, IsMatchByColumn(n))
}

func TestMatchSets_EmptyChoices(t *testing.T) {
	n := &Node{Class: "choiceInteraction", Attributes: Attributes{ResponseIdentifier: "RESPONSE"}}
	sets := MatchSets(n)
	require.Len(t, sets, 1)
	assert.Empty(t, sets[0])

	assert.Nil(t, MatchSets(&Node{Class: "matchInteraction"}))
	assert.Nil(t, MatchSets(nil))
}

func TestMatchSets_GapMatchAndHottext(t *testing.T) {
	gap := &Node{
		Class:      "gapMatchInteraction",
		Attributes: Attributes{ResponseIdentifier: "RESPONSE"},
		Body: &Node{Elements: []*Node{
			{Class: "gap", Attributes: Attributes{Identifier: "gap_1"}},
			{Class: "printedVariable"},
			{Class: "gap", Attributes: Attributes{Identifier: "gap_2"}},
		}},
		ChoiceSets: [][]*Node{{
			{Class: "gapText", Attributes: Attributes{Identifier: "choice_1"}},
			{Class: "gapText", Attributes: Attributes{Identifier: "choice_2"}},
		}},
	}
	sets := MatchSets(gap)
	require.Len(t, sets, 2)
	assert.Equal(t, []string{"gap_1", "gap_2"}, sets[0])
	assert.Equal(t, []string{"choice_1", "choice_2"}, sets[1])

	hot := &Node{
		Class:      "hottextInteraction",
		Attributes: Attributes{ResponseIdentifier: "RESPONSE"},
		Body: &Node{Elements: []*Node{
			{Class: "hottext", Attributes: Attributes{Identifier: "hot_1"}},
			{Class: "hottext", Attributes: Attributes{Identifier: "hot_2"}},
		}},
	}
	sets = MatchSets(hot)
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"hot_1", "hot_2"}, sets[0])
}

func TestMatchSetIndex(t *testing.T) {
	sets := [][]string{{"id1", "id2", "id3"}, {"id4", "id5", "id6"}}

	assert.Equal(t, 1, MatchSetIndex("id5", sets))
	assert.Equal(t, 0, MatchSetIndex("id1", sets))
	assert.Equal(t, 2, MatchSetIndex("id6", sets))
	assert.Equal(t, -1, MatchSetIndex("id7", sets))
	assert.Equal(t, -1, MatchSetIndex("id1", nil))
}

func TestLetterSuffix(t *testing.T) {
	assert.Equal(t, "a", LetterSuffix(0))
	assert.Equal(t, "z", LetterSuffix(25))
	assert.Equal(t, "aa", LetterSuffix(26))
	assert.Equal(t, "az", LetterSuffix(51))
	assert.Equal(t, "ba", LetterSuffix(52))
	assert.Equal(t, "", LetterSuffix(-1))
}
