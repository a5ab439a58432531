package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"resultexport/internal/delivery"
)

// fixtureItem is one item of a fixture delivery: a parsed-item JSON document
// plus the declarations its item ref carries.
type fixtureItem struct {
	refID     string
	itemJSON  string
	responses []string
	outcomes  []string
}

// makeDelivery lays a delivery storage directory out on disk: the compiled
// test definition plus one private directory per item.
func makeDelivery(t *testing.T, root, id, label string, items []fixtureItem) delivery.Delivery {
	t.Helper()

	dir := filepath.Join(root, id)
	refs := make([]delivery.ItemRef, 0, len(items))
	for _, item := range items {
		itemDir := filepath.Join(dir, "items", item.refID)
		writeFixture(t, filepath.Join(itemDir, delivery.ItemDocumentName),
			fmt.Sprintf(`{"data": %s}`, item.itemJSON))

		ref := delivery.ItemRef{
			Identifier: item.refID,
			Href:       "http://fixture/items/" + item.refID + "|public|" + itemDir,
		}
		for _, r := range item.responses {
			ref.Responses = append(ref.Responses, delivery.Declaration{Identifier: r})
		}
		for _, o := range item.outcomes {
			ref.Outcomes = append(ref.Outcomes, delivery.Declaration{Identifier: o})
		}
		refs = append(refs, ref)
	}

	td := delivery.TestDefinition{Identifier: "test-" + id, ItemRefs: refs}
	data, err := json.Marshal(td)
	require.NoError(t, err)
	writeFixture(t, filepath.Join(dir, delivery.TestDefinitionName), string(data))

	return delivery.Delivery{ID: id, Label: label, Dir: dir}
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func choiceItemJSON(itemID, respID string, maxChoices int, choices ...string) string {
	return itemJSON(itemID, fmt.Sprintf(`{
		"qtiClass": "choiceInteraction",
		"attributes": {"responseIdentifier": %q, "maxChoices": %d},
		"choices": [%s]
	}`, respID, maxChoices, simpleChoices(choices, -1)))
}

func textItemJSON(itemID, respID string) string {
	return itemJSON(itemID, fmt.Sprintf(`{
		"qtiClass": "textEntryInteraction",
		"attributes": {"responseIdentifier": %q}
	}`, respID))
}

func orderItemJSON(itemID, respID string, choices ...string) string {
	return itemJSON(itemID, fmt.Sprintf(`{
		"qtiClass": "orderInteraction",
		"attributes": {"responseIdentifier": %q},
		"choices": [%s]
	}`, respID, simpleChoices(choices, -1)))
}

func mediaItemJSON(itemID, respID string) string {
	return itemJSON(itemID, fmt.Sprintf(`{
		"qtiClass": "mediaInteraction",
		"attributes": {"responseIdentifier": %q}
	}`, respID))
}

// matchItemJSON declares a match interaction with two choice sets whose
// choices carry the given matchMax values.
func matchItemJSON(itemID, respID string, set0, set1 []string, matchMax0, matchMax1 int) string {
	return itemJSON(itemID, fmt.Sprintf(`{
		"qtiClass": "matchInteraction",
		"attributes": {"responseIdentifier": %q},
		"choices": [[%s], [%s]]
	}`, respID, simpleChoices(set0, matchMax0), simpleChoices(set1, matchMax1)))
}

// gapMatchItemJSON declares a gap-match interaction: gap elements in the
// interaction body, gapText sources as the choice list.
func gapMatchItemJSON(itemID, respID string, gaps, sources []string) string {
	gapElems := make([]string, 0, len(gaps))
	for i, id := range gaps {
		gapElems = append(gapElems, fmt.Sprintf(
			`"serial-%d": {"qtiClass": "gap", "attributes": {"identifier": %q}}`, i+1, id))
	}
	texts := make([]string, 0, len(sources))
	for _, id := range sources {
		texts = append(texts, fmt.Sprintf(
			`{"qtiClass": "gapText", "attributes": {"identifier": %q}}`, id))
	}
	return itemJSON(itemID, fmt.Sprintf(`{
		"qtiClass": "gapMatchInteraction",
		"attributes": {"responseIdentifier": %q},
		"choices": [%s],
		"body": {"qtiClass": "p", "elements": {%s}}
	}`, respID, strings.Join(texts, ", "), strings.Join(gapElems, ", ")))
}

func itemJSON(itemID, interaction string) string {
	return fmt.Sprintf(`{
		"qtiClass": "assessmentItem",
		"attributes": {"identifier": %q, "title": "%s title", "label": "%s label"},
		"body": {
			"qtiClass": "itemBody",
			"elements": {"serial-1": %s}
		}
	}`, itemID, itemID, itemID, interaction)
}

// simpleChoices renders a JSON choice list; matchMax < 0 omits the attribute.
func simpleChoices(ids []string, matchMax int) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		attrs := fmt.Sprintf(`{"identifier": %q}`, id)
		if matchMax >= 0 {
			attrs = fmt.Sprintf(`{"identifier": %q, "matchMax": %d}`, id, matchMax)
		}
		out = append(out, fmt.Sprintf(`{"identifier": %q, "qtiClass": "simpleAssociableChoice", "attributes": %s}`, id, attrs))
	}
	return strings.Join(out, ", ")
}
