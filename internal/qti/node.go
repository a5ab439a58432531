// Package qti models compiled item documents as a typed node tree and
// provides the interaction classification and value decoding used by the
// export pipeline.
package qti

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Node is one node of a parsed item document. Item authoring output is a
// loosely shaped JSON tree; every object that carries a qtiClass becomes a
// Node, everything else is kept reachable through Children so traversal can
// stay exhaustive.
type Node struct {
	Class          string
	Identifier     string
	TypeIdentifier string
	Attributes     Attributes
	ChoiceSets     [][]*Node
	Body           *Node
	Elements       []*Node
	Children       []*Node
}

// Attributes holds the node attributes the exporter cares about. Unknown
// attributes are dropped at parse time.
type Attributes struct {
	Identifier         string
	ResponseIdentifier string
	Title              string
	Label              string
	MatchMax           *int
	MaxChoices         *int
}

// UnmarshalJSON parses a node, tolerating missing or oddly typed fields.
// A malformed child never fails the whole document.
func (n *Node) UnmarshalJSON(data []byte) error {
	keys, values, err := orderedObject(data)
	if err != nil {
		return err
	}

	for i, key := range keys {
		val := values[i]
		switch key {
		case "qtiClass":
			_ = json.Unmarshal(val, &n.Class)
		case "identifier":
			_ = json.Unmarshal(val, &n.Identifier)
		case "typeIdentifier":
			_ = json.Unmarshal(val, &n.TypeIdentifier)
		case "attributes":
			n.Attributes = parseAttributes(val)
		case "choices":
			n.ChoiceSets = parseChoiceSets(val)
		case "body":
			var body Node
			if err := json.Unmarshal(val, &body); err == nil {
				n.Body = &body
			}
		case "elements":
			n.Elements = parseNodeList(val)
		default:
			n.Children = append(n.Children, parseNodeList(val)...)
		}
	}
	return nil
}

func parseAttributes(data json.RawMessage) Attributes {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Attributes{}
	}

	var attrs Attributes
	_ = json.Unmarshal(raw["identifier"], &attrs.Identifier)
	_ = json.Unmarshal(raw["responseIdentifier"], &attrs.ResponseIdentifier)
	_ = json.Unmarshal(raw["title"], &attrs.Title)
	_ = json.Unmarshal(raw["label"], &attrs.Label)
	attrs.MatchMax = parseIntAttr(raw["matchMax"])
	attrs.MaxChoices = parseIntAttr(raw["maxChoices"])
	return attrs
}

// parseIntAttr accepts both numeric and string-encoded integers, since item
// documents are inconsistent about attribute types.
func parseIntAttr(data json.RawMessage) *int {
	if len(data) == 0 {
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		if i, err := num.Int64(); err == nil {
			v := int(i)
			return &v
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if i, err := strconv.Atoi(s); err == nil {
			return &i
		}
	}
	return nil
}

// parseChoiceSets normalizes the choices value into one or more ordered sets.
// Match interactions declare two sets (an array of arrays); everything else
// declares a single flat collection, either as an array or as an object keyed
// by element serial.
func parseChoiceSets(data json.RawMessage) [][]*Node {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var rawItems []json.RawMessage
		if err := json.Unmarshal(trimmed, &rawItems); err != nil || len(rawItems) == 0 {
			return nil
		}
		if first := bytes.TrimSpace(rawItems[0]); len(first) > 0 && first[0] == '[' {
			// Array of sets.
			sets := make([][]*Node, 0, len(rawItems))
			for _, item := range rawItems {
				sets = append(sets, parseNodeList(item))
			}
			return sets
		}
	}

	if nodes := parseNodeList(trimmed); len(nodes) > 0 {
		return [][]*Node{nodes}
	}
	return nil
}

// parseNodeList extracts the nodes contained in an arbitrary JSON value:
// an object becomes a single node, an array or serial-keyed object yields its
// element nodes in declaration order. Scalars yield nothing.
func parseNodeList(data json.RawMessage) []*Node {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '{':
		keys, values, err := orderedObject(trimmed)
		if err != nil {
			return nil
		}
		// Serial-keyed collections hold only objects; anything with scalar
		// members is a plain node.
		allObjects := len(keys) > 0
		for _, val := range values {
			if v := bytes.TrimSpace(val); len(v) == 0 || v[0] != '{' {
				allObjects = false
				break
			}
		}
		if allObjects && !looksLikeNode(keys) {
			var nodes []*Node
			for _, val := range values {
				nodes = append(nodes, parseNodeList(val)...)
			}
			return nodes
		}
		var node Node
		if err := json.Unmarshal(trimmed, &node); err != nil {
			return nil
		}
		return []*Node{&node}
	case '[':
		var rawItems []json.RawMessage
		if err := json.Unmarshal(trimmed, &rawItems); err != nil {
			return nil
		}
		var nodes []*Node
		for _, item := range rawItems {
			nodes = append(nodes, parseNodeList(item)...)
		}
		return nodes
	default:
		return nil
	}
}

func looksLikeNode(keys []string) bool {
	for _, k := range keys {
		if k == "qtiClass" || k == "attributes" {
			return true
		}
	}
	return false
}

// orderedObject decodes a JSON object preserving key order, which
// map-based decoding would lose. Choice and element order is significant.
func orderedObject(data []byte) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, &json.UnmarshalTypeError{Value: "non-object", Type: nil}
	}

	var keys []string
	var values []json.RawMessage
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, raw)
	}
	return keys, values, nil
}

// Walk visits every node reachable from n, including choice sets, body
// elements and generic children. Visit order is unspecified.
func (n *Node) Walk(visit func(*Node)) {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		visit(cur)

		if cur.Body != nil {
			stack = append(stack, cur.Body)
		}
		stack = append(stack, cur.Elements...)
		for _, set := range cur.ChoiceSets {
			stack = append(stack, set...)
		}
		stack = append(stack, cur.Children...)
	}
}
