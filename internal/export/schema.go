package export

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"resultexport/internal/config"
	"resultexport/internal/delivery"
	"resultexport/internal/qti"
)

// IdentifierStrategy selects how an item's exported identifier is resolved
// from its metadata.
type IdentifierStrategy int

const (
	StrategyItemRef IdentifierStrategy = iota
	StrategyTitle
	StrategyLabel
	StrategyIdentifier
)

// ParseIdentifierStrategy maps the CLI spelling of a strategy.
func ParseIdentifierStrategy(s string) (IdentifierStrategy, error) {
	switch s {
	case "itemRef", "itemref":
		return StrategyItemRef, nil
	case "title":
		return StrategyTitle, nil
	case "label":
		return StrategyLabel, nil
	case "identifier":
		return StrategyIdentifier, nil
	}
	return StrategyItemRef, fmt.Errorf("unknown identifier strategy %q (want itemRef|title|label|identifier)", s)
}

// VariablePolicy gates which variable classes populate the schema.
type VariablePolicy int

const (
	PolicyAll VariablePolicy = iota
	PolicyResponse
	PolicyOutcome
)

// ParseVariablePolicy maps the CLI spelling of a policy.
func ParseVariablePolicy(s string) (VariablePolicy, error) {
	switch s {
	case "all":
		return PolicyAll, nil
	case "response":
		return PolicyResponse, nil
	case "outcome":
		return PolicyOutcome, nil
	}
	return PolicyAll, fmt.Errorf("unknown variable policy %q (want all|response|outcome)", s)
}

// Fixed columns pinned around the derived variables.
var (
	fixedLeading  = []string{"ID", "IDFORM", "STARTTIME", "FINISHTIME"}
	fixedTrailing = []string{"SCORE", "ATTEMPT_ID"}
)

// ErrNoColumns is reported when the union of all derived variables is empty.
var ErrNoColumns = errors.New("no exportable variables derived for the given deliveries")

// DeliverySchema aggregates everything derived from one delivery during
// header discovery. It is built once by the SchemaBuilder and read-only for
// the remainder of the run.
type DeliverySchema struct {
	DeliveryID string
	Label      string

	// Variables are this delivery's columns in discovery order.
	Variables []string

	// MatchTypes and MatchSets describe match/gap-match headers by base name.
	MatchTypes map[string]qti.MatchStrategy
	MatchSets  map[string][][]string

	// Hottext holds the choice list of hottext and multi-select choice
	// headers; Choices the list of single-select choice/inline-choice
	// headers; Orders the list of order headers.
	Hottext map[string][]string
	Choices map[string][]string
	Orders  map[string][]string

	// TextEntry marks free-text headers subject to exotic filtering.
	TextEntry map[string]bool

	// ItemIDs maps item-ref identifiers to exported item identifiers.
	ItemIDs map[string]string

	has map[string]struct{}
}

func newDeliverySchema(d delivery.Delivery) *DeliverySchema {
	return &DeliverySchema{
		DeliveryID: d.ID,
		Label:      d.Label,
		MatchTypes: make(map[string]qti.MatchStrategy),
		MatchSets:  make(map[string][][]string),
		Hottext:    make(map[string][]string),
		Choices:    make(map[string][]string),
		Orders:     make(map[string][]string),
		TextEntry:  make(map[string]bool),
		ItemIDs:    make(map[string]string),
		has:        make(map[string]struct{}),
	}
}

// Has reports whether col belongs to this delivery's schema.
func (s *DeliverySchema) Has(col string) bool {
	_, ok := s.has[col]
	return ok
}

func (s *DeliverySchema) addVariable(col string) {
	if _, ok := s.has[col]; ok {
		return
	}
	s.has[col] = struct{}{}
	s.Variables = append(s.Variables, col)
}

// SchemaBuilder derives the union header schema across deliveries along with
// the per-delivery side tables the row materializer reuses. The schema is
// computed once per run and memoized.
type SchemaBuilder struct {
	reader   delivery.DirectoryReader
	cfg      *config.ExportConfig
	strategy IdentifierStrategy
	policy   VariablePolicy
	log      *zap.Logger

	blacklist []string

	headers []string
	schemas map[string]*DeliverySchema
	order   []string
}

func NewSchemaBuilder(reader delivery.DirectoryReader, cfg *config.ExportConfig, strategy IdentifierStrategy, policy VariablePolicy, log *zap.Logger) *SchemaBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &SchemaBuilder{
		reader:   reader,
		cfg:      cfg,
		strategy: strategy,
		policy:   policy,
		log:      log,
		schemas:  make(map[string]*DeliverySchema),
	}
}

// SetBlacklist replaces the variable blacklist. Entries match either a bare
// variable identifier or a full column name; a "*fullName" entry whitelists
// the column despite any other match.
func (b *SchemaBuilder) SetBlacklist(entries []string) {
	b.blacklist = append([]string(nil), entries...)
}

// AddToBlacklist appends one blacklist entry. Header discovery uses this to
// auto-blacklist media and opaque custom interactions.
func (b *SchemaBuilder) AddToBlacklist(name string) {
	b.blacklist = append(b.blacklist, name)
}

// Policy returns the variable policy the schema was built under.
func (b *SchemaBuilder) Policy() VariablePolicy { return b.policy }

// Blacklisted applies the blacklist to a variable, given its bare identifier
// and its full column name.
func (b *SchemaBuilder) Blacklisted(name, full string) bool {
	for _, entry := range b.blacklist {
		if entry == "*"+full {
			return false
		}
	}
	for _, entry := range b.blacklist {
		if entry == name || entry == full {
			return true
		}
	}
	return false
}

// Headers derives (once) and returns the frozen, de-duplicated column order
// for the given deliveries: fixed leading columns, every delivery's derived
// variables in first-seen order, fixed trailing columns.
func (b *SchemaBuilder) Headers(deliveries []delivery.Delivery) ([]string, error) {
	if b.headers != nil {
		return b.headers, nil
	}

	seen := make(map[string]struct{})
	headers := make([]string, 0, len(fixedLeading)+len(fixedTrailing))
	for _, col := range fixedLeading {
		seen[col] = struct{}{}
		headers = append(headers, col)
	}

	derived := 0
	for _, d := range deliveries {
		sch, err := b.buildDelivery(d)
		if err != nil {
			return nil, fmt.Errorf("deriving schema for delivery %s: %w", d.ID, err)
		}
		b.schemas[d.ID] = sch
		b.order = append(b.order, d.ID)

		for _, col := range sch.Variables {
			derived++
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			headers = append(headers, col)
		}
		b.log.Debug("derived delivery schema",
			zap.String("delivery", d.ID),
			zap.Int("columns", len(sch.Variables)),
			zap.Int("items", len(sch.ItemIDs)))
	}

	if derived == 0 {
		return nil, ErrNoColumns
	}

	headers = append(headers, fixedTrailing...)
	b.headers = headers
	return headers, nil
}

// Schema returns the side tables derived for one delivery, or nil before
// Headers ran.
func (b *SchemaBuilder) Schema(deliveryID string) *DeliverySchema {
	return b.schemas[deliveryID]
}

// DeliveryIDs lists the deliveries in schema-build order.
func (b *SchemaBuilder) DeliveryIDs() []string {
	return b.order
}

func (b *SchemaBuilder) buildDelivery(d delivery.Delivery) (*DeliverySchema, error) {
	td, err := delivery.LoadTestDefinition(b.reader, d.Dir)
	if err != nil {
		return nil, err
	}

	sch := newDeliverySchema(d)

	for _, ref := range td.ItemRefs {
		itemDir, err := ref.PrivateDir()
		if err != nil {
			return nil, err
		}
		doc, err := delivery.LoadItemDocument(b.reader, itemDir)
		if err != nil {
			return nil, err
		}

		itemID := b.itemIdentifier(d, ref, doc)
		sch.ItemIDs[ref.Identifier] = itemID

		// choiceCols marks the response headers that expand into one column
		// per choice; the nil entry for matrix headers keeps the marker
		// while the expansion runs off the match sets.
		choiceCols := make(map[string][]string)
		interactions := qti.Interactions(doc.Data)

		for respID := range interactions[qti.KindTextEntry] {
			sch.TextEntry[itemID+"-"+respID] = true
		}
		for respID := range interactions[qti.KindExtendedText] {
			sch.TextEntry[itemID+"-"+respID] = true
		}

		for respID, node := range interactions[qti.KindMatch] {
			base := itemID + "-" + respID
			sets := qti.MatchSets(node)
			strategy := qti.StrategyOf(node)
			sch.MatchTypes[base] = strategy
			sch.MatchSets[base] = sets

			switch {
			case strategy == qti.MatchByColumn && len(sets) > 0:
				choiceCols[base] = sets[0]
			case strategy == qti.MatchByRow && len(sets) > 1:
				choiceCols[base] = sets[1]
			default:
				choiceCols[base] = nil
			}
		}

		for respID, node := range interactions[qti.KindGapMatch] {
			base := itemID + "-" + respID
			sets := qti.MatchSets(node)
			sch.MatchTypes[base] = qti.MatchByRow
			sch.MatchSets[base] = sets
			if len(sets) > 0 {
				choiceCols[base] = sets[0]
			} else {
				choiceCols[base] = nil
			}
		}

		for respID, node := range interactions[qti.KindHottext] {
			base := itemID + "-" + respID
			list := firstSet(qti.MatchSets(node))
			sch.Hottext[base] = list
			choiceCols[base] = list
		}

		for respID, node := range interactions[qti.KindChoice] {
			base := itemID + "-" + respID
			list := firstSet(qti.MatchSets(node))
			if max := node.Attributes.MaxChoices; max != nil && *max != 1 {
				// Multiple cardinality behaves like hottext.
				sch.Hottext[base] = list
				choiceCols[base] = list
			} else {
				sch.Choices[base] = list
			}
		}

		for respID, node := range interactions[qti.KindInlineChoice] {
			sch.Choices[itemID+"-"+respID] = firstSet(qti.MatchSets(node))
		}

		for respID, node := range interactions[qti.KindOrder] {
			base := itemID + "-" + respID
			list := firstSet(qti.MatchSets(node))
			sch.Orders[base] = list
			choiceCols[base] = list
		}

		for respID := range interactions[qti.KindMedia] {
			b.AddToBlacklist(itemID + "-" + respID)
		}

		for respID, node := range interactions[qti.KindCustom] {
			// Only custom interactions with a known, exportable sub-type keep
			// their column.
			if node.TypeIdentifier == "" || node.TypeIdentifier == "textReaderInteraction" {
				b.AddToBlacklist(itemID + "-" + respID)
			}
		}

		if b.policy == PolicyAll || b.policy == PolicyResponse {
			for _, resp := range ref.Responses {
				base := itemID + "-" + resp.Identifier
				if b.Blacklisted(resp.Identifier, base) {
					continue
				}

				list, expands := choiceCols[base]
				if !expands {
					sch.addVariable(base)
					continue
				}

				if sets := sch.MatchSets[base]; sch.MatchTypes[base] == qti.MatchMatrix && len(sets) == 2 {
					for _, rowID := range sets[1] {
						rowSuffix := qti.LetterSuffix(qti.MatchSetIndex(rowID, sets))
						for _, colID := range sets[0] {
							colSuffix := qti.LetterSuffix(qti.MatchSetIndex(colID, sets))
							sch.addVariable(base + "-" + rowSuffix + "-" + colSuffix)
						}
					}
					continue
				}

				for i, choiceID := range list {
					suffix := qti.LetterSuffix(i)
					if sets, ok := sch.MatchSets[base]; ok {
						suffix = qti.LetterSuffix(qti.MatchSetIndex(choiceID, sets))
					}
					sch.addVariable(base + "-" + suffix)
				}
			}
		}

		if b.policy == PolicyAll || b.policy == PolicyOutcome {
			for _, outcome := range ref.Outcomes {
				base := itemID + "-" + outcome.Identifier
				if !b.Blacklisted(outcome.Identifier, base) {
					sch.addVariable(base)
				}
			}
		}

		for _, expected := range b.cfg.ExpectedVariables {
			base := itemID + "-" + expected
			if !b.Blacklisted(expected, base) {
				sch.addVariable(base)
			}
		}
	}

	return sch, nil
}

func (b *SchemaBuilder) itemIdentifier(d delivery.Delivery, ref delivery.ItemRef, doc *delivery.ItemDocument) string {
	if forced, ok := b.cfg.ForcedIdentifierFor(d.ID, ref.Identifier); ok {
		return forced
	}

	attrs := doc.Attributes()
	switch b.strategy {
	case StrategyTitle:
		if attrs.Title != "" {
			return attrs.Title
		}
	case StrategyLabel:
		if attrs.Label != "" {
			return attrs.Label
		}
	case StrategyIdentifier:
		if attrs.Identifier != "" {
			return attrs.Identifier
		}
	}
	return ref.Identifier
}

func firstSet(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}
	return sets[0]
}
