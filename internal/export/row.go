package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"resultexport/internal/config"
	"resultexport/internal/delivery"
	"resultexport/internal/qti"
	"resultexport/internal/results"
)

// ResultStore is the slice of the result store the exporter consumes.
type ResultStore interface {
	ResultsForDelivery(ctx context.Context, deliveryID string) ([]string, error)
	ItemCallIDs(ctx context.Context, executionID string) ([]string, error)
	TestCallIDs(ctx context.Context, executionID string) ([]string, error)
	Variables(ctx context.Context, callID string) ([]results.Variable, error)
	Variable(ctx context.Context, callID, identifier string) (*results.Variable, error)
	ExecutionByID(ctx context.Context, executionID string) (*results.Execution, error)
}

// UserDirectory resolves user references recorded on executions.
type UserDirectory interface {
	UserByID(ctx context.Context, userID string) (*results.User, error)
}

// RowBuilder materializes one CSV row per execution against a frozen header
// schema.
type RowBuilder struct {
	schemas *SchemaBuilder
	store   ResultStore
	users   UserDirectory

	missing     config.MissingDataConfig
	overrides   []config.MissingOverride
	exotic      []string
	allowExotic bool

	log *zap.Logger
}

func NewRowBuilder(schemas *SchemaBuilder, store ResultStore, users UserDirectory, cfg *config.ExportConfig, allowExotic bool, log *zap.Logger) *RowBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &RowBuilder{
		schemas:     schemas,
		store:       store,
		users:       users,
		missing:     cfg.Missing,
		overrides:   cfg.MissingOverrides,
		exotic:      cfg.ExoticVocabulary,
		allowExotic: allowExotic,
		log:         log,
	}
}

// AddOverride appends a missing-data override at runtime. Raw mode uses this
// to blank the not-responded code globally.
func (rb *RowBuilder) AddOverride(o config.MissingOverride) {
	rb.overrides = append(rb.overrides, o)
}

// BuildRow materializes the row for one execution of d, ordered by headers.
// Total-score problems are hard errors; an execution without recorded item
// variables still exports, filled with missing-data codes.
func (rb *RowBuilder) BuildRow(ctx context.Context, headers []string, d delivery.Delivery, executionID string) ([]string, error) {
	sch := rb.schemas.Schema(d.ID)
	if sch == nil {
		return nil, fmt.Errorf("no schema derived for delivery %s", d.ID)
	}

	exec, err := rb.store.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	user, err := rb.users.UserByID(ctx, exec.UserID)
	if err != nil {
		return nil, err
	}
	score, err := rb.totalScore(ctx, executionID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		known[h] = struct{}{}
	}

	cells := make(map[string]string)
	set := func(col, value string) {
		if _, ok := known[col]; !ok {
			rb.log.Warn("dropping value for column outside the schema",
				zap.String("column", col),
				zap.String("execution", executionID))
			return
		}
		cells[col] = value
	}

	label := user.Label
	if label == "" {
		label = user.DisplayLogin()
	}
	set("ID", label)
	set("IDFORM", d.Label)
	set("STARTTIME", exec.StartedAt.Format("15:04:05"))
	if exec.FinishedAt != nil {
		set("FINISHTIME", exec.FinishedAt.Format("15:04:05"))
	} else {
		set("FINISHTIME", "")
	}
	set("SCORE", score)
	set("ATTEMPT_ID", exec.ID)

	itemCalls, err := rb.store.ItemCallIDs(ctx, executionID)
	if err != nil {
		return nil, err
	}
	for _, callID := range itemCalls {
		refID, ok := results.ItemRefFromCallID(callID)
		if !ok {
			rb.log.Warn("skipping malformed item call id", zap.String("call_id", callID))
			continue
		}
		itemID, ok := sch.ItemIDs[refID]
		if !ok {
			continue
		}

		vars, err := rb.store.Variables(ctx, callID)
		if err != nil {
			return nil, err
		}
		for _, v := range vars {
			if v.IsResponse() && rb.schemas.Policy() == PolicyOutcome {
				continue
			}
			if v.IsOutcome() && rb.schemas.Policy() == PolicyResponse {
				continue
			}

			base := itemID + "-" + v.Identifier
			if rb.schemas.Blacklisted(v.Identifier, base) {
				continue
			}

			rb.fillVariable(sch, set, base, v)
		}
	}

	// Backstop against a row with nothing in it, not even fixed columns.
	if len(cells) == 0 {
		return nil, fmt.Errorf("execution %s yielded no row data", executionID)
	}

	return rb.flatten(headers, sch, cells), nil
}

// fillVariable dispatches one recorded variable into its column(s) according
// to the interaction classification captured at schema time.
func (rb *RowBuilder) fillVariable(sch *DeliverySchema, set func(col, value string), base string, v results.Variable) {
	value := v.Value

	if sets, ok := sch.MatchSets[base]; ok {
		rb.fillMatch(sch, set, base, sets, value)
		return
	}
	if list, ok := sch.Hottext[base]; ok {
		rb.fillHottext(set, base, list, value)
		return
	}
	if list, ok := sch.Orders[base]; ok {
		rb.fillOrder(set, base, list, value)
		return
	}

	if v.IsResponse() && v.Identifier == "duration" {
		formatted, ok := qti.FormatDuration(value)
		if !ok {
			formatted = ""
		}
		set(base, formatted)
		return
	}

	if list, ok := sch.Choices[base]; ok && !qti.IsEmptyContainer(value) {
		if i := qti.MatchSetIndex(value, [][]string{list}); i >= 0 {
			set(base, strconv.Itoa(i+1))
			return
		}
	}

	if sch.TextEntry[base] && !rb.allowExotic {
		value = rb.stripExotic(value)
	}
	set(base, value)
}

func (rb *RowBuilder) fillMatch(sch *DeliverySchema, set func(col, value string), base string, sets [][]string, value string) {
	if qti.IsEmptyContainer(value) {
		// Every expansion column inherits the empty answer so the fill pass
		// renders it as not-responded instead of not-attempted.
		rb.setExpansion(sch, set, base, value)
		return
	}
	pairs, ok := qti.ParsePairs(value)
	if !ok {
		set(base, value)
		return
	}

	// Expansion columns not covered by a pair keep the empty value and get
	// the not-responded code during fill.
	strategy := sch.MatchTypes[base]
	rb.setExpansion(sch, set, base, "")

	for _, p := range pairs {
		switch strategy {
		case qti.MatchByColumn:
			suffix := qti.LetterSuffix(qti.MatchSetIndex(p.First, sets))
			set(base+"-"+suffix, onePosition(p.Second, sets))
		case qti.MatchByRow:
			suffix := qti.LetterSuffix(qti.MatchSetIndex(p.Second, sets))
			set(base+"-"+suffix, onePosition(p.First, sets))
		default:
			row := qti.LetterSuffix(qti.MatchSetIndex(p.Second, sets))
			col := qti.LetterSuffix(qti.MatchSetIndex(p.First, sets))
			set(base+"-"+row+"-"+col, "1")
		}
	}
}

func (rb *RowBuilder) fillHottext(set func(col, value string), base string, list []string, value string) {
	if qti.IsEmptyContainer(value) {
		for i := range list {
			set(base+"-"+qti.LetterSuffix(i), value)
		}
		return
	}
	ids, ok := qti.ParseIdentifiers(value)
	if !ok {
		ids = []string{value}
	}

	for i := range list {
		set(base+"-"+qti.LetterSuffix(i), "")
	}
	for _, id := range ids {
		if i := qti.MatchSetIndex(id, [][]string{list}); i >= 0 {
			set(base+"-"+qti.LetterSuffix(i), "1")
		}
	}
}

func (rb *RowBuilder) fillOrder(set func(col, value string), base string, list []string, value string) {
	if qti.IsEmptyContainer(value) {
		for i := range list {
			set(base+"-"+qti.LetterSuffix(i), value)
		}
		return
	}
	ids, ok := qti.ParseIdentifiers(value)
	if !ok {
		ids = []string{value}
	}

	for i := range list {
		set(base+"-"+qti.LetterSuffix(i), "")
	}
	for pos, id := range ids {
		if i := qti.MatchSetIndex(id, [][]string{list}); i >= 0 {
			set(base+"-"+qti.LetterSuffix(i), strconv.Itoa(pos+1))
		}
	}
}

// setExpansion writes the same value into every expansion column of base.
func (rb *RowBuilder) setExpansion(sch *DeliverySchema, set func(col, value string), base, value string) {
	prefix := base + "-"
	for _, col := range sch.Variables {
		if strings.HasPrefix(col, prefix) {
			set(col, value)
		}
	}
}

// onePosition renders the 1-based position of a matched choice within its
// containing set, or empty when the identifier is unknown.
func onePosition(identifier string, sets [][]string) string {
	i := qti.MatchSetIndex(identifier, sets)
	if i < 0 {
		return ""
	}
	return strconv.Itoa(i + 1)
}

// totalScore reads the single test-level SCORE_TOTAL variable; zero or
// multiple test calls, or an absent variable, fail the row.
func (rb *RowBuilder) totalScore(ctx context.Context, executionID string) (string, error) {
	testCalls, err := rb.store.TestCallIDs(ctx, executionID)
	if err != nil {
		return "", err
	}
	if len(testCalls) != 1 {
		return "", fmt.Errorf("execution %s has %d test call ids, expected exactly one", executionID, len(testCalls))
	}
	v, err := rb.store.Variable(ctx, testCalls[0], "SCORE_TOTAL")
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("execution %s is missing the SCORE_TOTAL variable", executionID)
	}
	return v.Value, nil
}

// flatten positions the cells into header order and applies missing-data
// fills: not attempted for unreached columns of this delivery, not responded
// for empty answers, not required for other deliveries' columns.
func (rb *RowBuilder) flatten(headers []string, sch *DeliverySchema, cells map[string]string) []string {
	row := make([]string, 0, len(headers))
	for _, col := range headers {
		value, ok := cells[col]
		switch {
		case ok && qti.IsEmptyContainer(value) && !isFixedColumn(col):
			row = append(row, rb.missingCode(rb.missing.NotResponded, col))
		case ok:
			row = append(row, value)
		case sch.Has(col):
			row = append(row, rb.missingCode(rb.missing.NotAttempted, col))
		default:
			row = append(row, rb.missingCode(rb.missing.NotRequired, col))
		}
	}
	return row
}

func (rb *RowBuilder) missingCode(code, col string) string {
	for _, o := range rb.overrides {
		if o.Column == col && o.Code == code {
			return o.Replacement
		}
	}
	for _, o := range rb.overrides {
		if o.Column == "" && o.Code == code {
			return o.Replacement
		}
	}
	return code
}

func (rb *RowBuilder) stripExotic(value string) string {
	for _, seq := range rb.exotic {
		value = strings.ReplaceAll(value, seq, "")
	}
	return value
}

func isFixedColumn(col string) bool {
	for _, c := range fixedLeading {
		if c == col {
			return true
		}
	}
	for _, c := range fixedTrailing {
		if c == col {
			return true
		}
	}
	return false
}
