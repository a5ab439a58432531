package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Roundtrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddUser(ctx, User{ID: "user-1", Label: "Ada", Login: "ada"}))

	started := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)
	finished := started.Add(40 * time.Minute)
	execID, err := store.AddExecution(ctx, Execution{
		DeliveryID: "delivery-1",
		UserID:     "user-1",
		StartedAt:  started,
		FinishedAt: &finished,
	})
	require.NoError(t, err)
	require.NotEmpty(t, execID)

	itemCall := execID + "#test-1.item-1.0"
	testCall := execID + "#test-1"
	require.NoError(t, store.AddItemCall(ctx, execID, itemCall))
	require.NoError(t, store.AddTestCall(ctx, execID, testCall))
	require.NoError(t, store.AddVariable(ctx, itemCall, Variable{Type: ResponseVariable, Identifier: "RESPONSE", Value: "choice_2"}))
	require.NoError(t, store.AddVariable(ctx, itemCall, Variable{Type: OutcomeVariable, Identifier: "SCORE", Value: "1"}))
	require.NoError(t, store.AddVariable(ctx, testCall, Variable{Type: OutcomeVariable, Identifier: "SCORE_TOTAL", Value: "12"}))

	ids, err := store.ResultsForDelivery(ctx, "delivery-1")
	require.NoError(t, err)
	assert.Equal(t, []string{execID}, ids)

	itemCalls, err := store.ItemCallIDs(ctx, execID)
	require.NoError(t, err)
	assert.Equal(t, []string{itemCall}, itemCalls)

	testCalls, err := store.TestCallIDs(ctx, execID)
	require.NoError(t, err)
	assert.Equal(t, []string{testCall}, testCalls)

	vars, err := store.Variables(ctx, itemCall)
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.True(t, vars[0].IsResponse())
	assert.Equal(t, "choice_2", vars[0].Value)
	assert.True(t, vars[1].IsOutcome())

	total, err := store.Variable(ctx, testCall, "SCORE_TOTAL")
	require.NoError(t, err)
	require.NotNil(t, total)
	assert.Equal(t, "12", total.Value)

	missing, err := store.Variable(ctx, testCall, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)

	exec, err := store.ExecutionByID(ctx, execID)
	require.NoError(t, err)
	assert.Equal(t, "delivery-1", exec.DeliveryID)
	assert.Equal(t, started.Unix(), exec.StartedAt.Unix())
	require.NotNil(t, exec.FinishedAt)
	assert.Equal(t, finished.Unix(), exec.FinishedAt.Unix())

	user, err := store.UserByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Label)

	ghost, err := store.UserByID(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ghost.Label)
}

func TestSQLiteStore_ResultsOrderedByStart(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	late, err := store.AddExecution(ctx, Execution{ID: "late", DeliveryID: "d", UserID: "u", StartedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	early, err := store.AddExecution(ctx, Execution{ID: "early", DeliveryID: "d", UserID: "u", StartedAt: base})
	require.NoError(t, err)

	ids, err := store.ResultsForDelivery(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, []string{early, late}, ids)
}

func TestItemRefFromCallID(t *testing.T) {
	ref, ok := ItemRefFromCallID("exec-9#test-1.item-3.0")
	require.True(t, ok)
	assert.Equal(t, "item-3", ref)

	_, ok = ItemRefFromCallID("no-separator")
	assert.False(t, ok)

	_, ok = ItemRefFromCallID("exec#testonly")
	assert.False(t, ok)
}

func TestUserDisplayLogin(t *testing.T) {
	assert.Equal(t, "ada", User{Login: "ada", LTIKey: "lti", Label: "Ada"}.DisplayLogin())
	assert.Equal(t, "lti", User{LTIKey: "lti", Label: "Ada"}.DisplayLogin())
	assert.Equal(t, "Ada", User{Label: "Ada"}.DisplayLogin())
	assert.Empty(t, User{}.DisplayLogin())
}
