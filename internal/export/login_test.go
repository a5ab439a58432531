package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resultexport/internal/delivery"
	"resultexport/internal/results"
)

func TestLoginExport(t *testing.T) {
	ctx := context.Background()
	d1, d2 := twoDeliveries(t)
	store := openSeedStore(t)

	require.NoError(t, store.AddUser(ctx, results.User{ID: "user-1", Label: "Ada", Login: "ada"}))
	require.NoError(t, store.AddUser(ctx, results.User{ID: "user-2", Label: "Grace", LTIKey: "lti-grace"}))

	started := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	seedExecution(t, store, d1.ID, "user-1", started)
	seedExecution(t, store, d1.ID, "user-1", started.Add(time.Hour)) // second attempt, same login
	seedExecution(t, store, d2.ID, "user-2", started)

	e := NewLoginExporter(store, store, FSArtifactStore{Base: t.TempDir()}, nil)

	var buf bytes.Buffer
	rep := e.ExportTo(ctx, []delivery.Delivery{d1, d2}, NewStdoutRenderer(&buf), true)
	require.False(t, rep.ContainsError(), rep.Render())
	assert.Equal(t, 2, rep.Rows)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"login"}, {"ada"}, {"lti-grace"}}, records)
}

func TestLoginExport_ToArtifact(t *testing.T) {
	ctx := context.Background()
	d1, _ := twoDeliveries(t)
	store := openSeedStore(t)

	require.NoError(t, store.AddUser(ctx, results.User{ID: "user-1", Login: "ada"}))
	seedExecution(t, store, d1.ID, "user-1", time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))

	base := t.TempDir()
	e := NewLoginExporter(store, store, FSArtifactStore{Base: base}, nil)
	e.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	e.hostname = func() (string, error) { return "testhost", nil }

	rep := e.Export(ctx, []delivery.Delivery{d1}, "logins", false, false)
	require.False(t, rep.ContainsError(), rep.Render())

	records := readArtifact(t, base, "2026_08_31/testhost/logins.csv")
	assert.Equal(t, [][]string{{"ada"}}, records)
}

func TestLoginExport_MissingLoginFails(t *testing.T) {
	ctx := context.Background()
	d1, _ := twoDeliveries(t)
	store := openSeedStore(t)

	require.NoError(t, store.AddUser(ctx, results.User{ID: "user-1"}))
	seedExecution(t, store, d1.ID, "user-1", time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))

	e := NewLoginExporter(store, store, FSArtifactStore{Base: t.TempDir()}, nil)

	var buf bytes.Buffer
	rep := e.ExportTo(ctx, []delivery.Delivery{d1}, NewStdoutRenderer(&buf), false)
	require.True(t, rep.ContainsError())
	assert.Contains(t, rep.Message, "no login credential")
}
