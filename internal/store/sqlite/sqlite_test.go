package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/genrepo/internal/query"
	"github.com/jbweber/homelab/genrepo/internal/store"
	"github.com/jbweber/homelab/genrepo/internal/store/sqlite"
	"github.com/jbweber/homelab/genrepo/internal/testutil"
)

type note struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func noteSchema() *query.Schema[note, string] {
	s := query.NewSchema("notes", func(n *note) string { return n.ID })
	query.OrderedField(s, "ID", func(n *note) string { return n.ID })
	query.OrderedField(s, "Title", func(n *note) string { return n.Title })
	return s
}

func setupBackend(t *testing.T) *sqlite.Backend {
	t.Helper()
	db, cleanup := testutil.SetupTestDBWithMigrations(t, t.Name())
	t.Cleanup(cleanup)
	b := sqlite.New(db, nil)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_LoadPreservesInsertionOrder(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	n, err := b.Apply(ctx, []store.Change{
		{Op: store.OpInsert, Kind: "notes", Key: "c", Data: []byte(`{"id":"c"}`)},
		{Op: store.OpInsert, Kind: "notes", Key: "a", Data: []byte(`{"id":"a"}`)},
		{Op: store.OpInsert, Kind: "other", Key: "a", Data: []byte(`{"id":"a"}`)},
		{Op: store.OpInsert, Kind: "notes", Key: "b", Data: []byte(`{"id":"b"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	records, err := b.Load(ctx, "notes")
	require.NoError(t, err)
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"c", "a", "b"}, keys)
}

func TestBackend_Duplicate(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	_, err := b.Apply(ctx, []store.Change{{Op: store.OpInsert, Kind: "notes", Key: "a", Data: []byte(`{}`)}})
	require.NoError(t, err)

	_, err = b.Apply(ctx, []store.Change{
		{Op: store.OpInsert, Kind: "notes", Key: "b", Data: []byte(`{}`)},
		{Op: store.OpInsert, Kind: "notes", Key: "a", Data: []byte(`{}`)},
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	records, err := b.Load(ctx, "notes")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestBackend_UpdateDeleteMissing(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	_, err := b.Apply(ctx, []store.Change{{Op: store.OpUpdate, Kind: "notes", Key: "x", Data: []byte(`{}`)}})
	assert.ErrorIs(t, err, store.ErrConcurrency)

	_, err = b.Apply(ctx, []store.Change{{Op: store.OpDelete, Kind: "notes", Key: "x"}})
	assert.ErrorIs(t, err, store.ErrConcurrency)
}

func TestBackend_SessionRoundTrip(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	sess := store.NewSession(b)
	set := store.NewSet(sess, noteSchema())
	require.NoError(t, set.Add(&note{ID: "2", Title: "beta"}, &note{ID: "1", Title: "alpha"}))
	_, err := sess.Persist(ctx)
	require.NoError(t, err)

	sess = store.NewSession(b)
	set = store.NewSet(sess, noteSchema())
	got, err := set.Query(query.TrackAll).OrderBy("Title", query.Ascending).All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Title)

	got[0].Title = "gamma"
	require.NoError(t, set.Remove(got[1]))
	n, err := sess.Persist(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := store.NewSet(store.NewSession(b), noteSchema()).Query(query.NoTracking).All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "gamma", all[0].Title)
}

func TestBackend_StatementsAreCached(t *testing.T) {
	db, cleanup := testutil.SetupTestDBWithMigrations(t, t.Name())
	defer cleanup()

	b := sqlite.New(db, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := b.Load(ctx, "notes")
		require.NoError(t, err)
	}
	require.NoError(t, b.Close())
	require.NoError(t, db.Ping())
}

func TestBackend_Cancelled(t *testing.T) {
	b := setupBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Apply(ctx, []store.Change{{Op: store.OpInsert, Kind: "notes", Key: "a", Data: []byte(`{}`)}})
	assert.Error(t, err)
}
