package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

const testURL = "https://dghpsh.agcontrol.gob.ar/matafuegos/datosEstampilla.jsp?id=1"

func TestInsertAndFind(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	id, err := st.Insert(ctx, testURL, "OT-5", at)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	rec, err := st.FindByURL(ctx, testURL)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, StatePending, rec.State)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, "OT-5", rec.NroOrden)
	assert.Equal(t, at.Unix(), rec.CapturedAt.Unix())
}

func TestFindByURLMissing(t *testing.T) {
	st := openTestStore(t)

	rec, err := st.FindByURL(context.Background(), testURL)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestListUndeliveredOrderAndFilter(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	older, err := st.Insert(ctx, testURL+"&a", "", base)
	require.NoError(t, err)
	sent, err := st.Insert(ctx, testURL+"&b", "", base.Add(time.Minute))
	require.NoError(t, err)
	newer, err := st.Insert(ctx, testURL+"&c", "", base.Add(2*time.Minute))
	require.NoError(t, err)

	require.NoError(t, st.MarkSent(ctx, sent))

	list, err := st.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older, list[0].ID)
	assert.Equal(t, newer, list[1].ID)
}

func TestIncrementAttempts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.Insert(ctx, testURL, "", time.Now())
	require.NoError(t, err)

	require.NoError(t, st.IncrementAttempts(ctx, id))
	require.NoError(t, st.IncrementAttempts(ctx, id))

	rec, err := st.FindByURL(ctx, testURL)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Attempts)
}

func TestCountersAndClear(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a, err := st.Insert(ctx, testURL+"&a", "", time.Now())
	require.NoError(t, err)
	_, err = st.Insert(ctx, testURL+"&b", "", time.Now())
	require.NoError(t, err)
	require.NoError(t, st.MarkSent(ctx, a))

	pending, err := st.CountPending(ctx)
	require.NoError(t, err)
	sent, err := st.CountSent(ctx)
	require.NoError(t, err)
	total, err := st.CountTotal(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, total)

	require.NoError(t, st.ClearAll(ctx))
	total, err = st.CountTotal(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}
