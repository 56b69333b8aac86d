package tokenstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songbook/songbook-session/internal/common"
)

type recorder struct {
	changes []Change
}

func (r *recorder) fn(c Change) { r.changes = append(r.changes, c) }

func TestMemory_GetSetClear(t *testing.T) {
	ctx := context.Background()
	tab := NewSharedMemory().Tab("token")

	_, ok, err := tab.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, tab.Set(ctx, "t1"))
	got, ok, err := tab.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "t1", got)

	require.NoError(t, tab.Set(ctx, "t2"))
	got, _, _ = tab.Get(ctx)
	require.Equal(t, "t2", got)

	require.NoError(t, tab.Clear(ctx))
	_, ok, _ = tab.Get(ctx)
	require.False(t, ok)
}

func TestMemory_RejectsEmptyToken(t *testing.T) {
	tab := NewSharedMemory().Tab("token")
	require.ErrorIs(t, tab.Set(context.Background(), ""), common.ErrEmptyToken)
}

func TestMemory_NotifiesOtherTabsOnly(t *testing.T) {
	ctx := context.Background()
	shared := NewSharedMemory()
	a, b := shared.Tab("token"), shared.Tab("token")
	other := shared.Tab("other-key")

	var ra, rb, ro recorder
	a.Subscribe(ra.fn)
	b.Subscribe(rb.fn)
	other.Subscribe(ro.fn)

	require.NoError(t, a.Set(ctx, "t1"))
	require.NoError(t, a.Set(ctx, "t1")) // unchanged value, no notice
	require.NoError(t, a.Clear(ctx))
	require.NoError(t, a.Clear(ctx)) // already absent, no notice

	assert.Empty(t, ra.changes, "writer never hears itself")
	assert.Empty(t, ro.changes, "different key is a different scope")
	require.Equal(t, []Change{
		{Present: true, Origin: a.Origin()},
		{Present: false, Origin: a.Origin()},
	}, rb.changes)

	got, ok, _ := b.Get(ctx)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestMemory_UnsubscribeAndClose(t *testing.T) {
	ctx := context.Background()
	shared := NewSharedMemory()
	a, b, c := shared.Tab("token"), shared.Tab("token"), shared.Tab("token")

	var rb, rc recorder
	unsub := b.Subscribe(rb.fn)
	c.Subscribe(rc.fn)

	unsub()
	unsub()
	require.NoError(t, c.Close())

	require.NoError(t, a.Set(ctx, "t1"))
	assert.Empty(t, rb.changes)
	assert.Empty(t, rc.changes)
	assert.Equal(t, 0, b.subs.len())
}
