package blacklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemorySetAndExists(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	found, err := m.Exists(ctx, "blacklist:missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, m.SetWithTTL(ctx, "blacklist:tok", "1", time.Minute))

	found, err = m.Exists(ctx, "blacklist:tok")
	require.NoError(t, err)
	require.True(t, found)
}

func TestMemoryEntryExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SetWithTTL(ctx, "blacklist:short", "1", 20*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	found, err := m.Exists(ctx, "blacklist:short")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryRejectsNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.ErrorIs(t, m.SetWithTTL(ctx, "k", "1", 0), ErrNonPositiveTTL)
	require.ErrorIs(t, m.SetWithTTL(ctx, "k", "1", -time.Second), ErrNonPositiveTTL)

	found, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestFailingAlwaysErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("cache down")
	f := NewFailing(boom)

	require.ErrorIs(t, f.SetWithTTL(ctx, "k", "1", time.Minute), boom)
	_, err := f.Exists(ctx, "k")
	require.ErrorIs(t, err, boom)
}
