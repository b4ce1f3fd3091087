package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"textflow/internal/testutil"
)

func TestExtensionResultRoundTrip(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	type payload struct {
		Result bool `json:"result"`
	}

	require.NoError(t, c.SetExtensionResult(ctx, payload{Result: true}, time.Minute, "avail", "csv-upload", orgID))

	var dest payload
	hit, err := c.GetExtensionResult(ctx, &dest, "avail", "csv-upload", orgID)
	require.NoError(t, err)
	require.True(t, hit)
	require.True(t, dest.Result)
}

func TestExtensionResultZeroTTLNotStored(t *testing.T) {
	c, _, mr := newTestCache(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	require.NoError(t, c.SetExtensionResult(ctx, "value", 0, "avail", "csv-upload", orgID))
	require.Empty(t, mr.Keys(), "a zero expiry hint means no caching")

	var dest string
	hit, err := c.GetExtensionResult(ctx, &dest, "avail", "csv-upload", orgID)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestExtensionResultExpires(t *testing.T) {
	c, _, mr := newTestCache(t)
	ctx := context.Background()
	orgID := uuid.New().String()

	require.NoError(t, c.SetExtensionResult(ctx, "value", 30*time.Second, "choices", "test-action", orgID))

	mr.FastForward(31 * time.Second)

	var dest string
	hit, err := c.GetExtensionResult(ctx, &dest, "choices", "test-action", orgID)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestClearExtensionCachesScopedToOrg(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	orgA := uuid.New()
	orgB := uuid.New()

	require.NoError(t, c.SetExtensionResult(ctx, "a", time.Minute, "avail", "csv-upload", orgA.String()))
	require.NoError(t, c.SetExtensionResult(ctx, "b", time.Minute, "avail", "csv-upload", orgB.String()))

	require.NoError(t, c.ClearExtensionCaches(ctx, orgA))

	var dest string
	hit, err := c.GetExtensionResult(ctx, &dest, "avail", "csv-upload", orgA.String())
	require.NoError(t, err)
	require.False(t, hit)

	hit, err = c.GetExtensionResult(ctx, &dest, "avail", "csv-upload", orgB.String())
	require.NoError(t, err)
	require.True(t, hit, "other orgs keep their cached results")
}

func TestEnabled(t *testing.T) {
	c, _, _ := newTestCache(t)
	require.True(t, c.Enabled())

	disabled := New(testutil.NewFakeStore(), nil, testConfig(), nil)
	require.False(t, disabled.Enabled())
}
