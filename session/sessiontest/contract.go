// Package sessiontest holds the behavioural contract every session.Store
// implementation must satisfy.
package sessiontest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hupe1980/payroute/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract exercises store. The store must keep at least three turns
// per session.
func RunStoreContract(t *testing.T, store session.Store) {
	ctx := context.Background()
	sessionID := "contract-" + time.Now().Format("20060102150405.000000")
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Append and History", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Append(ctx, sessionID, session.Turn{
				RunID:    fmt.Sprintf("run-%d", i),
				Input:    fmt.Sprintf("input-%d", i),
				Output:   "존대말을 써주세요",
				Terminal: "polite_warning",
				Path:     []string{"politeness", "polite_warning"},
				At:       at,
			}))
		}

		turns, err := store.History(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, turns, 3)
		assert.Equal(t, "input-0", turns[0].Input)
		assert.Equal(t, "input-2", turns[2].Input)
		assert.Equal(t, []string{"politeness", "polite_warning"}, turns[1].Path)
		assert.True(t, at.Equal(turns[0].At))
	})

	t.Run("History is a copy", func(t *testing.T) {
		turns, err := store.History(ctx, sessionID)
		require.NoError(t, err)
		turns[0].Path[0] = "mutated"

		again, err := store.History(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "politeness", again[0].Path[0])
	})

	t.Run("Unknown session", func(t *testing.T) {
		_, err := store.History(ctx, "missing-"+sessionID)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		other := sessionID + "-other"
		require.NoError(t, store.Append(ctx, other, session.Turn{Input: "x", At: at}))
		defer func() { _ = store.Delete(ctx, other) }()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, sessionID)
		assert.Contains(t, ids, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID))
		require.NoError(t, store.Delete(ctx, sessionID))

		_, err := store.History(ctx, sessionID)
		assert.ErrorIs(t, err, session.ErrNotFound)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, sessionID)
	})
}
