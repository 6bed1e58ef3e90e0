package report_test

import (
	"fmt"
	"sync"
	"testing"

	mperrors "github.com/randalmurphal/memprof/pkg/memprof/errors"
	"github.com/randalmurphal/memprof/pkg/memprof/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Len(t *testing.T) {
	store := report.NewMemoryStore()
	defer store.Close()

	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Save(testSnapshot("snap-bbbb0001", "cap-1")))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Save(testSnapshot("snap-bbbb0002", "cap-1")))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Save(testSnapshot("snap-bbbb0003", "cap-2")))
	assert.Equal(t, 3, store.Len())

	require.NoError(t, store.Delete("snap-bbbb0001"))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.DeleteSession("cap-1"))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := report.NewMemoryStore()
	defer store.Close()

	const numGoroutines = 100
	const numOps = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			sessionID := fmt.Sprintf("cap-%d", id%10)
			for j := 0; j < numOps; j++ {
				snapID := fmt.Sprintf("snap-%d-%d", id, j%10)

				// Mix of operations
				switch j % 5 {
				case 0, 1:
					_ = store.Save(testSnapshot(snapID, sessionID))
				case 2:
					_, _ = store.Load(snapID)
				case 3:
					_, _ = store.List(sessionID)
				case 4:
					_ = store.Delete(snapID)
				}
			}
		}(i)
	}

	wg.Wait()

	// Should not panic or deadlock
	// Final state doesn't matter, just verifying concurrent safety
}

func TestBoundedMemoryStore_RejectsOverflow(t *testing.T) {
	store := report.NewBoundedMemoryStore(2)
	defer store.Close()

	require.NoError(t, store.Save(testSnapshot("snap-bbbb0004", "cap-1")))
	require.NoError(t, store.Save(testSnapshot("snap-bbbb0005", "cap-1")))

	err := store.Save(testSnapshot("snap-bbbb0006", "cap-1"))
	require.Error(t, err)

	var overflow *mperrors.OverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, 2, overflow.Capacity)
	assert.Equal(t, 3, overflow.Requested)

	// Overflow is permanent: retrying cannot help a full store
	assert.False(t, mperrors.IsRetryable(err))

	// Overwriting an existing snapshot is not growth
	assert.NoError(t, store.Save(testSnapshot("snap-bbbb0005", "cap-1")))

	// Deleting frees a slot
	require.NoError(t, store.Delete("snap-bbbb0004"))
	assert.NoError(t, store.Save(testSnapshot("snap-bbbb0006", "cap-1")))
}

func TestMemoryStore_OverwriteMovesSession(t *testing.T) {
	store := report.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Save(testSnapshot("snap-bbbb0007", "cap-1")))
	require.NoError(t, store.Save(testSnapshot("snap-bbbb0007", "cap-2")))

	infos, err := store.List("cap-1")
	require.NoError(t, err)
	assert.Empty(t, infos)

	infos, err = store.List("cap-2")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "snap-bbbb0007", infos[0].ID)
}
